// Package index implements the B+Tree Index, per §4.5.
package index

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/nikhilrao/relstore/pkg/record"
)

// GenericKey is an index key: the fixed-width encoding of one or more
// column values from an indexed row, concatenated in index-column
// order. Comparison is a plain byte comparison. Unlike record.Field's
// row encoding (little-endian, not order-preserving for signed
// ints/floats), key fields are encoded big-endian with a sign-bit
// transform so that byte order matches value order.
type GenericKey []byte

// KeyManager builds and compares GenericKeys for one index, given the
// index's key schema (the subset/order of the table schema's columns
// that make up the key, supporting composite indexes).
type KeyManager struct {
	keySchema *record.Schema
}

// NewKeyManager builds a KeyManager for an index over keyCols of base.
func NewKeyManager(base *record.Schema, keyCols []int) *KeyManager {
	cols := make([]record.Column, len(keyCols))
	for i, ci := range keyCols {
		cols[i] = base.Columns[ci]
	}
	return &KeyManager{keySchema: record.NewSchema(cols)}
}

// KeySchema returns the schema describing this index's key tuple.
func (km *KeyManager) KeySchema() *record.Schema { return km.keySchema }

// KeySize returns the fixed encoded size of one key.
func (km *KeyManager) KeySize() int {
	size := 0
	for _, c := range km.keySchema.Columns {
		size += fieldWidth(c)
	}
	return size
}

// fieldWidth returns the encoded width of one key field, including the
// leading null-flag byte encodeKeyField writes.
func fieldWidth(c record.Column) int {
	switch c.Type {
	case record.TypeInt32, record.TypeFloat32:
		return 5
	case record.TypeChar:
		return 1 + c.Length
	default:
		return 0
	}
}

// FromRow extracts and encodes the key for row under the base table's
// schema, using km's key-column order.
func (km *KeyManager) FromRow(row *record.Row, keyCols []int) GenericKey {
	buf := make([]byte, 0, km.KeySize())
	for i, ci := range keyCols {
		buf = encodeKeyField(buf, row.Fields[ci], km.keySchema.Columns[i])
	}
	return GenericKey(buf)
}

// FromKeyRow encodes a standalone key row already built against
// km.KeySchema() (used for range-scan bounds built ad hoc by callers).
func (km *KeyManager) FromKeyRow(row *record.Row) GenericKey {
	buf := make([]byte, 0, km.KeySize())
	for i, f := range row.Fields {
		buf = encodeKeyField(buf, f, km.keySchema.Columns[i])
	}
	return GenericKey(buf)
}

// encodeKeyField appends f's order-preserving encoding to buf: a
// leading null flag byte (0 = null, 1 = present) followed by the
// column's fixed-width payload, so nulls sort before every non-null
// value of the same column regardless of the payload's own encoding.
func encodeKeyField(buf []byte, f record.Field, col record.Column) []byte {
	switch col.Type {
	case record.TypeInt32:
		var b [5]byte
		if !f.Null {
			b[0] = 1
			binary.BigEndian.PutUint32(b[1:], uint32(f.I32)^0x80000000)
		}
		return append(buf, b[:]...)
	case record.TypeFloat32:
		var b [5]byte
		if !f.Null {
			b[0] = 1
			bits := math.Float32bits(f.F32)
			if bits&0x80000000 != 0 {
				bits = ^bits
			} else {
				bits |= 0x80000000
			}
			binary.BigEndian.PutUint32(b[1:], bits)
		}
		return append(buf, b[:]...)
	case record.TypeChar:
		b := make([]byte, 1+col.Length)
		if !f.Null {
			b[0] = 1
			copy(b[1:], f.Chars)
		}
		return append(buf, b...)
	default:
		panic(fmt.Sprintf("index: unknown column type %v", col.Type))
	}
}

// Compare returns -1, 0, or 1 as a orders before, equal to, or after b.
func (km *KeyManager) Compare(a, b GenericKey) int {
	return bytes.Compare(a, b)
}
