// Package record implements the on-disk tuple encoding: typed Fields,
// Column/Schema metadata, and Row serialization to and from a table
// page's byte slots.
package record

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Type is the column/field data type. The engine supports exactly the
// numeric and fixed-length string types named in the specification.
type Type uint32

const (
	TypeInvalid Type = iota
	TypeInt32
	TypeFloat32
	TypeChar
)

func (t Type) String() string {
	switch t {
	case TypeInt32:
		return "INT"
	case TypeFloat32:
		return "FLOAT"
	case TypeChar:
		return "CHAR"
	default:
		return "INVALID"
	}
}

// Field holds one column's value for one row. A nil/invalid Type with
// Null set to true serializes to zero payload bytes.
type Field struct {
	Type  Type
	Null  bool
	I32   int32
	F32   float32
	Chars string // only meaningful for TypeChar; not padded in memory
}

// NewNull returns a null field of the given type.
func NewNull(t Type) Field { return Field{Type: t, Null: true} }

// NewInt32 returns a non-null INT field.
func NewInt32(v int32) Field { return Field{Type: TypeInt32, I32: v} }

// NewFloat32 returns a non-null FLOAT field.
func NewFloat32(v float32) Field { return Field{Type: TypeFloat32, F32: v} }

// NewChar returns a non-null CHAR field. len is the column's fixed
// width; the caller-supplied string is truncated to it.
func NewChar(v string, length int) Field {
	if len(v) > length {
		v = v[:length]
	}
	return Field{Type: TypeChar, Chars: v}
}

// EncodedSize returns the number of payload bytes Field writes for
// column col (fixed-width types ignore the field's own length and use
// the column's declared width, so a short CHAR still serializes to the
// declared size).
func (f Field) EncodedSize(col Column) int {
	if f.Null {
		return 0
	}
	switch col.Type {
	case TypeInt32:
		return 4
	case TypeFloat32:
		return 4
	case TypeChar:
		return col.Length
	default:
		panic(fmt.Sprintf("record: unknown column type %v", col.Type))
	}
}

// Encode appends the field's payload bytes (zero bytes if null) to buf
// and returns the result.
func (f Field) Encode(buf []byte, col Column) []byte {
	if f.Null {
		return buf
	}
	switch col.Type {
	case TypeInt32:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(f.I32))
		return append(buf, b[:]...)
	case TypeFloat32:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(f.F32))
		return append(buf, b[:]...)
	case TypeChar:
		fixed := make([]byte, col.Length)
		copy(fixed, f.Chars)
		return append(buf, fixed...)
	default:
		panic(fmt.Sprintf("record: unknown column type %v", col.Type))
	}
}

// DecodeField reads one field of column col from data starting at
// offset, returning the field and the number of bytes consumed.
func DecodeField(data []byte, offset int, col Column, isNull bool) (Field, int, error) {
	if isNull {
		return NewNull(col.Type), 0, nil
	}
	switch col.Type {
	case TypeInt32:
		if offset+4 > len(data) {
			return Field{}, 0, fmt.Errorf("record: truncated int32 field %q", col.Name)
		}
		v := int32(binary.LittleEndian.Uint32(data[offset : offset+4]))
		return NewInt32(v), 4, nil
	case TypeFloat32:
		if offset+4 > len(data) {
			return Field{}, 0, fmt.Errorf("record: truncated float32 field %q", col.Name)
		}
		v := math.Float32frombits(binary.LittleEndian.Uint32(data[offset : offset+4]))
		return NewFloat32(v), 4, nil
	case TypeChar:
		if offset+col.Length > len(data) {
			return Field{}, 0, fmt.Errorf("record: truncated char field %q", col.Name)
		}
		raw := data[offset : offset+col.Length]
		end := len(raw)
		for end > 0 && raw[end-1] == 0 {
			end--
		}
		return Field{Type: TypeChar, Chars: string(raw[:end])}, col.Length, nil
	default:
		return Field{}, 0, fmt.Errorf("record: unknown column type %v for field %q", col.Type, col.Name)
	}
}

// Equal reports whether two fields hold the same logical value.
func (f Field) Equal(o Field) bool {
	if f.Null != o.Null {
		return false
	}
	if f.Null {
		return true
	}
	switch f.Type {
	case TypeInt32:
		return f.I32 == o.I32
	case TypeFloat32:
		return f.F32 == o.F32
	case TypeChar:
		return f.Chars == o.Chars
	default:
		return false
	}
}
