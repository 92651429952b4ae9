package record

import (
	"encoding/binary"
	"fmt"
)

// Row is an ordered tuple of Fields matching some Schema.
type Row struct {
	Fields []Field
}

// NewRow wraps fields as a Row.
func NewRow(fields ...Field) *Row { return &Row{Fields: fields} }

// SerializedSize returns the exact encoded byte length of the row
// under schema.
func (r *Row) SerializedSize(schema *Schema) int {
	size := 4 + 4 // field_count + null_bitmap
	for i, f := range r.Fields {
		size += f.EncodedSize(schema.Columns[i])
	}
	return size
}

// SerializeTo writes "[field_count(u32) | null_bitmap(u32) | field_0 |
// field_1 | ...]". The null bitmap sets bit (field_count-1-i) for a
// null field i, per the external format.
func (r *Row) SerializeTo(schema *Schema) ([]byte, error) {
	if len(r.Fields) != len(schema.Columns) {
		return nil, fmt.Errorf("record: row has %d fields, schema has %d columns", len(r.Fields), len(schema.Columns))
	}

	n := len(r.Fields)
	var bitmap uint32
	for i, f := range r.Fields {
		if f.Null {
			bitmap |= 1 << uint(n-1-i)
		}
	}

	buf := make([]byte, 0, r.SerializedSize(schema))
	var h [4]byte
	binary.LittleEndian.PutUint32(h[:], uint32(n))
	buf = append(buf, h[:]...)
	binary.LittleEndian.PutUint32(h[:], bitmap)
	buf = append(buf, h[:]...)

	for i, f := range r.Fields {
		col := schema.Columns[i]
		if !f.Null && f.Type != col.Type {
			return nil, fmt.Errorf("record: field %d type %v does not match column %q type %v", i, f.Type, col.Name, col.Type)
		}
		buf = f.Encode(buf, col)
	}
	return buf, nil
}

// DeserializeFrom reconstructs a Row from data using schema to dispatch
// field decoding, mirroring SerializeTo's layout exactly.
func DeserializeFrom(data []byte, schema *Schema) (*Row, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("record: truncated row header")
	}
	n := int(binary.LittleEndian.Uint32(data[0:4]))
	bitmap := binary.LittleEndian.Uint32(data[4:8])
	if n != len(schema.Columns) {
		return nil, fmt.Errorf("record: row field_count %d does not match schema column count %d", n, len(schema.Columns))
	}

	fields := make([]Field, n)
	pos := 8
	for i := 0; i < n; i++ {
		isNull := bitmap&(1<<uint(n-1-i)) != 0
		f, consumed, err := DecodeField(data, pos, schema.Columns[i], isNull)
		if err != nil {
			return nil, err
		}
		fields[i] = f
		pos += consumed
	}
	return &Row{Fields: fields}, nil
}

// Equal reports whether two rows hold the same field values.
func (r *Row) Equal(o *Row) bool {
	if len(r.Fields) != len(o.Fields) {
		return false
	}
	for i := range r.Fields {
		if !r.Fields[i].Equal(o.Fields[i]) {
			return false
		}
	}
	return true
}
