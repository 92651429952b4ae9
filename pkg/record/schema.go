package record

import (
	"encoding/binary"
	"fmt"
)

const schemaMagic = uint32(0x53434831) // "SCH1"

// Schema is an ordered sequence of Columns shared by every Row stored
// under a table, or by a GenericKey's packed prefix for an index.
type Schema struct {
	Columns []Column
}

// NewSchema builds a Schema, assigning each column its ordinal index.
func NewSchema(cols []Column) *Schema {
	out := make([]Column, len(cols))
	for i, c := range cols {
		c.Index = i
		out[i] = c
	}
	return &Schema{Columns: out}
}

// Clone deep-copies the schema; the Catalog keeps its own copy so a
// caller's Schema can be mutated or discarded after CreateTable.
func (s *Schema) Clone() *Schema {
	cols := make([]Column, len(s.Columns))
	copy(cols, s.Columns)
	return &Schema{Columns: cols}
}

// ColumnIndex returns the ordinal of the named column, or -1.
func (s *Schema) ColumnIndex(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// SerializedSize returns the exact encoded length of the schema.
func (s *Schema) SerializedSize() int {
	size := 4 + 4 // magic + column_count
	for _, c := range s.Columns {
		size += c.SerializedSize()
	}
	return size
}

// Serialize writes "[magic | column_count | columns...]".
func (s *Schema) Serialize(buf []byte) []byte {
	var h [4]byte
	binary.LittleEndian.PutUint32(h[:], schemaMagic)
	buf = append(buf, h[:]...)
	binary.LittleEndian.PutUint32(h[:], uint32(len(s.Columns)))
	buf = append(buf, h[:]...)
	for _, c := range s.Columns {
		buf = c.Serialize(buf)
	}
	return buf
}

// DeserializeSchema reads a Schema starting at data[0] and returns it
// along with the number of bytes consumed.
func DeserializeSchema(data []byte) (*Schema, int, error) {
	if len(data) < 8 {
		return nil, 0, fmt.Errorf("record: truncated schema header")
	}
	if magic := binary.LittleEndian.Uint32(data[0:4]); magic != schemaMagic {
		return nil, 0, fmt.Errorf("record: bad schema magic %#x", magic)
	}
	count := int(binary.LittleEndian.Uint32(data[4:8]))
	pos := 8
	cols := make([]Column, 0, count)
	for i := 0; i < count; i++ {
		col, n, err := DeserializeColumn(data[pos:])
		if err != nil {
			return nil, 0, fmt.Errorf("record: column %d: %w", i, err)
		}
		cols = append(cols, col)
		pos += n
	}
	return &Schema{Columns: cols}, pos, nil
}
