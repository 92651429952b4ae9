package record

import (
	"encoding/binary"
	"fmt"
)

// columnMagic tags a serialized Column so DeserializeColumn can catch
// an offset mistake early instead of decoding garbage.
const columnMagic = uint32(0x434f4c31) // "COL1"

// Column describes one field of a Schema.
type Column struct {
	Name     string
	Type     Type
	Length   int // meaningful only for TypeChar
	Index    int // ordinal position within the owning Schema
	Nullable bool
	Unique   bool
}

// NewColumn builds a Column; length is ignored for non-CHAR types.
func NewColumn(name string, t Type, length int, index int, nullable, unique bool) Column {
	if t != TypeChar {
		length = 0
	}
	return Column{Name: name, Type: t, Length: length, Index: index, Nullable: nullable, Unique: unique}
}

// SerializedSize returns the exact encoded length of the column.
func (c Column) SerializedSize() int {
	// magic | name_len | name | type | len | index | nullable | unique
	return 4 + 4 + len(c.Name) + 4 + 4 + 4 + 4 + 4
}

// Serialize writes the column's on-page representation, little-endian
// 4-byte integers throughout, per the external file-format section.
func (c Column) Serialize(buf []byte) []byte {
	var h [4]byte
	put := func(v uint32) {
		binary.LittleEndian.PutUint32(h[:], v)
		buf = append(buf, h[:]...)
	}
	put(columnMagic)
	put(uint32(len(c.Name)))
	buf = append(buf, c.Name...)
	put(uint32(c.Type))
	put(uint32(c.Length))
	put(uint32(c.Index))
	put(boolToU32(c.Nullable))
	put(boolToU32(c.Unique))
	return buf
}

// DeserializeColumn reads a Column starting at data[0] and returns it
// along with the number of bytes consumed.
func DeserializeColumn(data []byte) (Column, int, error) {
	if len(data) < 8 {
		return Column{}, 0, fmt.Errorf("record: truncated column header")
	}
	if magic := binary.LittleEndian.Uint32(data[0:4]); magic != columnMagic {
		return Column{}, 0, fmt.Errorf("record: bad column magic %#x", magic)
	}
	nameLen := int(binary.LittleEndian.Uint32(data[4:8]))
	pos := 8
	if len(data) < pos+nameLen+16 {
		return Column{}, 0, fmt.Errorf("record: truncated column body")
	}
	name := string(data[pos : pos+nameLen])
	pos += nameLen
	typ := Type(binary.LittleEndian.Uint32(data[pos : pos+4]))
	pos += 4
	length := int(binary.LittleEndian.Uint32(data[pos : pos+4]))
	pos += 4
	index := int(binary.LittleEndian.Uint32(data[pos : pos+4]))
	pos += 4
	nullable := binary.LittleEndian.Uint32(data[pos:pos+4]) != 0
	pos += 4
	unique := binary.LittleEndian.Uint32(data[pos:pos+4]) != 0
	pos += 4
	return Column{
		Name: name, Type: typ, Length: length, Index: index,
		Nullable: nullable, Unique: unique,
	}, pos, nil
}

func boolToU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
