package page

import (
	"encoding/binary"

	"github.com/nikhilrao/relstore/pkg/common"
	"github.com/nikhilrao/relstore/pkg/dberrors"
)

// IndexRootsPage lives at the fixed common.IndexRootsPageID and tracks
// each index's current root page, separately from the catalog meta page
// so a root change from a split/merge never requires rewriting catalog
// metadata. Layout: count(4) | (index_id, root_page_id)[count].
type IndexRootsPage []byte

const indexRootsEntrySize = 8
const indexRootsCapacity = (common.PageSize - 4) / indexRootsEntrySize

func NewIndexRootsPage(buf []byte) IndexRootsPage {
	p := IndexRootsPage(buf)
	binary.LittleEndian.PutUint32(p[0:4], 0)
	return p
}

func WrapIndexRootsPage(buf []byte) IndexRootsPage { return IndexRootsPage(buf) }

func (p IndexRootsPage) count() int { return int(binary.LittleEndian.Uint32(p[0:4])) }

func (p IndexRootsPage) offsetOf(i int) int { return 4 + i*indexRootsEntrySize }

func (p IndexRootsPage) entryIndex(indexID uint32) int {
	for i := 0; i < p.count(); i++ {
		off := p.offsetOf(i)
		if binary.LittleEndian.Uint32(p[off:off+4]) == indexID {
			return i
		}
	}
	return -1
}

// GetRoot returns indexID's current root page, or InvalidPageID if
// unset.
func (p IndexRootsPage) GetRoot(indexID uint32) common.PageID {
	i := p.entryIndex(indexID)
	if i < 0 {
		return common.InvalidPageID
	}
	off := p.offsetOf(i)
	return common.PageID(int32(binary.LittleEndian.Uint32(p[off+4 : off+8])))
}

// SetRoot records or updates indexID's root page.
func (p IndexRootsPage) SetRoot(indexID uint32, root common.PageID) error {
	if i := p.entryIndex(indexID); i >= 0 {
		off := p.offsetOf(i)
		binary.LittleEndian.PutUint32(p[off+4:off+8], uint32(int32(root)))
		return nil
	}
	n := p.count()
	if n >= indexRootsCapacity {
		return dberrors.New(dberrors.PageFull, "page.SetRoot", "", nil)
	}
	off := p.offsetOf(n)
	binary.LittleEndian.PutUint32(p[off:off+4], indexID)
	binary.LittleEndian.PutUint32(p[off+4:off+8], uint32(int32(root)))
	binary.LittleEndian.PutUint32(p[0:4], uint32(n+1))
	return nil
}
