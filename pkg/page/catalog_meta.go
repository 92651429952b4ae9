package page

import (
	"encoding/binary"

	"github.com/nikhilrao/relstore/pkg/common"
	"github.com/nikhilrao/relstore/pkg/dberrors"
)

const catalogMetaMagic = uint32(0x43415431) // "CAT1"

// CatalogMetaPage lives at the fixed common.CatalogMetaPageID and
// records the mapping from table/index id to their first page, so the
// catalog can rebuild its in-memory state on startup. Layout:
//
//	magic(4) | table_count(4) | index_count(4) | (table_id,page_id)[table_count] | (index_id,page_id)[index_count]
type CatalogMetaPage []byte

// IDPage is one (id, first_page_id) mapping.
type IDPage struct {
	ID     uint32
	PageID common.PageID
}

func NewCatalogMetaPage(buf []byte) CatalogMetaPage {
	p := CatalogMetaPage(buf)
	binary.LittleEndian.PutUint32(p[0:4], catalogMetaMagic)
	binary.LittleEndian.PutUint32(p[4:8], 0)
	binary.LittleEndian.PutUint32(p[8:12], 0)
	return p
}

func WrapCatalogMetaPage(buf []byte) (CatalogMetaPage, error) {
	p := CatalogMetaPage(buf)
	if binary.LittleEndian.Uint32(p[0:4]) != catalogMetaMagic {
		return nil, dberrors.New(dberrors.CorruptPage, "page.WrapCatalogMetaPage", "", nil)
	}
	return p, nil
}

func (p CatalogMetaPage) tableCount() int { return int(binary.LittleEndian.Uint32(p[4:8])) }
func (p CatalogMetaPage) indexCount() int { return int(binary.LittleEndian.Uint32(p[8:12])) }

func (p CatalogMetaPage) tableOff(i int) int { return 12 + i*8 }
func (p CatalogMetaPage) indexOff(i int) int { return 12 + p.tableCount()*8 + i*8 }

func (p CatalogMetaPage) usedBytes() int { return 12 + (p.tableCount()+p.indexCount())*8 }

// Tables returns every (table_id, first_page_id) mapping.
func (p CatalogMetaPage) Tables() []IDPage {
	n := p.tableCount()
	out := make([]IDPage, n)
	for i := 0; i < n; i++ {
		off := p.tableOff(i)
		out[i] = IDPage{
			ID:     binary.LittleEndian.Uint32(p[off : off+4]),
			PageID: common.PageID(int32(binary.LittleEndian.Uint32(p[off+4 : off+8]))),
		}
	}
	return out
}

// Indexes returns every (index_id, root_meta_page_id) mapping.
func (p CatalogMetaPage) Indexes() []IDPage {
	n := p.indexCount()
	out := make([]IDPage, n)
	for i := 0; i < n; i++ {
		off := p.indexOff(i)
		out[i] = IDPage{
			ID:     binary.LittleEndian.Uint32(p[off : off+4]),
			PageID: common.PageID(int32(binary.LittleEndian.Uint32(p[off+4 : off+8]))),
		}
	}
	return out
}

// AddTable appends a new table mapping at the end of the table block.
// Index entries trail table entries, so the whole index block is first
// shifted right by one 8-byte entry to make room.
func (p CatalogMetaPage) AddTable(id uint32, pageID common.PageID) error {
	if p.usedBytes()+8+8 > common.PageSize {
		// +8 reserved so a later AddIndex always still fits without the
		// table block needing to move.
		return dberrors.New(dberrors.PageFull, "page.AddTable", "", nil)
	}
	n := p.tableCount()
	// Shift any existing index entries right by 8 to make room after
	// the (growing) table block.
	idxN := p.indexCount()
	if idxN > 0 {
		srcStart := p.indexOff(0)
		srcEnd := p.indexOff(idxN)
		copy(p[srcStart+8:srcEnd+8], p[srcStart:srcEnd])
	}
	off := p.tableOff(n)
	binary.LittleEndian.PutUint32(p[off:off+4], id)
	binary.LittleEndian.PutUint32(p[off+4:off+8], uint32(int32(pageID)))
	binary.LittleEndian.PutUint32(p[4:8], uint32(n+1))
	return nil
}

// AddIndex appends a new index mapping.
func (p CatalogMetaPage) AddIndex(id uint32, pageID common.PageID) error {
	if p.usedBytes()+8 > common.PageSize {
		return dberrors.New(dberrors.PageFull, "page.AddIndex", "", nil)
	}
	n := p.indexCount()
	off := p.indexOff(n)
	binary.LittleEndian.PutUint32(p[off:off+4], id)
	binary.LittleEndian.PutUint32(p[off+4:off+8], uint32(int32(pageID)))
	binary.LittleEndian.PutUint32(p[8:12], uint32(n+1))
	return nil
}
