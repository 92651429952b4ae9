package page

import (
	"encoding/binary"

	"github.com/nikhilrao/relstore/pkg/common"
	"github.com/nikhilrao/relstore/pkg/dberrors"
)

// Table page header layout:
//
//	page_id(4) | prev_page_id(4) | next_page_id(4) | free_space_ptr(4) | tuple_count(4) | lsn(4)
//
// followed by a slot directory growing forward from tablePageHeaderSize,
// one (offset u32, size u32) pair per tuple. Tuple bytes grow backward
// from the end of the page. A slot's high bit in size marks it deleted;
// size == 0 marks it permanently reclaimed (apply_delete).
const (
	tablePageHeaderSize = 24
	slotEntrySize       = 8
	deletedBit          = uint32(1) << 31
)

// TablePage is a typed view over a raw page buffer holding heap tuples.
type TablePage []byte

// NewTablePage initializes a fresh table page for pageID, linked after
// prev in the table's page list.
func NewTablePage(buf []byte, pageID, prev common.PageID) TablePage {
	p := TablePage(buf)
	p.setPageID(pageID)
	p.SetPrevPageID(prev)
	p.SetNextPageID(common.InvalidPageID)
	p.setFreeSpacePtr(uint32(common.PageSize))
	p.setTupleCount(0)
	p.SetLSN(0)
	return p
}

// WrapTablePage views an already-initialized buffer as a TablePage.
func WrapTablePage(buf []byte) TablePage { return TablePage(buf) }

func (p TablePage) PageID() common.PageID {
	return common.PageID(int32(binary.LittleEndian.Uint32(p[0:4])))
}
func (p TablePage) setPageID(id common.PageID) {
	binary.LittleEndian.PutUint32(p[0:4], uint32(int32(id)))
}

func (p TablePage) PrevPageID() common.PageID {
	return common.PageID(int32(binary.LittleEndian.Uint32(p[4:8])))
}
func (p TablePage) SetPrevPageID(id common.PageID) {
	binary.LittleEndian.PutUint32(p[4:8], uint32(int32(id)))
}

func (p TablePage) NextPageID() common.PageID {
	return common.PageID(int32(binary.LittleEndian.Uint32(p[8:12])))
}
func (p TablePage) SetNextPageID(id common.PageID) {
	binary.LittleEndian.PutUint32(p[8:12], uint32(int32(id)))
}

func (p TablePage) freeSpacePtr() uint32     { return binary.LittleEndian.Uint32(p[12:16]) }
func (p TablePage) setFreeSpacePtr(v uint32) { binary.LittleEndian.PutUint32(p[12:16], v) }

func (p TablePage) TupleCount() uint32      { return binary.LittleEndian.Uint32(p[16:20]) }
func (p TablePage) setTupleCount(v uint32)  { binary.LittleEndian.PutUint32(p[16:20], v) }

func (p TablePage) LSN() uint32     { return binary.LittleEndian.Uint32(p[20:24]) }
func (p TablePage) SetLSN(v uint32) { binary.LittleEndian.PutUint32(p[20:24], v) }

func slotAt(n uint32) int { return tablePageHeaderSize + int(n)*slotEntrySize }

func (p TablePage) slotOffset(n uint32) uint32 {
	b := slotAt(n)
	return binary.LittleEndian.Uint32(p[b : b+4])
}
func (p TablePage) slotSize(n uint32) uint32 {
	b := slotAt(n)
	return binary.LittleEndian.Uint32(p[b+4 : b+8])
}
func (p TablePage) setSlot(n uint32, offset, size uint32) {
	b := slotAt(n)
	binary.LittleEndian.PutUint32(p[b:b+4], offset)
	binary.LittleEndian.PutUint32(p[b+4:b+8], size)
}

func (p TablePage) isDeleted(n uint32) bool { return p.slotSize(n)&deletedBit != 0 }
func (p TablePage) rawSize(n uint32) uint32 { return p.slotSize(n) &^ deletedBit }

// freeBytes returns the space currently available for a new tuple plus
// its slot entry.
func (p TablePage) freeBytes() int {
	used := tablePageHeaderSize + int(p.TupleCount())*slotEntrySize
	return int(p.freeSpacePtr()) - used
}

// InsertTuple appends data as a new tuple, returning its slot number.
// It returns dberrors PageFull if there is not enough room.
func (p TablePage) InsertTuple(data []byte) (uint32, error) {
	need := len(data) + slotEntrySize
	if p.freeBytes() < need {
		return 0, dberrors.New(dberrors.PageFull, "page.InsertTuple", "", nil)
	}
	newPtr := p.freeSpacePtr() - uint32(len(data))
	copy(p[newPtr:newPtr+uint32(len(data))], data)

	slot := p.TupleCount()
	p.setSlot(slot, newPtr, uint32(len(data)))
	p.setFreeSpacePtr(newPtr)
	p.setTupleCount(slot + 1)
	return slot, nil
}

// GetTuple returns the bytes of tuple slotNum, or NotFound if the slot
// does not exist or has been deleted.
func (p TablePage) GetTuple(slotNum uint32) ([]byte, error) {
	if slotNum >= p.TupleCount() {
		return nil, dberrors.New(dberrors.NotFound, "page.GetTuple", "", nil)
	}
	if p.isDeleted(slotNum) {
		return nil, dberrors.New(dberrors.NotFound, "page.GetTuple", "", nil)
	}
	off, size := p.slotOffset(slotNum), p.rawSize(slotNum)
	if size == 0 {
		return nil, dberrors.New(dberrors.NotFound, "page.GetTuple", "", nil)
	}
	out := make([]byte, size)
	copy(out, p[off:off+size])
	return out, nil
}

// MarkDelete flags slotNum as deleted without reclaiming its space; the
// deletion only becomes permanent once ApplyDelete is called (matching
// the two-phase delete used by aborted transactions).
func (p TablePage) MarkDelete(slotNum uint32) error {
	if slotNum >= p.TupleCount() {
		return dberrors.New(dberrors.NotFound, "page.MarkDelete", "", nil)
	}
	off, size := p.slotOffset(slotNum), p.rawSize(slotNum)
	if size == 0 {
		return dberrors.New(dberrors.NotFound, "page.MarkDelete", "", nil)
	}
	p.setSlot(slotNum, off, size|deletedBit)
	return nil
}

// RollbackDelete undoes a prior MarkDelete.
func (p TablePage) RollbackDelete(slotNum uint32) error {
	if slotNum >= p.TupleCount() {
		return dberrors.New(dberrors.NotFound, "page.RollbackDelete", "", nil)
	}
	off, size := p.slotOffset(slotNum), p.rawSize(slotNum)
	p.setSlot(slotNum, off, size&^deletedBit)
	return nil
}

// ApplyDelete permanently frees slotNum's slot; its bytes are no longer
// reachable, though the page does not compact its storage.
func (p TablePage) ApplyDelete(slotNum uint32) error {
	if slotNum >= p.TupleCount() {
		return dberrors.New(dberrors.NotFound, "page.ApplyDelete", "", nil)
	}
	off := p.slotOffset(slotNum)
	p.setSlot(slotNum, off, 0)
	return nil
}

// UpdateTuple overwrites slotNum's bytes in place when newData fits in
// the tuple's original slot size; otherwise it returns PageFull so the
// caller (the table heap) can relocate the tuple to a new page.
func (p TablePage) UpdateTuple(slotNum uint32, newData []byte) error {
	if slotNum >= p.TupleCount() {
		return dberrors.New(dberrors.NotFound, "page.UpdateTuple", "", nil)
	}
	off, size := p.slotOffset(slotNum), p.rawSize(slotNum)
	if size == 0 || p.isDeleted(slotNum) {
		return dberrors.New(dberrors.NotFound, "page.UpdateTuple", "", nil)
	}
	if uint32(len(newData)) > size {
		return dberrors.New(dberrors.PageFull, "page.UpdateTuple", "", nil)
	}
	copy(p[off:off+uint32(len(newData))], newData)
	p.setSlot(slotNum, off, uint32(len(newData)))
	return nil
}

// GetFirstTupleRID returns the RowID of the first live tuple, or
// InvalidRowID if the page holds none.
func (p TablePage) GetFirstTupleRID() common.RowID {
	for i := uint32(0); i < p.TupleCount(); i++ {
		if !p.isDeleted(i) && p.rawSize(i) > 0 {
			return common.RowID{PageID: p.PageID(), SlotNum: i}
		}
	}
	return common.InvalidRowID
}

// GetNextTupleRID returns the RowID following cur's slot on this page,
// or InvalidRowID once the page is exhausted.
func (p TablePage) GetNextTupleRID(cur common.RowID) common.RowID {
	for i := cur.SlotNum + 1; i < p.TupleCount(); i++ {
		if !p.isDeleted(i) && p.rawSize(i) > 0 {
			return common.RowID{PageID: p.PageID(), SlotNum: i}
		}
	}
	return common.InvalidRowID
}
