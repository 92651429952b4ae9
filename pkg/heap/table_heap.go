// Package heap implements the Table Heap: a disk-resident, unsorted
// linked list of slotted table pages holding a table's tuples, per §4.4.
package heap

import (
	"github.com/nikhilrao/relstore/internal/logger"
	"github.com/nikhilrao/relstore/pkg/buffer"
	"github.com/nikhilrao/relstore/pkg/common"
	"github.com/nikhilrao/relstore/pkg/dberrors"
	"github.com/nikhilrao/relstore/pkg/page"
)

// TableHeap is a table's storage: a linked list of TablePages beginning
// at firstPageID, threaded through the buffer pool. Each page records
// both its prev and next page ids; the heap itself only follows next.
type TableHeap struct {
	bp          *buffer.Manager
	firstPageID common.PageID
	log         *logger.Logger
}

// Create allocates the heap's first (empty) page and returns a heap
// over it.
func Create(bp *buffer.Manager) (*TableHeap, error) {
	guard, id, err := bp.NewPageGuarded()
	if err != nil {
		return nil, err
	}
	page.NewTablePage(guard.Frame().Data(), id, common.InvalidPageID)
	guard.MarkDirty()
	if err := guard.Release(); err != nil {
		return nil, err
	}
	return &TableHeap{bp: bp, firstPageID: id, log: logger.Get().Component("heap")}, nil
}

// Open wraps an existing heap whose first page is firstPageID (loaded
// from the catalog).
func Open(bp *buffer.Manager, firstPageID common.PageID) *TableHeap {
	return &TableHeap{bp: bp, firstPageID: firstPageID, log: logger.Get().Component("heap")}
}

// FirstPageID returns the heap's head page, the identifier persisted in
// the catalog.
func (h *TableHeap) FirstPageID() common.PageID { return h.firstPageID }

// InsertTuple appends data to the first page with room, allocating a
// new page at the tail if every existing page is full.
func (h *TableHeap) InsertTuple(data []byte) (common.RowID, error) {
	pageID := h.firstPageID
	var lastGuard *buffer.PageGuard

	for {
		guard, err := h.bp.FetchPageGuarded(pageID)
		if err != nil {
			return common.InvalidRowID, err
		}
		tp := page.WrapTablePage(guard.Frame().Data())
		slot, err := tp.InsertTuple(data)
		if err == nil {
			guard.MarkDirty()
			rid := common.RowID{PageID: pageID, SlotNum: slot}
			if rerr := guard.Release(); rerr != nil {
				return common.InvalidRowID, rerr
			}
			return rid, nil
		}
		if !dberrors.Is(err, dberrors.PageFull) {
			guard.Release()
			return common.InvalidRowID, err
		}

		next := tp.NextPageID()
		if next == common.InvalidPageID {
			lastGuard = guard
			break
		}
		guard.Release()
		pageID = next
	}

	newGuard, newID, err := h.bp.NewPageGuarded()
	if err != nil {
		lastGuard.Release()
		return common.InvalidRowID, err
	}
	page.NewTablePage(newGuard.Frame().Data(), newID, pageID)

	lastTP := page.WrapTablePage(lastGuard.Frame().Data())
	lastTP.SetNextPageID(newID)
	lastGuard.MarkDirty()
	if err := lastGuard.Release(); err != nil {
		newGuard.Release()
		return common.InvalidRowID, err
	}

	newTP := page.WrapTablePage(newGuard.Frame().Data())
	slot, err := newTP.InsertTuple(data)
	if err != nil {
		newGuard.Release()
		return common.InvalidRowID, err
	}
	newGuard.MarkDirty()
	if err := newGuard.Release(); err != nil {
		return common.InvalidRowID, err
	}
	return common.RowID{PageID: newID, SlotNum: slot}, nil
}

// GetTuple returns the bytes stored at rid.
func (h *TableHeap) GetTuple(rid common.RowID) ([]byte, error) {
	guard, err := h.bp.FetchPageGuarded(rid.PageID)
	if err != nil {
		return nil, err
	}
	defer guard.Release()
	tp := page.WrapTablePage(guard.Frame().Data())
	return tp.GetTuple(rid.SlotNum)
}

// UpdateTuple overwrites rid's tuple with newData in place when it
// fits. When it does not fit, the old tuple is deleted (MarkDelete
// followed by ApplyDelete) and newData is inserted as a fresh tuple; movedTo is valid whenever
// moved is true, and callers must update any index entries pointing at
// rid to movedTo.
func (h *TableHeap) UpdateTuple(rid common.RowID, newData []byte) (movedTo common.RowID, moved bool, err error) {
	guard, err := h.bp.FetchPageGuarded(rid.PageID)
	if err != nil {
		return common.InvalidRowID, false, err
	}
	tp := page.WrapTablePage(guard.Frame().Data())
	uerr := tp.UpdateTuple(rid.SlotNum, newData)
	if uerr == nil {
		guard.MarkDirty()
		return common.InvalidRowID, false, guard.Release()
	}
	if !dberrors.Is(uerr, dberrors.PageFull) {
		guard.Release()
		return common.InvalidRowID, false, uerr
	}

	if derr := tp.MarkDelete(rid.SlotNum); derr != nil {
		guard.Release()
		return common.InvalidRowID, false, derr
	}
	if derr := tp.ApplyDelete(rid.SlotNum); derr != nil {
		guard.Release()
		return common.InvalidRowID, false, derr
	}
	guard.MarkDirty()
	if rerr := guard.Release(); rerr != nil {
		return common.InvalidRowID, false, rerr
	}

	newRid, ierr := h.InsertTuple(newData)
	if ierr != nil {
		return common.InvalidRowID, false, ierr
	}
	return newRid, true, nil
}

// MarkDelete flags rid as deleted pending ApplyDelete or RollbackDelete
// by the surrounding transaction.
func (h *TableHeap) MarkDelete(rid common.RowID) error {
	return h.withPage(rid.PageID, func(tp page.TablePage) error {
		return tp.MarkDelete(rid.SlotNum)
	})
}

// ApplyDelete permanently removes rid's tuple.
func (h *TableHeap) ApplyDelete(rid common.RowID) error {
	return h.withPage(rid.PageID, func(tp page.TablePage) error {
		return tp.ApplyDelete(rid.SlotNum)
	})
}

// RollbackDelete undoes a prior MarkDelete.
func (h *TableHeap) RollbackDelete(rid common.RowID) error {
	return h.withPage(rid.PageID, func(tp page.TablePage) error {
		return tp.RollbackDelete(rid.SlotNum)
	})
}

func (h *TableHeap) withPage(id common.PageID, fn func(page.TablePage) error) error {
	guard, err := h.bp.FetchPageGuarded(id)
	if err != nil {
		return err
	}
	if err := fn(page.WrapTablePage(guard.Frame().Data())); err != nil {
		guard.Release()
		return err
	}
	guard.MarkDirty()
	return guard.Release()
}

// Iterator walks every live tuple in the heap in page/slot order.
type Iterator struct {
	heap *TableHeap
	cur  common.RowID
	done bool
}

// Begin returns an iterator positioned on the heap's first live tuple
// (not Valid if the heap is empty).
func (h *TableHeap) Begin() (*Iterator, error) {
	it := &Iterator{heap: h}
	if err := it.advanceToFirst(h.firstPageID); err != nil {
		return nil, err
	}
	return it, nil
}

func (it *Iterator) advanceToFirst(pageID common.PageID) error {
	for pageID != common.InvalidPageID {
		guard, err := it.heap.bp.FetchPageGuarded(pageID)
		if err != nil {
			return err
		}
		tp := page.WrapTablePage(guard.Frame().Data())
		rid := tp.GetFirstTupleRID()
		next := tp.NextPageID()
		guard.Release()
		if rid.Valid() {
			it.cur = rid
			return nil
		}
		pageID = next
	}
	it.done = true
	return nil
}

// Valid reports whether the iterator is positioned on a tuple.
func (it *Iterator) Valid() bool { return !it.done }

// RID returns the current tuple's row id.
func (it *Iterator) RID() common.RowID { return it.cur }

// Tuple returns the current tuple's bytes.
func (it *Iterator) Tuple() ([]byte, error) { return it.heap.GetTuple(it.cur) }

// Next advances the iterator to the next live tuple.
func (it *Iterator) Next() error {
	if it.done {
		return nil
	}
	guard, err := it.heap.bp.FetchPageGuarded(it.cur.PageID)
	if err != nil {
		return err
	}
	tp := page.WrapTablePage(guard.Frame().Data())
	next := tp.GetNextTupleRID(it.cur)
	nextPage := tp.NextPageID()
	guard.Release()

	if next.Valid() {
		it.cur = next
		return nil
	}
	return it.advanceToFirst(nextPage)
}
