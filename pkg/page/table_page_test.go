package page

import (
	"testing"

	"github.com/nikhilrao/relstore/pkg/common"
	"github.com/nikhilrao/relstore/pkg/dberrors"
)

func TestTablePageInsertAndGet(t *testing.T) {
	buf := make([]byte, common.PageSize)
	p := NewTablePage(buf, 7, common.InvalidPageID)

	if p.PageID() != 7 {
		t.Fatalf("PageID() = %d, want 7", p.PageID())
	}

	slot, err := p.InsertTuple([]byte("hello"))
	if err != nil {
		t.Fatalf("InsertTuple: %v", err)
	}
	if slot != 0 {
		t.Fatalf("first slot = %d, want 0", slot)
	}

	got, err := p.GetTuple(slot)
	if err != nil {
		t.Fatalf("GetTuple: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
	if p.TupleCount() != 1 {
		t.Errorf("TupleCount() = %d, want 1", p.TupleCount())
	}
}

func TestTablePageDeleteLifecycle(t *testing.T) {
	buf := make([]byte, common.PageSize)
	p := NewTablePage(buf, 1, common.InvalidPageID)

	slot, err := p.InsertTuple([]byte("tuple"))
	if err != nil {
		t.Fatalf("InsertTuple: %v", err)
	}

	if err := p.MarkDelete(slot); err != nil {
		t.Fatalf("MarkDelete: %v", err)
	}
	if _, err := p.GetTuple(slot); err == nil {
		t.Fatal("expected error reading marked-deleted tuple")
	}

	if err := p.RollbackDelete(slot); err != nil {
		t.Fatalf("RollbackDelete: %v", err)
	}
	got, err := p.GetTuple(slot)
	if err != nil {
		t.Fatalf("GetTuple after rollback: %v", err)
	}
	if string(got) != "tuple" {
		t.Errorf("got %q after rollback", got)
	}

	if err := p.ApplyDelete(slot); err != nil {
		t.Fatalf("ApplyDelete: %v", err)
	}
	if _, err := p.GetTuple(slot); err == nil {
		t.Fatal("expected error reading permanently deleted tuple")
	}
}

func TestTablePageUpdateInPlaceAndOverflow(t *testing.T) {
	buf := make([]byte, common.PageSize)
	p := NewTablePage(buf, 1, common.InvalidPageID)

	slot, err := p.InsertTuple([]byte("short"))
	if err != nil {
		t.Fatalf("InsertTuple: %v", err)
	}

	if err := p.UpdateTuple(slot, []byte("sho")); err != nil {
		t.Fatalf("UpdateTuple (shrink): %v", err)
	}
	got, err := p.GetTuple(slot)
	if err != nil {
		t.Fatalf("GetTuple: %v", err)
	}
	if string(got) != "sho" {
		t.Errorf("got %q, want %q", got, "sho")
	}

	if err := p.UpdateTuple(slot, []byte("this is way too long to fit")); err == nil {
		t.Fatal("expected PageFull updating past the original slot size")
	} else if dberr, ok := err.(*dberrors.Error); !ok || dberr.Kind != dberrors.PageFull {
		t.Errorf("got %v, want PageFull", err)
	}
}

func TestTablePageInsertReturnsPageFullWhenExhausted(t *testing.T) {
	buf := make([]byte, common.PageSize)
	p := NewTablePage(buf, 1, common.InvalidPageID)

	big := make([]byte, common.PageSize)
	inserted := 0
	for {
		if _, err := p.InsertTuple(big[:64]); err != nil {
			if dberr, ok := err.(*dberrors.Error); !ok || dberr.Kind != dberrors.PageFull {
				t.Fatalf("got %v, want PageFull", err)
			}
			break
		}
		inserted++
		if inserted > common.PageSize {
			t.Fatal("InsertTuple never reported PageFull")
		}
	}
	if inserted == 0 {
		t.Fatal("expected at least one successful insert before PageFull")
	}
}

func TestTablePageTupleIteration(t *testing.T) {
	buf := make([]byte, common.PageSize)
	p := NewTablePage(buf, 3, common.InvalidPageID)

	var slots []uint32
	for i := 0; i < 5; i++ {
		s, err := p.InsertTuple([]byte{byte(i)})
		if err != nil {
			t.Fatalf("InsertTuple(%d): %v", i, err)
		}
		slots = append(slots, s)
	}
	if err := p.MarkDelete(slots[2]); err != nil {
		t.Fatalf("MarkDelete: %v", err)
	}

	rid := p.GetFirstTupleRID()
	var seen []uint32
	for rid != common.InvalidRowID {
		seen = append(seen, rid.SlotNum)
		rid = p.GetNextTupleRID(rid)
	}
	want := []uint32{0, 1, 3, 4}
	if len(seen) != len(want) {
		t.Fatalf("visited slots %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("visited slots %v, want %v", seen, want)
		}
	}
}

func TestCatalogMetaPageAddAndList(t *testing.T) {
	buf := make([]byte, common.PageSize)
	cm := NewCatalogMetaPage(buf)

	if err := cm.AddTable(1, 10); err != nil {
		t.Fatalf("AddTable: %v", err)
	}
	if err := cm.AddTable(2, 20); err != nil {
		t.Fatalf("AddTable: %v", err)
	}
	if err := cm.AddIndex(100, 30); err != nil {
		t.Fatalf("AddIndex: %v", err)
	}

	tables := cm.Tables()
	if len(tables) != 2 {
		t.Fatalf("Tables() = %v, want 2 entries", tables)
	}
	if tables[0].ID != 1 || tables[0].PageID != 10 {
		t.Errorf("tables[0] = %+v", tables[0])
	}
	if tables[1].ID != 2 || tables[1].PageID != 20 {
		t.Errorf("tables[1] = %+v", tables[1])
	}

	indexes := cm.Indexes()
	if len(indexes) != 1 || indexes[0].ID != 100 || indexes[0].PageID != 30 {
		t.Errorf("indexes = %+v", indexes)
	}

	wrapped, err := WrapCatalogMetaPage(buf)
	if err != nil {
		t.Fatalf("WrapCatalogMetaPage: %v", err)
	}
	if len(wrapped.Tables()) != 2 {
		t.Errorf("WrapCatalogMetaPage lost table entries")
	}
}

func TestWrapCatalogMetaPageRejectsCorruptBuffer(t *testing.T) {
	buf := make([]byte, common.PageSize)
	if _, err := WrapCatalogMetaPage(buf); err == nil {
		t.Fatal("expected CorruptPage error for an unininitialized buffer")
	} else if dberr, ok := err.(*dberrors.Error); !ok || dberr.Kind != dberrors.CorruptPage {
		t.Errorf("got %v, want CorruptPage", err)
	}
}

func TestIndexRootsPageSetAndGet(t *testing.T) {
	buf := make([]byte, common.PageSize)
	roots := NewIndexRootsPage(buf)

	if got := roots.GetRoot(5); got != common.InvalidPageID {
		t.Fatalf("GetRoot(unset) = %d, want InvalidPageID", got)
	}

	if err := roots.SetRoot(5, 42); err != nil {
		t.Fatalf("SetRoot: %v", err)
	}
	if got := roots.GetRoot(5); got != 42 {
		t.Errorf("GetRoot(5) = %d, want 42", got)
	}

	if err := roots.SetRoot(5, 99); err != nil {
		t.Fatalf("SetRoot (update): %v", err)
	}
	if got := roots.GetRoot(5); got != 99 {
		t.Errorf("GetRoot(5) after update = %d, want 99", got)
	}

	if err := roots.SetRoot(6, 7); err != nil {
		t.Fatalf("SetRoot (second index): %v", err)
	}
	if got := roots.GetRoot(5); got != 99 {
		t.Errorf("GetRoot(5) disturbed by unrelated SetRoot: got %d", got)
	}
	if got := roots.GetRoot(6); got != 7 {
		t.Errorf("GetRoot(6) = %d, want 7", got)
	}
}
