package page

import (
	"testing"

	"github.com/nikhilrao/relstore/pkg/common"
)

func TestBitmapAllocateFreeCycle(t *testing.T) {
	buf := make([]byte, common.PageSize)
	bm := NewBitmapPage(buf)

	var ids []uint32
	for i := 0; i < 5; i++ {
		off, ok := bm.Allocate()
		if !ok {
			t.Fatalf("Allocate() failed at i=%d", i)
		}
		ids = append(ids, off)
	}
	for i, id := range ids {
		if id != uint32(i) {
			t.Fatalf("expected sequential offsets, got %v", ids)
		}
	}

	bm.Deallocate(2)
	if bm.IsFree(2) != true {
		t.Fatalf("offset 2 should be free after Deallocate")
	}
	if bm.UsedCount() != 4 {
		t.Fatalf("UsedCount = %d, want 4", bm.UsedCount())
	}

	off, ok := bm.Allocate()
	if !ok || off != 2 {
		t.Fatalf("Allocate() after free should reuse offset 2, got %d ok=%v", off, ok)
	}
	if bm.IsFree(2) {
		t.Fatalf("offset 2 should be allocated")
	}
}

func TestBitmapFull(t *testing.T) {
	buf := make([]byte, common.PageSize)
	bm := NewBitmapPage(buf)
	for i := 0; i < BitmapSize; i++ {
		if _, ok := bm.Allocate(); !ok {
			t.Fatalf("Allocate() failed before filling extent, at i=%d", i)
		}
	}
	if _, ok := bm.Allocate(); ok {
		t.Fatalf("Allocate() should fail once extent is full")
	}
}
