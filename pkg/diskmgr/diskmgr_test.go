package diskmgr

import (
	"path/filepath"
	"testing"

	"github.com/nikhilrao/relstore/pkg/common"
)

func openTestManager(t *testing.T) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	m, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestAllocateDeallocateCycle(t *testing.T) {
	m := openTestManager(t)

	var ids []common.PageID
	for i := 0; i < 5; i++ {
		id, err := m.AllocatePage()
		if err != nil {
			t.Fatalf("AllocatePage: %v", err)
		}
		ids = append(ids, id)
	}
	for i, id := range ids {
		if id != common.PageID(i) {
			t.Fatalf("expected page ids 0..4, got %v", ids)
		}
	}

	if err := m.DeallocatePage(2); err != nil {
		t.Fatalf("DeallocatePage: %v", err)
	}
	free, err := m.IsPageFree(2)
	if err != nil || !free {
		t.Fatalf("IsPageFree(2) = %v, %v; want true, nil", free, err)
	}

	id, err := m.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	if id != 2 {
		t.Fatalf("expected reused page id 2, got %d", id)
	}
	free, _ = m.IsPageFree(2)
	if free {
		t.Fatalf("page 2 should now be allocated")
	}
}

func TestReadWritePageRoundTrip(t *testing.T) {
	m := openTestManager(t)

	id, err := m.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}

	data := make([]byte, common.PageSize)
	for i := range data {
		data[i] = byte(i % 256)
	}
	if err := m.WritePage(id, data); err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	out := make([]byte, common.PageSize)
	if err := m.ReadPage(id, out); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	for i := range data {
		if out[i] != data[i] {
			t.Fatalf("byte %d mismatch: got %d, want %d", i, out[i], data[i])
		}
	}
}

func TestAllocatedPagesMatchesBitmapPopcount(t *testing.T) {
	m := openTestManager(t)

	for i := 0; i < 10; i++ {
		if _, err := m.AllocatePage(); err != nil {
			t.Fatalf("AllocatePage: %v", err)
		}
	}
	if got := m.AllocatedPages(); got != 10 {
		t.Fatalf("AllocatedPages() = %d, want 10", got)
	}

	if err := m.DeallocatePage(3); err != nil {
		t.Fatalf("DeallocatePage: %v", err)
	}
	if got := m.AllocatedPages(); got != 9 {
		t.Fatalf("AllocatedPages() = %d, want 9", got)
	}
}

func TestReopenPersistsMeta(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	m, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := m.AllocatePage(); err != nil {
			t.Fatalf("AllocatePage: %v", err)
		}
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	m2, err := Open(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer m2.Close()
	if got := m2.AllocatedPages(); got != 3 {
		t.Fatalf("AllocatedPages() after reopen = %d, want 3", got)
	}
	id, err := m2.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage after reopen: %v", err)
	}
	if id != 3 {
		t.Fatalf("expected next id 3 after reopen, got %d", id)
	}
}
