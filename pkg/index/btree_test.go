package index

import (
	"testing"

	"github.com/nikhilrao/relstore/pkg/buffer"
	"github.com/nikhilrao/relstore/pkg/common"
	"github.com/nikhilrao/relstore/pkg/dberrors"
	"github.com/nikhilrao/relstore/pkg/page"
	"github.com/nikhilrao/relstore/pkg/record"
)

// fakeDisk is an in-memory stand-in for diskmgr.Manager, grounded on
// pkg/buffer's own test helper of the same shape.
type fakeDisk struct {
	pages map[common.PageID][common.PageSize]byte
	next  common.PageID
}

func newFakeDisk() *fakeDisk { return &fakeDisk{pages: make(map[common.PageID][common.PageSize]byte)} }

func (d *fakeDisk) ReadPage(id common.PageID, out []byte) error {
	buf, ok := d.pages[id]
	if !ok {
		return dberrors.New(dberrors.NotFound, "fakeDisk.ReadPage", "", nil)
	}
	copy(out, buf[:])
	return nil
}

func (d *fakeDisk) WritePage(id common.PageID, data []byte) error {
	var buf [common.PageSize]byte
	copy(buf[:], data)
	d.pages[id] = buf
	return nil
}

func (d *fakeDisk) AllocatePage() (common.PageID, error) {
	id := d.next
	d.next++
	d.pages[id] = [common.PageSize]byte{}
	return id, nil
}

func (d *fakeDisk) DeallocatePage(id common.PageID) error {
	delete(d.pages, id)
	return nil
}

// newTestTree allocates page 0 as a throwaway (mirroring the real
// catalog-meta page's slot) and page 1 as the index-roots page, then
// creates a fresh tree over it, matching the fixed-id layout in
// pkg/common.
func newTestTree(t *testing.T, km *KeyManager) *Tree {
	t.Helper()
	bp := buffer.NewManager(64, newFakeDisk(), nil)

	placeholderGuard, id0, err := bp.NewPageGuarded()
	if err != nil || id0 != common.CatalogMetaPageID {
		t.Fatalf("expected catalog-meta page id %d, got %d (err=%v)", common.CatalogMetaPageID, id0, err)
	}
	if err := placeholderGuard.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	rootsGuard, id1, err := bp.NewPageGuarded()
	if err != nil {
		t.Fatalf("NewPageGuarded: %v", err)
	}
	if id1 != common.IndexRootsPageID {
		t.Fatalf("expected index-roots page id %d, got %d", common.IndexRootsPageID, id1)
	}
	page.NewIndexRootsPage(rootsGuard.Frame().Data())
	rootsGuard.MarkDirty()
	if err := rootsGuard.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	tree, err := Create(bp, 0, km, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return tree
}

func intKeyManager() *KeyManager {
	schema := record.NewSchema([]record.Column{
		record.NewColumn("id", record.TypeInt32, 0, 0, false, true),
	})
	return NewKeyManager(schema, []int{0})
}

func intKey(km *KeyManager, v int32) GenericKey {
	row := record.NewRow(record.NewInt32(v))
	return km.FromRow(row, []int{0})
}

func TestTreeInsertAndGetValue(t *testing.T) {
	km := intKeyManager()
	tree := newTestTree(t, km)

	rid := common.RowID{PageID: 5, SlotNum: 2}
	if err := tree.Insert(intKey(km, 42), rid); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, found, err := tree.GetValue(intKey(km, 42))
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if !found {
		t.Fatal("expected key to be found")
	}
	if got != rid {
		t.Errorf("got %+v, want %+v", got, rid)
	}

	if _, found, err := tree.GetValue(intKey(km, 99)); err != nil {
		t.Fatalf("GetValue: %v", err)
	} else if found {
		t.Error("expected missing key to report not found")
	}
}

func TestTreeOrderingAcrossNegativeAndPositive(t *testing.T) {
	km := intKeyManager()
	tree := newTestTree(t, km)

	values := []int32{5, -10, 0, 100, -1, 2147483647, -2147483648}
	for i, v := range values {
		if err := tree.Insert(intKey(km, v), common.RowID{PageID: common.PageID(i), SlotNum: 0}); err != nil {
			t.Fatalf("Insert(%d): %v", v, err)
		}
	}

	it, err := tree.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	var seen []int32
	for it.Valid() {
		key, err := it.Key()
		if err != nil {
			t.Fatalf("Key: %v", err)
		}
		v := int32(uint32From(key[1:5]) ^ 0x80000000)
		seen = append(seen, v)
		if err := it.Next(); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}

	for i := 1; i < len(seen); i++ {
		if seen[i-1] >= seen[i] {
			t.Fatalf("iterator not in ascending order: %v", seen)
		}
	}
}

func uint32From(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func TestTreeSplitsAcrossManyInserts(t *testing.T) {
	km := intKeyManager()
	tree := newTestTree(t, km)

	const n = 500
	for i := 0; i < n; i++ {
		rid := common.RowID{PageID: common.PageID(i), SlotNum: uint32(i % 16)}
		if err := tree.Insert(intKey(km, int32(i)), rid); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}

	for i := 0; i < n; i++ {
		rid, found, err := tree.GetValue(intKey(km, int32(i)))
		if err != nil {
			t.Fatalf("GetValue(%d): %v", i, err)
		}
		if !found {
			t.Fatalf("key %d not found after %d inserts", i, n)
		}
		want := common.RowID{PageID: common.PageID(i), SlotNum: uint32(i % 16)}
		if rid != want {
			t.Errorf("key %d: got %+v want %+v", i, rid, want)
		}
	}
}

func TestTreeRemove(t *testing.T) {
	km := intKeyManager()
	tree := newTestTree(t, km)

	const n = 100
	for i := 0; i < n; i++ {
		if err := tree.Insert(intKey(km, int32(i)), common.RowID{PageID: common.PageID(i)}); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	for i := 0; i < n; i += 2 {
		if err := tree.Remove(intKey(km, int32(i))); err != nil {
			t.Fatalf("Remove(%d): %v", i, err)
		}
	}
	for i := 0; i < n; i++ {
		_, found, err := tree.GetValue(intKey(km, int32(i)))
		if err != nil {
			t.Fatalf("GetValue(%d): %v", i, err)
		}
		wantFound := i%2 != 0
		if found != wantFound {
			t.Errorf("key %d: found=%v want=%v", i, found, wantFound)
		}
	}
}

func TestKeyManagerCompositeKeyOrdering(t *testing.T) {
	schema := record.NewSchema([]record.Column{
		record.NewColumn("a", record.TypeInt32, 0, 0, false, false),
		record.NewColumn("b", record.TypeChar, 4, 1, false, false),
	})
	km := NewKeyManager(schema, []int{0, 1})

	k1 := km.FromRow(record.NewRow(record.NewInt32(1), record.NewChar("aaa", 4)), []int{0, 1})
	k2 := km.FromRow(record.NewRow(record.NewInt32(1), record.NewChar("bbb", 4)), []int{0, 1})
	k3 := km.FromRow(record.NewRow(record.NewInt32(2), record.NewChar("aaa", 4)), []int{0, 1})

	if km.Compare(k1, k2) >= 0 {
		t.Error("expected k1 < k2 (same first column, lesser second column)")
	}
	if km.Compare(k2, k3) >= 0 {
		t.Error("expected k2 < k3 (lesser first column dominates)")
	}
}
