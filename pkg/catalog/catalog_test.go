package catalog

import (
	"testing"

	"github.com/nikhilrao/relstore/pkg/buffer"
	"github.com/nikhilrao/relstore/pkg/common"
	"github.com/nikhilrao/relstore/pkg/dberrors"
	"github.com/nikhilrao/relstore/pkg/record"
)

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

func testSchema() *record.Schema {
	return record.NewSchema([]record.Column{
		record.NewColumn("id", record.TypeInt32, 0, 0, false, true),
		record.NewColumn("name", record.TypeChar, 16, 1, true, false),
	})
}

func TestCreateTableAndGetTable(t *testing.T) {
	bp := buffer.NewManager(32, newFakeDisk(), nil)
	mgr, err := Bootstrap(bp, nil)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	info, err := mgr.CreateTable("users", testSchema())
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if info.Name != "users" {
		t.Errorf("got name %q", info.Name)
	}

	got, err := mgr.GetTable("users")
	if err != nil {
		t.Fatalf("GetTable: %v", err)
	}
	if got.ID != info.ID {
		t.Errorf("got id %d want %d", got.ID, info.ID)
	}
}

func TestCreateTableDuplicateFails(t *testing.T) {
	bp := buffer.NewManager(32, newFakeDisk(), nil)
	mgr, err := Bootstrap(bp, nil)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	if _, err := mgr.CreateTable("users", testSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	_, err = mgr.CreateTable("users", testSchema())
	if err == nil {
		t.Fatal("expected AlreadyExists error")
	}
	if dberr, ok := err.(*dberrors.Error); !ok || dberr.Kind != dberrors.AlreadyExists {
		t.Errorf("got %v, want AlreadyExists", err)
	}
}

func TestGetTableNotFound(t *testing.T) {
	bp := buffer.NewManager(32, newFakeDisk(), nil)
	mgr, err := Bootstrap(bp, nil)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if _, err := mgr.GetTable("ghost"); err == nil {
		t.Fatal("expected NotFound error")
	}
}

func TestCreateIndexBacksfillsExistingRows(t *testing.T) {
	bp := buffer.NewManager(32, newFakeDisk(), nil)
	mgr, err := Bootstrap(bp, nil)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	schema := testSchema()
	info, err := mgr.CreateTable("users", schema)
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	for i := int32(0); i < 10; i++ {
		row := record.NewRow(record.NewInt32(i), record.NewChar("n", 16))
		data, err := row.SerializeTo(schema)
		if err != nil {
			t.Fatalf("SerializeTo: %v", err)
		}
		if _, err := info.Heap.InsertTuple(data); err != nil {
			t.Fatalf("InsertTuple: %v", err)
		}
	}

	idxInfo, err := mgr.CreateIndex("users", "by_id", []int{0})
	if err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}

	for i := int32(0); i < 10; i++ {
		key := idxInfo.KeyMgr.FromRow(record.NewRow(record.NewInt32(i)), []int{0})
		_, found, err := idxInfo.Tree.GetValue(key)
		if err != nil {
			t.Fatalf("GetValue(%d): %v", i, err)
		}
		if !found {
			t.Errorf("row %d should have been backfilled into the index", i)
		}
	}
}

func TestDropTableRemovesItsIndexes(t *testing.T) {
	bp := buffer.NewManager(32, newFakeDisk(), nil)
	mgr, err := Bootstrap(bp, nil)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if _, err := mgr.CreateTable("users", testSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if _, err := mgr.CreateIndex("users", "by_id", []int{0}); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}

	if err := mgr.DropTable("users"); err != nil {
		t.Fatalf("DropTable: %v", err)
	}
	if _, err := mgr.GetTable("users"); err == nil {
		t.Error("expected table to be gone")
	}
	if _, err := mgr.GetIndex("users", "by_id"); err == nil {
		t.Error("expected index to be gone")
	}
}
