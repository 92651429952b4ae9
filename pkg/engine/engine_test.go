package engine

import (
	"path/filepath"
	"testing"

	"github.com/nikhilrao/relstore/pkg/record"
	"github.com/nikhilrao/relstore/pkg/wal"
)

func testSchema() *record.Schema {
	return record.NewSchema([]record.Column{
		record.NewColumn("id", record.TypeInt32, 0, 0, false, true),
		record.NewColumn("name", record.TypeChar, 16, 1, true, false),
	})
}

func openTestEngine(t *testing.T, path string) *Engine {
	t.Helper()
	eng, err := Open(Options{
		Path:           path,
		BufferPoolSize: 32,
		WAL:            &wal.NullLogManager{},
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return eng
}

func TestEngineOpenCreateTableAndIndex(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	eng := openTestEngine(t, dbPath)
	defer eng.Close()

	info, err := eng.CreateTable("users", testSchema())
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if info.Name != "users" {
		t.Errorf("got name %q", info.Name)
	}

	idx, err := eng.CreateIndex("users", "by_id", []int{0})
	if err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	if idx.TableName != "users" {
		t.Errorf("got table name %q", idx.TableName)
	}

	row := record.NewRow(record.NewInt32(1), record.NewChar("ada", 16))
	data, err := row.SerializeTo(testSchema())
	if err != nil {
		t.Fatalf("SerializeTo: %v", err)
	}
	rid, err := info.Heap.InsertTuple(data)
	if err != nil {
		t.Fatalf("InsertTuple: %v", err)
	}

	key := idx.KeyMgr.FromRow(row, []int{0})
	if err := idx.Tree.Insert(key, rid); err != nil {
		t.Fatalf("Insert into index: %v", err)
	}
	got, found, err := idx.Tree.GetValue(key)
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if !found || got != rid {
		t.Errorf("GetValue = %+v found=%v, want %+v found=true", got, found, rid)
	}
}

func TestEngineReopenRebuildsCatalog(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	func() {
		eng := openTestEngine(t, dbPath)
		defer eng.Close()
		if _, err := eng.CreateTable("users", testSchema()); err != nil {
			t.Fatalf("CreateTable: %v", err)
		}
		if _, err := eng.CreateIndex("users", "by_id", []int{0}); err != nil {
			t.Fatalf("CreateIndex: %v", err)
		}
	}()

	eng2 := openTestEngine(t, dbPath)
	defer eng2.Close()

	info, err := eng2.Catalog.GetTable("users")
	if err != nil {
		t.Fatalf("GetTable after reopen: %v", err)
	}
	if info.Name != "users" {
		t.Errorf("got name %q", info.Name)
	}
	if len(info.Schema.Columns) != 2 {
		t.Errorf("got %d columns, want 2", len(info.Schema.Columns))
	}

	idx, err := eng2.Catalog.GetIndex("users", "by_id")
	if err != nil {
		t.Fatalf("GetIndex after reopen: %v", err)
	}
	if len(idx.KeyCols) != 1 || idx.KeyCols[0] != 0 {
		t.Errorf("got key cols %v, want [0]", idx.KeyCols)
	}
}

func TestEngineCreateTableDuplicateNameFails(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	eng := openTestEngine(t, dbPath)
	defer eng.Close()

	if _, err := eng.CreateTable("users", testSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if _, err := eng.CreateTable("users", testSchema()); err == nil {
		t.Fatal("expected error creating duplicate table")
	}
}
