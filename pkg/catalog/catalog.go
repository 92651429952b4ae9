// Package catalog implements the Catalog Manager: the authoritative
// registry of tables and indexes, persisted across restarts via the
// fixed catalog-meta and index-roots pages, per §4.6.
package catalog

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/nikhilrao/relstore/internal/logger"
	"github.com/nikhilrao/relstore/internal/metrics"
	"github.com/nikhilrao/relstore/pkg/buffer"
	"github.com/nikhilrao/relstore/pkg/common"
	"github.com/nikhilrao/relstore/pkg/dberrors"
	"github.com/nikhilrao/relstore/pkg/heap"
	"github.com/nikhilrao/relstore/pkg/index"
	"github.com/nikhilrao/relstore/pkg/page"
	"github.com/nikhilrao/relstore/pkg/record"
)

// TableInfo describes one registered table.
type TableInfo struct {
	ID     uint32
	Name   string
	Schema *record.Schema
	Heap   *heap.TableHeap
}

// IndexInfo describes one registered index.
type IndexInfo struct {
	ID        uint32
	Name      string
	TableName string
	KeyCols   []int
	Tree      *index.Tree
	KeyMgr    *index.KeyManager
}

// Manager is the Catalog Manager. It owns the in-memory mapping from
// table/index name to metadata and keeps the on-disk catalog-meta page
// in sync with every CreateTable/CreateIndex.
type Manager struct {
	mu sync.Mutex

	bp  *buffer.Manager
	met *metrics.Metrics
	log *logger.Logger

	tables     map[string]*TableInfo
	indexes    map[string]*IndexInfo // keyed by "table.index"
	tablesByID map[uint32]*TableInfo

	nextTableID uint32
	nextIndexID uint32
}

// Bootstrap initializes a brand-new database: the catalog-meta and
// index-roots pages at their fixed ids.
func Bootstrap(bp *buffer.Manager, met *metrics.Metrics) (*Manager, error) {
	if err := initFixedPage(bp, common.CatalogMetaPageID, func(buf []byte) { page.NewCatalogMetaPage(buf) }); err != nil {
		return nil, err
	}
	if err := initFixedPage(bp, common.IndexRootsPageID, func(buf []byte) { page.NewIndexRootsPage(buf) }); err != nil {
		return nil, err
	}
	return &Manager{
		bp:         bp,
		met:        met,
		log:        logger.Get().Component("catalog"),
		tables:     make(map[string]*TableInfo),
		indexes:    make(map[string]*IndexInfo),
		tablesByID: make(map[uint32]*TableInfo),
	}, nil
}

func initFixedPage(bp *buffer.Manager, id common.PageID, initFn func([]byte)) error {
	guard, got, err := bp.NewPageGuarded()
	if err != nil {
		return err
	}
	if got != id {
		guard.Release()
		return dberrors.New(dberrors.CorruptPage, "catalog.Bootstrap", fmt.Sprint(id), fmt.Errorf("allocated page %d instead", got))
	}
	initFn(guard.Frame().Data())
	guard.MarkDirty()
	return guard.Release()
}

// schemaIDTag lets Load rebuild each table's record.Schema without a
// separate on-disk schema catalog. Each table's serialized schema is
// stored on a dedicated page allocated right after the table's heap is
// created. That page id is recorded as a second catalog-meta table
// entry keyed by tableID|schemaIDTag, next to the (tableID, first heap
// page) entry.
const schemaIDTag = uint32(1) << 31

// CreateTable registers a new table named name with schema, allocating
// its heap and persisting the mapping in the catalog-meta page.
func (m *Manager) CreateTable(name string, schema *record.Schema) (*TableInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tables[name]; exists {
		return nil, dberrors.New(dberrors.AlreadyExists, "catalog.CreateTable", name, nil)
	}

	h, err := heap.Create(m.bp)
	if err != nil {
		return nil, err
	}

	schemaGuard, schemaPageID, err := m.bp.NewPageGuarded()
	if err != nil {
		return nil, err
	}
	encoded := schema.Serialize(make([]byte, 0, schema.SerializedSize()))
	buf := schemaGuard.Frame().Data()
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(encoded)))
	copy(buf[4:4+len(encoded)], encoded)
	schemaGuard.MarkDirty()
	if err := schemaGuard.Release(); err != nil {
		return nil, err
	}

	id := m.nextTableID
	m.nextTableID++

	if err := m.appendCatalogEntry(func(cm page.CatalogMetaPage) error {
		if err := cm.AddTable(id, h.FirstPageID()); err != nil {
			return err
		}
		return cm.AddTable(id|schemaIDTag, schemaPageID)
	}); err != nil {
		return nil, err
	}

	info := &TableInfo{ID: id, Name: name, Schema: schema.Clone(), Heap: h}
	m.tables[name] = info
	m.tablesByID[id] = info
	m.met.SetCatalogCounts(len(m.tables), len(m.indexes))
	return info, nil
}

// GetTable returns the registered table named name.
func (m *Manager) GetTable(name string) (*TableInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.tables[name]
	if !ok {
		return nil, dberrors.New(dberrors.NotFound, "catalog.GetTable", name, nil)
	}
	return info, nil
}

// GetTables returns every registered table.
func (m *Manager) GetTables() []*TableInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*TableInfo, 0, len(m.tables))
	for _, t := range m.tables {
		out = append(out, t)
	}
	return out
}

// DropTable removes name's heap pages and every index built on it. The
// catalog-meta page is not compacted; dropped entries are simply never
// re-registered on a fresh Load.
func (m *Manager) DropTable(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.tables[name]
	if !ok {
		return dberrors.New(dberrors.NotFound, "catalog.DropTable", name, nil)
	}
	for key, idx := range m.indexes {
		if idx.TableName == name {
			if err := idx.Tree.Destroy(); err != nil {
				return err
			}
			delete(m.indexes, key)
		}
	}
	for pid := info.Heap.FirstPageID(); pid != common.InvalidPageID; {
		guard, err := m.bp.FetchPageGuarded(pid)
		if err != nil {
			return err
		}
		next := page.WrapTablePage(guard.Frame().Data()).NextPageID()
		if err := guard.Release(); err != nil {
			return err
		}
		if err := m.bp.DeletePage(pid); err != nil {
			return err
		}
		pid = next
	}
	delete(m.tables, name)
	delete(m.tablesByID, info.ID)
	m.met.SetCatalogCounts(len(m.tables), len(m.indexes))
	return nil
}

// CreateIndex builds a new B+Tree index named name over keyCols of
// table.
func (m *Manager) CreateIndex(tableName, indexName string, keyCols []int) (*IndexInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	table, ok := m.tables[tableName]
	if !ok {
		return nil, dberrors.New(dberrors.NotFound, "catalog.CreateIndex", tableName, nil)
	}
	fullName := indexKey(tableName, indexName)
	if _, exists := m.indexes[fullName]; exists {
		return nil, dberrors.New(dberrors.AlreadyExists, "catalog.CreateIndex", fullName, nil)
	}

	km := index.NewKeyManager(table.Schema, keyCols)
	id := m.nextIndexID
	m.nextIndexID++

	tree, err := index.Create(m.bp, id, km, m.met)
	if err != nil {
		return nil, err
	}

	if err := m.appendCatalogEntry(func(cm page.CatalogMetaPage) error {
		return cm.AddIndex(id, common.IndexRootsPageID)
	}); err != nil {
		return nil, err
	}

	it, err := table.Heap.Begin()
	if err != nil {
		return nil, err
	}
	for it.Valid() {
		raw, terr := it.Tuple()
		if terr != nil {
			return nil, terr
		}
		row, derr := record.DeserializeFrom(raw, table.Schema)
		if derr != nil {
			return nil, derr
		}
		key := km.FromRow(row, keyCols)
		if ierr := tree.Insert(key, it.RID()); ierr != nil {
			return nil, ierr
		}
		if err := it.Next(); err != nil {
			return nil, err
		}
	}

	info := &IndexInfo{ID: id, Name: indexName, TableName: tableName, KeyCols: keyCols, Tree: tree, KeyMgr: km}
	m.indexes[fullName] = info
	m.met.SetCatalogCounts(len(m.tables), len(m.indexes))
	return info, nil
}

// GetIndex returns the named index on tableName.
func (m *Manager) GetIndex(tableName, indexName string) (*IndexInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.indexes[indexKey(tableName, indexName)]
	if !ok {
		return nil, dberrors.New(dberrors.NotFound, "catalog.GetIndex", indexName, nil)
	}
	return info, nil
}

// GetTableIndexes returns every index built on tableName, grouped by
// table as the catalog's primary lookup path for query planning.
func (m *Manager) GetTableIndexes(tableName string) []*IndexInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*IndexInfo
	for _, idx := range m.indexes {
		if idx.TableName == tableName {
			out = append(out, idx)
		}
	}
	return out
}

// DropIndex destroys indexName's pages and removes it from the
// catalog.
func (m *Manager) DropIndex(tableName, indexName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := indexKey(tableName, indexName)
	info, ok := m.indexes[key]
	if !ok {
		return dberrors.New(dberrors.NotFound, "catalog.DropIndex", indexName, nil)
	}
	if err := info.Tree.Destroy(); err != nil {
		return err
	}
	delete(m.indexes, key)
	m.met.SetCatalogCounts(len(m.tables), len(m.indexes))
	return nil
}

func indexKey(tableName, indexName string) string { return fmt.Sprintf("%s.%s", tableName, indexName) }

// appendCatalogEntry fetches the catalog-meta page, applies fn, and
// flushes it back dirty.
func (m *Manager) appendCatalogEntry(fn func(page.CatalogMetaPage) error) error {
	guard, err := m.bp.FetchPageGuarded(common.CatalogMetaPageID)
	if err != nil {
		return err
	}
	cm, werr := page.WrapCatalogMetaPage(guard.Frame().Data())
	if werr != nil {
		guard.Release()
		return werr
	}
	if err := fn(cm); err != nil {
		guard.Release()
		return err
	}
	guard.MarkDirty()
	return guard.Release()
}

// Load rebuilds the in-memory catalog from the on-disk catalog-meta
// page, used when reopening an existing database.
func Load(bp *buffer.Manager, met *metrics.Metrics, tableNames map[uint32]string, indexSpecs map[uint32]IndexSpec) (*Manager, error) {
	guard, err := bp.FetchPageGuarded(common.CatalogMetaPageID)
	if err != nil {
		return nil, err
	}
	cm, werr := page.WrapCatalogMetaPage(guard.Frame().Data())
	if werr != nil {
		guard.Release()
		return nil, werr
	}
	tableEntries := cm.Tables()
	indexEntries := cm.Indexes()
	guard.Release()

	m := &Manager{
		bp:         bp,
		met:        met,
		log:        logger.Get().Component("catalog"),
		tables:     make(map[string]*TableInfo),
		indexes:    make(map[string]*IndexInfo),
		tablesByID: make(map[uint32]*TableInfo),
	}

	schemaPages := make(map[uint32]common.PageID)
	for _, e := range tableEntries {
		if e.ID&schemaIDTag != 0 {
			schemaPages[e.ID&^schemaIDTag] = e.PageID
		}
	}
	for _, e := range tableEntries {
		if e.ID&schemaIDTag != 0 {
			continue
		}
		name, ok := tableNames[e.ID]
		if !ok {
			continue
		}
		schema, serr := m.loadSchema(schemaPages[e.ID])
		if serr != nil {
			return nil, serr
		}
		info := &TableInfo{ID: e.ID, Name: name, Schema: schema, Heap: heap.Open(bp, e.PageID)}
		m.tables[name] = info
		m.tablesByID[e.ID] = info
		if e.ID >= m.nextTableID {
			m.nextTableID = e.ID + 1
		}
	}

	for _, e := range indexEntries {
		spec, ok := indexSpecs[e.ID]
		if !ok {
			continue
		}
		table, ok := m.tables[spec.TableName]
		if !ok {
			continue
		}
		km := index.NewKeyManager(table.Schema, spec.KeyCols)
		tree := index.Open(bp, e.ID, km, met)
		info := &IndexInfo{ID: e.ID, Name: spec.Name, TableName: spec.TableName, KeyCols: spec.KeyCols, Tree: tree, KeyMgr: km}
		m.indexes[indexKey(spec.TableName, spec.Name)] = info
		if e.ID >= m.nextIndexID {
			m.nextIndexID = e.ID + 1
		}
	}

	m.met.SetCatalogCounts(len(m.tables), len(m.indexes))
	return m, nil
}

// IndexSpec supplies the name/table/key-columns Load cannot recover
// from the catalog-meta page alone (it only tracks ids and page
// pointers); callers persist these alongside their own write-ahead log
// or configuration and pass them back in on Load.
type IndexSpec struct {
	Name      string
	TableName string
	KeyCols   []int
}

func (m *Manager) loadSchema(pageID common.PageID) (*record.Schema, error) {
	guard, err := m.bp.FetchPageGuarded(pageID)
	if err != nil {
		return nil, err
	}
	defer guard.Release()
	buf := guard.Frame().Data()
	size := binary.LittleEndian.Uint32(buf[0:4])
	schema, _, derr := record.DeserializeSchema(buf[4 : 4+size])
	if derr != nil {
		return nil, derr
	}
	return schema, nil
}
