// Package engine wires the Disk Manager, Buffer Pool Manager, Catalog
// Manager, and log hook into the single top-level handle an embedding
// application constructs once per database, per the specification's
// §6 "file format" and §1's "core" boundary.
package engine

import (
	"encoding/json"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nikhilrao/relstore/internal/logger"
	"github.com/nikhilrao/relstore/internal/metrics"
	"github.com/nikhilrao/relstore/pkg/buffer"
	"github.com/nikhilrao/relstore/pkg/catalog"
	"github.com/nikhilrao/relstore/pkg/dberrors"
	"github.com/nikhilrao/relstore/pkg/diskmgr"
	"github.com/nikhilrao/relstore/pkg/record"
	"github.com/nikhilrao/relstore/pkg/wal"
)

// Options configures a new Engine. No environment variables are
// consumed by the core (spec.md §6); every knob is explicit.
type Options struct {
	// Path is the backing file for table/index data.
	Path string
	// BufferPoolSize is the fixed number of frames the Buffer Pool
	// Manager caches.
	BufferPoolSize int
	// Logger configures the engine's structured logger. The zero value
	// logs at info level to stdout.
	Logger logger.Config
	// EnableMetrics registers Prometheus collectors against
	// MetricsRegisterer. When false the engine runs with a nil
	// *metrics.Metrics and every Record*/Set* call is a no-op.
	EnableMetrics bool
	// MetricsRegisterer receives the engine's Prometheus collectors
	// when EnableMetrics is true. Defaults to prometheus.DefaultRegisterer.
	MetricsRegisterer prometheus.Registerer
	// WAL, when non-nil, overrides the default file-backed log hook
	// (pkg/wal.WAL) with a caller-supplied LogManager. Pass
	// &wal.NullLogManager{} to disable WAL entirely.
	WAL wal.LogManager
}

// registry is the side-table persisted next to the data file recording
// each table's registered indexes, since the catalog-meta page only
// tracks ids and page pointers (pkg/catalog.Load needs names back).
type registry struct {
	Tables  []string                `json:"tables"`
	Indexes map[uint32]catalog.IndexSpec `json:"indexes"`
}

func registryPath(dataPath string) string { return dataPath + ".catalog.json" }

// Engine is the top-level handle embedding applications construct once
// per database file.
type Engine struct {
	Disk    *diskmgr.Manager
	Buffer  *buffer.Manager
	Catalog *catalog.Manager
	Log     wal.LogManager
	Metrics *metrics.Metrics
	Logger  *logger.Logger

	dataPath string
}

// Open creates or opens the database at opts.Path, bootstrapping a
// fresh catalog-meta/index-roots page pair if the file is new, or
// replaying the persisted table/index registry if not.
func Open(opts Options) (*Engine, error) {
	log := logger.New(opts.Logger)

	var met *metrics.Metrics
	if opts.EnableMetrics {
		reg := opts.MetricsRegisterer
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		met = metrics.New(reg)
	}

	isNew := !fileExists(opts.Path)

	disk, err := diskmgr.Open(opts.Path, met)
	if err != nil {
		return nil, err
	}

	bp := buffer.NewManager(opts.BufferPoolSize, disk, met)

	logHook := opts.WAL
	if logHook == nil {
		w := &wal.WAL{Path: opts.Path + ".wal"}
		if err := w.Open(); err != nil {
			disk.Close()
			return nil, err
		}
		logHook = w
	}

	var cat *catalog.Manager
	if isNew {
		cat, err = catalog.Bootstrap(bp, met)
	} else {
		reg := loadRegistry(opts.Path)
		tableNames := make(map[uint32]string)
		for i, name := range reg.Tables {
			tableNames[uint32(i)] = name
		}
		cat, err = catalog.Load(bp, met, tableNames, reg.Indexes)
	}
	if err != nil {
		disk.Close()
		return nil, err
	}

	e := &Engine{
		Disk:     disk,
		Buffer:   bp,
		Catalog:  cat,
		Log:      logHook,
		Metrics:  met,
		Logger:   log,
		dataPath: opts.Path,
	}
	return e, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func loadRegistry(dataPath string) registry {
	reg := registry{Indexes: make(map[uint32]catalog.IndexSpec)}
	data, err := os.ReadFile(registryPath(dataPath))
	if err != nil {
		return reg
	}
	json.Unmarshal(data, &reg)
	if reg.Indexes == nil {
		reg.Indexes = make(map[uint32]catalog.IndexSpec)
	}
	return reg
}

// saveRegistry persists the table name list and index specs so a
// subsequent Open can rebuild the in-memory catalog from the on-disk
// catalog-meta page.
func (e *Engine) saveRegistry() error {
	tables := e.Catalog.GetTables()
	reg := registry{
		Tables:  make([]string, len(tables)),
		Indexes: make(map[uint32]catalog.IndexSpec),
	}
	for _, t := range tables {
		if int(t.ID) >= len(reg.Tables) {
			grown := make([]string, t.ID+1)
			copy(grown, reg.Tables)
			reg.Tables = grown
		}
		reg.Tables[t.ID] = t.Name
		for _, idx := range e.Catalog.GetTableIndexes(t.Name) {
			reg.Indexes[idx.ID] = catalog.IndexSpec{Name: idx.Name, TableName: idx.TableName, KeyCols: idx.KeyCols}
		}
	}
	data, err := json.Marshal(reg)
	if err != nil {
		return dberrors.New(dberrors.Failed, "engine.saveRegistry", e.dataPath, err)
	}
	return os.WriteFile(registryPath(e.dataPath), data, 0o644)
}

// CreateTable registers name with schema and persists the updated
// table registry.
func (e *Engine) CreateTable(name string, schema *record.Schema) (*catalog.TableInfo, error) {
	info, err := e.Catalog.CreateTable(name, schema)
	if err != nil {
		return nil, err
	}
	if err := e.saveRegistry(); err != nil {
		return nil, err
	}
	return info, nil
}

// CreateIndex registers a new B+Tree index and persists the updated
// registry.
func (e *Engine) CreateIndex(tableName, indexName string, keyCols []int) (*catalog.IndexInfo, error) {
	info, err := e.Catalog.CreateIndex(tableName, indexName, keyCols)
	if err != nil {
		return nil, err
	}
	if err := e.saveRegistry(); err != nil {
		return nil, err
	}
	return info, nil
}

// Close flushes every dirty page, fsyncs the WAL, and closes the
// backing file.
func (e *Engine) Close() error {
	if err := e.Buffer.FlushAllPages(); err != nil {
		return err
	}
	if err := e.Log.Flush(); err != nil {
		return err
	}
	return e.Disk.Close()
}
