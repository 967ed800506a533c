// Package engine wires the paged file, record file, B+tree index and
// catalog layers into a single handle: it owns the shared page cache,
// the structured logger, and the in-process catalog, and opens/creates
// the table and index files that back them (spec §1/§6).
package engine

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/relstore/pagedengine/internal/bptree"
	"github.com/relstore/pagedengine/internal/catalog"
	"github.com/relstore/pagedengine/internal/pageio"
	"github.com/relstore/pagedengine/internal/recordfile"
	"github.com/relstore/pagedengine/internal/value"
	"github.com/relstore/pagedengine/internal/xerrors"
)

// Config holds engine-wide settings, mirroring the teacher's
// Config/DefaultConfig pattern (btree.Config).
type Config struct {
	DataDir   string
	CacheSize int // pages held in the shared LRU cache
}

// DefaultConfig returns sensible defaults for a single-node engine
// rooted at dataDir.
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:   dataDir,
		CacheSize: 4096, // ~16MB of 4KB pages
	}
}

// Engine is the top-level handle a caller opens once per process. It is
// not safe to open the same DataDir from two Engine instances
// concurrently — nothing coordinates the underlying files across them.
type Engine struct {
	config Config
	cache  *pageio.Cache
	cat    *catalog.Memory
	log    *zap.Logger

	mu      sync.Mutex
	tables  map[string]*recordfile.File
	indexes map[string]*bptree.BTree
	closed  bool
}

// New creates the data directory if needed and returns a ready Engine
// with an empty catalog. log may be nil, in which case a no-op logger
// is used.
func New(config Config, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(config.DataDir, 0o755); err != nil {
		return nil, xerrors.Wrap(xerrors.IoError, "engine.New", err)
	}
	return &Engine{
		config:  config,
		cache:   pageio.NewCache(config.CacheSize),
		cat:     catalog.NewMemory(log),
		log:     log,
		tables:  make(map[string]*recordfile.File),
		indexes: make(map[string]*bptree.BTree),
	}, nil
}

// Catalog exposes the engine's catalog for schema evolution
// (AddAttribute/DropAttribute) and inspection.
func (e *Engine) Catalog() *catalog.Memory { return e.cat }

func (e *Engine) tablePath(table string) string {
	return filepath.Join(e.config.DataDir, table+".tbl")
}

func (e *Engine) indexPath(table, attr string) string {
	return filepath.Join(e.config.DataDir, table+"."+attr+".idx")
}

func (e *Engine) indexKey(table, attr string) string { return table + "." + attr }

// CreateTable registers table in the catalog at schema version 1 and
// creates its backing record file on disk.
func (e *Engine) CreateTable(table string, attrs []value.Attribute) (*recordfile.File, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, xerrors.New(xerrors.Logical, "engine.CreateTable: engine closed")
	}
	if _, ok := e.tables[table]; ok {
		return nil, xerrors.New(xerrors.AlreadyExists, "engine.CreateTable")
	}
	if err := e.cat.CreateTable(table, attrs); err != nil {
		return nil, err
	}
	f, err := recordfile.Create(e.tablePath(table), table, e.cat, e.cache, e.log)
	if err != nil {
		return nil, err
	}
	e.tables[table] = f
	return f, nil
}

// OpenTable returns the already-open handle for table, opening its
// record file from disk the first time it is requested in this
// process. The catalog entry for table must already exist (from a
// prior CreateTable call, possibly in an earlier process run against
// the same DataDir — the catalog itself is not persisted, per spec §6,
// so a fresh process must recreate it before opening existing files).
func (e *Engine) OpenTable(table string) (*recordfile.File, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, xerrors.New(xerrors.Logical, "engine.OpenTable: engine closed")
	}
	if f, ok := e.tables[table]; ok {
		return f, nil
	}
	f, err := recordfile.Open(e.tablePath(table), table, e.cat, e.cache, e.log)
	if err != nil {
		return nil, err
	}
	e.tables[table] = f
	return f, nil
}

// CreateIndex builds a new, empty B+tree index over table.attr and
// registers it under "table.attr". attr's type is read from the
// table's current schema version.
func (e *Engine) CreateIndex(table, attr string) (*bptree.BTree, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, xerrors.New(xerrors.Logical, "engine.CreateIndex: engine closed")
	}
	key := e.indexKey(table, attr)
	if _, ok := e.indexes[key]; ok {
		return nil, xerrors.New(xerrors.AlreadyExists, "engine.CreateIndex")
	}
	ver, err := e.cat.CurrentVersion(table)
	if err != nil {
		return nil, err
	}
	desc, err := e.cat.AttributesFor(table, ver)
	if err != nil {
		return nil, err
	}
	idx := desc.IndexOf(attr)
	if idx < 0 {
		return nil, xerrors.New(xerrors.Logical, "engine.CreateIndex: unknown attribute "+attr)
	}
	tr, err := bptree.Create(e.indexPath(table, attr), desc[idx].Type, e.cache, e.log)
	if err != nil {
		return nil, err
	}
	e.indexes[key] = tr
	return tr, nil
}

// OpenIndex returns the already-open handle for table.attr, opening it
// from disk the first time it is requested in this process.
func (e *Engine) OpenIndex(table, attr string) (*bptree.BTree, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, xerrors.New(xerrors.Logical, "engine.OpenIndex: engine closed")
	}
	key := e.indexKey(table, attr)
	if tr, ok := e.indexes[key]; ok {
		return tr, nil
	}
	tr, err := bptree.Open(e.indexPath(table, attr), e.cache, e.log)
	if err != nil {
		return nil, err
	}
	e.indexes[key] = tr
	return tr, nil
}

// BuildIndex creates table.attr's index and populates it from every
// row currently in table, the way a CREATE INDEX statement would.
func (e *Engine) BuildIndex(table, attr string) (*bptree.BTree, error) {
	tr, err := e.CreateIndex(table, attr)
	if err != nil {
		return nil, err
	}
	f, err := e.OpenTable(table)
	if err != nil {
		return nil, err
	}
	sc, err := f.Scan(nil)
	if err != nil {
		return nil, err
	}
	defer sc.Close()
	attrIdx := sc.Attributes().IndexOf(attr)
	if attrIdx < 0 {
		return nil, xerrors.New(xerrors.Logical, "engine.BuildIndex: unknown attribute "+attr)
	}
	for sc.Next() {
		v := sc.Tuple()[attrIdx]
		if v.IsNull {
			continue
		}
		if err := tr.Insert(value.CompositeKey{Value: v, RID: sc.RID()}); err != nil {
			return nil, err
		}
	}
	return tr, sc.Err()
}

// TempDir returns the directory temporary operator state (grace hash
// join spill files) should be created under.
func (e *Engine) TempDir() string { return e.config.DataDir }

// Cache returns the shared page cache, for operators (grace hash join)
// that open their own temporary record files outside the engine's
// table/index bookkeeping.
func (e *Engine) Cache() *pageio.Cache { return e.cache }

// Logger returns the engine's structured logger.
func (e *Engine) Logger() *zap.Logger { return e.log }

// Close flushes and closes every open table and index file.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	var err error
	for _, f := range e.tables {
		err = multierr.Append(err, f.Close())
	}
	for _, tr := range e.indexes {
		err = multierr.Append(err, tr.Close())
	}
	return err
}
