package catalog

import (
	"sync"

	"go.uber.org/zap"

	"github.com/relstore/pagedengine/internal/value"
	"github.com/relstore/pagedengine/internal/xerrors"
)

// tableMeta holds every schema version a table has gone through.
// Version 1 is a table's original attribute list; AddAttribute and
// DropAttribute each mint a new version that is a copy-with-one-change
// of the previous one, so an old record's version number always
// resolves to the exact attribute list it was written with.
type tableMeta struct {
	versions []value.Descriptor // index 0 = version 1
	stamps   map[value.RID]int  // bookkeeping only, see StampOnInsert
}

// Memory is an in-process Catalog: no persistence, rebuilt by the
// caller on every process start the way the out-of-scope catalog
// service in spec §1 is documented to behave ("its table layout is not
// prescribed"). Grounded on the teacher's Config/DefaultConfig pattern
// for small, explicit, engine-owned state rather than a package-level
// singleton (design note "Global state").
type Memory struct {
	mu          sync.Mutex
	tables      map[string]*tableMeta
	systemFiles map[string]bool
	log         *zap.Logger
}

func NewMemory(log *zap.Logger) *Memory {
	if log == nil {
		log = zap.NewNop()
	}
	return &Memory{tables: make(map[string]*tableMeta), log: log}
}

// CreateTable registers a new table at schema version 1 with the given
// attribute list. Every attribute is marked Valid; Position is assigned
// in order starting at 0.
func (m *Memory) CreateTable(table string, attrs []value.Attribute) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[table]; ok {
		return xerrors.New(xerrors.AlreadyExists, "catalog.CreateTable")
	}
	desc := make(value.Descriptor, len(attrs))
	for i, a := range attrs {
		a.Valid = true
		a.Position = i
		desc[i] = a
	}
	m.tables[table] = &tableMeta{
		versions: []value.Descriptor{desc},
		stamps:   make(map[value.RID]int),
	}
	return nil
}

// MarkSystem flags a file name as a catalog-internal file, disabling
// version translation for it (spec §6 is_system contract).
func (m *Memory) MarkSystem(file string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.systemFiles == nil {
		m.systemFiles = make(map[string]bool)
	}
	m.systemFiles[file] = true
}

func (m *Memory) CurrentVersion(table string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.tables[table]
	if !ok {
		return 0, xerrors.New(xerrors.NotFound, "catalog.CurrentVersion")
	}
	return len(meta.versions), nil
}

func (m *Memory) AttributesFor(table string, version int) (value.Descriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.tables[table]
	if !ok {
		return nil, xerrors.New(xerrors.NotFound, "catalog.AttributesFor")
	}
	if version < 1 || version > len(meta.versions) {
		return nil, xerrors.New(xerrors.NotFound, "catalog.AttributesFor")
	}
	out := make(value.Descriptor, len(meta.versions[version-1]))
	copy(out, meta.versions[version-1])
	return out, nil
}

func (m *Memory) StampOnInsert(table string, rid value.RID, version int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.tables[table]
	if !ok {
		return xerrors.New(xerrors.NotFound, "catalog.StampOnInsert")
	}
	meta.stamps[rid] = version
	m.log.Debug("stamped insert", zap.String("table", table), zap.Stringer("rid", rid), zap.Int("version", version))
	return nil
}

func (m *Memory) IsSystem(file string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.systemFiles != nil && m.systemFiles[file]
}

// AddAttribute evolves table to a new version appending attr as the
// newest valid column. Returns the new version number.
func (m *Memory) AddAttribute(table string, attr value.Attribute) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.tables[table]
	if !ok {
		return 0, xerrors.New(xerrors.NotFound, "catalog.AddAttribute")
	}
	cur := meta.versions[len(meta.versions)-1]
	next := make(value.Descriptor, len(cur)+1)
	copy(next, cur)
	attr.Valid = true
	attr.Position = len(cur)
	next[len(cur)] = attr
	meta.versions = append(meta.versions, next)
	return len(meta.versions), nil
}

// DropAttribute evolves table to a new version marking name invalid
// (logically dropped, but its offset-table slot is retained in the
// stored form — spec §6).
func (m *Memory) DropAttribute(table, name string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.tables[table]
	if !ok {
		return 0, xerrors.New(xerrors.NotFound, "catalog.DropAttribute")
	}
	cur := meta.versions[len(meta.versions)-1]
	next := make(value.Descriptor, len(cur))
	copy(next, cur)
	found := false
	for i, a := range next {
		if a.Name == name && a.Valid {
			next[i].Valid = false
			found = true
			break
		}
	}
	if !found {
		return 0, xerrors.New(xerrors.NotFound, "catalog.DropAttribute")
	}
	meta.versions = append(meta.versions, next)
	return len(meta.versions), nil
}
