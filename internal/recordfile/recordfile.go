package recordfile

import (
	"go.uber.org/zap"

	"github.com/relstore/pagedengine/internal/catalog"
	"github.com/relstore/pagedengine/internal/pageio"
	"github.com/relstore/pagedengine/internal/value"
)

// HeaderPages is H for record files (spec §3): a fixed-size header
// region of 6 pages, most of it given to the free-space directory.
const HeaderPages = 6

// File is a slotted-page record file for one table.
type File struct {
	pf       *pageio.File
	table    string
	cat      catalog.Catalog
	log      *zap.Logger
	lastPage int32 // page the most recent insert landed on (the last page after Open), tried first on insert
}

// Create makes a new, empty record file backing table.
func Create(path, table string, cat catalog.Catalog, cache *pageio.Cache, log *zap.Logger) (*File, error) {
	if log == nil {
		log = zap.NewNop()
	}
	pf, err := pageio.Create(path, HeaderPages, cache, log)
	if err != nil {
		return nil, err
	}
	return &File{pf: pf, table: table, cat: cat, log: log.With(zap.String("table", table)), lastPage: -1}, nil
}

// Open opens an existing record file backing table.
func Open(path, table string, cat catalog.Catalog, cache *pageio.Cache, log *zap.Logger) (*File, error) {
	if log == nil {
		log = zap.NewNop()
	}
	pf, err := pageio.Open(path, HeaderPages, cache, log)
	if err != nil {
		return nil, err
	}
	lastPage := int32(-1)
	if pf.NumPages() > 0 {
		lastPage = pf.NumPages() - 1
	}
	return &File{pf: pf, table: table, cat: cat, log: log.With(zap.String("table", table)), lastPage: lastPage}, nil
}

// Close flushes the file's header (counters plus free-space directory).
func (f *File) Close() error { return f.pf.Close() }

func (f *File) currentDescriptor() (value.Descriptor, int, error) {
	ver, err := f.cat.CurrentVersion(f.table)
	if err != nil {
		return nil, 0, err
	}
	desc, err := f.cat.AttributesFor(f.table, ver)
	if err != nil {
		return nil, 0, err
	}
	return desc, ver, nil
}

func (f *File) findFreePage(requiredBytes int) (int32, bool, error) {
	header := f.pf.HeaderRegion()
	capacity := fsCapacity(header)
	n := f.pf.NumPages()
	limit := int32(capacity)
	if n < limit {
		limit = n
	}
	for p := int32(0); p < limit; p++ {
		fb, _ := fsGet(header, int(p))
		if int(fb) >= requiredBytes {
			return p, true, nil
		}
	}
	if n > int32(capacity) {
		return f.pf.ScanForFreePage(requiredBytes, int32(capacity), freeSpace)
	}
	return 0, false, nil
}

// updateFreeSpaceEntry recomputes and records page p's free-space
// directory entry from its current in-memory contents, per spec §4.1
// write_page updating "the header's free-space entry for n". Pages
// beyond the header's capacity are simply not tracked; findFreePage
// falls back to scanning them directly.
func (f *File) updateFreeSpaceEntry(p int32, buf []byte) {
	header := f.pf.HeaderRegion()
	if int(p) >= fsCapacity(header) {
		return
	}
	_, _, freeSlots := getTrailer(buf)
	fsSet(header, int(p), uint16(freeSpace(buf)), freeSlots)
}
