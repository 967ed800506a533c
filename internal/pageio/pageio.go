// Package pageio implements the paged-file layer (spec §4.1): fixed-size
// page I/O over a single OS file, a header region of H pages holding
// read/write/append counters plus whatever the owning layer stores in
// the rest of the header, and a write-through page cache shared across
// every open file.
package pageio

import (
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/relstore/pagedengine/internal/xerrors"
)

// counterRegionSize is the size, in bytes, of the four little-endian
// uint32 counters at the start of every header (spec §6): read, write,
// append, num_pages.
const counterRegionSize = 16

// File is one open paged file. Record files open it with headerPages=6;
// index files with headerPages=1 (spec §3).
type File struct {
	mu sync.Mutex

	path        string
	headerPages int
	f           *os.File
	cache       *Cache
	log         *zap.Logger

	header   []byte // in-memory header region, headerPages*PageSize bytes
	numPages int32
	readCtr  uint32
	writeCtr uint32
	appendCtr uint32
}

// Create makes a new, empty paged file at path and initializes its
// header. Fails with AlreadyExists if path exists.
func Create(path string, headerPages int, cache *Cache, log *zap.Logger) (*File, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if _, err := os.Stat(path); err == nil {
		return nil, xerrors.New(xerrors.AlreadyExists, "pageio.Create")
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.IoError, "pageio.Create", err)
	}
	pf := &File{
		path:        path,
		headerPages: headerPages,
		f:           f,
		cache:       cache,
		log:         log.With(zap.String("file", path)),
		header:      make([]byte, headerPages*PageSize),
	}
	if err := pf.flushHeader(); err != nil {
		f.Close()
		return nil, err
	}
	pf.log.Debug("created paged file", zap.Int("header_pages", headerPages))
	return pf, nil
}

// Open opens an existing paged file and reads its header into memory.
func Open(path string, headerPages int, cache *Cache, log *zap.Logger) (*File, error) {
	if log == nil {
		log = zap.NewNop()
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, xerrors.New(xerrors.NotFound, "pageio.Open")
		}
		return nil, xerrors.Wrap(xerrors.IoError, "pageio.Open", err)
	}
	pf := &File{
		path:        path,
		headerPages: headerPages,
		f:           f,
		cache:       cache,
		log:         log.With(zap.String("file", path)),
		header:      make([]byte, headerPages*PageSize),
	}
	if _, err := f.ReadAt(pf.header, 0); err != nil {
		f.Close()
		return nil, xerrors.Wrap(xerrors.IoError, "pageio.Open", err)
	}
	pf.readCtr = le32(pf.header[0:4])
	pf.writeCtr = le32(pf.header[4:8])
	pf.appendCtr = le32(pf.header[8:12])
	pf.numPages = int32(le32(pf.header[12:16]))
	return pf, nil
}

// HeaderRegion returns the mutable portion of the header beyond the
// four counters, for the owning layer (record file free-space table,
// B+tree root pointer) to interpret as it sees fit. Changes are only
// durable once Close flushes them.
func (pf *File) HeaderRegion() []byte {
	return pf.header[counterRegionSize:]
}

// NumPages returns the current page count.
func (pf *File) NumPages() int32 {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	return pf.numPages
}

// ReadPage reads page n into a freshly allocated PageSize buffer.
func (pf *File) ReadPage(n int32) ([]byte, error) {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	if n < 0 || n >= pf.numPages {
		return nil, xerrors.New(xerrors.IoError, "pageio.ReadPage")
	}
	pf.readCtr++
	if buf, ok := pf.cache.get(pf.path, n); ok {
		return buf, nil
	}
	buf := make([]byte, PageSize)
	off := int64(pf.headerPages)*PageSize + int64(n)*PageSize
	if _, err := pf.f.ReadAt(buf, off); err != nil {
		return nil, xerrors.Wrap(xerrors.IoError, "pageio.ReadPage", err)
	}
	pf.cache.put(pf.path, n, buf)
	return buf, nil
}

// WritePage overwrites page n with buf (must be exactly PageSize bytes).
func (pf *File) WritePage(n int32, buf []byte) error {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	return pf.writePageLocked(n, buf)
}

func (pf *File) writePageLocked(n int32, buf []byte) error {
	if n < 0 || n >= pf.numPages {
		return xerrors.New(xerrors.IoError, "pageio.WritePage")
	}
	if len(buf) != PageSize {
		return xerrors.New(xerrors.Logical, "pageio.WritePage")
	}
	pf.writeCtr++
	off := int64(pf.headerPages)*PageSize + int64(n)*PageSize
	if _, err := pf.f.WriteAt(buf, off); err != nil {
		return xerrors.Wrap(xerrors.IoError, "pageio.WritePage", err)
	}
	pf.cache.put(pf.path, n, buf)
	return nil
}

// AppendPage allocates a new page beyond the current tail and writes buf
// into it, returning the new page's number.
func (pf *File) AppendPage(buf []byte) (int32, error) {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	if len(buf) != PageSize {
		return 0, xerrors.New(xerrors.Logical, "pageio.AppendPage")
	}
	pf.appendCtr++
	n := pf.numPages
	pf.numPages++
	off := int64(pf.headerPages)*PageSize + int64(n)*PageSize
	if _, err := pf.f.WriteAt(buf, off); err != nil {
		pf.numPages--
		pf.appendCtr--
		return 0, xerrors.Wrap(xerrors.IoError, "pageio.AppendPage", err)
	}
	pf.cache.put(pf.path, n, buf)
	return n, nil
}

// ScanForFreePage is the fallback used once a file has more pages than
// its header free-space table can describe (spec §4.1): it reads every
// page and asks freeBytesOf how much room each one has left.
func (pf *File) ScanForFreePage(requiredBytes int, startAt int32, freeBytesOf func(buf []byte) int) (int32, bool, error) {
	n := pf.NumPages()
	for p := startAt; p < n; p++ {
		buf, err := pf.ReadPage(p)
		if err != nil {
			return 0, false, err
		}
		if freeBytesOf(buf) >= requiredBytes {
			return p, true, nil
		}
	}
	return 0, false, nil
}

func (pf *File) flushHeader() error {
	binary32(pf.header[0:4], pf.readCtr)
	binary32(pf.header[4:8], pf.writeCtr)
	binary32(pf.header[8:12], pf.appendCtr)
	binary32(pf.header[12:16], uint32(pf.numPages))
	if _, err := pf.f.WriteAt(pf.header, 0); err != nil {
		return xerrors.Wrap(xerrors.IoError, "pageio.flushHeader", err)
	}
	return nil
}

// Close rewrites the header (counters plus whatever HeaderRegion holds)
// and releases the OS handle. Cached pages for this file are dropped so
// a later reopen never observes state left behind by a previous
// incarnation sharing the same cache.
func (pf *File) Close() error {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	err := pf.flushHeader()
	pf.cache.invalidateFile(pf.path)
	if cerr := pf.f.Close(); cerr != nil && err == nil {
		err = xerrors.Wrap(xerrors.IoError, "pageio.Close", cerr)
	}
	pf.log.Debug("closed paged file",
		zap.Int32("num_pages", pf.numPages),
		zap.Uint32("reads", pf.readCtr),
		zap.Uint32("writes", pf.writeCtr),
		zap.Uint32("appends", pf.appendCtr),
	)
	return err
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func binary32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
