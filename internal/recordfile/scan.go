package recordfile

import (
	"github.com/relstore/pagedengine/internal/value"
)

// ScanPredicate decides whether a decoded tuple belongs in a scan's
// results. A nil predicate accepts every tuple.
type ScanPredicate func(attrs value.Descriptor, vals []value.Value) bool

// Scanner walks every live, non-forwarded record in a file in
// page/slot order, applying an optional predicate. Forwarding
// tombstones are skipped at their origin slot and visited once, at
// their target slot, so every record is reported exactly once.
type Scanner struct {
	f    *File
	pred ScanPredicate

	page  int32
	slot  int
	attrs value.Descriptor

	cur    []value.Value
	curRID value.RID
	err    error
	done   bool
}

// Scan starts a new forward scan of every record in the file.
func (f *File) Scan(pred ScanPredicate) (*Scanner, error) {
	desc, _, err := f.currentDescriptor()
	if err != nil {
		return nil, err
	}
	return &Scanner{f: f, pred: pred, page: 0, slot: 0, attrs: desc.Visible()}, nil
}

// Next advances the scanner, returning false at end of file or on error
// (distinguish with Err).
func (s *Scanner) Next() bool {
	if s.done || s.err != nil {
		return false
	}
	for {
		n := s.f.pf.NumPages()
		if s.page >= n {
			s.done = true
			return false
		}
		buf, err := s.f.pf.ReadPage(s.page)
		if err != nil {
			s.err = err
			return false
		}
		numSlotsOnPage := numSlots(dirEndOf(buf))
		if s.slot >= numSlotsOnPage {
			s.page++
			s.slot = 0
			continue
		}
		sl := getSlot(buf, s.slot)
		rid := value.RID{Page: s.page, Slot: uint16(s.slot)}
		s.slot++

		if sl.offset == slotOffsetFree || sl.flag == slotFlagUpdated {
			continue
		}
		raw := make([]byte, sl.length)
		copy(raw, buf[sl.offset:int(sl.offset)+int(sl.length)])
		vals, err := s.f.decodeAtVersion(raw, int(sl.version))
		if err != nil {
			s.err = err
			return false
		}
		if s.pred != nil && !s.pred(s.attrs, vals) {
			continue
		}
		s.cur = vals
		s.curRID = rid
		return true
	}
}

// Tuple returns the current row's values in the table's current visible
// schema order. Valid only after a Next call that returned true.
func (s *Scanner) Tuple() []value.Value { return s.cur }

// RID returns the current row's record identifier.
func (s *Scanner) RID() value.RID { return s.curRID }

// Attributes returns the current visible attribute descriptor.
func (s *Scanner) Attributes() value.Descriptor { return s.attrs }

// Err returns any error that stopped the scan early.
func (s *Scanner) Err() error { return s.err }

// Close releases scanner resources. The record-file page cache is
// shared and owned by the engine, so there is nothing to release here
// beyond marking the scanner exhausted.
func (s *Scanner) Close() error {
	s.done = true
	return nil
}
