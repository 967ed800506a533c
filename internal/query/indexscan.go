package query

import (
	"github.com/relstore/pagedengine/internal/bptree"
	"github.com/relstore/pagedengine/internal/recordfile"
	"github.com/relstore/pagedengine/internal/value"
)

// IndexScan walks a B+tree's composite keys within a value range and
// fetches the full tuple for each matching record id.
type IndexScan struct {
	tree *bptree.BTree
	recs *recordfile.File
	it   *bptree.RangeIterator
	attrs value.Descriptor

	cur []value.Value
	err error
}

// NewIndexScan opens a bounded index scan; a nil bound is unbounded on
// that side (spec §4.3).
func NewIndexScan(tree *bptree.BTree, recs *recordfile.File, lowValue *value.Value, lowInclusive bool, highValue *value.Value, highInclusive bool) (*IndexScan, error) {
	sc, err := recs.Scan(nil)
	if err != nil {
		return nil, err
	}
	attrs := sc.Attributes()
	sc.Close()

	return &IndexScan{
		tree:  tree,
		recs:  recs,
		it:    tree.RangeScan(lowValue, lowInclusive, highValue, highInclusive),
		attrs: attrs,
	}, nil
}

// Reinit restarts the scan as a new equality range [value, value],
// reusing the same record file and tree (index nested-loop join, spec
// §4.4).
func (s *IndexScan) Reinit(v value.Value) {
	s.it = s.tree.RangeScan(&v, true, &v, true)
	s.cur = nil
	s.err = nil
}

func (s *IndexScan) Next() bool {
	if s.err != nil {
		return false
	}
	if !s.it.Next() {
		s.err = s.it.Err()
		return false
	}
	rid := s.it.Key().RID
	vals, err := s.recs.Read(rid)
	if err != nil {
		s.err = err
		return false
	}
	s.cur = vals
	return true
}

func (s *IndexScan) Tuple() []value.Value        { return s.cur }
func (s *IndexScan) RID() value.RID              { return s.it.Key().RID }
func (s *IndexScan) Attributes() value.Descriptor { return s.attrs }
func (s *IndexScan) Err() error                   { return s.err }
func (s *IndexScan) Close() error                 { return s.it.Close() }
