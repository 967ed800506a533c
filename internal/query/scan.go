package query

import (
	"github.com/relstore/pagedengine/internal/recordfile"
	"github.com/relstore/pagedengine/internal/value"
	"github.com/relstore/pagedengine/internal/xerrors"
)

// TableScan is the leaf operator over a record file: an optional
// (cond_attr, op, rhs) predicate evaluated per tuple, followed by a
// projection down to the requested attribute names (spec §4.2/§4.4).
// An empty projection list keeps every attribute.
type TableScan struct {
	f       *recordfile.File
	pred    recordfile.ScanPredicate
	sc      *recordfile.Scanner
	project []int
	attrs   value.Descriptor
}

// NewTableScan opens a predicate+projection scan over f. condAttr=="" is
// the identity filter (spec's NO_OP).
func NewTableScan(f *recordfile.File, condAttr string, op value.CompOp, rhs value.Value, projectNames []string) (*TableScan, error) {
	var pred recordfile.ScanPredicate
	if condAttr != "" {
		pred = func(attrs value.Descriptor, vals []value.Value) bool {
			idx := attrs.IndexOf(condAttr)
			if idx < 0 {
				return false
			}
			return value.Eval(op, vals[idx], rhs)
		}
	}
	sc, err := f.Scan(pred)
	if err != nil {
		return nil, err
	}

	full := sc.Attributes()
	names := projectNames
	if len(names) == 0 {
		names = make([]string, len(full))
		for i, a := range full {
			names[i] = a.Name
		}
	}
	project := make([]int, len(names))
	out := make(value.Descriptor, len(names))
	for i, n := range names {
		idx := full.IndexOf(n)
		if idx < 0 {
			return nil, xerrors.New(xerrors.Logical, "query.NewTableScan: unknown attribute "+n)
		}
		project[i] = idx
		out[i] = full[idx]
	}
	return &TableScan{f: f, pred: pred, sc: sc, project: project, attrs: out}, nil
}

// Rewind restarts the scan from the beginning, used by block
// nested-loop join to rescan the right side once per left block (spec
// §4.4).
func (s *TableScan) Rewind() error {
	sc, err := s.f.Scan(s.pred)
	if err != nil {
		return err
	}
	s.sc = sc
	return nil
}

func (s *TableScan) Next() bool { return s.sc.Next() }

func (s *TableScan) Tuple() []value.Value {
	full := s.sc.Tuple()
	out := make([]value.Value, len(s.project))
	for i, idx := range s.project {
		out[i] = full[idx]
	}
	return out
}

// RID returns the current row's record identifier, used by operators
// (index maintenance, index nested-loop join) that need it.
func (s *TableScan) RID() value.RID { return s.sc.RID() }

func (s *TableScan) Attributes() value.Descriptor { return s.attrs }
func (s *TableScan) Err() error                   { return s.sc.Err() }
func (s *TableScan) Close() error                 { return s.sc.Close() }
