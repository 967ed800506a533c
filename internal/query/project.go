package query

import (
	"github.com/relstore/pagedengine/internal/value"
	"github.com/relstore/pagedengine/internal/xerrors"
)

// Project re-assembles each child tuple down to an ordered subset of
// attribute names (spec §4.4).
type Project struct {
	child  Iterator
	idx    []int
	attrs  value.Descriptor
	cur    []value.Value
}

func NewProject(child Iterator, names []string) (*Project, error) {
	full := child.Attributes()
	idx := make([]int, len(names))
	attrs := make(value.Descriptor, len(names))
	for i, n := range names {
		j := full.IndexOf(n)
		if j < 0 {
			return nil, xerrors.New(xerrors.Logical, "query.Project: unknown attribute "+n)
		}
		idx[i] = j
		attrs[i] = full[j]
	}
	return &Project{child: child, idx: idx, attrs: attrs}, nil
}

func (p *Project) Next() bool {
	if !p.child.Next() {
		return false
	}
	full := p.child.Tuple()
	out := make([]value.Value, len(p.idx))
	for i, j := range p.idx {
		out[i] = full[j]
	}
	p.cur = out
	return true
}

func (p *Project) Tuple() []value.Value        { return p.cur }
func (p *Project) Attributes() value.Descriptor { return p.attrs }
func (p *Project) Err() error                   { return p.child.Err() }
func (p *Project) Close() error                 { return p.child.Close() }
