package query

import (
	"github.com/relstore/pagedengine/internal/value"
	"github.com/relstore/pagedengine/internal/xerrors"
)

// Operand is either a constant value or the name of an attribute to
// read from the current tuple.
type Operand struct {
	Const    *value.Value
	AttrName string
}

func ConstOperand(v value.Value) Operand { return Operand{Const: &v} }
func AttrOperand(name string) Operand    { return Operand{AttrName: name} }

func (o Operand) resolve(attrs value.Descriptor, tuple []value.Value) (value.Value, error) {
	if o.Const != nil {
		return *o.Const, nil
	}
	idx := attrs.IndexOf(o.AttrName)
	if idx < 0 {
		return value.Value{}, xerrors.New(xerrors.Logical, "query.Filter: unknown attribute "+o.AttrName)
	}
	return tuple[idx], nil
}

// Filter evaluates (lhsAttr, op, rhs) against its child's tuples.
// Unlike the original engine, a missing attribute name hard-fails
// rather than quietly behaving like end-of-stream, since silently
// terminating the whole pipeline on a planner bug hides the mistake.
type Filter struct {
	child   Iterator
	lhsAttr string
	op      value.CompOp
	rhs     Operand

	cur []value.Value
	err error
}

func NewFilter(child Iterator, lhsAttr string, op value.CompOp, rhs Operand) *Filter {
	return &Filter{child: child, lhsAttr: lhsAttr, op: op, rhs: rhs}
}

func (f *Filter) Next() bool {
	if f.err != nil {
		return false
	}
	attrs := f.child.Attributes()
	lhsIdx := attrs.IndexOf(f.lhsAttr)
	if lhsIdx < 0 && f.op != value.OpNoOp {
		f.err = xerrors.New(xerrors.Logical, "query.Filter: unknown attribute "+f.lhsAttr)
		return false
	}
	for f.child.Next() {
		tuple := f.child.Tuple()
		if f.op == value.OpNoOp {
			f.cur = tuple
			return true
		}
		rhs, err := f.rhs.resolve(attrs, tuple)
		if err != nil {
			f.err = err
			return false
		}
		if value.Eval(f.op, tuple[lhsIdx], rhs) {
			f.cur = tuple
			return true
		}
	}
	f.err = f.child.Err()
	return false
}

func (f *Filter) Tuple() []value.Value        { return f.cur }
func (f *Filter) Attributes() value.Descriptor { return f.child.Attributes() }
func (f *Filter) Err() error                   { return f.err }
func (f *Filter) Close() error                 { return f.child.Close() }
