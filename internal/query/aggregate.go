package query

import (
	"sort"

	"github.com/relstore/pagedengine/internal/value"
	"github.com/relstore/pagedengine/internal/xerrors"
)

// AggOp is one of the five supported aggregate statistics (spec §4.4).
type AggOp int

const (
	AggMin AggOp = iota
	AggMax
	AggCount
	AggSum
	AggAvg
)

type stats struct {
	count   int64
	nonNull int64
	sum     float64
	min     value.Value
	max     value.Value
	set     bool
}

func (s *stats) add(v value.Value) {
	if v.IsNull {
		s.count++ // NULL contributes to COUNT only (spec §4.4)
		return
	}
	s.count++
	s.nonNull++
	s.sum += numeric(v)
	if !s.set {
		s.min, s.max = v, v
		s.set = true
		return
	}
	if value.Compare(v, s.min) < 0 {
		s.min = v
	}
	if value.Compare(v, s.max) > 0 {
		s.max = v
	}
}

func numeric(v value.Value) float64 {
	if v.Type == value.IntType {
		return float64(v.Int)
	}
	return float64(v.Real)
}

func (s *stats) result(op AggOp, t value.Type) value.Value {
	switch op {
	case AggCount:
		return value.IntValue(int32(s.count))
	case AggMin:
		if !s.set {
			return value.NullValue(t)
		}
		return s.min
	case AggMax:
		if !s.set {
			return value.NullValue(t)
		}
		return s.max
	case AggSum:
		if !s.set {
			return value.NullValue(value.RealType)
		}
		return value.RealValue(float32(s.sum))
	case AggAvg:
		if s.nonNull == 0 {
			return value.NullValue(value.RealType)
		}
		return value.RealValue(float32(s.sum / float64(s.nonNull)))
	default:
		return value.NullValue(t)
	}
}

func aggResultName(op AggOp, attr string) string {
	switch op {
	case AggMin:
		return "min_" + attr
	case AggMax:
		return "max_" + attr
	case AggCount:
		return "count_" + attr
	case AggSum:
		return "sum_" + attr
	case AggAvg:
		return "avg_" + attr
	default:
		return attr
	}
}

func aggResultType(op AggOp, attrType value.Type) value.Type {
	switch op {
	case AggCount:
		return value.IntType
	case AggSum, AggAvg:
		return value.RealType
	default:
		return attrType
	}
}

// ScalarAggregate streams its child to completion on the first Next
// call and returns a single summary row; every subsequent call is EOF
// (spec §4.4).
type ScalarAggregate struct {
	child    Iterator
	attrIdx  int
	op       AggOp
	attrType value.Type

	attrs value.Descriptor
	cur   []value.Value
	done  bool
	err   error
}

func NewScalarAggregate(child Iterator, attr string, op AggOp) (*ScalarAggregate, error) {
	full := child.Attributes()
	idx := full.IndexOf(attr)
	if idx < 0 {
		return nil, xerrors.New(xerrors.Logical, "query.Aggregate: unknown attribute "+attr)
	}
	t := aggResultType(op, full[idx].Type)
	attrs := value.Descriptor{{Name: aggResultName(op, attr), Type: t, Valid: true}}
	return &ScalarAggregate{child: child, attrIdx: idx, op: op, attrType: full[idx].Type, attrs: attrs}, nil
}

func (a *ScalarAggregate) Next() bool {
	if a.done {
		return false
	}
	a.done = true
	var s stats
	for a.child.Next() {
		s.add(a.child.Tuple()[a.attrIdx])
	}
	if err := a.child.Err(); err != nil {
		a.err = err
		return false
	}
	a.cur = []value.Value{s.result(a.op, a.attrType)}
	return true
}

func (a *ScalarAggregate) Tuple() []value.Value        { return a.cur }
func (a *ScalarAggregate) Attributes() value.Descriptor { return a.attrs }
func (a *ScalarAggregate) Err() error                   { return a.err }
func (a *ScalarAggregate) Close() error                 { return a.child.Close() }

// GroupedAggregate computes per-group statistics over its child, then
// yields one row per group in ascending group-key order (spec §4.4).
type GroupedAggregate struct {
	child     Iterator
	aggIdx    int
	groupIdx  int
	op        AggOp
	attrType  value.Type
	groupType value.Type

	attrs value.Descriptor
	rows  []groupRow
	pos   int
	err   error
	built bool
}

type groupRow struct {
	group value.Value
	agg   value.Value
}

func NewGroupedAggregate(child Iterator, attr, groupAttr string, op AggOp) (*GroupedAggregate, error) {
	full := child.Attributes()
	idx := full.IndexOf(attr)
	if idx < 0 {
		return nil, xerrors.New(xerrors.Logical, "query.Aggregate: unknown attribute "+attr)
	}
	gidx := full.IndexOf(groupAttr)
	if gidx < 0 {
		return nil, xerrors.New(xerrors.Logical, "query.Aggregate: unknown group attribute "+groupAttr)
	}
	t := aggResultType(op, full[idx].Type)
	attrs := value.Descriptor{
		{Name: groupAttr, Type: full[gidx].Type, Valid: true},
		{Name: aggResultName(op, attr), Type: t, Valid: true},
	}
	return &GroupedAggregate{child: child, aggIdx: idx, groupIdx: gidx, op: op, attrType: full[idx].Type, groupType: full[gidx].Type, attrs: attrs}, nil
}

func (a *GroupedAggregate) build() error {
	type key struct {
		i    int32
		r    float32
		s    string
		t    value.Type
		null bool
	}
	groups := make(map[key]*stats)
	order := make(map[key]value.Value)

	for a.child.Next() {
		tuple := a.child.Tuple()
		gv := tuple[a.groupIdx]
		var k key
		k.t = gv.Type
		k.null = gv.IsNull
		switch gv.Type {
		case value.IntType:
			k.i = gv.Int
		case value.RealType:
			k.r = gv.Real
		case value.VarCharType:
			k.s = string(gv.Text)
		}
		s, ok := groups[k]
		if !ok {
			s = &stats{}
			groups[k] = s
			order[k] = gv
		}
		s.add(tuple[a.aggIdx])
	}
	if err := a.child.Err(); err != nil {
		return err
	}

	rows := make([]groupRow, 0, len(groups))
	for k, s := range groups {
		rows = append(rows, groupRow{group: order[k], agg: s.result(a.op, a.attrType)})
	}
	sort.Slice(rows, func(i, j int) bool { return value.Compare(rows[i].group, rows[j].group) < 0 })
	a.rows = rows
	a.built = true
	return nil
}

func (a *GroupedAggregate) Next() bool {
	if a.err != nil {
		return false
	}
	if !a.built {
		if err := a.build(); err != nil {
			a.err = err
			return false
		}
	}
	if a.pos >= len(a.rows) {
		return false
	}
	a.pos++
	return true
}

func (a *GroupedAggregate) Tuple() []value.Value {
	r := a.rows[a.pos-1]
	return []value.Value{r.group, r.agg}
}

func (a *GroupedAggregate) Attributes() value.Descriptor { return a.attrs }
func (a *GroupedAggregate) Err() error                   { return a.err }
func (a *GroupedAggregate) Close() error                 { return a.child.Close() }
