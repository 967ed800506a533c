package query

import (
	"github.com/relstore/pagedengine/internal/value"
	"github.com/relstore/pagedengine/internal/xerrors"
)

// IndexNestedLoopJoin probes an index scan with every left tuple's join
// value, re-initializing the index scan as an equality range each time;
// the comparator may be any of =, <, <=, >, >=, != and is rechecked
// against each candidate the index range produces (spec §4.4).
type IndexNestedLoopJoin struct {
	left      Iterator
	right     *IndexScan
	leftAttr  string
	rightAttr string
	op        value.CompOp

	leftAttrs, rightAttrs, outAttrs value.Descriptor
	leftTuple                       []value.Value
	probing                         bool

	cur []value.Value
	err error
}

func NewIndexNestedLoopJoin(left Iterator, right *IndexScan, leftAttr, rightAttr string, op value.CompOp) (*IndexNestedLoopJoin, error) {
	leftAttrs := left.Attributes()
	if leftAttrs.IndexOf(leftAttr) < 0 {
		return nil, xerrors.New(xerrors.Logical, "query.IndexNestedLoopJoin: unknown left attribute "+leftAttr)
	}
	rightAttrs := right.Attributes()
	if rightAttrs.IndexOf(rightAttr) < 0 {
		return nil, xerrors.New(xerrors.Logical, "query.IndexNestedLoopJoin: unknown right attribute "+rightAttr)
	}
	out := make(value.Descriptor, 0, len(leftAttrs)+len(rightAttrs))
	out = append(out, leftAttrs...)
	out = append(out, rightAttrs...)
	return &IndexNestedLoopJoin{left: left, right: right, leftAttr: leftAttr, rightAttr: rightAttr, op: op, leftAttrs: leftAttrs, rightAttrs: rightAttrs, outAttrs: out}, nil
}

func (j *IndexNestedLoopJoin) Next() bool {
	if j.err != nil {
		return false
	}
	leftIdx := j.leftAttrs.IndexOf(j.leftAttr)
	rightIdx := j.rightAttrs.IndexOf(j.rightAttr)
	for {
		if j.probing {
			for j.right.Next() {
				rv := j.right.Tuple()
				if !value.Eval(j.op, j.leftTuple[leftIdx], rv[rightIdx]) {
					continue
				}
				combined := make([]value.Value, 0, len(j.leftAttrs)+len(j.rightAttrs))
				combined = append(combined, j.leftTuple...)
				combined = append(combined, rv...)
				j.cur = combined
				return true
			}
			if err := j.right.Err(); err != nil {
				j.err = err
				return false
			}
			j.probing = false
		}
		if !j.left.Next() {
			j.err = j.left.Err()
			return false
		}
		j.leftTuple = j.left.Tuple()
		if j.leftTuple[leftIdx].IsNull {
			continue
		}
		j.right.Reinit(j.leftTuple[leftIdx])
		j.probing = true
	}
}

func (j *IndexNestedLoopJoin) Tuple() []value.Value         { return j.cur }
func (j *IndexNestedLoopJoin) Attributes() value.Descriptor { return j.outAttrs }
func (j *IndexNestedLoopJoin) Err() error                   { return j.err }
func (j *IndexNestedLoopJoin) Close() error {
	err1 := j.left.Close()
	err2 := j.right.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
