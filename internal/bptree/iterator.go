package bptree

import (
	"sort"

	"github.com/relstore/pagedengine/internal/value"
)

// RangeIterator walks composite keys in ascending order between
// optional inclusive/exclusive bounds on the value component (spec
// §4.3 range-scan iterator). It tolerates mutation of the tree between
// Next calls: if the tree changed, the next call re-descends from the
// root and resumes strictly after the last key it returned.
type RangeIterator struct {
	t *BTree

	lowValue      *value.Value
	lowInclusive  bool
	highValue     *value.Value
	highInclusive bool

	leafPage int32
	leafKeys []value.CompositeKey
	pos      int

	last    *value.CompositeKey
	started bool
	done    bool
	err     error

	curKey value.CompositeKey
}

// RangeScan starts a new bounded scan. A nil bound is unbounded on that
// side.
func (t *BTree) RangeScan(lowValue *value.Value, lowInclusive bool, highValue *value.Value, highInclusive bool) *RangeIterator {
	return &RangeIterator{t: t, lowValue: lowValue, lowInclusive: lowInclusive, highValue: highValue, highInclusive: highInclusive}
}

// Next advances the iterator, returning false at the end of the range
// or on error (see Err).
func (it *RangeIterator) Next() bool {
	if it.done || it.err != nil {
		return false
	}
	if !it.started || it.t.changedSinceLastCheck() {
		if err := it.descend(); err != nil {
			it.err = err
			return false
		}
		it.started = true
	}
	for {
		for it.pos < len(it.leafKeys) {
			k := it.leafKeys[it.pos]
			it.pos++
			if it.last != nil && value.CompareKey(k, *it.last) <= 0 {
				continue
			}
			if !it.withinHigh(k.Value) {
				it.done = true
				return false
			}
			it.curKey = k
			it.last = &k
			return true
		}
		next, err := it.nextLeaf()
		if err != nil {
			it.err = err
			return false
		}
		if next == noSibling {
			it.done = true
			return false
		}
		if err := it.loadLeaf(next); err != nil {
			it.err = err
			return false
		}
	}
}

func (it *RangeIterator) nextLeaf() (int32, error) {
	buf, err := it.t.pf.ReadPage(it.leafPage)
	if err != nil {
		return 0, err
	}
	return getTrailer(buf).sibling, nil
}

func (it *RangeIterator) loadLeaf(page int32) error {
	buf, err := it.t.pf.ReadPage(page)
	if err != nil {
		return err
	}
	keys, err := leafKeys(buf, it.t.keyType)
	if err != nil {
		return err
	}
	it.leafPage = page
	it.leafKeys = keys
	it.pos = 0
	return nil
}

// descend positions the iterator at the leaf holding the current
// resume point: the low bound if nothing has been returned yet, or just
// past the last returned key otherwise.
func (it *RangeIterator) descend() error {
	root := it.t.rootPage()
	if root == emptyRoot {
		it.done = true
		return nil
	}

	unbounded := it.last == nil && it.lowValue == nil
	search, _ := it.resumeKey()
	cur := root
	for {
		buf, err := it.t.pf.ReadPage(cur)
		if err != nil {
			return err
		}
		if isLeaf(buf) {
			if err := it.loadLeaf(cur); err != nil {
				return err
			}
			return it.seekResumePoint(search, unbounded)
		}
		children, keys, err := internalEntries(buf, it.t.keyType)
		if err != nil {
			return err
		}
		if unbounded {
			cur = children[0]
			continue
		}
		cur = childForKey(children, keys, search)
	}
}

// seekResumePoint advances pos within the just-loaded leaf to the first
// entry at or after an inclusive low bound (the inclusive RID sentinel
// makes every entry with the bound's value compare equal to search), or
// strictly after search otherwise, so the leaf a descend lands on is
// never scanned from its first stored entry regardless of the resume
// point — childForKey only picks the right leaf, it does not position
// within it.
func (it *RangeIterator) seekResumePoint(search value.CompositeKey, unbounded bool) error {
	if unbounded {
		return nil
	}
	inclusive := it.last == nil && it.lowInclusive
	it.pos = sort.Search(len(it.leafKeys), func(i int) bool {
		c := value.CompareKey(it.leafKeys[i], search)
		return c > 0 || (inclusive && c == 0)
	})
	return nil
}

// resumeKey builds the composite search key used to position the next
// descent: the low bound (using the inclusive/exclusive RID sentinel so
// descent lands exactly on the first qualifying entry), or, if entries
// have already been returned, the last returned key (duplicates are
// filtered out after descent by the <= last check in Next). The bool
// return is false only when there is no bound at all, in which case
// descend always follows the leftmost child instead.
func (it *RangeIterator) resumeKey() (value.CompositeKey, bool) {
	if it.last != nil {
		return *it.last, true
	}
	if it.lowValue == nil {
		return value.CompositeKey{}, false
	}
	rid := value.InclusiveRID
	if !it.lowInclusive {
		rid = value.ExclusiveRID
	}
	return value.CompositeKey{Value: *it.lowValue, RID: rid}, true
}

func (it *RangeIterator) withinHigh(v value.Value) bool {
	if it.highValue == nil {
		return true
	}
	c := value.Compare(v, *it.highValue)
	if it.highInclusive {
		return c <= 0
	}
	return c < 0
}

// Key returns the current composite key.
func (it *RangeIterator) Key() value.CompositeKey { return it.curKey }

// Err returns any error that stopped the scan early.
func (it *RangeIterator) Err() error { return it.err }

// Close releases iterator resources; the B+tree's page cache is shared
// and owned by the engine, so there is nothing further to release.
func (it *RangeIterator) Close() error {
	it.done = true
	return nil
}
