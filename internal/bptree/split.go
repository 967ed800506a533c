package bptree

import (
	"sort"

	"github.com/relstore/pagedengine/internal/value"
)

// insertInto descends into pageNum and inserts key, splitting nodes on
// overflow (spec §4.3 insert). A non-nil return key means pageNum's
// subtree split and the caller (the parent frame, or Insert for the
// root) must link in newChild under that separator.
func (t *BTree) insertInto(pageNum int32, key value.CompositeKey) (*value.CompositeKey, int32, error) {
	buf, err := t.pf.ReadPage(pageNum)
	if err != nil {
		return nil, 0, err
	}

	if isLeaf(buf) {
		return t.insertIntoLeaf(pageNum, buf, key)
	}

	children, keys, err := internalEntries(buf, t.keyType)
	if err != nil {
		return nil, 0, err
	}
	idx := childIndexForKey(children, keys, key)
	pushKey, newChild, err := t.insertInto(children[idx], key)
	if err != nil || pushKey == nil {
		return nil, 0, err
	}

	newKeys := insertKeyAt(keys, idx, *pushKey)
	newChildren := insertChildAt(children, idx+1, newChild)

	if internalSize(newChildren, newKeys) <= dataCapacity {
		writeInternal(buf, pageNum, newChildren, newKeys)
		return nil, 0, t.pf.WritePage(pageNum, buf)
	}
	return t.splitInternal(pageNum, newChildren, newKeys)
}

func (t *BTree) insertIntoLeaf(pageNum int32, buf []byte, key value.CompositeKey) (*value.CompositeKey, int32, error) {
	keys, err := leafKeys(buf, t.keyType)
	if err != nil {
		return nil, 0, err
	}
	keys = insertSorted(keys, key)

	if leafSize(keys) <= dataCapacity {
		tr := getTrailer(buf)
		writeLeaf(buf, pageNum, tr.sibling, keys)
		return nil, 0, t.pf.WritePage(pageNum, buf)
	}
	return t.splitLeaf(pageNum, buf, keys)
}

// splitLeaf divides keys near the midpoint by byte size, copies the
// first key of the new (right) leaf up to the parent, and links the two
// leaves as siblings (spec §4.3 step 3).
func (t *BTree) splitLeaf(pageNum int32, buf []byte, keys []value.CompositeKey) (*value.CompositeKey, int32, error) {
	mid := splitPointByBytes(keys)
	left, right := keys[:mid], keys[mid:]

	oldSibling := getTrailer(buf).sibling

	newPage, rightBuf, err := t.allocPage()
	if err != nil {
		return nil, 0, err
	}
	writeLeaf(rightBuf, newPage, oldSibling, right)
	if err := t.pf.WritePage(newPage, rightBuf); err != nil {
		return nil, 0, err
	}

	writeLeaf(buf, pageNum, newPage, left)
	if err := t.pf.WritePage(pageNum, buf); err != nil {
		return nil, 0, err
	}

	pushKey := right[0]
	return &pushKey, newPage, nil
}

// splitInternal divides (children, keys) near the midpoint; the median
// key is moved up, not copied (spec §4.3 step 4).
func (t *BTree) splitInternal(pageNum int32, children []int32, keys []value.CompositeKey) (*value.CompositeKey, int32, error) {
	mid := len(keys) / 2
	median := keys[mid]

	leftKeys, rightKeys := keys[:mid], keys[mid+1:]
	leftChildren, rightChildren := children[:mid+1], children[mid+1:]

	newPage, rightBuf, err := t.allocPage()
	if err != nil {
		return nil, 0, err
	}
	writeInternal(rightBuf, newPage, rightChildren, rightKeys)
	if err := t.pf.WritePage(newPage, rightBuf); err != nil {
		return nil, 0, err
	}

	leftBuf := make([]byte, pageSize)
	writeInternal(leftBuf, pageNum, leftChildren, leftKeys)
	if err := t.pf.WritePage(pageNum, leftBuf); err != nil {
		return nil, 0, err
	}

	return &median, newPage, nil
}

func leafSize(keys []value.CompositeKey) int {
	n := 0
	for _, k := range keys {
		n += k.EncodedSize()
	}
	return n
}

func internalSize(children []int32, keys []value.CompositeKey) int {
	n := 4 * len(children)
	for _, k := range keys {
		n += k.EncodedSize()
	}
	return n
}

// splitPointByBytes returns the smallest index such that the first half
// occupies at least half of the combined byte size.
func splitPointByBytes(keys []value.CompositeKey) int {
	total := leafSize(keys)
	acc := 0
	for i, k := range keys {
		acc += k.EncodedSize()
		if acc >= total/2 {
			return i + 1
		}
	}
	return len(keys) - 1
}

func insertSorted(keys []value.CompositeKey, key value.CompositeKey) []value.CompositeKey {
	i := sort.Search(len(keys), func(i int) bool { return value.CompareKey(keys[i], key) >= 0 })
	return insertKeyAt(keys, i, key)
}

func insertKeyAt(keys []value.CompositeKey, i int, key value.CompositeKey) []value.CompositeKey {
	out := make([]value.CompositeKey, 0, len(keys)+1)
	out = append(out, keys[:i]...)
	out = append(out, key)
	out = append(out, keys[i:]...)
	return out
}

func insertChildAt(children []int32, i int, child int32) []int32 {
	out := make([]int32, 0, len(children)+1)
	out = append(out, children[:i]...)
	out = append(out, child)
	out = append(out, children[i:]...)
	return out
}

func removeKeyAt(keys []value.CompositeKey, i int) []value.CompositeKey {
	out := make([]value.CompositeKey, 0, len(keys)-1)
	out = append(out, keys[:i]...)
	out = append(out, keys[i+1:]...)
	return out
}

func removeChildAt(children []int32, i int) []int32 {
	out := make([]int32, 0, len(children)-1)
	out = append(out, children[:i]...)
	out = append(out, children[i+1:]...)
	return out
}
