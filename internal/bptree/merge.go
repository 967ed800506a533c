package bptree

import (
	"github.com/relstore/pagedengine/internal/value"
	"github.com/relstore/pagedengine/internal/xerrors"
)

// frame records one step of a descent: the page visited and the child
// index taken to reach the next level. Used to fix up ancestors after a
// leaf delete without persisting parent pointers (spec §4.3: "rebalancing
// uses a recursion-stack parent").
type frame struct {
	page int32
	idx  int
}

// deleteFrom removes key from the subtree rooted at root, merging nodes
// bottom-up when deletion leaves a node under-full (spec §4.3 delete).
// Pages emptied by a merge are simply abandoned; this index has no
// free-page recycling (see design notes).
func (t *BTree) deleteFrom(root int32, key value.CompositeKey) error {
	var stack []frame
	cur := root
	for {
		buf, err := t.pf.ReadPage(cur)
		if err != nil {
			return err
		}
		if isLeaf(buf) {
			break
		}
		children, keys, err := internalEntries(buf, t.keyType)
		if err != nil {
			return err
		}
		idx := childIndexForKey(children, keys, key)
		// A key equal to separator idx lives under child idx+1: a leaf
		// split copies the right leaf's first key up as the separator.
		if idx < len(keys) && value.CompareKey(keys[idx], key) == 0 {
			idx++
		}
		stack = append(stack, frame{page: cur, idx: idx})
		cur = children[idx]
	}
	leafPage := cur

	buf, err := t.pf.ReadPage(leafPage)
	if err != nil {
		return err
	}
	keys, err := leafKeys(buf, t.keyType)
	if err != nil {
		return err
	}
	pos := findExact(keys, key)
	if pos < 0 {
		return xerrors.New(xerrors.NotFound, "bptree.Delete")
	}
	keys = removeKeyAt(keys, pos)
	tr := getTrailer(buf)
	writeLeaf(buf, leafPage, tr.sibling, keys)
	if err := t.pf.WritePage(leafPage, buf); err != nil {
		return err
	}

	if len(stack) == 0 {
		return nil
	}
	if !underFull(getTrailer(buf)) {
		return nil
	}

	parent := stack[len(stack)-1]
	pbuf, err := t.pf.ReadPage(parent.page)
	if err != nil {
		return err
	}
	pchildren, _, err := internalEntries(pbuf, t.keyType)
	if err != nil {
		return err
	}
	idx := parent.idx

	mergedIdx := -1
	if idx+1 < len(pchildren) {
		rightPage := pchildren[idx+1]
		rbuf, err := t.pf.ReadPage(rightPage)
		if err != nil {
			return err
		}
		rkeys, err := leafKeys(rbuf, t.keyType)
		if err != nil {
			return err
		}
		if leafSize(keys)+leafSize(rkeys) <= dataCapacity {
			merged := append(append([]value.CompositeKey{}, keys...), rkeys...)
			writeLeaf(buf, leafPage, getTrailer(rbuf).sibling, merged)
			if err := t.pf.WritePage(leafPage, buf); err != nil {
				return err
			}
			mergedIdx = idx
		}
	}
	if mergedIdx < 0 && idx-1 >= 0 {
		leftPage := pchildren[idx-1]
		lbuf, err := t.pf.ReadPage(leftPage)
		if err != nil {
			return err
		}
		lkeys, err := leafKeys(lbuf, t.keyType)
		if err != nil {
			return err
		}
		if leafSize(lkeys)+leafSize(keys) <= dataCapacity {
			merged := append(append([]value.CompositeKey{}, lkeys...), keys...)
			writeLeaf(lbuf, leftPage, getTrailer(buf).sibling, merged)
			if err := t.pf.WritePage(leftPage, lbuf); err != nil {
				return err
			}
			mergedIdx = idx - 1
		}
	}
	if mergedIdx < 0 {
		return nil
	}
	return t.propagateMerge(stack, mergedIdx)
}

// propagateMerge removes the separator key and drained child pointer at
// removeIdx from stack's innermost frame, then walks up checking for
// further under-full merges at each ancestor.
func (t *BTree) propagateMerge(stack []frame, removeIdx int) error {
	for level := len(stack) - 1; level >= 0; level-- {
		f := stack[level]
		buf, err := t.pf.ReadPage(f.page)
		if err != nil {
			return err
		}
		children, keys, err := internalEntries(buf, t.keyType)
		if err != nil {
			return err
		}
		newKeys := removeKeyAt(keys, removeIdx)
		newChildren := removeChildAt(children, removeIdx+1)
		writeInternal(buf, f.page, newChildren, newKeys)
		if err := t.pf.WritePage(f.page, buf); err != nil {
			return err
		}

		if level == 0 {
			return nil
		}
		if !underFull(getTrailer(buf)) {
			return nil
		}

		gp := stack[level-1]
		gbuf, err := t.pf.ReadPage(gp.page)
		if err != nil {
			return err
		}
		gchildren, gkeys, err := internalEntries(gbuf, t.keyType)
		if err != nil {
			return err
		}
		idx := gp.idx
		merged := false

		if idx+1 < len(gchildren) {
			rightPage := gchildren[idx+1]
			rbuf, err := t.pf.ReadPage(rightPage)
			if err != nil {
				return err
			}
			rchildren, rkeys, err := internalEntries(rbuf, t.keyType)
			if err != nil {
				return err
			}
			sep := gkeys[idx]
			combinedKeys := append(append(append([]value.CompositeKey{}, newKeys...), sep), rkeys...)
			combinedChildren := append(append([]int32{}, newChildren...), rchildren...)
			if internalSize(combinedChildren, combinedKeys) <= dataCapacity {
				writeInternal(buf, f.page, combinedChildren, combinedKeys)
				if err := t.pf.WritePage(f.page, buf); err != nil {
					return err
				}
				removeIdx = idx
				merged = true
			}
		}
		if !merged && idx-1 >= 0 {
			leftPage := gchildren[idx-1]
			lbuf, err := t.pf.ReadPage(leftPage)
			if err != nil {
				return err
			}
			lchildren, lkeys, err := internalEntries(lbuf, t.keyType)
			if err != nil {
				return err
			}
			sep := gkeys[idx-1]
			combinedKeys := append(append(append([]value.CompositeKey{}, lkeys...), sep), newKeys...)
			combinedChildren := append(append([]int32{}, lchildren...), newChildren...)
			if internalSize(combinedChildren, combinedKeys) <= dataCapacity {
				writeInternal(lbuf, leftPage, combinedChildren, combinedKeys)
				if err := t.pf.WritePage(leftPage, lbuf); err != nil {
					return err
				}
				removeIdx = idx - 1
				merged = true
			}
		}
		if !merged {
			return nil
		}
	}
	return nil
}

func findExact(keys []value.CompositeKey, key value.CompositeKey) int {
	for i, k := range keys {
		if value.CompareKey(k, key) == 0 && k.RID == key.RID {
			return i
		}
	}
	return -1
}
