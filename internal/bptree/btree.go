package bptree

import (
	"encoding/binary"

	"go.uber.org/zap"

	"github.com/relstore/pagedengine/internal/pageio"
	"github.com/relstore/pagedengine/internal/value"
	"github.com/relstore/pagedengine/internal/xerrors"
)

// HeaderPages is H for index files (spec §3): one header page.
const HeaderPages = 1

// emptyRoot is the root-pointer sentinel for a tree with no pages yet
// (spec §4.3 step 6): "the tree becomes empty (root pointer = sentinel
// INT_MAX)".
const emptyRoot = value.IntMax

// BTree is a secondary index over composite keys of a single value
// type, backed by one paged file per index.
type BTree struct {
	pf      *pageio.File
	keyType value.Type
	log     *zap.Logger

	// changed is set on every insert/delete and consulted by open range
	// iterators to decide whether they must re-descend from the root
	// (spec §4.3 range-scan iterator).
	changed bool
}

// Create makes a new, empty index file over keys of type vt.
func Create(path string, vt value.Type, cache *pageio.Cache, log *zap.Logger) (*BTree, error) {
	if log == nil {
		log = zap.NewNop()
	}
	pf, err := pageio.Create(path, HeaderPages, cache, log)
	if err != nil {
		return nil, err
	}
	t := &BTree{pf: pf, keyType: vt, log: log}
	t.setRootPage(emptyRoot)
	t.setKeyType(vt)
	return t, nil
}

// Open opens an existing index file, recovering its key type from the
// header.
func Open(path string, cache *pageio.Cache, log *zap.Logger) (*BTree, error) {
	if log == nil {
		log = zap.NewNop()
	}
	pf, err := pageio.Open(path, HeaderPages, cache, log)
	if err != nil {
		return nil, err
	}
	t := &BTree{pf: pf, log: log}
	t.keyType = value.Type(pf.HeaderRegion()[4])
	return t, nil
}

func (t *BTree) Close() error { return t.pf.Close() }

func (t *BTree) rootPage() int32 {
	return int32(binary.LittleEndian.Uint32(t.pf.HeaderRegion()[0:4]))
}

func (t *BTree) setRootPage(p int32) {
	binary.LittleEndian.PutUint32(t.pf.HeaderRegion()[0:4], uint32(p))
}

func (t *BTree) setKeyType(vt value.Type) {
	t.pf.HeaderRegion()[4] = byte(vt)
}

// changedSinceLastCheck reports and clears the dirty flag consulted by range
// iterators to decide whether to re-descend from the root.
func (t *BTree) changedSinceLastCheck() bool {
	c := t.changed
	t.changed = false
	return c
}

func (t *BTree) allocPage() (int32, []byte, error) {
	buf := make([]byte, pageSize)
	p, err := t.pf.AppendPage(buf)
	if err != nil {
		return 0, nil, err
	}
	return p, buf, nil
}

// Insert adds key to the tree (a multiset: duplicate values are fine,
// the RID component keeps entries distinct).
func (t *BTree) Insert(key value.CompositeKey) error {
	root := t.rootPage()
	if root == emptyRoot {
		p, buf, err := t.allocPage()
		if err != nil {
			return err
		}
		initLeaf(buf, p)
		writeLeaf(buf, p, noSibling, []value.CompositeKey{key})
		if err := t.pf.WritePage(p, buf); err != nil {
			return err
		}
		t.setRootPage(p)
		t.changed = true
		return nil
	}

	pushKey, newChild, err := t.insertInto(root, key)
	if err != nil {
		return err
	}
	if pushKey != nil {
		p, buf, err := t.allocPage()
		if err != nil {
			return err
		}
		writeInternal(buf, p, []int32{root, newChild}, []value.CompositeKey{*pushKey})
		if err := t.pf.WritePage(p, buf); err != nil {
			return err
		}
		t.setRootPage(p)
	}
	t.changed = true
	return nil
}

// Delete removes the exact (value, rid) entry key from the tree.
func (t *BTree) Delete(key value.CompositeKey) error {
	root := t.rootPage()
	if root == emptyRoot {
		return xerrors.New(xerrors.NotFound, "bptree.Delete")
	}
	if err := t.deleteFrom(root, key); err != nil {
		return err
	}
	t.changed = true

	buf, err := t.pf.ReadPage(t.rootPage())
	if err != nil {
		return err
	}
	tr := getTrailer(buf)
	if tr.nodeType == nodeLeaf && tr.entries == 0 {
		t.setRootPage(emptyRoot)
	} else if tr.nodeType == nodeInternal && tr.entries == 0 {
		children, _, err := internalEntries(buf, t.keyType)
		if err != nil {
			return err
		}
		t.setRootPage(children[0])
	}
	return nil
}

func childIndexForKey(children []int32, keys []value.CompositeKey, key value.CompositeKey) int {
	for i, k := range keys {
		if value.CompareKey(k, key) >= 0 {
			return i
		}
	}
	return len(children) - 1
}
