// Package bptree implements the secondary-index B+tree (spec §4.3):
// one leaf or internal node per page, variable-length composite keys
// (typed value + record id), split/merge rebalancing with a
// recursion-stack parent (no parent pointers persisted), linked leaves,
// and a range-scan iterator that tolerates concurrent mutation between
// calls.
package bptree

import (
	"encoding/binary"

	"github.com/relstore/pagedengine/internal/pageio"
	"github.com/relstore/pagedengine/internal/value"
)

const (
	pageSize = pageio.PageSize

	// trailer: free_space(2) entries(2) node_type(2) last_offset(2)
	// page_num(4) sibling_page_num(4)
	trailerSize = 16

	nodeInternal uint16 = 0
	nodeLeaf     uint16 = 1

	noSibling int32 = -1
)

// dataCapacity is the number of bytes available to entries before the
// trailer.
const dataCapacity = pageSize - trailerSize

type trailer struct {
	freeSpace  uint16
	entries    uint16
	nodeType   uint16
	lastOffset uint16
	pageNum    int32
	sibling    int32
}

func getTrailer(buf []byte) trailer {
	o := pageSize - trailerSize
	return trailer{
		freeSpace:  binary.LittleEndian.Uint16(buf[o:]),
		entries:    binary.LittleEndian.Uint16(buf[o+2:]),
		nodeType:   binary.LittleEndian.Uint16(buf[o+4:]),
		lastOffset: binary.LittleEndian.Uint16(buf[o+6:]),
		pageNum:    int32(binary.LittleEndian.Uint32(buf[o+8:])),
		sibling:    int32(binary.LittleEndian.Uint32(buf[o+12:])),
	}
}

func setTrailer(buf []byte, t trailer) {
	o := pageSize - trailerSize
	binary.LittleEndian.PutUint16(buf[o:], t.freeSpace)
	binary.LittleEndian.PutUint16(buf[o+2:], t.entries)
	binary.LittleEndian.PutUint16(buf[o+4:], t.nodeType)
	binary.LittleEndian.PutUint16(buf[o+6:], t.lastOffset)
	binary.LittleEndian.PutUint32(buf[o+8:], uint32(t.pageNum))
	binary.LittleEndian.PutUint32(buf[o+12:], uint32(t.sibling))
}

// initLeaf stamps buf as a fresh, empty leaf node for page pageNum.
func initLeaf(buf []byte, pageNum int32) {
	for i := range buf {
		buf[i] = 0
	}
	setTrailer(buf, trailer{freeSpace: dataCapacity, entries: 0, nodeType: nodeLeaf, lastOffset: 0, pageNum: pageNum, sibling: noSibling})
}

// initInternal stamps buf as a fresh internal node with a single child
// pointer and no keys.
func initInternal(buf []byte, pageNum int32, onlyChild int32) {
	for i := range buf {
		buf[i] = 0
	}
	binary.LittleEndian.PutUint32(buf[0:4], uint32(onlyChild))
	setTrailer(buf, trailer{freeSpace: uint16(dataCapacity - 4), entries: 0, nodeType: nodeInternal, lastOffset: 4, pageNum: pageNum, sibling: noSibling})
}

func isLeaf(buf []byte) bool { return getTrailer(buf).nodeType == nodeLeaf }

// underFull reports whether a node's live data occupies less than half
// of its usable capacity (spec §4.3 under-full test).
func underFull(t trailer) bool { return t.freeSpace > t.lastOffset }

// leafKeys decodes every composite key stored in a leaf node, in order.
func leafKeys(buf []byte, vt value.Type) ([]value.CompositeKey, error) {
	t := getTrailer(buf)
	keys := make([]value.CompositeKey, 0, t.entries)
	off := 0
	for i := uint16(0); i < t.entries; i++ {
		k, n, err := value.DecodeKey(vt, buf[off:t.lastOffset])
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
		off += n
	}
	return keys, nil
}

// internalEntries decodes an internal node's interleaved child-pointer
// and key sequence: len(children) == len(keys)+1.
func internalEntries(buf []byte, vt value.Type) (children []int32, keys []value.CompositeKey, err error) {
	t := getTrailer(buf)
	off := 0
	children = make([]int32, 0, t.entries+1)
	keys = make([]value.CompositeKey, 0, t.entries)
	children = append(children, int32(binary.LittleEndian.Uint32(buf[off:])))
	off += 4
	for i := uint16(0); i < t.entries; i++ {
		k, n, derr := value.DecodeKey(vt, buf[off:t.lastOffset])
		if derr != nil {
			return nil, nil, derr
		}
		keys = append(keys, k)
		off += n
		child := int32(binary.LittleEndian.Uint32(buf[off:]))
		children = append(children, child)
		off += 4
	}
	return children, keys, nil
}

// writeLeaf re-serializes a full key list into buf, preserving pageNum
// and sibling.
func writeLeaf(buf []byte, pageNum int32, sibling int32, keys []value.CompositeKey) {
	for i := range buf {
		buf[i] = 0
	}
	off := 0
	for _, k := range keys {
		tmp := k.Encode(nil)
		copy(buf[off:], tmp)
		off += len(tmp)
	}
	setTrailer(buf, trailer{
		freeSpace:  uint16(dataCapacity - off),
		entries:    uint16(len(keys)),
		nodeType:   nodeLeaf,
		lastOffset: uint16(off),
		pageNum:    pageNum,
		sibling:    sibling,
	})
}

// writeInternal re-serializes a full (children, keys) list into buf.
func writeInternal(buf []byte, pageNum int32, children []int32, keys []value.CompositeKey) {
	for i := range buf {
		buf[i] = 0
	}
	off := 0
	var cbuf [4]byte
	binary.LittleEndian.PutUint32(cbuf[:], uint32(children[0]))
	copy(buf[off:], cbuf[:])
	off += 4
	for i, k := range keys {
		tmp := k.Encode(nil)
		copy(buf[off:], tmp)
		off += len(tmp)
		binary.LittleEndian.PutUint32(cbuf[:], uint32(children[i+1]))
		copy(buf[off:], cbuf[:])
		off += 4
	}
	setTrailer(buf, trailer{
		freeSpace:  uint16(dataCapacity - off),
		entries:    uint16(len(keys)),
		nodeType:   nodeInternal,
		lastOffset: uint16(off),
		pageNum:    pageNum,
		sibling:    noSibling,
	})
}

// childForKey implements the internal-node descent rule (spec §4.3
// insert step 1): the first child whose bounding key is >= key, or the
// rightmost child if none is.
func childForKey(children []int32, keys []value.CompositeKey, key value.CompositeKey) int32 {
	for i, k := range keys {
		if value.CompareKey(k, key) >= 0 {
			return children[i]
		}
	}
	return children[len(children)-1]
}
