// Package recordfile implements the slotted-page record file (spec §4.2):
// variable-length records with an offset table, insert/read/update/delete,
// tombstone forwarding for updates that no longer fit their page, schema-
// version stamping, and a record-scan iterator.
package recordfile

import (
	"encoding/binary"

	"github.com/relstore/pagedengine/internal/pageio"
	"github.com/relstore/pagedengine/internal/value"
)

const (
	pageSize    = pageio.PageSize
	trailerSize = 6 // rec_end(2) + dir_end(2) + free_slots(2)
	slotSize    = 8 // offset(2) length(2) flag(2) version(2)

	slotFlagOK      = 0
	slotFlagUpdated = value.Updated
	slotOffsetFree  = value.Deleted
)

// initPage stamps an empty slotted-page trailer into buf (must be
// pageSize bytes, freshly zeroed or reused).
func initPage(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
	setTrailer(buf, 0, pageSize-trailerSize, 0)
}

func getTrailer(buf []byte) (recEnd, dirEnd, freeSlots uint16) {
	recEnd = binary.LittleEndian.Uint16(buf[pageSize-2:])
	dirEnd = binary.LittleEndian.Uint16(buf[pageSize-4:])
	freeSlots = binary.LittleEndian.Uint16(buf[pageSize-6:])
	return
}

func setTrailer(buf []byte, recEnd, dirEnd, freeSlots uint16) {
	binary.LittleEndian.PutUint16(buf[pageSize-2:], recEnd)
	binary.LittleEndian.PutUint16(buf[pageSize-4:], dirEnd)
	binary.LittleEndian.PutUint16(buf[pageSize-6:], freeSlots)
}

// numSlots derives the slot count from dirEnd, since the slot array
// always runs from dirEnd to the trailer with no gaps.
func numSlots(dirEnd uint16) int {
	return (pageSize - trailerSize - int(dirEnd)) / slotSize
}

func slotOffset(i int) int {
	return pageSize - trailerSize - (i+1)*slotSize
}

type slot struct {
	offset, length, flag, version uint16
}

func getSlot(buf []byte, i int) slot {
	o := slotOffset(i)
	return slot{
		offset:  binary.LittleEndian.Uint16(buf[o:]),
		length:  binary.LittleEndian.Uint16(buf[o+2:]),
		flag:    binary.LittleEndian.Uint16(buf[o+4:]),
		version: binary.LittleEndian.Uint16(buf[o+6:]),
	}
}

func setSlot(buf []byte, i int, s slot) {
	o := slotOffset(i)
	binary.LittleEndian.PutUint16(buf[o:], s.offset)
	binary.LittleEndian.PutUint16(buf[o+2:], s.length)
	binary.LittleEndian.PutUint16(buf[o+4:], s.flag)
	binary.LittleEndian.PutUint16(buf[o+6:], s.version)
}

// freeSpace is the byte count available for new record data, satisfying
// the invariant rec_end + free_space + trailer + slots*8 == PAGE_SIZE.
func freeSpace(buf []byte) int {
	recEnd, dirEnd, _ := getTrailer(buf)
	return int(dirEnd) - int(recEnd)
}

// findReusableSlot scans for a tombstoned (DELETED) slot, returning its
// index if one exists.
func findReusableSlot(buf []byte) (int, bool) {
	_, dirEnd, freeSlots := getTrailer(buf)
	if freeSlots == 0 {
		return 0, false
	}
	n := numSlots(dirEnd)
	for i := 0; i < n; i++ {
		if getSlot(buf, i).offset == slotOffsetFree {
			return i, true
		}
	}
	return 0, false
}

// writeForwarder encodes a (page_num, slot_num) tombstone payload at
// buf[off:off+6], the forwarding format described in spec §3/§4.2.
func writeForwarder(buf []byte, off int, target value.RID) {
	binary.LittleEndian.PutUint32(buf[off:], uint32(target.Page))
	binary.LittleEndian.PutUint16(buf[off+4:], target.Slot)
}

func readForwarder(buf []byte, off int) value.RID {
	page := int32(binary.LittleEndian.Uint32(buf[off:]))
	slotNum := binary.LittleEndian.Uint16(buf[off+4:])
	return value.RID{Page: page, Slot: slotNum}
}

// shiftTailLeft removes `amount` bytes starting at `from`, sliding every
// later byte in the record-data region down by amount and correcting
// every slot whose offset lies at or past the removed region.
func shiftTailLeft(buf []byte, recEnd uint16, from, amount int) {
	if amount == 0 {
		return
	}
	copy(buf[from:int(recEnd)-amount], buf[from+amount:recEnd])
	adjustSlotOffsets(buf, from+amount, -int32(amount))
}

// shiftTailRight opens a `amount`-byte gap at `from`, sliding later bytes
// up, and corrects slot offsets the same way.
func shiftTailRight(buf []byte, recEnd uint16, from, amount int) {
	if amount == 0 {
		return
	}
	copy(buf[from+amount:int(recEnd)+amount], buf[from:recEnd])
	adjustSlotOffsets(buf, from, int32(amount))
}

// adjustSlotOffsets rewrites every live slot whose offset is >= boundary
// by delta. Tombstoned and forwarded slots are adjusted the same way
// since their payload also lives in the record-data region.
func adjustSlotOffsets(buf []byte, boundary int, delta int32) {
	_, dirEnd, _ := getTrailer(buf)
	n := numSlots(dirEnd)
	for i := 0; i < n; i++ {
		s := getSlot(buf, i)
		if s.offset == slotOffsetFree {
			continue
		}
		if int(s.offset) >= boundary {
			s.offset = uint16(int32(s.offset) + delta)
			setSlot(buf, i, s)
		}
	}
}
