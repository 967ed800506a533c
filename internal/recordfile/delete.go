package recordfile

import (
	"github.com/relstore/pagedengine/internal/value"
)

// Delete tombstones the record at rid, freeing its slot for reuse. If
// rid has been forwarded, both the forwarder and the record it points
// to are freed (forwarding is single-hop, so there is never more than
// one extra slot to clean up).
func (f *File) Delete(rid value.RID) error {
	loc, err := f.resolveLocation(rid)
	if err != nil {
		return err
	}
	if err := f.freeSlot(loc.Page, loc.Slot); err != nil {
		return err
	}
	if loc.Forwarded {
		if err := f.freeSlot(loc.OriginPage, loc.OriginSlot); err != nil {
			return err
		}
	}
	return nil
}

func (f *File) freeSlot(page int32, slotIdx uint16) error {
	buf, err := f.pf.ReadPage(page)
	if err != nil {
		return err
	}
	s := getSlot(buf, int(slotIdx))
	if s.offset == slotOffsetFree {
		return nil
	}
	recEnd, dirEnd, freeSlots := getTrailer(buf)
	shiftTailLeft(buf, recEnd, int(s.offset), int(s.length))
	recEnd -= s.length
	s.offset = slotOffsetFree
	s.length = 0
	s.flag = slotFlagOK
	s.version = 0
	setSlot(buf, int(slotIdx), s)
	freeSlots++
	setTrailer(buf, recEnd, dirEnd, freeSlots)
	if err := f.pf.WritePage(page, buf); err != nil {
		return err
	}
	f.updateFreeSpaceEntry(page, buf)
	return nil
}
