package recordfile

import (
	"github.com/relstore/pagedengine/internal/value"
)

// Update overwrites the tuple at rid with values, re-encoded under the
// table's current schema. Three cases, per spec §4.2:
//   - the new record is no larger than the old one: rewrite in place,
//     shrinking the tail if it's smaller;
//   - the new record grows but still fits in the page's free space:
//     shift the tail right and grow in place;
//   - otherwise: reclaim the old slot's payload, insert the new record
//     wherever it fits (possibly a different page), and leave a
//     forwarding tombstone at the original slot so rid keeps working.
//
// Updating a record that is itself a forwarder collapses the old
// forwarder first: forwarding is single-hop, never chained.
func (f *File) Update(rid value.RID, values []value.Value) error {
	desc, ver, err := f.currentDescriptor()
	if err != nil {
		return err
	}
	rec, err := value.FormatPhysical(desc, values)
	if err != nil {
		return err
	}

	loc, err := f.resolveLocation(rid)
	if err != nil {
		return err
	}

	buf, err := f.pf.ReadPage(loc.Page)
	if err != nil {
		return err
	}
	s := getSlot(buf, int(loc.Slot))
	recEnd, dirEnd, freeSlots := getTrailer(buf)

	switch {
	case len(rec) <= int(s.length):
		shrink := int(s.length) - len(rec)
		copy(buf[s.offset:int(s.offset)+len(rec)], rec)
		if shrink > 0 {
			shiftTailLeft(buf, recEnd, int(s.offset)+len(rec), shrink)
			recEnd -= uint16(shrink)
		}
		s.length = uint16(len(rec))
		s.version = uint16(ver)
		setSlot(buf, int(loc.Slot), s)
		setTrailer(buf, recEnd, dirEnd, freeSlots)
		if err := f.pf.WritePage(loc.Page, buf); err != nil {
			return err
		}
		f.updateFreeSpaceEntry(loc.Page, buf)
		return nil

	case int(dirEnd)-int(recEnd) >= len(rec)-int(s.length):
		grow := len(rec) - int(s.length)
		shiftTailRight(buf, recEnd, int(s.offset)+int(s.length), grow)
		copy(buf[s.offset:int(s.offset)+len(rec)], rec)
		recEnd += uint16(grow)
		s.length = uint16(len(rec))
		s.version = uint16(ver)
		setSlot(buf, int(loc.Slot), s)
		setTrailer(buf, recEnd, dirEnd, freeSlots)
		if err := f.pf.WritePage(loc.Page, buf); err != nil {
			return err
		}
		f.updateFreeSpaceEntry(loc.Page, buf)
		return nil

	default:
		return f.relocateUpdate(rid, loc, rec, uint16(ver))
	}
}

// relocateUpdate reclaims the old physical payload, places rec wherever
// it fits via the normal insert path, and turns the record's home slot
// into a forwarder pointing at the new location. The home slot is rid's
// own slot, whose payload is trimmed to the forwarder's MinRecSize bytes;
// if rid was already forwarded, the home slot is the origin of that
// forwarder and the intermediate copy's slot is freed (forwarding stays
// single-hop).
func (f *File) relocateUpdate(rid value.RID, loc location, rec []byte, version uint16) error {
	buf, err := f.pf.ReadPage(loc.Page)
	if err != nil {
		return err
	}
	s := getSlot(buf, int(loc.Slot))
	recEnd, dirEnd, freeSlots := getTrailer(buf)
	if loc.Forwarded {
		shiftTailLeft(buf, recEnd, int(s.offset), int(s.length))
		recEnd -= uint16(s.length)
		s.offset = slotOffsetFree
		s.length = 0
		freeSlots++
	} else {
		trim := int(s.length) - value.MinRecSize
		shiftTailLeft(buf, recEnd, int(s.offset)+value.MinRecSize, trim)
		recEnd -= uint16(trim)
		s.length = value.MinRecSize
	}
	setSlot(buf, int(loc.Slot), s)
	setTrailer(buf, recEnd, dirEnd, freeSlots)
	if err := f.pf.WritePage(loc.Page, buf); err != nil {
		return err
	}
	f.updateFreeSpaceEntry(loc.Page, buf)

	target, err := f.insertPhysical(rec, version)
	if err != nil {
		return err
	}

	homePage, homeSlot := rid.Page, rid.Slot
	if loc.Forwarded {
		homePage, homeSlot = loc.OriginPage, loc.OriginSlot
	}
	return f.writeForwarderSlot(homePage, homeSlot, target)
}

// writeForwarderSlot overwrites homePage/homeSlot's payload with a
// 6-byte forwarder pointing at target, growing or relocating the slot's
// payload within the page as needed.
func (f *File) writeForwarderSlot(homePage int32, homeSlot uint16, target value.RID) error {
	buf, err := f.pf.ReadPage(homePage)
	if err != nil {
		return err
	}
	s := getSlot(buf, int(homeSlot))
	recEnd, dirEnd, freeSlots := getTrailer(buf)

	if int(s.length) < value.MinRecSize {
		grow := value.MinRecSize - int(s.length)
		if int(dirEnd)-int(recEnd) >= grow {
			shiftTailRight(buf, recEnd, int(s.offset)+int(s.length), grow)
			recEnd += uint16(grow)
		} else {
			// Reclaim the slot's current payload, then append a fresh
			// forwarder payload at the tail. This path is reached only
			// when homePage's slot is not already a forwarder and the
			// page is otherwise packed full, which Update's own relocate
			// step (freeing a much larger record first) avoids in the
			// common case.
			shiftTailLeft(buf, recEnd, int(s.offset), int(s.length))
			recEnd -= uint16(s.length)
			s.offset = recEnd
			recEnd += value.MinRecSize
		}
		s.length = value.MinRecSize
	}
	writeForwarder(buf, int(s.offset), target)
	s.flag = slotFlagUpdated
	setSlot(buf, int(homeSlot), s)
	setTrailer(buf, recEnd, dirEnd, freeSlots)
	if err := f.pf.WritePage(homePage, buf); err != nil {
		return err
	}
	f.updateFreeSpaceEntry(homePage, buf)
	return nil
}
