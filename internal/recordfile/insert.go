package recordfile

import (
	"github.com/relstore/pagedengine/internal/value"
	"github.com/relstore/pagedengine/internal/xerrors"
)

// Insert formats values using the table's current schema and places the
// new record, trying the page the most recent insert landed on first
// (the last page after Open), then the free-space
// directory, then appending a fresh page (spec §4.2 insert algorithm).
func (f *File) Insert(values []value.Value) (value.RID, error) {
	desc, ver, err := f.currentDescriptor()
	if err != nil {
		return value.RID{}, err
	}
	rec, err := value.FormatPhysical(desc, values)
	if err != nil {
		return value.RID{}, err
	}
	rid, err := f.insertPhysical(rec, uint16(ver))
	if err != nil {
		return value.RID{}, err
	}
	if ver != 1 && !f.cat.IsSystem(f.table) {
		if err := f.cat.StampOnInsert(f.table, rid, ver); err != nil {
			return value.RID{}, err
		}
	}
	return rid, nil
}

func (f *File) insertPhysical(rec []byte, version uint16) (value.RID, error) {
	needIfNew := len(rec) + slotSize

	if f.lastPage >= 0 {
		if rid, ok, err := f.tryInsertOnPage(f.lastPage, rec, version); err != nil {
			return value.RID{}, err
		} else if ok {
			return rid, nil
		}
	}

	if p, ok, err := f.findFreePage(needIfNew); err != nil {
		return value.RID{}, err
	} else if ok && p != f.lastPage {
		if rid, ok2, err := f.tryInsertOnPage(p, rec, version); err != nil {
			return value.RID{}, err
		} else if ok2 {
			return rid, nil
		}
	}

	buf := make([]byte, pageSize)
	initPage(buf)
	p, err := f.pf.AppendPage(buf)
	if err != nil {
		return value.RID{}, err
	}
	rid, ok, err := f.tryInsertOnPage(p, rec, version)
	if err != nil {
		return value.RID{}, err
	}
	if !ok {
		return value.RID{}, xerrors.New(xerrors.Logical, "recordfile.Insert: record too large for an empty page")
	}
	return rid, nil
}

// tryInsertOnPage attempts to place rec on page p, returning ok=false
// (not an error) if it does not fit.
func (f *File) tryInsertOnPage(p int32, rec []byte, version uint16) (value.RID, bool, error) {
	buf, err := f.pf.ReadPage(p)
	if err != nil {
		return value.RID{}, false, err
	}

	recEnd, dirEnd, freeSlots := getTrailer(buf)
	reuseIdx, reusable := findReusableSlot(buf)
	needed := len(rec)
	if !reusable {
		needed += slotSize
	}
	if int(dirEnd)-int(recEnd) < needed {
		return value.RID{}, false, nil
	}

	copy(buf[recEnd:int(recEnd)+len(rec)], rec)

	var slotIdx int
	if reusable {
		slotIdx = reuseIdx
		freeSlots--
	} else {
		slotIdx = numSlots(dirEnd)
		dirEnd -= slotSize
	}
	setSlot(buf, slotIdx, slot{offset: recEnd, length: uint16(len(rec)), flag: slotFlagOK, version: version})

	newRecEnd := recEnd + uint16(len(rec))
	setTrailer(buf, newRecEnd, dirEnd, freeSlots)

	if err := f.pf.WritePage(p, buf); err != nil {
		return value.RID{}, false, err
	}
	f.updateFreeSpaceEntry(p, buf)
	f.lastPage = p

	return value.RID{Page: p, Slot: uint16(slotIdx)}, true, nil
}
