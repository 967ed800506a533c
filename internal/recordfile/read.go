package recordfile

import (
	"github.com/relstore/pagedengine/internal/value"
	"github.com/relstore/pagedengine/internal/xerrors"
)

// location is a resolved physical slot: where the record bytes actually
// live, plus (when the RID was forwarded) where the forwarding tombstone
// itself lives. Forwarders are single-hop (spec §4.2), so resolving
// never needs more than one extra page read.
type location struct {
	Page, OriginPage int32
	Slot, OriginSlot uint16
	Forwarded        bool
}

func (f *File) resolveLocation(rid value.RID) (location, error) {
	buf, err := f.pf.ReadPage(rid.Page)
	if err != nil {
		return location{}, err
	}
	n := numSlots(dirEndOf(buf))
	if int(rid.Slot) >= n {
		return location{}, xerrors.New(xerrors.NotFound, "recordfile: slot out of range")
	}
	s := getSlot(buf, int(rid.Slot))
	if s.offset == slotOffsetFree {
		return location{}, xerrors.New(xerrors.NotFound, "recordfile: deleted record")
	}
	if s.flag == slotFlagUpdated {
		target := readForwarder(buf, int(s.offset))
		return location{Page: target.Page, Slot: target.Slot, OriginPage: rid.Page, OriginSlot: rid.Slot, Forwarded: true}, nil
	}
	return location{Page: rid.Page, Slot: rid.Slot}, nil
}

func dirEndOf(buf []byte) uint16 {
	_, dirEnd, _ := getTrailer(buf)
	return dirEnd
}

// readRaw returns the physical record bytes and the schema version they
// were written under.
func (f *File) readRaw(loc location) ([]byte, uint16, error) {
	buf, err := f.pf.ReadPage(loc.Page)
	if err != nil {
		return nil, 0, err
	}
	n := numSlots(dirEndOf(buf))
	if int(loc.Slot) >= n {
		return nil, 0, xerrors.New(xerrors.NotFound, "recordfile: slot out of range")
	}
	s := getSlot(buf, int(loc.Slot))
	if s.offset == slotOffsetFree {
		return nil, 0, xerrors.New(xerrors.NotFound, "recordfile: deleted record")
	}
	raw := make([]byte, s.length)
	copy(raw, buf[s.offset:int(s.offset)+int(s.length)])
	return raw, s.version, nil
}

// Read returns the tuple at rid, rewritten to conform to the table's
// current schema: columns dropped since the record's write version are
// elided, columns added since are reported NULL (spec §4.2).
func (f *File) Read(rid value.RID) ([]value.Value, error) {
	loc, err := f.resolveLocation(rid)
	if err != nil {
		return nil, err
	}
	raw, ver, err := f.readRaw(loc)
	if err != nil {
		return nil, err
	}
	return f.decodeAtVersion(raw, int(ver))
}

func (f *File) decodeAtVersion(raw []byte, ver int) ([]value.Value, error) {
	writeDesc, err := f.cat.AttributesFor(f.table, ver)
	if err != nil {
		return nil, err
	}
	vals, err := value.ParsePhysical(writeDesc, raw)
	if err != nil {
		return nil, err
	}
	if f.cat.IsSystem(f.table) {
		return vals, nil
	}
	curDesc, curVer, err := f.currentDescriptor()
	if err != nil {
		return nil, err
	}
	if curVer == ver && len(curDesc.Visible()) == len(curDesc) {
		return vals, nil
	}
	return translate(writeDesc, vals, curDesc), nil
}

// translate rewrites a tuple written under fromDesc into toDesc's
// current visible shape: matched by attribute name, missing columns
// reported NULL, dropped columns elided.
func translate(fromDesc value.Descriptor, vals []value.Value, toDesc value.Descriptor) []value.Value {
	byName := make(map[string]value.Value, len(fromDesc))
	for i, a := range fromDesc {
		if a.Valid {
			byName[a.Name] = vals[i]
		}
	}
	visible := toDesc.Visible()
	out := make([]value.Value, len(visible))
	for i, a := range visible {
		if v, ok := byName[a.Name]; ok {
			out[i] = v
		} else {
			out[i] = value.NullValue(a.Type)
		}
	}
	return out
}

// ReadAttribute reads a single named attribute of the current visible
// schema. It decodes the whole tuple through Read and returns the named
// column from it.
func (f *File) ReadAttribute(rid value.RID, name string) (value.Value, error) {
	vals, err := f.Read(rid)
	if err != nil {
		return value.Value{}, err
	}
	desc, _, err := f.currentDescriptor()
	if err != nil {
		return value.Value{}, err
	}
	idx := desc.Visible().IndexOf(name)
	if idx < 0 {
		return value.Value{}, xerrors.New(xerrors.NotFound, "recordfile.ReadAttribute")
	}
	return vals[idx], nil
}

// ReadAttributes reads several named attributes at once.
func (f *File) ReadAttributes(rid value.RID, names []string) ([]value.Value, error) {
	vals, err := f.Read(rid)
	if err != nil {
		return nil, err
	}
	desc, _, err := f.currentDescriptor()
	if err != nil {
		return nil, err
	}
	visible := desc.Visible()
	out := make([]value.Value, len(names))
	for i, n := range names {
		idx := visible.IndexOf(n)
		if idx < 0 {
			return nil, xerrors.New(xerrors.NotFound, "recordfile.ReadAttributes")
		}
		out[i] = vals[idx]
	}
	return out, nil
}
