package value

import (
	"encoding/binary"

	"github.com/relstore/pagedengine/internal/xerrors"
)

// FormatPhysical builds a record's on-disk slotted-page form (spec §3):
//
//	| attr_end_offsets[A] : 2B each | concatenated attribute values |
//
// Each offset is NullPoint for a null attribute, or the one-past-end byte
// offset (measured from the start of the record, i.e. including the
// offset table) of that attribute's value. The result is padded to at
// least MinRecSize bytes so there is always room for a forwarding
// tombstone.
func FormatPhysical(d Descriptor, values []Value) ([]byte, error) {
	if len(d) != len(values) {
		return nil, xerrors.New(xerrors.Logical, "value.FormatPhysical")
	}
	offsetTableSize := 2 * len(d)
	buf := make([]byte, offsetTableSize)
	cursor := offsetTableSize
	for i, v := range values {
		if v.IsNull {
			binary.LittleEndian.PutUint16(buf[2*i:], NullPoint)
			continue
		}
		buf = v.Encode(buf)
		cursor += v.Size()
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(cursor))
	}
	for len(buf) < MinRecSize {
		buf = append(buf, 0)
	}
	return buf, nil
}

// ParsePhysical reads the values described by d back out of a record
// built by FormatPhysical.
func ParsePhysical(d Descriptor, buf []byte) ([]Value, error) {
	offsetTableSize := 2 * len(d)
	if len(buf) < offsetTableSize {
		return nil, xerrors.New(xerrors.Corruption, "value.ParsePhysical")
	}
	values := make([]Value, len(d))
	cursor := offsetTableSize
	for i, a := range d {
		end := binary.LittleEndian.Uint16(buf[2*i:])
		if end == NullPoint {
			values[i] = NullValue(a.Type)
			continue
		}
		if int(end) > len(buf) || int(end) < cursor {
			return nil, xerrors.New(xerrors.Corruption, "value.ParsePhysical")
		}
		v, n, err := Decode(a.Type, buf[cursor:end])
		if err != nil {
			return nil, err
		}
		if cursor+n != int(end) {
			return nil, xerrors.New(xerrors.Corruption, "value.ParsePhysical")
		}
		values[i] = v
		cursor = int(end)
	}
	return values, nil
}

// EncodeWire builds the caller-facing record form (spec §6):
//
//	| null_bitmap | values |
//
// null_bitmap is ceil(A/8) bytes; bit i (MSB of byte 0 is attribute 0)
// set means attribute i is null. Null values are skipped entirely in the
// values section.
func EncodeWire(d Descriptor, values []Value) ([]byte, error) {
	if len(d) != len(values) {
		return nil, xerrors.New(xerrors.Logical, "value.EncodeWire")
	}
	bitmapLen := (len(d) + 7) / 8
	buf := make([]byte, bitmapLen)
	for i, v := range values {
		if v.IsNull {
			buf[i/8] |= 1 << uint(7-i%8)
		}
	}
	for i, v := range values {
		if !v.IsNull {
			buf = v.Encode(buf)
		}
	}
	return buf, nil
}

// DecodeWire is the inverse of EncodeWire.
func DecodeWire(d Descriptor, buf []byte) ([]Value, error) {
	bitmapLen := (len(d) + 7) / 8
	if len(buf) < bitmapLen {
		return nil, xerrors.New(xerrors.Corruption, "value.DecodeWire")
	}
	bitmap := buf[:bitmapLen]
	cursor := bitmapLen
	values := make([]Value, len(d))
	for i, a := range d {
		isNull := bitmap[i/8]&(1<<uint(7-i%8)) != 0
		if isNull {
			values[i] = NullValue(a.Type)
			continue
		}
		if cursor > len(buf) {
			return nil, xerrors.New(xerrors.Corruption, "value.DecodeWire")
		}
		v, n, err := Decode(a.Type, buf[cursor:])
		if err != nil {
			return nil, err
		}
		values[i] = v
		cursor += n
	}
	return values, nil
}
