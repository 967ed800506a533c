package value

import (
	"encoding/binary"

	"github.com/relstore/pagedengine/internal/xerrors"
)

// CompositeKey is the B+tree ordering key: (typed_value, record_id),
// primary order by value, ties broken by RID (spec §3).
type CompositeKey struct {
	Value Value
	RID   RID
}

// CompareKey orders two composite keys in index order.
func CompareKey(a, b CompositeKey) int {
	if a.Value.IsNull || b.Value.IsNull {
		// Null keys are never stored in the index; defensive ordering
		// only, nulls sort last.
		switch {
		case a.Value.IsNull && b.Value.IsNull:
			return 0
		case a.Value.IsNull:
			return 1
		default:
			return -1
		}
	}
	if c := Compare(a.Value, b.Value); c != 0 {
		return c
	}
	return CompareRID(a.RID, b.RID)
}

// Encode serializes a composite key as "key_len(value) + 4 + 2" bytes:
// the value payload, then the RID's page_num:4B and slot_num:2B (spec §3
// leaf layout).
func (k CompositeKey) Encode(dst []byte) []byte {
	dst = k.Value.Encode(dst)
	var tail [6]byte
	binary.LittleEndian.PutUint32(tail[0:4], uint32(k.RID.Page))
	binary.LittleEndian.PutUint16(tail[4:6], k.RID.Slot)
	return append(dst, tail[:]...)
}

// EncodedSize returns the byte length of Encode's output.
func (k CompositeKey) EncodedSize() int { return k.Value.Size() + 6 }

// DecodeKey reads one composite key of value type t from buf, returning
// the key and the number of bytes consumed.
func DecodeKey(t Type, buf []byte) (CompositeKey, int, error) {
	v, n, err := Decode(t, buf)
	if err != nil {
		return CompositeKey{}, 0, err
	}
	if len(buf) < n+6 {
		return CompositeKey{}, 0, xerrors.New(xerrors.Corruption, "value.DecodeKey")
	}
	page := int32(binary.LittleEndian.Uint32(buf[n : n+4]))
	slot := binary.LittleEndian.Uint16(buf[n+4 : n+6])
	return CompositeKey{Value: v, RID: RID{Page: page, Slot: slot}}, n + 6, nil
}
