// Package value implements the engine's typed-value system: the sum type
// carried by every attribute, record identifiers, composite index keys,
// and the two wire formats described in spec §3/§6 (the physical slotted-
// page record form and the caller-facing null-bitmap form).
package value

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/relstore/pagedengine/internal/xerrors"
)

// Type tags the three attribute types the engine supports.
type Type int

const (
	IntType Type = iota
	RealType
	VarCharType
)

func (t Type) String() string {
	switch t {
	case IntType:
		return "INT"
	case RealType:
		return "REAL"
	case VarCharType:
		return "VARCHAR"
	default:
		return "UNKNOWN"
	}
}

// Sentinels from spec §6.
const (
	Deleted    = 30000 // slot offset marking a free slot
	Updated    = 30001 // slot flag marking a forwarding tombstone
	NullPoint  = 8000  // record-level null pointer
	IntMax     = math.MaxInt32
	UshrtMax   = math.MaxUint16
	MinRecSize = 6 // minimum stored record size, room for a forwarder
)

// Value is the tagged union carried by one attribute slot.
type Value struct {
	Type   Type
	IsNull bool
	Int    int32
	Real   float32
	Text   []byte // VARCHAR payload, not including its length prefix
}

func NullValue(t Type) Value { return Value{Type: t, IsNull: true} }
func IntValue(v int32) Value { return Value{Type: IntType, Int: v} }
func RealValue(v float32) Value { return Value{Type: RealType, Real: v} }
func TextValue(v []byte) Value { return Value{Type: VarCharType, Text: v} }

// Size returns the number of bytes the value occupies in its serialized
// form (physical or composite-key form, which share an encoding for
// non-null values): 4 bytes for INT/REAL, 4+len for VARCHAR.
func (v Value) Size() int {
	switch v.Type {
	case IntType, RealType:
		return 4
	case VarCharType:
		return 4 + len(v.Text)
	default:
		return 0
	}
}

// Encode appends the value's serialized bytes (no null handling — callers
// track nullness out of band via an offset table or bitmap) to dst.
func (v Value) Encode(dst []byte) []byte {
	switch v.Type {
	case IntType:
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(v.Int))
		return append(dst, buf[:]...)
	case RealType:
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v.Real))
		return append(dst, buf[:]...)
	case VarCharType:
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(len(v.Text)))
		dst = append(dst, buf[:]...)
		return append(dst, v.Text...)
	default:
		return dst
	}
}

// Decode reads one value of type t from buf, returning the value and the
// number of bytes consumed.
func Decode(t Type, buf []byte) (Value, int, error) {
	switch t {
	case IntType:
		if len(buf) < 4 {
			return Value{}, 0, xerrors.New(xerrors.Corruption, "value.Decode")
		}
		return Value{Type: IntType, Int: int32(binary.LittleEndian.Uint32(buf))}, 4, nil
	case RealType:
		if len(buf) < 4 {
			return Value{}, 0, xerrors.New(xerrors.Corruption, "value.Decode")
		}
		bits := binary.LittleEndian.Uint32(buf)
		return Value{Type: RealType, Real: math.Float32frombits(bits)}, 4, nil
	case VarCharType:
		if len(buf) < 4 {
			return Value{}, 0, xerrors.New(xerrors.Corruption, "value.Decode")
		}
		n := int(binary.LittleEndian.Uint32(buf))
		if len(buf) < 4+n {
			return Value{}, 0, xerrors.New(xerrors.Corruption, "value.Decode")
		}
		text := make([]byte, n)
		copy(text, buf[4:4+n])
		return Value{Type: VarCharType, Text: text}, 4 + n, nil
	default:
		return Value{}, 0, xerrors.New(xerrors.Logical, "value.Decode")
	}
}

func (v Value) String() string {
	if v.IsNull {
		return "NULL"
	}
	switch v.Type {
	case IntType:
		return fmt.Sprintf("%d", v.Int)
	case RealType:
		return fmt.Sprintf("%g", v.Real)
	case VarCharType:
		return string(v.Text)
	default:
		return "?"
	}
}

// Equal compares two values of the same type for exact equality. Two
// nulls are not equal (SQL-style null semantics).
func Equal(a, b Value) bool {
	if a.IsNull || b.IsNull {
		return false
	}
	switch a.Type {
	case IntType:
		return a.Int == b.Int
	case RealType:
		return a.Real == b.Real
	case VarCharType:
		return string(a.Text) == string(b.Text)
	default:
		return false
	}
}

// Compare orders two non-null values of the same type. Negative means
// a < b, zero means equal, positive means a > b.
func Compare(a, b Value) int {
	switch a.Type {
	case IntType:
		switch {
		case a.Int < b.Int:
			return -1
		case a.Int > b.Int:
			return 1
		default:
			return 0
		}
	case RealType:
		switch {
		case a.Real < b.Real:
			return -1
		case a.Real > b.Real:
			return 1
		default:
			return 0
		}
	case VarCharType:
		return compareBytes(a.Text, b.Text)
	default:
		return 0
	}
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}
