package value

// CompOp is a predicate comparison operator, carried unchanged in
// meaning from the original engine's CompOp enum (rm/rm.h): EQ_OP,
// LT_OP, LE_OP, GT_OP, GE_OP, NE_OP, NO_OP.
type CompOp int

const (
	OpNoOp CompOp = iota // identity filter — always true
	OpEQ
	OpLT
	OpLE
	OpGT
	OpGE
	OpNE
)

// Eval applies op to (lhs, rhs). NULLs make every predicate but the
// identity false (spec §4.4 Filter).
func Eval(op CompOp, lhs, rhs Value) bool {
	if op == OpNoOp {
		return true
	}
	if lhs.IsNull || rhs.IsNull {
		return false
	}
	c := Compare(lhs, rhs)
	switch op {
	case OpEQ:
		return c == 0
	case OpLT:
		return c < 0
	case OpLE:
		return c <= 0
	case OpGT:
		return c > 0
	case OpGE:
		return c >= 0
	case OpNE:
		return c != 0
	default:
		return false
	}
}
