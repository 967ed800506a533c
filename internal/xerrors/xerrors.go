// Package xerrors defines the tagged error taxonomy used across the engine.
//
// Spec §7 describes result codes with no automatic retry and no partial
// recovery; design note "Error taxonomy" asks for a tagged error type in
// place of ad-hoc integer codes, reserving sentinel values only at the
// persisted layout boundary. EndOfStream is that one sentinel: ErrEOF.
package xerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a failure. See spec §7.
type Kind int

const (
	// Unknown is the zero value; never constructed deliberately.
	Unknown Kind = iota
	NotFound
	AlreadyExists
	IoError
	Corruption
	Logical
	EndOfStream
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case AlreadyExists:
		return "already_exists"
	case IoError:
		return "io_error"
	case Corruption:
		return "corruption"
	case Logical:
		return "logical"
	case EndOfStream:
		return "end_of_stream"
	default:
		return "unknown"
	}
}

// Error is the tagged error carried across the engine's public surface.
type Error struct {
	Kind Kind
	Op   string // the operation that failed, e.g. "recordfile.Insert"
	err  error  // underlying cause, possibly nil
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.err }

// Is reports whether target has the same Kind, so callers can write
// errors.Is(err, xerrors.NotFound) style checks via KindOf instead.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds a tagged error with no wrapped cause.
func New(kind Kind, op string) error {
	return &Error{Kind: kind, Op: op}
}

// Wrap attaches a stack-carrying cause (via github.com/pkg/errors) to a
// tagged error. Used at I/O boundaries where an *os.File call failed.
func Wrap(kind Kind, op string, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, err: errors.Wrap(cause, op)}
}

// KindOf extracts the Kind from err, walking Unwrap chains. Returns
// Unknown if err does not carry a tagged Kind.
func KindOf(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return Unknown
}

// Is reports whether err is a tagged Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// ErrEOF is an EndOfStream-kind sentinel for normal exhaustion. The
// engine's iterators (record scans, B+tree range scans, query operators)
// do not return it: they signal exhaustion by Next returning false with
// a nil Err.
var ErrEOF = New(EndOfStream, "eof").(*Error)
