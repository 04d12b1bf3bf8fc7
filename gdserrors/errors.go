// Package gdserrors defines the error taxonomy shared by the GDSII reader,
// validator and renderers. The taxonomy is a closed set of kinds, not a set
// of Go types: callers branch on Kind via errors.As, never on message text.
package gdserrors

import "fmt"

// Kind classifies an Error. See spec §7 for the rationale behind each kind.
type Kind int

const (
	// KindIO covers file open/read failures.
	KindIO Kind = iota
	// KindMalformed covers invalid record framing, short payloads, or
	// unexpected EOF mid-stream.
	KindMalformed
	// KindProtocol covers a record appearing in a disallowed parser state.
	KindProtocol
	// KindLimit covers a value exceeding a documented size/count cap.
	// gdsparse.ParseFile returns it, aborting the parse, when a stream
	// exceeds MaxStreamBytes. Over-long cell/library names are not reported
	// as an Error: the field is truncated, logged, and parsing continues.
	KindLimit
	// KindRenderer covers back-end-specific output failures.
	KindRenderer
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindMalformed:
		return "malformed"
	case KindProtocol:
		return "protocol"
	case KindLimit:
		return "limit"
	case KindRenderer:
		return "renderer"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with a Kind and the operation that failed.
// Resolution and Loop outcomes are never represented as Error: they are
// results recorded on gdsmodel.Cell.Checks, per spec §7.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error wrapping err with the given kind and operation name.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Malformed is a convenience constructor for the common case.
func Malformed(op string, err error) *Error { return New(KindMalformed, op, err) }

// Protocol is a convenience constructor for the common case.
func Protocol(op string, err error) *Error { return New(KindProtocol, op, err) }
