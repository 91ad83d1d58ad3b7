package boundary

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the outcome code of a boundary call.
type Status int32

// The closed set of statuses. UnknownError absorbs everything else.
const (
	Ok Status = iota
	InvalidInput
	IncorrectAlignment
	EncodingFailed
	OutputBufferTooSmall
	OutOfMemory
	UnknownError
)

// ABIEnum marks Status as an enum for ABI verification.
func (Status) ABIEnum() {}

// Valid reports whether s is a member of the closed set.
func (s Status) Valid() bool { return s >= Ok && s <= UnknownError }

func (s Status) String() string {
	switch s {
	case Ok:
		return "ok"
	case InvalidInput:
		return "invalid_input"
	case IncorrectAlignment:
		return "incorrect_alignment"
	case EncodingFailed:
		return "encoding_failed"
	case OutputBufferTooSmall:
		return "output_buffer_too_small"
	case OutOfMemory:
		return "out_of_memory"
	case UnknownError:
		return "unknown_error"
	}
	return fmt.Sprintf("status(%d)", int32(s))
}

// Canonical errors, one per non-Ok status. Use errors.Is to match them.
var (
	ErrInvalidInput         = &Error{Status: InvalidInput}
	ErrIncorrectAlignment   = &Error{Status: IncorrectAlignment}
	ErrEncodingFailed       = &Error{Status: EncodingFailed}
	ErrOutputBufferTooSmall = &Error{Status: OutputBufferTooSmall}
	ErrOutOfMemory          = &Error{Status: OutOfMemory}
	ErrUnknown              = &Error{Status: UnknownError}
)

// Error is a structured boundary error.
type Error struct {
	Status Status
	Op     string // kernel or operation name
	Field  string // offending argument or field
	Detail string
	Cause  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString("boundary: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Status.String())
	if e.Field != "" {
		b.WriteString(" at ")
		b.WriteString(e.Field)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Cause }

// Is matches errors by status.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Status == t.Status
	}
	return false
}

// AlignmentError is returned when an address fails the alignment check.
type AlignmentError struct {
	Field string
	Addr  uintptr
	Align uintptr
}

// Error implements the error interface.
func (e *AlignmentError) Error() string {
	return fmt.Sprintf("boundary: incorrect_alignment at %s: address %#x is not a multiple of %d (off by %d)",
		e.Field, e.Addr, e.Align, e.Addr%e.Align)
}

// Is matches ErrIncorrectAlignment.
func (e *AlignmentError) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return t.Status == IncorrectAlignment
	}
	return false
}

// StatusOf maps any error onto the closed status set. It never fails:
// nil maps to Ok and errors outside the set map to UnknownError.
func StatusOf(err error) Status {
	if err == nil {
		return Ok
	}

	var ae *AlignmentError
	if errors.As(err, &ae) {
		return IncorrectAlignment
	}

	var be *Error
	if errors.As(err, &be) && be.Status.Valid() && be.Status != Ok {
		return be.Status
	}
	return UnknownError
}

func statusError(s Status) error {
	switch s {
	case Ok:
		return nil
	case InvalidInput:
		return ErrInvalidInput
	case IncorrectAlignment:
		return ErrIncorrectAlignment
	case EncodingFailed:
		return ErrEncodingFailed
	case OutputBufferTooSmall:
		return ErrOutputBufferTooSmall
	case OutOfMemory:
		return ErrOutOfMemory
	}
	return ErrUnknown
}

// errStatus is StatusOf for the error path, where Ok is never acceptable.
func errStatus(err error) Status {
	if s := StatusOf(err); s != Ok {
		return s
	}
	return UnknownError
}
