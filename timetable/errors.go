package timetable

import "errors"

// Sentinel errors for the ambient error kinds named in spec.md §7, bar
// internal_invariant_violation which panics rather than returns.
var (
	ErrUnknownStop        = errors.New("timetable: unknown stop")
	ErrInvalidTimeLiteral = errors.New("timetable: invalid time literal")
	ErrMalformedTimetable = errors.New("timetable: malformed timetable")
	ErrEndiannessUnsupported = errors.New("timetable: endianness unsupported")
)

// invariantViolation panics with a message identifying a broken
// internal invariant -- a bug in the ingester or a corrupted store, per
// the error-handling design: these must fail loudly rather than be
// returned as an error value.
func invariantViolation(msg string) {
	panic("timetable: internal invariant violation: " + msg)
}
