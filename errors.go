package tracebrain

import "errors"

var (
	// ErrSpanNotFound is returned when a requested target span is not part
	// of the supplied trace.
	ErrSpanNotFound = errors.New("span not found in trace")

	// ErrBrokenChain is returned when a parent_id references a span that is
	// not present in the trace, or when parent links form a cycle.
	ErrBrokenChain = errors.New("broken span chain")

	// ErrMalformedContent is returned when a span's new_content attribute
	// cannot be decoded into a message list.
	ErrMalformedContent = errors.New("malformed new_content payload")

	// ErrTraceNotFound is returned when the trace store has no trace with
	// the requested ID.
	ErrTraceNotFound = errors.New("trace not found")

	// ErrInvalidParameter is returned for invalid caller input.
	ErrInvalidParameter = errors.New("invalid parameter")
)
