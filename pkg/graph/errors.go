package graph

import "fmt"

// ErrorKind classifies fatal instrumentation errors.
type ErrorKind int

const (
	ErrStackOverflow ErrorKind = iota + 1
	ErrStackUnderflow
	ErrUnknownSection
)

func (k ErrorKind) String() string {
	switch k {
	case ErrStackOverflow:
		return "stack overflow"
	case ErrStackUnderflow:
		return "unbalanced pop"
	case ErrUnknownSection:
		return "unknown section"
	default:
		return "unknown error"
	}
}

// Error is the value the recorder panics with on a fatal instrumentation error.
// Continuing after one would corrupt the call stack, so it is never returned.
type Error struct {
	Kind    ErrorKind
	Section string
	Detail  string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("perfgraph: %s in section %q", e.Kind, e.Section)
	}
	return fmt.Sprintf("perfgraph: %s in section %q: %s", e.Kind, e.Section, e.Detail)
}
