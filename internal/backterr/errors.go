// Package backterr defines the error kinds the backtest engine can surface.
package backterr

import "errors"

// Kind classifies an engine failure. The zero value is not a valid kind.
type Kind int

const (
	_ Kind = iota
	// InvalidInput covers length mismatches, insufficient samples, non-finite
	// prices, and unparseable intervals used where one is required.
	InvalidInput
	// Degenerate covers a singular OLS design matrix or zero-variance series
	// where variance is required.
	Degenerate
	// Internal covers invariant violations that should be unreachable in a
	// correct implementation.
	Internal
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "invalid_input"
	case Degenerate:
		return "degenerate"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind so callers can branch on
// errors.As without parsing message text.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Msg + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error of the given kind.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds an *Error of the given kind around a lower-level cause.
func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Is reports whether err (or a wrapped error in its chain) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
