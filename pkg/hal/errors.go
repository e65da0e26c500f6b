package hal

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by this package and by the
// backends wraps exactly one of them.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNoBackend    = errors.New("no suitable backend available")
	ErrIO           = errors.New("backend communication failure")
	ErrUnsupported  = errors.New("unsupported")
)

// Specific conditions, each wrapping a category.
var (
	ErrNoStreams      = fmt.Errorf("%w: no streams enumerable", ErrUnsupported)
	ErrUnknownControl = fmt.Errorf("%w: unknown control", ErrUnsupported)
	ErrValueMismatch  = fmt.Errorf("%w: value does not match control", ErrUnsupported)
	ErrBusy           = fmt.Errorf("%w: device already streaming", ErrUnsupported)
	ErrTimeout        = fmt.Errorf("%w: timed out waiting for frame", ErrIO)
	ErrClosed         = fmt.Errorf("%w: device closed", ErrIO)
)

// ErrorKind is the category of an error.
type ErrorKind int

// Error kinds.
const (
	KindUnknown ErrorKind = iota
	KindInvalidInput
	KindNoBackend
	KindIO
	KindUnsupported
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNoBackend:
		return "no_backend"
	case KindIO:
		return "io"
	case KindUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Classify returns the category err belongs to.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrNoBackend):
		return KindNoBackend
	case errors.Is(err, ErrUnsupported):
		return KindUnsupported
	case errors.Is(err, ErrIO):
		return KindIO
	default:
		return KindUnknown
	}
}

// IOError wraps a backend failure so that it matches both ErrIO and cause.
func IOError(op string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s: %w", op, ErrIO)
	}
	if errors.Is(cause, ErrIO) {
		return fmt.Errorf("%s: %w", op, cause)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrIO, cause)
}

// InputError reports a malformed caller-supplied value.
func InputError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
