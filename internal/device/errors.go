package device

import (
	"errors"
	"fmt"
)

// Kind classifies a failed device call.
type Kind int

const (
	// KindUnreachable covers timeouts, refused connections and DNS failures.
	KindUnreachable Kind = iota + 1
	// KindRejected is a non-2xx answer from the device.
	KindRejected
	// KindMalformed is a 2xx answer whose body could not be decoded.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindUnreachable:
		return "unreachable"
	case KindRejected:
		return "rejected"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is checks against *Error.
var (
	ErrUnreachable = errors.New("device unreachable")
	ErrRejected    = errors.New("device rejected request")
	ErrMalformed   = errors.New("device response malformed")
)

// Error is returned by every Link operation that fails.
type Error struct {
	Kind   Kind
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindRejected:
		if e.Body != "" {
			return fmt.Sprintf("device %s: status %d: %s", e.Op, e.Status, e.Body)
		}
		return fmt.Sprintf("device %s: status %d", e.Op, e.Status)
	default:
		if e.Err != nil {
			return fmt.Sprintf("device %s: %s: %v", e.Op, e.Kind, e.Err)
		}
		return fmt.Sprintf("device %s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the package sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnreachable:
		return e.Kind == KindUnreachable
	case ErrRejected:
		return e.Kind == KindRejected
	case ErrMalformed:
		return e.Kind == KindMalformed
	}
	return false
}

// retryable reports whether another attempt could succeed.
func retryable(err error) bool {
	var de *Error
	if !errors.As(err, &de) {
		return false
	}
	switch de.Kind {
	case KindUnreachable:
		return true
	case KindRejected:
		return de.Status >= 500
	}
	return false
}
