package resilient

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	ErrTimeout     = errors.New("upstream timeout")
	ErrUnavailable = errors.New("upstream unavailable")
)

// TransportError is returned once every attempt failed without a response.
// It matches ErrTimeout or ErrUnavailable with errors.Is.
type TransportError struct {
	Kind     error
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s after %d attempt(s): %v", e.Kind, e.Attempts, e.Err)
}

func (e *TransportError) Is(target error) bool {
	return target == e.Kind
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ErrTimeout
	}
	return ErrUnavailable
}
