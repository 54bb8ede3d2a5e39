package store

import "errors"

var (
	ErrValidation        = errors.New("validation error")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid status transition")

	errNumberTaken = errors.New("order number already taken")
)

// ValidationError carries the client-facing reason. It matches ErrValidation.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Msg
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func validationError(msg string) error {
	return &ValidationError{Msg: msg}
}
