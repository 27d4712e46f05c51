package core

import "errors"

// ErrNotFound is returned when the referenced user is absent from the
// directory or the store. Callers are expected to register first.
var ErrNotFound = errors.New("user not found")

// ErrValidation marks request validation failures. Match with errors.Is;
// the concrete error carries the caller-facing message.
var ErrValidation = errors.New("validation failed")

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
