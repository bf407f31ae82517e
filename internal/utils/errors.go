package utils

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig marks a configuration rejected before any generation work starts.
var ErrInvalidConfig = errors.New("invalid configuration")

// AppError wraps an operation, human-facing message, and underlying error.
type AppError struct {
	Op  string
	Msg string
	Err error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// InvalidConfig reports a rejected configuration field; errors.Is(err, ErrInvalidConfig) holds.
func InvalidConfig(op, format string, args ...any) error {
	return &AppError{Op: op, Msg: fmt.Sprintf(format, args...), Err: ErrInvalidConfig}
}
