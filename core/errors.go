package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotNullViolation is matched by every NotNullViolationError.
	ErrNotNullViolation = errors.New("torm: not null violation")
	// ErrUnsupportedParameterType is returned when a bound value has no SQL binding.
	ErrUnsupportedParameterType = errors.New("torm: unsupported parameter type")
	// ErrUnknownDialect is returned when no dialect is registered for a driver.
	ErrUnknownDialect = errors.New("torm: unknown dialect")
	// ErrNilModel is returned when a nil model is passed to a write.
	ErrNilModel = errors.New("torm: nil model")
	// ErrInvalidSQL is returned when built SQL does not line up with its parameters.
	ErrInvalidSQL = errors.New("torm: invalid sql")
)

// NotNullViolationError reports a NULL value for a column declared NOT NULL.
type NotNullViolationError struct {
	Table  string
	Column string
}

func (e *NotNullViolationError) Error() string {
	return fmt.Sprintf("torm: %s.%s: null value for not null column", e.Table, e.Column)
}

// Is lets errors.Is(err, ErrNotNullViolation) match.
func (e *NotNullViolationError) Is(target error) bool {
	return target == ErrNotNullViolation
}
