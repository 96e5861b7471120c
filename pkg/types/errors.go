package types

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session id has no server-side record
type ErrSessionNotFound struct {
	SessionID string
}

func (e *ErrSessionNotFound) Error() string {
	return fmt.Sprintf("session not found: %s", e.SessionID)
}

// From checks if the given error is an ErrSessionNotFound
func (e *ErrSessionNotFound) From(err error) bool {
	var sessionNotFound *ErrSessionNotFound
	return errors.As(err, &sessionNotFound)
}

// ErrNoWorkerAvailable is returned when no pool worker slot could be acquired
// before the request context or acquire timeout expired.
type ErrNoWorkerAvailable struct {
	Pool string
}

func (e *ErrNoWorkerAvailable) Error() string {
	return fmt.Sprintf("no worker available in pool: %s", e.Pool)
}

// ErrInvalidConfig is returned by config validation with the offending field.
type ErrInvalidConfig struct {
	Field  string
	Reason string
}

func (e *ErrInvalidConfig) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}
