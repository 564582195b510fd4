package model

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation error")
	ErrUnauthenticated = errors.New("user not authenticated")
	ErrPersistence     = errors.New("persistence failure")
)

// PersistenceError reports a failed query, insert, update or delete.
// Error() stays generic; the cause is reachable through Unwrap.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return "could not " + e.Op + ": storage unavailable"
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }
