// Package storeerr holds the error values shared by every storage backend.
// It is a leaf so backends can return them without importing the storage
// package that selects between them.
package storeerr

import (
	"errors"
	"fmt"
)

var (
	// ErrStorage matches every error returned by a backend (errors.Is)
	ErrStorage = errors.New("storage error")
	// ErrNotFound is returned when an update targets an unknown candidate
	ErrNotFound = errors.New("candidate not found")
	// ErrVersionConflict is returned when a compare-and-swap update sees a newer version
	ErrVersionConflict = errors.New("candidate version conflict")
)

// Error describes a failed store operation. It always matches ErrStorage and
// unwraps to the underlying cause.
type Error struct {
	Op  string // create, get, update, find, list, ...
	ID  string // candidate id when known
	Err error
}

func (e *Error) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("storage: %s %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes every *Error match ErrStorage.
func (e *Error) Is(target error) bool { return target == ErrStorage }

// Wrap returns err as an *Error for op. Nil stays nil and errors that are
// already *Error are returned unchanged.
func Wrap(op, id string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Op: op, ID: id, Err: err}
}
