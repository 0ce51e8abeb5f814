package pricestore

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStoreNotFound is returned when the backing file is absent and the
	// store was configured to require it
	ErrStoreNotFound = errors.New("price store file not found")
	// ErrMalformedStore matches any *MalformedStoreError
	ErrMalformedStore = errors.New("malformed price store")
	// ErrMalformedHistory is returned when the history journal cannot be parsed
	ErrMalformedHistory = errors.New("malformed price history")
	// ErrValidation matches any *ValidationError
	ErrValidation = errors.New("price update rejected")

	ErrNoBackupAvailable = errors.New("no backup available")
	ErrBackupNotFound    = errors.New("backup not found")
	ErrBackupExists      = errors.New("backup already exists")
	ErrInvalidTag        = errors.New("invalid backup tag")
)

// MalformedStoreError reports a price file that is not a JSON object
type MalformedStoreError struct {
	Path string
	Err  error
}

func (e *MalformedStoreError) Error() string {
	return fmt.Sprintf("malformed price store %s: %v", e.Path, e.Err)
}

func (e *MalformedStoreError) Unwrap() error { return e.Err }

// Is matches ErrMalformedStore
func (e *MalformedStoreError) Is(target error) bool {
	return target == ErrMalformedStore
}

// Violation describes one rejected entry of a candidate update
type Violation struct {
	Key    string `json:"key"`
	Value  any    `json:"value"`
	Reason string `json:"reason"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s=%v: %s", v.Key, v.Value, v.Reason)
}

// ValidationError carries every violation found in a rejected update
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

// Is matches ErrValidation
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
