package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a document row does not exist at claim
// time. A run that sees it must not mutate any state.
var ErrNotFound = errors.New("document not found")

// StorageError wraps any object-storage failure. The worker only needs
// to distinguish "storage failed" plus the operation and cause; finer
// classification stays inside the client.
type StorageError struct {
	Op  string // "download" or "upload"
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
