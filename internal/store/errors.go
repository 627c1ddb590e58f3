package store

import "errors"

// Common errors returned by store operations.
//
// These can be checked with errors.Is():
//
//	if errors.Is(err, store.ErrNotFound) {
//	    // Handle missing record
//	}
var (
	// ErrNotFound is returned when an operation references a record ID
	// that does not exist in the store.
	ErrNotFound = errors.New("record not found")
)
