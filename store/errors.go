package store

import "errors"

var (
	// ErrDuplicate is returned by Save when a unique column (email, phone,
	// group name) already holds the value on another record.
	ErrDuplicate = errors.New("store: duplicate key")

	// ErrNotFound is returned by Save when updating an id that has no record.
	ErrNotFound = errors.New("store: record not found")
)
