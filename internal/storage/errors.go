package storage

import "errors"

var (
	// ErrNotFound reports a missing project config, holder set or sweep row.
	ErrNotFound = errors.New("storage: record not found")

	// ErrDuplicateKey reports a second sweep row with an existing id.
	ErrDuplicateKey = errors.New("storage: sweep already recorded")

	// ErrInvalidInput reports an empty project name or a nil record.
	ErrInvalidInput = errors.New("storage: invalid input")
)
