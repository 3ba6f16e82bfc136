package reconcile

import "errors"

var (
	// ErrProjectNotFound is returned when a project has no configuration.
	ErrProjectNotFound = errors.New("project not found")

	// ErrNotHolder is returned when a wallet earns no role in the project.
	ErrNotHolder = errors.New("wallet does not hold a required asset")

	// ErrFreeTierExhausted is returned when a non-premium project used up its free verifications.
	ErrFreeTierExhausted = errors.New("free verifications exhausted")

	// ErrDirectoryUnavailable is returned when the project's role directory cannot be reached.
	ErrDirectoryUnavailable = errors.New("role directory unavailable")

	// ErrConfiguration marks a missing server, member or role. Never retried.
	ErrConfiguration = errors.New("configuration error")

	errNotApplied = errors.New("role changes not applied")
)
