package domain

import "errors"

var (
	// ErrStoreUnavailable marks a catalog that cannot be reached.
	ErrStoreUnavailable = errors.New("catalog store unavailable")
	// ErrNoFeeds aborts a run that has no journal sources configured.
	ErrNoFeeds = errors.New("no journal feeds configured")
	// ErrNotFound is returned by keyed lookups that miss.
	ErrNotFound = errors.New("paper not found")
)
