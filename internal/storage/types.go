package storage

import "errors"

var (
	// ErrNotFound indicates that the requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotSupported indicates the backend does not provide a capability
	// (e.g. vector similarity search on SQLite).
	ErrNotSupported = errors.New("operation not supported by this backend")
)

const (
	// ReinforcementBoost is the confidence increase applied when an extracted
	// memory deduplicates against an existing row.
	ReinforcementBoost = 0.1

	// RetrievalMinConfidence is the confidence floor for memory retrieval.
	RetrievalMinConfidence = 0.5

	// PruneThreshold is the confidence below which the prune sweep deletes
	// memories. Exactly 0.3 is retained; only strictly lower rows go.
	PruneThreshold = 0.3
)
