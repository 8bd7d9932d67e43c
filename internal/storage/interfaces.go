// Package storage defines the persistence interfaces for the Rapport signal
// engine. The three logical tables — emotion_timeline, trust_score, and
// user_memory — sit behind small, focused interfaces so that SQLite and
// PostgreSQL backends can be swapped without touching the engine.
package storage

import (
	"context"
	"time"

	"github.com/mindloom/rapport/pkg/types"
)

// TimelineStore persists the append-only emotion timeline.
type TimelineStore interface {
	// AppendTimeline writes one immutable timeline entry. Entries are never
	// updated or deleted; the trend comparator only ever reads them.
	AppendTimeline(ctx context.Context, entry *types.TimelineEntry) error

	// TimelineWindow returns all entries for userID with timestamp >= since,
	// ordered by timestamp ascending.
	TimelineWindow(ctx context.Context, userID string, since time.Time) ([]types.TimelineEntry, error)
}

// TrustStore persists per-user trust records.
type TrustStore interface {
	// GetTrust returns the trust record for userID, creating it with the
	// initial score when none exists.
	GetTrust(ctx context.Context, userID string) (*types.TrustRecord, error)

	// ApplyTrustEvent applies the event's delta to the user's score (clamped
	// to [0,100]), increments the event's factor counter, and returns the
	// updated record. The record is created at the initial score first when
	// absent. Returns ErrInvalidInput for unknown events.
	ApplyTrustEvent(ctx context.Context, userID string, event types.TrustEvent) (*types.TrustRecord, error)
}

// MemoryStore persists extracted user memories.
type MemoryStore interface {
	// InsertMemory stores a new memory. The content hash carries a per-user
	// unique index: inserting content that hashes identically to an existing
	// row bumps that row's confidence by the reinforcement boost and
	// refreshes last_reinforced_at instead of creating a duplicate.
	InsertMemory(ctx context.Context, m *types.Memory) error

	// FindMemoryBySnippet returns the first memory for userID whose content
	// contains snippet (case-insensitive), or ErrNotFound.
	FindMemoryBySnippet(ctx context.Context, userID, snippet string) (*types.Memory, error)

	// SearchMemories returns memories for userID with confidence >=
	// minConfidence whose content contains any of the keywords
	// (case-insensitive), ordered by confidence descending then
	// last_reinforced_at descending, capped at limit.
	SearchMemories(ctx context.Context, userID string, keywords []string, minConfidence float64, limit int) ([]types.Memory, error)

	// RecentMemories returns the limit most recently reinforced memories for
	// userID with confidence >= minConfidence.
	RecentMemories(ctx context.Context, userID string, minConfidence float64, limit int) ([]types.Memory, error)

	// UpdateMemoryConfidence applies a clamped additive confidence update and
	// stamps last_reinforced_at. Returns ErrNotFound for unknown IDs.
	UpdateMemoryConfidence(ctx context.Context, id string, delta float64) error

	// PruneMemories deletes all memories for userID with confidence strictly
	// below threshold and returns the number of rows removed.
	PruneMemories(ctx context.Context, userID string, threshold float64) (int, error)

	// ListMemories returns every memory for userID ordered by created_at
	// descending. Used for inspection and debugging.
	ListMemories(ctx context.Context, userID string) ([]types.Memory, error)
}

// Store is the full persistence surface a backend must provide.
type Store interface {
	TimelineStore
	TrustStore
	MemoryStore

	// Close releases any resources held by the store.
	Close() error
}

// SimilaritySearcher is an optional capability: backends that can index
// embeddings (PostgreSQL with pgvector) implement it in addition to Store.
// Callers discover it via type assertion.
type SimilaritySearcher interface {
	// SimilarMemories returns up to limit memories for userID ordered by
	// ascending distance to the query embedding.
	SimilarMemories(ctx context.Context, userID string, embedding []float32, limit int) ([]types.Memory, error)

	// StoreMemoryEmbedding attaches an embedding vector to a stored memory.
	StoreMemoryEmbedding(ctx context.Context, id string, embedding []float32) error
}
