package types

import "time"

// MemoryType classifies what kind of information a memory captures.
type MemoryType string

const (
	MemoryFact         MemoryType = "fact"
	MemoryPreference   MemoryType = "preference"
	MemoryRelationship MemoryType = "relationship"
	MemoryPattern      MemoryType = "pattern"
	MemoryVocabulary   MemoryType = "vocabulary"
)

// Valid reports whether t is a known memory type.
func (t MemoryType) Valid() bool {
	switch t {
	case MemoryFact, MemoryPreference, MemoryRelationship, MemoryPattern, MemoryVocabulary:
		return true
	}
	return false
}

// MemoryCategory groups memories by life domain.
type MemoryCategory string

const (
	CategoryWork     MemoryCategory = "work"
	CategoryFamily   MemoryCategory = "family"
	CategoryHealth   MemoryCategory = "health"
	CategoryIdentity MemoryCategory = "identity"
	CategoryTrauma   MemoryCategory = "trauma"
	CategoryOther    MemoryCategory = "other"
	CategoryLanguage MemoryCategory = "language"
)

// Valid reports whether c is a known memory category.
func (c MemoryCategory) Valid() bool {
	switch c {
	case CategoryWork, CategoryFamily, CategoryHealth, CategoryIdentity,
		CategoryTrauma, CategoryOther, CategoryLanguage:
		return true
	}
	return false
}

// Memory is a small extracted note about a user. Content is immutable once
// stored; only Confidence and LastReinforcedAt change over a memory's life.
// Confidence starts at 1.0, is boosted by +0.1 on reinforcement (clamped to
// 1.0), and memories below 0.3 are removed by the explicit prune sweep.
type Memory struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	MemoryType MemoryType     `json:"memory_type"`
	Category   MemoryCategory `json:"category"`
	Content    string         `json:"content"`
	Confidence float64        `json:"confidence"` // [0,1]

	FirstMentionedSessionID string    `json:"first_mentioned_session_id"`
	LastReinforcedAt        time.Time `json:"last_reinforced_at"`
	CreatedAt               time.Time `json:"created_at"`

	// ContentHash is a SHA-256 hash of the lower-cased content, backing the
	// per-user unique index that makes the insert path an atomic upsert.
	ContentHash string `json:"content_hash,omitempty"`

	// Embedding is an optional vector for similarity search. Populated only
	// when an embedding client is configured; keyword retrieval never uses it.
	Embedding []float32 `json:"embedding,omitempty"`
}

// MemoryCandidate is one extraction result returned by the language model
// before validation and deduplication.
type MemoryCandidate struct {
	MemoryType MemoryType     `json:"memory_type"`
	Category   MemoryCategory `json:"category"`
	Content    string         `json:"content"`
}
