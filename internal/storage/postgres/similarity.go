package postgres

import (
	"context"
	"fmt"

	pgvector "github.com/pgvector/pgvector-go"

	"github.com/mindloom/rapport/internal/storage"
	"github.com/mindloom/rapport/pkg/types"
)

// Ensure *Store implements the optional similarity interface at compile time.
var _ storage.SimilaritySearcher = (*Store)(nil)

// StoreMemoryEmbedding attaches an embedding vector to an existing memory.
// Returns ErrNotSupported when the server lacks the pgvector extension.
func (s *Store) StoreMemoryEmbedding(ctx context.Context, memoryID string, embedding []float32) error {
	if !s.pgvectorAvailable {
		return storage.ErrNotSupported
	}
	if memoryID == "" {
		return fmt.Errorf("%w: memory ID is required", storage.ErrInvalidInput)
	}
	if len(embedding) == 0 {
		return fmt.Errorf("%w: embedding is required", storage.ErrInvalidInput)
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE user_memory SET embedding = $1 WHERE id = $2",
		pgvector.NewVector(embedding), memoryID)
	if err != nil {
		return fmt.Errorf("postgres: failed to store memory embedding: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// SimilarMemories returns memories ordered by cosine distance to the query
// vector, filtered by the retrieval confidence floor. Rows without an
// embedding are skipped. Returns ErrNotSupported when pgvector is absent so
// callers can fall back to keyword search.
func (s *Store) SimilarMemories(ctx context.Context, userID string, query []float32, limit int) ([]types.Memory, error) {
	if !s.pgvectorAvailable {
		return nil, storage.ErrNotSupported
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}
	if len(query) == 0 {
		return nil, fmt.Errorf("%w: query vector is required", storage.ErrInvalidInput)
	}
	if limit < 1 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, memory_type, category, content, confidence,
			first_mentioned_session_id, last_reinforced_at, created_at, content_hash
		FROM user_memory
		WHERE user_id = $1 AND embedding IS NOT NULL AND confidence >= $2
		ORDER BY embedding <=> $3::vector
		LIMIT $4
	`, userID, storage.RetrievalMinConfidence, pgvector.NewVector(query), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to run similarity search: %w", err)
	}
	defer rows.Close()

	return collectMemories(rows)
}
