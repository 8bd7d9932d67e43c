package postgres

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mindloom/rapport/internal/storage"
	"github.com/mindloom/rapport/pkg/types"
)

func hashContent(content string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(strings.ToLower(content))))
}

// InsertMemory stores a new memory with upsert-or-reinforce semantics on the
// (user_id, content_hash) unique index.
func (s *Store) InsertMemory(ctx context.Context, m *types.Memory) error {
	if m == nil {
		return storage.ErrInvalidInput
	}
	if m.UserID == "" {
		return fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}
	if m.Content == "" {
		return fmt.Errorf("%w: memory content is required", storage.ErrInvalidInput)
	}

	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.MemoryType == "" {
		m.MemoryType = types.MemoryFact
	}
	if m.Category == "" {
		m.Category = types.CategoryOther
	}
	if m.Confidence == 0 {
		m.Confidence = 1.0
	}

	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.LastReinforcedAt.IsZero() {
		m.LastReinforcedAt = now
	}
	m.ContentHash = hashContent(m.Content)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_memory (
			id, user_id, memory_type, category, content, confidence,
			first_mentioned_session_id, last_reinforced_at, created_at, content_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, content_hash) DO UPDATE SET
			confidence = LEAST(1.0, user_memory.confidence + $11),
			last_reinforced_at = EXCLUDED.last_reinforced_at
	`, m.ID, m.UserID, string(m.MemoryType), string(m.Category), m.Content, m.Confidence,
		m.FirstMentionedSessionID, m.LastReinforcedAt, m.CreatedAt, m.ContentHash,
		storage.ReinforcementBoost)
	if err != nil {
		return fmt.Errorf("postgres: failed to insert memory: %w", err)
	}

	return nil
}

// FindMemoryBySnippet returns the first memory for userID whose content
// contains snippet, case-insensitive.
func (s *Store) FindMemoryBySnippet(ctx context.Context, userID, snippet string) (*types.Memory, error) {
	if userID == "" || snippet == "" {
		return nil, fmt.Errorf("%w: user ID and snippet are required", storage.ErrInvalidInput)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, memory_type, category, content, confidence,
			first_mentioned_session_id, last_reinforced_at, created_at, content_hash
		FROM user_memory
		WHERE user_id = $1 AND content ILIKE '%' || $2 || '%'
		LIMIT 1
	`, userID, snippet)

	m, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to find memory by snippet: %w", err)
	}
	return m, nil
}

// SearchMemories returns memories matching any keyword, filtered by minimum
// confidence, ordered by confidence descending then recency descending.
func (s *Store) SearchMemories(ctx context.Context, userID string, keywords []string, minConfidence float64, limit int) ([]types.Memory, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}
	if len(keywords) == 0 {
		return nil, fmt.Errorf("%w: at least one keyword is required", storage.ErrInvalidInput)
	}
	if limit < 1 {
		limit = 10
	}

	var sb strings.Builder
	args := []interface{}{userID, minConfidence}
	sb.WriteString(`
		SELECT id, user_id, memory_type, category, content, confidence,
			first_mentioned_session_id, last_reinforced_at, created_at, content_hash
		FROM user_memory
		WHERE user_id = $1 AND confidence >= $2 AND (`)
	for i, kw := range keywords {
		if i > 0 {
			sb.WriteString(" OR ")
		}
		fmt.Fprintf(&sb, "content ILIKE '%%' || $%d || '%%'", len(args)+1)
		args = append(args, kw)
	}
	fmt.Fprintf(&sb, ") ORDER BY confidence DESC, last_reinforced_at DESC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to search memories: %w", err)
	}
	defer rows.Close()

	return collectMemories(rows)
}

// RecentMemories returns the most recently reinforced memories above the
// confidence floor.
func (s *Store) RecentMemories(ctx context.Context, userID string, minConfidence float64, limit int) ([]types.Memory, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}
	if limit < 1 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, memory_type, category, content, confidence,
			first_mentioned_session_id, last_reinforced_at, created_at, content_hash
		FROM user_memory
		WHERE user_id = $1 AND confidence >= $2
		ORDER BY last_reinforced_at DESC
		LIMIT $3
	`, userID, minConfidence, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query recent memories: %w", err)
	}
	defer rows.Close()

	return collectMemories(rows)
}

// UpdateMemoryConfidence applies a clamped additive confidence update and
// stamps last_reinforced_at.
func (s *Store) UpdateMemoryConfidence(ctx context.Context, id string, delta float64) error {
	if id == "" {
		return fmt.Errorf("%w: memory ID is required", storage.ErrInvalidInput)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE user_memory
		SET confidence = GREATEST(0.0, LEAST(1.0, confidence + $1)), last_reinforced_at = $2
		WHERE id = $3
	`, delta, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("postgres: failed to update memory confidence: %w", err)
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

// PruneMemories deletes memories strictly below threshold for userID.
func (s *Store) PruneMemories(ctx context.Context, userID string, threshold float64) (int, error) {
	if userID == "" {
		return 0, fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM user_memory WHERE user_id = $1 AND confidence < $2", userID, threshold)
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to prune memories: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to read pruned count: %w", err)
	}

	return int(affected), nil
}

// ListMemories returns every memory for userID, newest first.
func (s *Store) ListMemories(ctx context.Context, userID string) ([]types.Memory, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, memory_type, category, content, confidence,
			first_mentioned_session_id, last_reinforced_at, created_at, content_hash
		FROM user_memory
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list memories: %w", err)
	}
	defer rows.Close()

	return collectMemories(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMemory(r rowScanner) (*types.Memory, error) {
	var m types.Memory
	var memoryType, category string
	var sessionID sql.NullString
	if err := r.Scan(&m.ID, &m.UserID, &memoryType, &category, &m.Content, &m.Confidence,
		&sessionID, &m.LastReinforcedAt, &m.CreatedAt, &m.ContentHash); err != nil {
		return nil, err
	}
	m.MemoryType = types.MemoryType(memoryType)
	m.Category = types.MemoryCategory(category)
	m.FirstMentionedSessionID = sessionID.String
	return &m, nil
}

func collectMemories(rows *sql.Rows) ([]types.Memory, error) {
	var memories []types.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan memory: %w", err)
		}
		memories = append(memories, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: memory iteration failed: %w", err)
	}
	return memories, nil
}
