package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mindloom/rapport/internal/storage"
	"github.com/mindloom/rapport/pkg/types"
)

// GetTrust returns the trust record for userID, creating it at the initial
// score when none exists.
func (s *Store) GetTrust(ctx context.Context, userID string) (*types.TrustRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}

	rec, err := s.readTrust(ctx, userID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO trust_score (user_id, score, factors, last_updated)
		VALUES ($1, $2, '{}', $3)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, types.InitialTrustScore, now)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to initialise trust record: %w", err)
	}

	return s.readTrust(ctx, userID)
}

// ApplyTrustEvent applies the event's fixed delta, clamped to [0,100], and
// increments the event's counter in the factors audit map. The row is locked
// FOR UPDATE so concurrent events serialise instead of losing increments.
func (s *Store) ApplyTrustEvent(ctx context.Context, userID string, event types.TrustEvent) (*types.TrustRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}
	if !event.Valid() {
		return nil, fmt.Errorf("%w: unknown trust event %q", storage.ErrInvalidInput, event)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to begin trust transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO trust_score (user_id, score, factors, last_updated)
		VALUES ($1, $2, '{}', $3)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, types.InitialTrustScore, now); err != nil {
		return nil, fmt.Errorf("postgres: failed to initialise trust record: %w", err)
	}

	var score int
	var factorsJSON []byte
	if err := tx.QueryRowContext(ctx,
		"SELECT score, factors FROM trust_score WHERE user_id = $1 FOR UPDATE", userID,
	).Scan(&score, &factorsJSON); err != nil {
		return nil, fmt.Errorf("postgres: failed to read trust record: %w", err)
	}

	factors := map[types.TrustEvent]int{}
	if len(factorsJSON) > 0 {
		if err := json.Unmarshal(factorsJSON, &factors); err != nil {
			return nil, fmt.Errorf("postgres: failed to decode trust factors: %w", err)
		}
	}

	newScore := types.ClampTrustScore(score + event.Delta())
	factors[event]++

	updated, err := json.Marshal(factors)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to encode trust factors: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE trust_score SET score = $1, factors = $2, last_updated = $3 WHERE user_id = $4
	`, newScore, updated, now, userID); err != nil {
		return nil, fmt.Errorf("postgres: failed to update trust record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("postgres: failed to commit trust update: %w", err)
	}

	return &types.TrustRecord{
		UserID:      userID,
		Score:       newScore,
		Factors:     factors,
		LastUpdated: now,
	}, nil
}

func (s *Store) readTrust(ctx context.Context, userID string) (*types.TrustRecord, error) {
	var rec types.TrustRecord
	var factorsJSON []byte

	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, score, factors, last_updated FROM trust_score WHERE user_id = $1
	`, userID).Scan(&rec.UserID, &rec.Score, &factorsJSON, &rec.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to read trust record: %w", err)
	}

	rec.Factors = map[types.TrustEvent]int{}
	if len(factorsJSON) > 0 {
		if err := json.Unmarshal(factorsJSON, &rec.Factors); err != nil {
			return nil, fmt.Errorf("postgres: failed to decode trust factors: %w", err)
		}
	}

	return &rec, nil
}
