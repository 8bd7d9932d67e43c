package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mindloom/rapport/internal/storage"
	"github.com/mindloom/rapport/pkg/types"
)

// AppendTimeline writes one immutable timeline entry. The entry's ID and
// timestamp are assigned here when the caller left them empty.
func (s *Store) AppendTimeline(ctx context.Context, entry *types.TimelineEntry) error {
	if entry == nil {
		return storage.ErrInvalidInput
	}
	if entry.UserID == "" {
		return fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}
	if !entry.Emotion.Valid() {
		return fmt.Errorf("%w: unknown emotion %q", storage.ErrInvalidInput, entry.Emotion)
	}

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO emotion_timeline (id, user_id, session_id, message_id, emotion, intensity, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.UserID, entry.SessionID, entry.MessageID, string(entry.Emotion), entry.Intensity, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("sqlite: failed to append timeline entry: %w", err)
	}

	return nil
}

// TimelineWindow returns entries for userID with timestamp >= since, oldest
// first. Ordering matters: the trend comparator's baseline tie-break depends
// on scan order.
func (s *Store) TimelineWindow(ctx context.Context, userID string, since time.Time) ([]types.TimelineEntry, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, session_id, message_id, emotion, intensity, timestamp
		FROM emotion_timeline
		WHERE user_id = ? AND timestamp >= ?
		ORDER BY timestamp ASC
	`, userID, since)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query timeline window: %w", err)
	}
	defer rows.Close()

	var entries []types.TimelineEntry
	for rows.Next() {
		var e types.TimelineEntry
		var emotion string
		if err := rows.Scan(&e.ID, &e.UserID, &e.SessionID, &e.MessageID, &emotion, &e.Intensity, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan timeline entry: %w", err)
		}
		e.Emotion = types.Emotion(emotion)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: timeline window iteration failed: %w", err)
	}

	return entries, nil
}
