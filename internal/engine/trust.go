package engine

import (
	"context"
	"log"
	"strings"

	"github.com/mindloom/rapport/internal/storage"
	"github.com/mindloom/rapport/pkg/types"
)

// vulnerabilityMarkers are first-person distress phrases. Substring match on
// the lower-cased text.
var vulnerabilityMarkers = []string{
	"i feel",
	"i'm scared",
	"i'm afraid",
	"i'm worried",
	"i can't",
	"i don't know",
	"help me",
	"i'm lost",
	"i hate myself",
	"i'm crying",
	"nobody",
	"alone",
	"ashamed",
	"embarrassed",
	"failed",
	"broken",
}

// DetectVulnerability reports whether text contains at least one first-person
// distress marker. Pure boolean classifier, no state.
func DetectVulnerability(text string) bool {
	lowered := strings.ToLower(text)
	for _, marker := range vulnerabilityMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

// TrustScorer maintains the per-user trust score, a single integer in
// [0,100] advanced by fixed-delta events.
type TrustScorer struct {
	store storage.TrustStore
}

// NewTrustScorer creates a scorer backed by the given trust store.
func NewTrustScorer(store storage.TrustStore) *TrustScorer {
	return &TrustScorer{store: store}
}

// GetTrustLevel returns the user's current score, creating the record at the
// initial value on first contact. Store failures degrade to the initial
// score so the chat turn can proceed.
func (ts *TrustScorer) GetTrustLevel(ctx context.Context, userID string) int {
	rec, err := ts.store.GetTrust(ctx, userID)
	if err != nil {
		log.Printf("ERROR: trust scorer failed to read score for %s: %v", userID, err)
		return types.InitialTrustScore
	}
	return rec.Score
}

// GetTrustRecord returns the full trust record including the factors audit
// map and display label.
func (ts *TrustScorer) GetTrustRecord(ctx context.Context, userID string) (*types.TrustRecord, error) {
	return ts.store.GetTrust(ctx, userID)
}

// UpdateTrustScore applies one event and returns the new score. Unknown
// events and store failures leave the score unchanged.
func (ts *TrustScorer) UpdateTrustScore(ctx context.Context, userID string, event types.TrustEvent) int {
	if !event.Valid() {
		log.Printf("Warning: trust scorer ignoring unknown event %q for %s", event, userID)
		return ts.GetTrustLevel(ctx, userID)
	}

	rec, err := ts.store.ApplyTrustEvent(ctx, userID, event)
	if err != nil {
		log.Printf("ERROR: trust scorer failed to apply %s for %s: %v", event, userID, err)
		return ts.GetTrustLevel(ctx, userID)
	}
	return rec.Score
}
