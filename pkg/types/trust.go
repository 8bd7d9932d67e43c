package types

import "time"

// TrustEvent is a named rapport signal with a fixed score delta. The set is
// closed: unknown event names are rejected by the trust scorer rather than
// treated as zero-delta updates.
type TrustEvent string

const (
	TrustVulnerabilityShown    TrustEvent = "vulnerability_shown"
	TrustSessionCompleted      TrustEvent = "session_completed"
	TrustContradictionDetected TrustEvent = "contradiction_detected"
	TrustLongPause             TrustEvent = "long_pause"
	TrustDeepQuestionAnswered  TrustEvent = "deep_question_answered"
	TrustResistanceShown       TrustEvent = "resistance_shown"
)

// trustDeltas maps each trust event to its fixed score delta.
var trustDeltas = map[TrustEvent]int{
	TrustVulnerabilityShown:    5,
	TrustSessionCompleted:      2,
	TrustContradictionDetected: -3,
	TrustLongPause:             -1, // user disappeared mid-session
	TrustDeepQuestionAnswered:  3,
	TrustResistanceShown:       -2,
}

// Valid reports whether e is a known trust event.
func (e TrustEvent) Valid() bool {
	_, ok := trustDeltas[e]
	return ok
}

// Delta returns the fixed score delta for e, or 0 for unknown events.
func (e TrustEvent) Delta() int {
	return trustDeltas[e]
}

// InitialTrustScore is the score assigned to a user on first contact.
const InitialTrustScore = 20

// TrustRecord is the per-user trust state. Factors is a monotonically
// incrementing audit trail of how many times each event has been applied;
// counts are never decremented.
type TrustRecord struct {
	UserID      string             `json:"user_id"`
	Score       int                `json:"score"` // clamped to [0,100]
	Factors     map[TrustEvent]int `json:"factors"`
	LastUpdated time.Time          `json:"last_updated"`
}

// ClampTrustScore clamps a score to the [0,100] range.
func ClampTrustScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// TrustLabel maps a score to its display label. Boundary values belong to
// the higher bracket: a score of exactly 20 is "Stranger", not "Distrust".
func TrustLabel(score int) string {
	switch {
	case score < 20:
		return "Distrust"
	case score < 40:
		return "Stranger"
	case score < 60:
		return "Acquaintance"
	case score < 80:
		return "Trusted"
	default:
		return "Deep Alliance"
	}
}
