// Package types defines the shared domain types for the Rapport signal
// engine: emotion labels and samples, trust records, and long-term memories.
package types

import "time"

// Emotion is a label from the closed emotion enum. The classifier can only
// ever produce one of the seven constants below.
type Emotion string

const (
	EmotionAnxious  Emotion = "anxious"
	EmotionSad      Emotion = "sad"
	EmotionAngry    Emotion = "angry"
	EmotionCalm     Emotion = "calm"
	EmotionConfused Emotion = "confused"
	EmotionHopeful  Emotion = "hopeful"
	EmotionNeutral  Emotion = "neutral"
)

// AllEmotions lists every valid emotion label in classifier scoring order.
// The classifier breaks score ties by position in this slice, so the order
// is part of the contract and must not be changed.
var AllEmotions = []Emotion{
	EmotionAnxious,
	EmotionSad,
	EmotionAngry,
	EmotionCalm,
	EmotionConfused,
	EmotionHopeful,
	EmotionNeutral,
}

// Valid reports whether e is one of the seven known emotion labels.
func (e Emotion) Valid() bool {
	switch e {
	case EmotionAnxious, EmotionSad, EmotionAngry, EmotionCalm,
		EmotionConfused, EmotionHopeful, EmotionNeutral:
		return true
	}
	return false
}

// IsNegative reports whether e belongs to the negative emotion set used by
// the trend comparator.
func (e Emotion) IsNegative() bool {
	switch e {
	case EmotionAnxious, EmotionSad, EmotionAngry, EmotionConfused:
		return true
	}
	return false
}

// IsPositive reports whether e belongs to the positive emotion set used by
// the trend comparator. Neutral is neither positive nor negative.
func (e Emotion) IsPositive() bool {
	return e == EmotionCalm || e == EmotionHopeful
}

// Trend describes how the current emotion compares to a user's 30-day
// baseline.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendWorsening Trend = "worsening"
	TrendStable    Trend = "stable"
	TrendUnknown   Trend = "unknown"
)

// Turn is a single chat message as supplied by the calling layer.
type Turn struct {
	Role    string `json:"role"`    // "user" or "assistant"
	Content string `json:"content"` // raw message text
}

// Chat turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// EmotionSample is one classification result. It is derived per request and
// never persisted directly; the timeline stores TimelineEntry rows instead.
type EmotionSample struct {
	DominantEmotion Emotion `json:"dominant_emotion"`
	Intensity       float64 `json:"intensity"` // normalized to [0,1]
}

// EmotionBaseline summarizes a user's trailing 30-day window: the most
// frequent emotion and the mean intensity of entries carrying that emotion.
type EmotionBaseline struct {
	Emotion      Emotion `json:"emotion"`
	AvgIntensity float64 `json:"avg_intensity"`
}

// EmotionResult is the engine's externally visible emotion output for one
// chat turn. Baseline is nil when no history exists (trend "unknown").
type EmotionResult struct {
	DominantEmotion Emotion          `json:"dominant_emotion"`
	Intensity       float64          `json:"intensity"`
	Trend           Trend            `json:"trend"`
	Baseline        *EmotionBaseline `json:"baseline,omitempty"`
}

// TimelineEntry is one append-only row in the emotion timeline. Entries are
// never mutated or deleted once written.
type TimelineEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	MessageID string    `json:"message_id"`
	Emotion   Emotion   `json:"emotion"`
	Intensity float64   `json:"intensity"`
	Timestamp time.Time `json:"timestamp"`
}

// ClampUnit clamps v to the [0,1] range used for intensity and confidence.
func ClampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
