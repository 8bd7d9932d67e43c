package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/mindloom/rapport/internal/llm"
	"github.com/mindloom/rapport/internal/storage"
	"github.com/mindloom/rapport/pkg/types"
)

const (
	// backgroundWriteTimeout bounds the fire-and-forget timeline and trust
	// writes once they are detached from the request.
	backgroundWriteTimeout = 30 * time.Second

	// extractionTimeout bounds the background LLM extraction call.
	extractionTimeout = 2 * time.Minute
)

// SignalEvent is published to the optional listener whenever a background
// signal lands, feeding the live websocket feed.
type SignalEvent struct {
	Type    string      `json:"type"` // timeline_logged, trust_updated, memories_extracted
	UserID  string      `json:"user_id"`
	Payload interface{} `json:"payload,omitempty"`
}

// SignalListener receives engine events. Implementations must not block.
type SignalListener interface {
	Notify(event SignalEvent)
}

// SignalEngine orchestrates the classifier, trend comparator, trust scorer,
// and memory manager over one injected store handle. Side-effect writes
// (timeline, trust, extraction) run as detached goroutines so the primary
// response path never waits on them.
type SignalEngine struct {
	classifier *Classifier
	trend      *TrendComparator
	trust      *TrustScorer
	memories   *MemoryManager

	listener SignalListener
	wg       sync.WaitGroup
}

// Options configures optional engine collaborators.
type Options struct {
	// Lexicon overrides per-emotion classifier keywords.
	Lexicon map[types.Emotion][]string

	// Generator powers memory extraction; nil disables extraction.
	Generator llm.TextGenerator

	// Embedder powers similarity retrieval; nil disables it.
	Embedder llm.EmbeddingGenerator

	// Listener receives background signal events; nil disables publishing.
	Listener SignalListener
}

// NewSignalEngine wires the engine onto a store handle.
func NewSignalEngine(store storage.Store, opts Options) *SignalEngine {
	classifier := NewClassifierWithLexicon(opts.Lexicon)
	return &SignalEngine{
		classifier: classifier,
		trend:      NewTrendComparator(store, classifier),
		trust:      NewTrustScorer(store),
		memories:   NewMemoryManager(store, opts.Generator, opts.Embedder),
		listener:   opts.Listener,
	}
}

// ClassifyEmotion runs the keyword classifier over the turns.
func (e *SignalEngine) ClassifyEmotion(turns []types.Turn) types.EmotionSample {
	return e.classifier.Classify(turns)
}

// AnalyzeEmotionWithHistory classifies the turns and labels the trajectory
// against the user's 30-day baseline. sessionID is carried for logging
// symmetry; the computation does not use it.
func (e *SignalEngine) AnalyzeEmotionWithHistory(ctx context.Context, userID, sessionID string, turns []types.Turn) types.EmotionResult {
	_ = sessionID
	return e.trend.AnalyzeWithHistory(ctx, userID, turns)
}

// LogEmotionToTimeline appends a timeline entry in the background. The
// caller returns immediately; failures are logged only.
func (e *SignalEngine) LogEmotionToTimeline(userID, sessionID, messageID string, emotion types.Emotion, intensity float64) {
	e.spawn(func(ctx context.Context) {
		entry := types.TimelineEntry{
			UserID:    userID,
			SessionID: sessionID,
			MessageID: messageID,
			Emotion:   emotion,
			Intensity: types.ClampUnit(intensity),
		}
		if err := e.trend.timeline.AppendTimeline(ctx, &entry); err != nil {
			log.Printf("ERROR: failed to log timeline entry for %s: %v", userID, err)
			return
		}
		e.notify(SignalEvent{Type: "timeline_logged", UserID: userID, Payload: entry})
	}, backgroundWriteTimeout)
}

// GetTrustLevel returns the user's current trust score.
func (e *SignalEngine) GetTrustLevel(ctx context.Context, userID string) int {
	return e.trust.GetTrustLevel(ctx, userID)
}

// GetTrustRecord returns the full trust record with the factors audit map.
func (e *SignalEngine) GetTrustRecord(ctx context.Context, userID string) (*types.TrustRecord, error) {
	return e.trust.GetTrustRecord(ctx, userID)
}

// UpdateTrustScore applies a trust event synchronously and returns the new
// score.
func (e *SignalEngine) UpdateTrustScore(ctx context.Context, userID string, event types.TrustEvent) int {
	score := e.trust.UpdateTrustScore(ctx, userID, event)
	e.notify(SignalEvent{Type: "trust_updated", UserID: userID, Payload: map[string]interface{}{
		"event": event,
		"score": score,
	}})
	return score
}

// UpdateTrustScoreAsync applies a trust event in the background, for use
// after the response has been sent.
func (e *SignalEngine) UpdateTrustScoreAsync(userID string, event types.TrustEvent) {
	e.spawn(func(ctx context.Context) {
		e.UpdateTrustScore(ctx, userID, event)
	}, backgroundWriteTimeout)
}

// DetectVulnerability reports whether text contains a first-person distress
// marker.
func (e *SignalEngine) DetectVulnerability(text string) bool {
	return DetectVulnerability(text)
}

// ExtractMemories runs LLM memory extraction in the background.
func (e *SignalEngine) ExtractMemories(userID, sessionID string, conversation []types.Turn) {
	turns := make([]types.Turn, len(conversation))
	copy(turns, conversation)
	e.spawn(func(ctx context.Context) {
		e.memories.ExtractMemories(ctx, userID, sessionID, turns)
		e.notify(SignalEvent{Type: "memories_extracted", UserID: userID})
	}, extractionTimeout)
}

// GetRelevantMemories retrieves memories matching the query text.
func (e *SignalEngine) GetRelevantMemories(ctx context.Context, userID, query string, limit int) []types.Memory {
	return e.memories.GetRelevantMemories(ctx, userID, query, limit)
}

// GetSimilarMemories retrieves memories by embedding similarity when
// available, falling back to keyword retrieval.
func (e *SignalEngine) GetSimilarMemories(ctx context.Context, userID, query string, limit int) []types.Memory {
	return e.memories.GetSimilarMemories(ctx, userID, query, limit)
}

// GetAllMemories returns every memory for the user.
func (e *SignalEngine) GetAllMemories(ctx context.Context, userID string) []types.Memory {
	return e.memories.GetAllMemories(ctx, userID)
}

// UpdateMemoryConfidence applies a clamped additive confidence update.
func (e *SignalEngine) UpdateMemoryConfidence(ctx context.Context, id string, delta float64) error {
	return e.memories.UpdateMemoryConfidence(ctx, id, delta)
}

// PruneStaleMemories removes the user's low-confidence memories.
func (e *SignalEngine) PruneStaleMemories(ctx context.Context, userID string) int {
	return e.memories.PruneStaleMemories(ctx, userID)
}

// TurnInput is one incoming chat turn plus the recent conversation context.
type TurnInput struct {
	UserID    string
	SessionID string
	MessageID string
	Message   string
	// History is the recent conversation including the incoming message as
	// its final user turn.
	History []types.Turn
}

// TurnSignals is everything the prompt-construction layer needs for one
// turn: the emotion result, current trust, and relevant memories.
type TurnSignals struct {
	Emotion       types.EmotionResult `json:"emotion"`
	TrustScore    int                 `json:"trust_score"`
	TrustLabel    string              `json:"trust_label"`
	Memories      []types.Memory      `json:"memories"`
	Vulnerability bool                `json:"vulnerability"`
}

// ProcessTurn computes the synchronous signals for an incoming message and
// fires the background writes: timeline logging, trust update on detected
// vulnerability, and memory extraction. The returned signals are complete
// before any background work runs.
func (e *SignalEngine) ProcessTurn(ctx context.Context, input TurnInput) TurnSignals {
	emotion := e.AnalyzeEmotionWithHistory(ctx, input.UserID, input.SessionID, input.History)
	trustScore := e.GetTrustLevel(ctx, input.UserID)
	memories := e.GetRelevantMemories(ctx, input.UserID, input.Message, defaultRetrievalLimit)
	vulnerable := DetectVulnerability(input.Message)

	e.LogEmotionToTimeline(input.UserID, input.SessionID, input.MessageID, emotion.DominantEmotion, emotion.Intensity)
	if vulnerable {
		e.UpdateTrustScoreAsync(input.UserID, types.TrustVulnerabilityShown)
	}
	e.ExtractMemories(input.UserID, input.SessionID, input.History)

	return TurnSignals{
		Emotion:       emotion,
		TrustScore:    trustScore,
		TrustLabel:    types.TrustLabel(trustScore),
		Memories:      memories,
		Vulnerability: vulnerable,
	}
}

// Wait blocks until all in-flight background writes finish. Used by tests
// and graceful shutdown.
func (e *SignalEngine) Wait() {
	e.wg.Wait()
}

// spawn runs fn on a detached goroutine with its own timeout, decoupled from
// the request context.
func (e *SignalEngine) spawn(fn func(ctx context.Context), timeout time.Duration) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		fn(ctx)
	}()
}

func (e *SignalEngine) notify(event SignalEvent) {
	if e.listener != nil {
		e.listener.Notify(event)
	}
}
