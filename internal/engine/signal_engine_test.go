package engine

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mindloom/rapport/internal/storage"
	"github.com/mindloom/rapport/pkg/types"
)

// fakeStore implements storage.Store in memory for engine tests.
type fakeStore struct {
	mu       sync.Mutex
	timeline []types.TimelineEntry
	trust    map[string]*types.TrustRecord
	memories []types.Memory
}

func newFakeStore() *fakeStore {
	return &fakeStore{trust: map[string]*types.TrustRecord{}}
}

func (f *fakeStore) AppendTimeline(_ context.Context, entry *types.TimelineEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	f.timeline = append(f.timeline, *entry)
	return nil
}

func (f *fakeStore) TimelineWindow(_ context.Context, userID string, since time.Time) ([]types.TimelineEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.TimelineEntry
	for _, e := range f.timeline {
		if e.UserID == userID && !e.Timestamp.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) GetTrust(_ context.Context, userID string) (*types.TrustRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.trust[userID]
	if !ok {
		rec = &types.TrustRecord{
			UserID:  userID,
			Score:   types.InitialTrustScore,
			Factors: map[types.TrustEvent]int{},
		}
		f.trust[userID] = rec
	}
	copied := *rec
	return &copied, nil
}

func (f *fakeStore) ApplyTrustEvent(ctx context.Context, userID string, event types.TrustEvent) (*types.TrustRecord, error) {
	if _, err := f.GetTrust(ctx, userID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.trust[userID]
	rec.Score = types.ClampTrustScore(rec.Score + event.Delta())
	rec.Factors[event]++
	rec.LastUpdated = time.Now().UTC()
	copied := *rec
	return &copied, nil
}

func (f *fakeStore) InsertMemory(_ context.Context, m *types.Memory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	m.CreatedAt, m.LastReinforcedAt = now, now
	f.memories = append(f.memories, *m)
	return nil
}

func (f *fakeStore) FindMemoryBySnippet(_ context.Context, userID, snippet string) (*types.Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.memories {
		m := &f.memories[i]
		if m.UserID == userID && strings.Contains(strings.ToLower(m.Content), strings.ToLower(snippet)) {
			copied := *m
			return &copied, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) SearchMemories(_ context.Context, userID string, keywords []string, minConfidence float64, limit int) ([]types.Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Memory
	for _, m := range f.memories {
		if m.UserID != userID || m.Confidence < minConfidence {
			continue
		}
		for _, kw := range keywords {
			if strings.Contains(strings.ToLower(m.Content), strings.ToLower(kw)) {
				out = append(out, m)
				break
			}
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) RecentMemories(_ context.Context, userID string, minConfidence float64, limit int) ([]types.Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Memory
	for _, m := range f.memories {
		if m.UserID == userID && m.Confidence >= minConfidence {
			out = append(out, m)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateMemoryConfidence(_ context.Context, id string, delta float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.memories {
		if f.memories[i].ID == id {
			f.memories[i].Confidence = types.ClampUnit(f.memories[i].Confidence + delta)
			f.memories[i].LastReinforcedAt = time.Now().UTC()
			return nil
		}
	}
	return storage.ErrNotFound
}

func (f *fakeStore) PruneMemories(_ context.Context, userID string, threshold float64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []types.Memory
	pruned := 0
	for _, m := range f.memories {
		if m.UserID == userID && m.Confidence < threshold {
			pruned++
			continue
		}
		kept = append(kept, m)
	}
	f.memories = kept
	return pruned, nil
}

func (f *fakeStore) ListMemories(_ context.Context, userID string) ([]types.Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Memory
	for _, m := range f.memories {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) Close() error { return nil }

var _ storage.Store = (*fakeStore)(nil)

// fakeGenerator returns a canned extraction response.
type fakeGenerator struct {
	response string
	err      error
	mu       sync.Mutex
	prompts  []string
}

func (g *fakeGenerator) Complete(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	return g.response, g.err
}

func (g *fakeGenerator) GetModel() string { return "fake" }

func TestDetectVulnerability(t *testing.T) {
	positives := []string{
		"I feel like nothing works",
		"honestly I'M SCARED of what comes next",
		"everyone left and I'm alone now",
		"I failed the exam again",
	}
	for _, text := range positives {
		if !DetectVulnerability(text) {
			t.Errorf("DetectVulnerability(%q) = false, want true", text)
		}
	}

	negatives := []string{
		"the weather is nice today",
		"can you recommend a book",
		"",
	}
	for _, text := range negatives {
		if DetectVulnerability(text) {
			t.Errorf("DetectVulnerability(%q) = true, want false", text)
		}
	}
}

func TestTrustScorerAccumulation(t *testing.T) {
	ts := NewTrustScorer(newFakeStore())
	ctx := context.Background()

	if got := ts.GetTrustLevel(ctx, "u1"); got != types.InitialTrustScore {
		t.Errorf("initial trust = %d, want %d", got, types.InitialTrustScore)
	}

	var score int
	for i := 0; i < 5; i++ {
		score = ts.UpdateTrustScore(ctx, "u1", types.TrustVulnerabilityShown)
	}
	if score != 45 {
		t.Errorf("trust after 5 vulnerability events = %d, want 45", score)
	}
}

func TestTrustScorerUnknownEventNoChange(t *testing.T) {
	ts := NewTrustScorer(newFakeStore())
	ctx := context.Background()

	before := ts.GetTrustLevel(ctx, "u1")
	after := ts.UpdateTrustScore(ctx, "u1", types.TrustEvent("flattery"))
	if after != before {
		t.Errorf("unknown event changed score from %d to %d", before, after)
	}
}

func TestExtractMemoriesInsertsAndReinforces(t *testing.T) {
	store := newFakeStore()
	gen := &fakeGenerator{response: `[
		{"memory_type": "fact", "category": "work", "content": "Works as a software engineer at a startup"}
	]`}
	mm := NewMemoryManager(store, gen, nil)
	ctx := context.Background()

	conversation := []types.Turn{userTurn("I work as a software engineer")}

	mm.ExtractMemories(ctx, "u1", "s1", conversation)
	all := mm.GetAllMemories(ctx, "u1")
	if len(all) != 1 {
		t.Fatalf("GetAllMemories() = %d, want 1", len(all))
	}
	if all[0].Confidence != 1.0 {
		t.Errorf("new memory confidence = %v, want 1.0", all[0].Confidence)
	}
	if all[0].FirstMentionedSessionID != "s1" {
		t.Errorf("first mentioned session = %q, want s1", all[0].FirstMentionedSessionID)
	}

	// Re-extracting the same content reinforces instead of duplicating.
	mm.ExtractMemories(ctx, "u1", "s2", conversation)
	all = mm.GetAllMemories(ctx, "u1")
	if len(all) != 1 {
		t.Fatalf("GetAllMemories() after re-extract = %d, want 1", len(all))
	}
	// Confidence was already 1.0; the boost clamps.
	if all[0].Confidence != 1.0 {
		t.Errorf("reinforced confidence = %v, want 1.0", all[0].Confidence)
	}
}

func TestExtractMemoriesDedupHandlesMultibyteContent(t *testing.T) {
	store := newFakeStore()
	// Longer than the dedup prefix in bytes; a byte-based cut would split a
	// character and the lookup would miss the existing memory.
	gen := &fakeGenerator{response: `[
		{"memory_type": "pattern", "category": "other", "content": "日本語の勉強を毎晩続けている"}
	]`}
	mm := NewMemoryManager(store, gen, nil)
	ctx := context.Background()

	conversation := []types.Turn{userTurn("毎晩日本語を勉強しています")}

	mm.ExtractMemories(ctx, "u1", "s1", conversation)
	mm.ExtractMemories(ctx, "u1", "s2", conversation)

	all := mm.GetAllMemories(ctx, "u1")
	if len(all) != 1 {
		t.Fatalf("GetAllMemories() = %d, want 1 (repeat extraction must reinforce)", len(all))
	}
}

func TestExtractMemoriesSwallowsGeneratorFailure(t *testing.T) {
	store := newFakeStore()
	gen := &fakeGenerator{err: context.DeadlineExceeded}
	mm := NewMemoryManager(store, gen, nil)

	mm.ExtractMemories(context.Background(), "u1", "s1", []types.Turn{userTurn("hello")})
	if got := mm.GetAllMemories(context.Background(), "u1"); len(got) != 0 {
		t.Errorf("GetAllMemories() = %d, want 0 after failed extraction", len(got))
	}
}

func TestGetRelevantMemoriesKeywordFilter(t *testing.T) {
	store := newFakeStore()
	mm := NewMemoryManager(store, nil, nil)
	ctx := context.Background()

	seed := []types.Memory{
		{UserID: "u1", Content: "Stressed about work deadlines", Confidence: 0.9},
		{UserID: "u1", Content: "Enjoys hiking on weekends", Confidence: 0.9},
		{UserID: "u1", Content: "Work review coming up", Confidence: 0.4},
	}
	for i := range seed {
		if err := store.InsertMemory(ctx, &seed[i]); err != nil {
			t.Fatal(err)
		}
	}

	got := mm.GetRelevantMemories(ctx, "u1", "work stress deadline", 10)
	if len(got) != 1 {
		t.Fatalf("GetRelevantMemories() = %d, want 1 (keyword match above confidence floor)", len(got))
	}
	if !strings.Contains(got[0].Content, "work deadlines") {
		t.Errorf("retrieved %q, want the work deadlines memory", got[0].Content)
	}
}

func TestGetRelevantMemoriesShortTokensFallBack(t *testing.T) {
	store := newFakeStore()
	mm := NewMemoryManager(store, nil, nil)
	ctx := context.Background()

	m := types.Memory{UserID: "u1", Content: "Recently adopted a dog", Confidence: 0.8}
	if err := store.InsertMemory(ctx, &m); err != nil {
		t.Fatal(err)
	}

	// All tokens are 3 characters or fewer; retrieval falls back to recency.
	got := mm.GetRelevantMemories(ctx, "u1", "is it ok", 10)
	if len(got) != 1 {
		t.Errorf("GetRelevantMemories() = %d, want 1 via recency fallback", len(got))
	}
}

func TestProcessTurnSignalsAndBackgroundWrites(t *testing.T) {
	store := newFakeStore()
	gen := &fakeGenerator{response: `[{"memory_type": "fact", "category": "other", "content": "Has an exam next week"}]`}
	eng := NewSignalEngine(store, Options{Generator: gen})
	ctx := context.Background()

	signals := eng.ProcessTurn(ctx, TurnInput{
		UserID:    "u1",
		SessionID: "s1",
		MessageID: "m1",
		Message:   "I'm scared I will fail my exam, so worried",
		History: []types.Turn{
			userTurn("I'm scared I will fail my exam, so worried"),
		},
	})

	if signals.Emotion.DominantEmotion != types.EmotionAnxious {
		t.Errorf("dominant = %s, want anxious", signals.Emotion.DominantEmotion)
	}
	if signals.Emotion.Trend != types.TrendUnknown {
		t.Errorf("trend = %s, want unknown on first turn", signals.Emotion.Trend)
	}
	if !signals.Vulnerability {
		t.Error("vulnerability = false, want true")
	}
	// Trust is read before the background vulnerability event applies.
	if signals.TrustScore != types.InitialTrustScore {
		t.Errorf("trust = %d, want initial %d", signals.TrustScore, types.InitialTrustScore)
	}
	if signals.TrustLabel != "Stranger" {
		t.Errorf("trust label = %q, want Stranger", signals.TrustLabel)
	}

	eng.Wait()

	if len(store.timeline) != 1 {
		t.Fatalf("timeline entries = %d, want 1 after background write", len(store.timeline))
	}
	if store.timeline[0].Emotion != types.EmotionAnxious {
		t.Errorf("logged emotion = %s, want anxious", store.timeline[0].Emotion)
	}
	if got := eng.GetTrustLevel(ctx, "u1"); got != types.InitialTrustScore+5 {
		t.Errorf("trust after vulnerability event = %d, want %d", got, types.InitialTrustScore+5)
	}
	if got := eng.GetAllMemories(ctx, "u1"); len(got) != 1 {
		t.Errorf("memories after extraction = %d, want 1", len(got))
	}
}

func TestProcessTurnNoVulnerabilityNoTrustEvent(t *testing.T) {
	store := newFakeStore()
	eng := NewSignalEngine(store, Options{})
	ctx := context.Background()

	eng.ProcessTurn(ctx, TurnInput{
		UserID:    "u1",
		SessionID: "s1",
		MessageID: "m1",
		Message:   "what a lovely morning",
		History:   []types.Turn{userTurn("what a lovely morning")},
	})
	eng.Wait()

	if got := eng.GetTrustLevel(ctx, "u1"); got != types.InitialTrustScore {
		t.Errorf("trust = %d, want unchanged %d", got, types.InitialTrustScore)
	}
}

type recordingListener struct {
	mu     sync.Mutex
	events []SignalEvent
}

func (l *recordingListener) Notify(event SignalEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func TestEngineNotifiesListener(t *testing.T) {
	store := newFakeStore()
	listener := &recordingListener{}
	eng := NewSignalEngine(store, Options{Listener: listener})

	eng.LogEmotionToTimeline("u1", "s1", "m1", types.EmotionCalm, 0.4)
	eng.Wait()

	listener.mu.Lock()
	defer listener.mu.Unlock()
	if len(listener.events) != 1 || listener.events[0].Type != "timeline_logged" {
		t.Errorf("listener events = %+v, want one timeline_logged", listener.events)
	}
}
