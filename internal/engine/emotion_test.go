package engine

import (
	"context"
	"testing"
	"time"

	"github.com/mindloom/rapport/pkg/types"
)

func userTurn(content string) types.Turn {
	return types.Turn{Role: types.RoleUser, Content: content}
}

func assistantTurn(content string) types.Turn {
	return types.Turn{Role: types.RoleAssistant, Content: content}
}

func TestClassifyNoUserTurns(t *testing.T) {
	c := NewClassifier()

	got := c.Classify([]types.Turn{assistantTurn("How are you feeling today?")})
	if got.DominantEmotion != types.EmotionNeutral || got.Intensity != 0 {
		t.Errorf("Classify() = %+v, want neutral at 0", got)
	}

	got = c.Classify(nil)
	if got.DominantEmotion != types.EmotionNeutral || got.Intensity != 0 {
		t.Errorf("Classify(nil) = %+v, want neutral at 0", got)
	}
}

func TestClassifySingleKeyword(t *testing.T) {
	c := NewClassifier()

	got := c.Classify([]types.Turn{userTurn("I've been so worried lately")})
	if got.DominantEmotion != types.EmotionAnxious {
		t.Errorf("dominant = %s, want anxious", got.DominantEmotion)
	}
	// One hit at weight 2 over a max of 2*3: intensity 1/3, above the floor
	// trigger so no bump.
	if got.Intensity < 0.33 || got.Intensity > 0.34 {
		t.Errorf("intensity = %v, want ~0.333", got.Intensity)
	}
}

func TestClassifyIntensityFloor(t *testing.T) {
	c := NewClassifier()

	// One keyword hit in the oldest of five turns: score 1 over max 18,
	// raw intensity ~0.055, floored to 0.3.
	turns := []types.Turn{
		userTurn("I feel so sad today"),
		userTurn("the weather was nice"),
		userTurn("went to the store"),
		userTurn("watched a movie"),
		userTurn("talked to my sister"),
	}
	got := c.Classify(turns)
	if got.DominantEmotion != types.EmotionSad {
		t.Errorf("dominant = %s, want sad", got.DominantEmotion)
	}
	if got.Intensity != 0.3 {
		t.Errorf("intensity = %v, want floor of 0.3", got.Intensity)
	}
}

func TestClassifyRecencyWeighting(t *testing.T) {
	c := NewClassifier()

	// One angry hit at weight 1 vs one calm hit at weight 2.
	turns := []types.Turn{
		userTurn("I was so angry yesterday"),
		userTurn("today I feel calm"),
	}
	got := c.Classify(turns)
	if got.DominantEmotion != types.EmotionCalm {
		t.Errorf("dominant = %s, want calm (recent turn carries double weight)", got.DominantEmotion)
	}
}

func TestClassifyTieBreakDeclarationOrder(t *testing.T) {
	c := NewClassifier()

	// One anxious hit and one sad hit in the same turn score equally;
	// anxious wins by declaration order.
	got := c.Classify([]types.Turn{userTurn("worried and sad at the same time")})
	if got.DominantEmotion != types.EmotionAnxious {
		t.Errorf("dominant = %s, want anxious on tie", got.DominantEmotion)
	}
}

func TestClassifyDistinctKeywordsOnly(t *testing.T) {
	c := NewClassifier()

	// The same keyword repeated does not score extra: one distinct hit.
	repeated := c.Classify([]types.Turn{userTurn("sad sad sad sad")})
	single := c.Classify([]types.Turn{userTurn("feeling sad")})
	if repeated.Intensity != single.Intensity {
		t.Errorf("repeated keyword intensity %v != single keyword intensity %v", repeated.Intensity, single.Intensity)
	}
}

func TestClassifyWindowKeepsLastFive(t *testing.T) {
	c := NewClassifier()

	// The angry turn falls outside the 5-turn window.
	turns := []types.Turn{
		userTurn("furious about everything"),
		userTurn("nothing much"),
		userTurn("nothing much"),
		userTurn("nothing much"),
		userTurn("nothing much"),
		userTurn("nothing much"),
	}
	got := c.Classify(turns)
	if got.DominantEmotion != types.EmotionNeutral {
		t.Errorf("dominant = %s, want neutral (angry turn outside window)", got.DominantEmotion)
	}
}

func TestClassifyIntensityBounds(t *testing.T) {
	c := NewClassifier()

	// A keyword-stuffed message can exceed the assumed typical max; the
	// intensity still clamps to 1.
	got := c.Classify([]types.Turn{
		userTurn("anxious worried nervous panic overwhelmed scared fear stress"),
	})
	if got.Intensity < 0 || got.Intensity > 1 {
		t.Errorf("intensity = %v, want within [0,1]", got.Intensity)
	}
}

func TestClassifierLexiconOverride(t *testing.T) {
	c := NewClassifierWithLexicon(map[types.Emotion][]string{
		types.EmotionAngry: {"seething"},
	})

	got := c.Classify([]types.Turn{userTurn("absolutely seething right now")})
	if got.DominantEmotion != types.EmotionAngry {
		t.Errorf("dominant = %s, want angry via override keyword", got.DominantEmotion)
	}

	// Overriding one emotion leaves the default lists for the others.
	got = c.Classify([]types.Turn{userTurn("so worried about it")})
	if got.DominantEmotion != types.EmotionAnxious {
		t.Errorf("dominant = %s, want anxious via default keyword", got.DominantEmotion)
	}
}

// fakeTimeline implements storage.TimelineStore in memory.
type fakeTimeline struct {
	entries []types.TimelineEntry
	fail    bool
}

func (f *fakeTimeline) AppendTimeline(_ context.Context, entry *types.TimelineEntry) error {
	if f.fail {
		return context.DeadlineExceeded
	}
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeTimeline) TimelineWindow(_ context.Context, userID string, since time.Time) ([]types.TimelineEntry, error) {
	if f.fail {
		return nil, context.DeadlineExceeded
	}
	var out []types.TimelineEntry
	for _, e := range f.entries {
		if e.UserID == userID && !e.Timestamp.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func seedTimeline(userID string, samples ...types.EmotionSample) *fakeTimeline {
	f := &fakeTimeline{}
	now := time.Now().UTC()
	for i, s := range samples {
		f.entries = append(f.entries, types.TimelineEntry{
			UserID:    userID,
			Emotion:   s.DominantEmotion,
			Intensity: s.Intensity,
			Timestamp: now.Add(-time.Duration(len(samples)-i) * time.Hour),
		})
	}
	return f
}

func TestTrendNoHistory(t *testing.T) {
	tc := NewTrendComparator(&fakeTimeline{}, NewClassifier())

	got := tc.AnalyzeWithHistory(context.Background(), "u1", []types.Turn{userTurn("feeling sad")})
	if got.Trend != types.TrendUnknown {
		t.Errorf("trend = %s, want unknown", got.Trend)
	}
	if got.Baseline != nil {
		t.Errorf("baseline = %+v, want nil", got.Baseline)
	}
}

func TestTrendTimelineFailureFailsSoft(t *testing.T) {
	tc := NewTrendComparator(&fakeTimeline{fail: true}, NewClassifier())

	got := tc.AnalyzeWithHistory(context.Background(), "u1", []types.Turn{userTurn("feeling sad")})
	if got.Trend != types.TrendUnknown || got.Baseline != nil {
		t.Errorf("failed read should degrade to unknown/nil, got %s/%+v", got.Trend, got.Baseline)
	}
	if got.DominantEmotion != types.EmotionSad {
		t.Errorf("classification should survive timeline failure, got %s", got.DominantEmotion)
	}
}

func TestClassifyTrendTransitions(t *testing.T) {
	cases := []struct {
		name     string
		current  types.EmotionSample
		baseline types.EmotionBaseline
		want     types.Trend
	}{
		{"negative easing", types.EmotionSample{DominantEmotion: types.EmotionSad, Intensity: 0.2},
			types.EmotionBaseline{Emotion: types.EmotionSad, AvgIntensity: 0.5}, types.TrendImproving},
		{"negative within band", types.EmotionSample{DominantEmotion: types.EmotionSad, Intensity: 0.45},
			types.EmotionBaseline{Emotion: types.EmotionSad, AvgIntensity: 0.5}, types.TrendStable},
		{"negative intensifying", types.EmotionSample{DominantEmotion: types.EmotionAngry, Intensity: 0.8},
			types.EmotionBaseline{Emotion: types.EmotionAnxious, AvgIntensity: 0.4}, types.TrendWorsening},
		{"negative to positive", types.EmotionSample{DominantEmotion: types.EmotionCalm, Intensity: 0.1},
			types.EmotionBaseline{Emotion: types.EmotionSad, AvgIntensity: 0.3}, types.TrendImproving},
		{"positive to negative", types.EmotionSample{DominantEmotion: types.EmotionSad, Intensity: 0.4},
			types.EmotionBaseline{Emotion: types.EmotionCalm, AvgIntensity: 0.3}, types.TrendWorsening},
		{"both positive", types.EmotionSample{DominantEmotion: types.EmotionHopeful, Intensity: 0.5},
			types.EmotionBaseline{Emotion: types.EmotionCalm, AvgIntensity: 0.5}, types.TrendStable},
		{"neutral baseline", types.EmotionSample{DominantEmotion: types.EmotionCalm, Intensity: 0.5},
			types.EmotionBaseline{Emotion: types.EmotionNeutral, AvgIntensity: 0.2}, types.TrendStable},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyTrend(tt.current, tt.baseline); got != tt.want {
				t.Errorf("classifyTrend() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestComputeBaselineMajorityAndAverage(t *testing.T) {
	f := seedTimeline("u1",
		types.EmotionSample{DominantEmotion: types.EmotionSad, Intensity: 0.4},
		types.EmotionSample{DominantEmotion: types.EmotionSad, Intensity: 0.6},
		types.EmotionSample{DominantEmotion: types.EmotionCalm, Intensity: 0.9},
	)

	baseline := computeBaseline(f.entries)
	if baseline.Emotion != types.EmotionSad {
		t.Errorf("baseline emotion = %s, want sad (majority)", baseline.Emotion)
	}
	// Average over sad entries only, not the whole window.
	if baseline.AvgIntensity != 0.5 {
		t.Errorf("baseline avg = %v, want 0.5", baseline.AvgIntensity)
	}
}

func TestComputeBaselineTieFirstEncountered(t *testing.T) {
	f := seedTimeline("u1",
		types.EmotionSample{DominantEmotion: types.EmotionAngry, Intensity: 0.5},
		types.EmotionSample{DominantEmotion: types.EmotionSad, Intensity: 0.5},
	)

	baseline := computeBaseline(f.entries)
	if baseline.Emotion != types.EmotionAngry {
		t.Errorf("baseline emotion = %s, want angry (first encountered on tie)", baseline.Emotion)
	}
}

func TestTrendEndToEnd(t *testing.T) {
	f := seedTimeline("u1",
		types.EmotionSample{DominantEmotion: types.EmotionSad, Intensity: 0.5},
		types.EmotionSample{DominantEmotion: types.EmotionSad, Intensity: 0.5},
	)
	tc := NewTrendComparator(f, NewClassifier())

	// Current classification: calm at some intensity; baseline sad →
	// improving.
	got := tc.AnalyzeWithHistory(context.Background(), "u1", []types.Turn{userTurn("feeling calm today")})
	if got.Trend != types.TrendImproving {
		t.Errorf("trend = %s, want improving", got.Trend)
	}
	if got.Baseline == nil || got.Baseline.Emotion != types.EmotionSad {
		t.Errorf("baseline = %+v, want sad", got.Baseline)
	}
}
