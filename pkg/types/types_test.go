package types

import "testing"

func TestEmotionValid(t *testing.T) {
	for _, e := range AllEmotions {
		if !e.Valid() {
			t.Errorf("expected %q to be valid", e)
		}
	}
	if Emotion("ecstatic").Valid() {
		t.Error("expected unknown emotion to be invalid")
	}
}

func TestEmotionPolarity(t *testing.T) {
	negatives := []Emotion{EmotionAnxious, EmotionSad, EmotionAngry, EmotionConfused}
	for _, e := range negatives {
		if !e.IsNegative() {
			t.Errorf("expected %q to be negative", e)
		}
		if e.IsPositive() {
			t.Errorf("expected %q not to be positive", e)
		}
	}

	positives := []Emotion{EmotionCalm, EmotionHopeful}
	for _, e := range positives {
		if !e.IsPositive() {
			t.Errorf("expected %q to be positive", e)
		}
	}

	// Neutral sits outside both sets.
	if EmotionNeutral.IsNegative() || EmotionNeutral.IsPositive() {
		t.Error("expected neutral to be neither negative nor positive")
	}
}

func TestClampUnit(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.42, 0.42},
		{1, 1},
		{1.7, 1},
	}
	for _, tc := range cases {
		if got := ClampUnit(tc.in); got != tc.want {
			t.Errorf("ClampUnit(%f) = %f, want %f", tc.in, got, tc.want)
		}
	}
}

func TestTrustEventDeltas(t *testing.T) {
	cases := []struct {
		event TrustEvent
		delta int
	}{
		{TrustVulnerabilityShown, 5},
		{TrustSessionCompleted, 2},
		{TrustContradictionDetected, -3},
		{TrustLongPause, -1},
		{TrustDeepQuestionAnswered, 3},
		{TrustResistanceShown, -2},
	}
	for _, tc := range cases {
		if !tc.event.Valid() {
			t.Errorf("expected %q to be valid", tc.event)
		}
		if got := tc.event.Delta(); got != tc.delta {
			t.Errorf("%s delta = %d, want %d", tc.event, got, tc.delta)
		}
	}

	if TrustEvent("bribed").Valid() {
		t.Error("expected unknown event to be invalid")
	}
	if TrustEvent("bribed").Delta() != 0 {
		t.Error("expected unknown event delta to be 0")
	}
}

func TestClampTrustScore(t *testing.T) {
	cases := []struct{ in, want int }{
		{-1, 0},
		{0, 0},
		{20, 20},
		{100, 100},
		{105, 100},
	}
	for _, tc := range cases {
		if got := ClampTrustScore(tc.in); got != tc.want {
			t.Errorf("ClampTrustScore(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

// TestTrustLabelBoundaries verifies that boundary scores belong to the
// higher bracket (score 20 is "Stranger", not "Distrust").
func TestTrustLabelBoundaries(t *testing.T) {
	cases := []struct {
		score int
		want  string
	}{
		{0, "Distrust"},
		{19, "Distrust"},
		{20, "Stranger"},
		{39, "Stranger"},
		{40, "Acquaintance"},
		{59, "Acquaintance"},
		{60, "Trusted"},
		{79, "Trusted"},
		{80, "Deep Alliance"},
		{100, "Deep Alliance"},
	}
	for _, tc := range cases {
		if got := TrustLabel(tc.score); got != tc.want {
			t.Errorf("TrustLabel(%d) = %q, want %q", tc.score, got, tc.want)
		}
	}
}

func TestMemoryEnums(t *testing.T) {
	for _, mt := range []MemoryType{MemoryFact, MemoryPreference, MemoryRelationship, MemoryPattern, MemoryVocabulary} {
		if !mt.Valid() {
			t.Errorf("expected memory type %q to be valid", mt)
		}
	}
	if MemoryType("rumor").Valid() {
		t.Error("expected unknown memory type to be invalid")
	}

	for _, c := range []MemoryCategory{CategoryWork, CategoryFamily, CategoryHealth, CategoryIdentity, CategoryTrauma, CategoryOther, CategoryLanguage} {
		if !c.Valid() {
			t.Errorf("expected category %q to be valid", c)
		}
	}
	if MemoryCategory("astrology").Valid() {
		t.Error("expected unknown category to be invalid")
	}
}
