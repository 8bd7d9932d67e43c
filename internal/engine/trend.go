package engine

import (
	"context"
	"log"
	"time"

	"github.com/mindloom/rapport/internal/storage"
	"github.com/mindloom/rapport/pkg/types"
)

const (
	// baselineWindow is the trailing period the comparator reads from the
	// timeline.
	baselineWindow = 30 * 24 * time.Hour

	// trendBand is the dead zone around the baseline average: intensity
	// shifts within ±0.15 of the baseline read as stable.
	trendBand = 0.15
)

// TrendComparator labels the trajectory of the user's current emotion
// against their personal 30-day baseline.
type TrendComparator struct {
	timeline   storage.TimelineStore
	classifier *Classifier
}

// NewTrendComparator creates a comparator reading from the given timeline.
func NewTrendComparator(timeline storage.TimelineStore, classifier *Classifier) *TrendComparator {
	return &TrendComparator{timeline: timeline, classifier: classifier}
}

// AnalyzeWithHistory classifies the current turns and compares the result
// against the user's 30-day baseline. Timeline failures and empty history
// both degrade to trend "unknown" with a nil baseline; this method never
// returns an error to the caller.
func (tc *TrendComparator) AnalyzeWithHistory(ctx context.Context, userID string, turns []types.Turn) types.EmotionResult {
	current := tc.classifier.Classify(turns)

	result := types.EmotionResult{
		DominantEmotion: current.DominantEmotion,
		Intensity:       current.Intensity,
		Trend:           types.TrendUnknown,
	}

	since := time.Now().UTC().Add(-baselineWindow)
	entries, err := tc.timeline.TimelineWindow(ctx, userID, since)
	if err != nil {
		log.Printf("ERROR: trend comparator failed to read timeline for %s: %v", userID, err)
		return result
	}
	if len(entries) == 0 {
		return result
	}

	baseline := computeBaseline(entries)
	result.Baseline = &baseline
	result.Trend = classifyTrend(current, baseline)
	return result
}

// computeBaseline finds the most frequent emotion in the window (ties broken
// by first-encountered during the scan) and averages the intensity of the
// entries carrying that emotion only.
func computeBaseline(entries []types.TimelineEntry) types.EmotionBaseline {
	counts := map[types.Emotion]int{}
	var order []types.Emotion
	for _, e := range entries {
		if counts[e.Emotion] == 0 {
			order = append(order, e.Emotion)
		}
		counts[e.Emotion]++
	}

	baselineEmotion := order[0]
	for _, emotion := range order {
		if counts[emotion] > counts[baselineEmotion] {
			baselineEmotion = emotion
		}
	}

	var sum float64
	var n int
	for _, e := range entries {
		if e.Emotion == baselineEmotion {
			sum += e.Intensity
			n++
		}
	}

	return types.EmotionBaseline{Emotion: baselineEmotion, AvgIntensity: sum / float64(n)}
}

// classifyTrend applies the polarity transition rules. Combinations not
// explicitly enumerated (neutral on either side) read as stable.
func classifyTrend(current types.EmotionSample, baseline types.EmotionBaseline) types.Trend {
	currentNegative := current.DominantEmotion.IsNegative()
	baselineNegative := baseline.Emotion.IsNegative()

	switch {
	case currentNegative && baselineNegative:
		switch {
		case current.Intensity < baseline.AvgIntensity-trendBand:
			return types.TrendImproving
		case current.Intensity > baseline.AvgIntensity+trendBand:
			return types.TrendWorsening
		default:
			return types.TrendStable
		}
	case !currentNegative && baselineNegative:
		return types.TrendImproving
	case currentNegative && !baselineNegative:
		return types.TrendWorsening
	default:
		return types.TrendStable
	}
}
