// Package engine implements the emotion, trust, and memory signal pipeline:
// a keyword emotion classifier, a 30-day trend comparator, a trust scorer,
// and the memory extraction/retrieval lifecycle.
package engine

import (
	"strings"

	"github.com/mindloom/rapport/pkg/types"
)

const (
	// classifierWindow is how many recent user turns the classifier reads.
	classifierWindow = 5

	// recentTurnWeight applies to the single most recent user turn; older
	// turns in the window get weight 1.
	recentTurnWeight = 2

	// typicalMaxHits is the assumed "typical max keyword hits" per message,
	// used to normalise raw scores into an intensity.
	typicalMaxHits = 3

	// intensityFloorTrigger and intensityFloor make any detected signal
	// visible downstream: a non-zero score never yields intensity below 0.3.
	intensityFloorTrigger = 0.2
	intensityFloor        = 0.3
)

// DefaultLexicon maps emotions to their trigger keywords. Hopeful and
// neutral carry no keywords and are only reachable as defaults. Matching is
// case-insensitive substring, so "stressed" hits "stress".
var DefaultLexicon = map[types.Emotion][]string{
	types.EmotionAnxious:  {"anxious", "worried", "nervous", "panic", "overwhelmed", "scared", "fear", "stress"},
	types.EmotionSad:      {"sad", "depressed", "hopeless", "crying", "alone", "empty", "miserable", "grief"},
	types.EmotionAngry:    {"angry", "frustrated", "furious", "hate", "rage", "irritated", "annoyed"},
	types.EmotionCalm:     {"calm", "okay", "fine", "better", "peaceful", "good", "relaxed"},
	types.EmotionConfused: {"confused", "lost", "unsure", "dont know", "unclear", "uncertain"},
}

// Classifier scores user turns against a fixed keyword lexicon. It is a pure
// function over its inputs: no state, no side effects.
type Classifier struct {
	lexicon map[types.Emotion][]string
}

// NewClassifier creates a classifier with the default lexicon.
func NewClassifier() *Classifier {
	return NewClassifierWithLexicon(nil)
}

// NewClassifierWithLexicon creates a classifier with per-emotion keyword
// overrides. Emotions absent from the override keep their default list.
func NewClassifierWithLexicon(overrides map[types.Emotion][]string) *Classifier {
	lexicon := make(map[types.Emotion][]string, len(DefaultLexicon))
	for emotion, keywords := range DefaultLexicon {
		lexicon[emotion] = keywords
	}
	for emotion, keywords := range overrides {
		if emotion.Valid() && len(keywords) > 0 {
			lexicon[emotion] = keywords
		}
	}
	return &Classifier{lexicon: lexicon}
}

// Classify scores the last 5 user-authored turns and returns the dominant
// emotion with a normalised intensity in [0,1]. With no qualifying turns it
// returns neutral at intensity 0.
func (c *Classifier) Classify(turns []types.Turn) types.EmotionSample {
	userTurns := lastUserTurns(turns, classifierWindow)
	if len(userTurns) == 0 {
		return types.EmotionSample{DominantEmotion: types.EmotionNeutral, Intensity: 0}
	}

	scores := map[types.Emotion]int{}
	maxPossibleScore := 0

	for i, text := range userTurns {
		weight := 1
		if i == len(userTurns)-1 {
			weight = recentTurnWeight
		}
		maxPossibleScore += weight * typicalMaxHits

		lowered := strings.ToLower(text)
		for emotion, keywords := range c.lexicon {
			hits := 0
			for _, kw := range keywords {
				// Distinct keywords only; repeats of one keyword in a
				// message do not count extra.
				if strings.Contains(lowered, kw) {
					hits++
				}
			}
			scores[emotion] += hits * weight
		}
	}

	// Resolve in declaration order: a later emotion takes over only with a
	// strictly greater score.
	dominant := types.EmotionNeutral
	highest := 0
	for _, emotion := range types.AllEmotions {
		if scores[emotion] > highest {
			highest = scores[emotion]
			dominant = emotion
		}
	}

	intensity := 0.0
	if maxPossibleScore > 0 {
		intensity = float64(highest) / float64(maxPossibleScore)
		if intensity > 1.0 {
			intensity = 1.0
		}
	}
	if highest > 0 && intensity < intensityFloorTrigger {
		intensity = intensityFloor
	}

	return types.EmotionSample{DominantEmotion: dominant, Intensity: intensity}
}

// lastUserTurns returns the content of the trailing n user-authored turns in
// their original order.
func lastUserTurns(turns []types.Turn, n int) []string {
	var user []string
	for _, turn := range turns {
		if turn.Role == types.RoleUser {
			user = append(user, turn.Content)
		}
	}
	if len(user) > n {
		user = user[len(user)-n:]
	}
	return user
}
