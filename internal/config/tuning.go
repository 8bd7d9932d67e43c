package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mindloom/rapport/pkg/types"
)

// TuningConfig carries the classifier keyword overrides loaded from the
// optional YAML tuning file. Deployments localise or extend the emotion
// lexicon here without rebuilding.
//
// File shape:
//
//	lexicon:
//	  anxious: ["anxious", "worried", "on edge"]
//	  sad: ["sad", "down", "blue"]
type TuningConfig struct {
	Lexicon map[string][]string `yaml:"lexicon"`
}

// LoadTuning reads the tuning file at path. An empty path returns an empty
// config; a missing file is an error so typos in RAPPORT_TUNING_PATH surface
// at startup instead of silently running with defaults.
func LoadTuning(path string) (*TuningConfig, error) {
	if path == "" {
		return &TuningConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read tuning file %s: %w", path, err)
	}

	var tuning TuningConfig
	if err := yaml.Unmarshal(data, &tuning); err != nil {
		return nil, fmt.Errorf("config: failed to parse tuning file %s: %w", path, err)
	}

	for label := range tuning.Lexicon {
		if !types.Emotion(label).Valid() {
			return nil, fmt.Errorf("config: tuning file %s references unknown emotion %q", path, label)
		}
	}

	return &tuning, nil
}

// EmotionLexicon converts the raw lexicon map to typed emotion keys for the
// classifier. Returns nil when no overrides are configured.
func (t *TuningConfig) EmotionLexicon() map[types.Emotion][]string {
	if len(t.Lexicon) == 0 {
		return nil
	}
	lexicon := make(map[types.Emotion][]string, len(t.Lexicon))
	for label, keywords := range t.Lexicon {
		lexicon[types.Emotion(label)] = keywords
	}
	return lexicon
}
