package llm

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/mindloom/rapport/pkg/types"
)

// minMemoryContentLength filters out degenerate extraction results such as
// "ok" or bare punctuation.
const minMemoryContentLength = 5

// rawMemory mirrors the JSON shape the extraction prompt requests.
type rawMemory struct {
	MemoryType string `json:"memory_type"`
	Category   string `json:"category"`
	Content    string `json:"content"`
}

// memoryEnvelope covers models that wrap the array in an object despite the
// prompt asking for a bare array.
type memoryEnvelope struct {
	Memories []rawMemory `json:"memories"`
}

// ParseMemoryCandidates extracts memory candidates from an LLM response.
// It tolerates markdown code fences, leading/trailing prose, and the
// {"memories": [...]} wrapper some models produce. Entries with unknown
// types or categories are coerced to fact/other rather than dropped; entries
// with too-short content are skipped.
func ParseMemoryCandidates(raw string) ([]types.MemoryCandidate, error) {
	jsonText := extractJSONArray(raw)
	if jsonText == "" {
		return nil, fmt.Errorf("no JSON found in response")
	}

	var items []rawMemory
	if err := json.Unmarshal([]byte(jsonText), &items); err != nil {
		// Retry as an envelope object.
		var envelope memoryEnvelope
		if envErr := json.Unmarshal([]byte(jsonText), &envelope); envErr != nil {
			return nil, fmt.Errorf("failed to parse extraction response: %w", err)
		}
		items = envelope.Memories
	}

	candidates := make([]types.MemoryCandidate, 0, len(items))
	for _, item := range items {
		content := strings.TrimSpace(item.Content)
		if len(content) < minMemoryContentLength {
			continue
		}

		memoryType := types.MemoryType(item.MemoryType)
		if !memoryType.Valid() {
			log.Printf("llm: coercing unknown memory type %q to fact", item.MemoryType)
			memoryType = types.MemoryFact
		}

		category := types.MemoryCategory(item.Category)
		if !category.Valid() {
			log.Printf("llm: coercing unknown memory category %q to other", item.Category)
			category = types.CategoryOther
		}

		candidates = append(candidates, types.MemoryCandidate{
			MemoryType: memoryType,
			Category:   category,
			Content:    content,
		})
	}

	return candidates, nil
}

// extractJSONArray returns the first JSON array (or wrapper object) in text,
// stripping markdown code fences first. LLMs add explanations before and
// after the JSON despite instructions.
func extractJSONArray(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	arrStart := strings.Index(text, "[")
	objStart := strings.Index(text, "{")

	// Prefer the array unless an object opens first (the envelope case).
	start := arrStart
	open, close := byte('['), byte(']')
	if arrStart == -1 || (objStart != -1 && objStart < arrStart) {
		start = objStart
		open, close = '{', '}'
	}
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escape := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escape {
			escape = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escape = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}

	return ""
}
