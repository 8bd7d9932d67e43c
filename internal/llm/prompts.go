// Package llm provides LLM integration for memory extraction. It includes a
// strict JSON-only prompt template and a response parser that work with
// Ollama, OpenAI, and Anthropic models.
package llm

import (
	"fmt"
	"strings"

	"github.com/mindloom/rapport/pkg/types"
)

// extractionPromptTemplate asks the model to pull durable facts and
// linguistic patterns out of a conversation. The vocabulary category exists
// so the agent can echo the user's own phrasing back to them.
const extractionPromptTemplate = `You are a memory extraction system for a conversational support agent. Analyze this conversation and extract factual memories AND linguistic patterns about the user.

CONVERSATION:
%s

Extract memories in these categories:
- fact: Concrete facts about the user ("Works as a software engineer", "Has 2 kids aged 5 and 8")
- preference: Likes/dislikes ("Prefers morning exercise", "Hates confrontation")
- relationship: Info about relationships ("Mother is critical", "Best friend lives abroad")
- pattern: Behavioral patterns ("Avoids conflict", "Overthinks decisions")
- vocabulary: User's unique idioms, emotional vocabulary, and specific phrasings they use repeatedly ("Uses 'freaking out' to describe anxiety", "Says 'I'm drowning' when overwhelmed")

IMPORTANT FOR VOCABULARY:
- Extract the EXACT words and phrases the user uses to describe their emotions and situations
- Look for repeated patterns in how they express themselves
- Note specific metaphors or colloquialisms they favor

Return ONLY memories that are explicitly stated or strongly implied. Do not infer too much.

Format as JSON array:
[
  {"memory_type": "fact", "category": "work", "content": "Works as a software engineer"},
  {"memory_type": "relationship", "category": "family", "content": "Mother is very critical"},
  {"memory_type": "vocabulary", "category": "language", "content": "Uses 'freaking out' to describe anxiety"}
]`

// BuildExtractionPrompt serialises the conversation and embeds it in the
// extraction prompt. Turns are rendered as "ROLE: content" blocks.
func BuildExtractionPrompt(conversation []types.Turn) string {
	var sb strings.Builder
	for i, turn := range conversation {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(strings.ToUpper(turn.Role))
		sb.WriteString(": ")
		sb.WriteString(turn.Content)
	}
	return fmt.Sprintf(extractionPromptTemplate, sb.String())
}
