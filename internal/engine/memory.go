package engine

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/mindloom/rapport/internal/llm"
	"github.com/mindloom/rapport/internal/storage"
	"github.com/mindloom/rapport/pkg/types"
)

const (
	// dedupSnippetLength is how much of a candidate's content is used for
	// the near-duplicate lookup before insertion.
	dedupSnippetLength = 20

	// retrievalKeywordMinLength drops short query tokens ("at", "the")
	// before keyword retrieval.
	retrievalKeywordMinLength = 3

	defaultRetrievalLimit = 10
)

// MemoryManager owns the memory lifecycle: LLM-backed extraction, keyword
// retrieval, confidence maintenance, and pruning.
//
// Every operation swallows its own errors and degrades to an empty or no-op
// result. Memory subsystem failures must never break the conversational flow.
type MemoryManager struct {
	store     storage.MemoryStore
	generator llm.TextGenerator
	embedder  llm.EmbeddingGenerator // nil when similarity retrieval is disabled
}

// NewMemoryManager creates a manager. generator may be nil, which disables
// extraction; embedder may be nil, which disables embedding storage.
func NewMemoryManager(store storage.MemoryStore, generator llm.TextGenerator, embedder llm.EmbeddingGenerator) *MemoryManager {
	return &MemoryManager{store: store, generator: generator, embedder: embedder}
}

// ExtractMemories sends the conversation to the extraction model and stores
// the surviving candidates. Candidates whose content prefix already appears
// in an existing memory reinforce that memory instead of inserting.
//
// Callers run this in the background; it logs failures and never returns an
// error.
func (mm *MemoryManager) ExtractMemories(ctx context.Context, userID, sessionID string, conversation []types.Turn) {
	if mm.generator == nil || len(conversation) == 0 {
		return
	}

	raw, err := mm.generator.Complete(ctx, llm.BuildExtractionPrompt(conversation))
	if err != nil {
		log.Printf("ERROR: memory extraction call failed for %s: %v", userID, err)
		return
	}

	candidates, err := llm.ParseMemoryCandidates(raw)
	if err != nil {
		log.Printf("ERROR: memory extraction returned unparseable output for %s: %v", userID, err)
		return
	}

	for _, candidate := range candidates {
		mm.storeCandidate(ctx, userID, sessionID, candidate)
	}
}

// storeCandidate reinforces a near-duplicate or inserts a new memory at full
// confidence.
func (mm *MemoryManager) storeCandidate(ctx context.Context, userID, sessionID string, candidate types.MemoryCandidate) {
	// Prefix by runes, not bytes: a byte slice could split a multi-byte
	// character and feed invalid UTF-8 into the lookup.
	snippet := candidate.Content
	if runes := []rune(snippet); len(runes) > dedupSnippetLength {
		snippet = string(runes[:dedupSnippetLength])
	}

	existing, err := mm.store.FindMemoryBySnippet(ctx, userID, snippet)
	switch {
	case err == nil:
		if err := mm.store.UpdateMemoryConfidence(ctx, existing.ID, storage.ReinforcementBoost); err != nil {
			log.Printf("ERROR: failed to reinforce memory %s: %v", existing.ID, err)
		}
		return
	case !errors.Is(err, storage.ErrNotFound):
		log.Printf("ERROR: memory dedup lookup failed for %s: %v", userID, err)
		return
	}

	m := &types.Memory{
		UserID:                  userID,
		MemoryType:              candidate.MemoryType,
		Category:                candidate.Category,
		Content:                 candidate.Content,
		Confidence:              1.0,
		FirstMentionedSessionID: sessionID,
	}
	if err := mm.store.InsertMemory(ctx, m); err != nil {
		log.Printf("ERROR: failed to insert memory for %s: %v", userID, err)
		return
	}

	mm.attachEmbedding(ctx, m)
}

// attachEmbedding stores an embedding for the new memory when both an
// embedder and a similarity-capable store are available.
func (mm *MemoryManager) attachEmbedding(ctx context.Context, m *types.Memory) {
	if mm.embedder == nil {
		return
	}
	searcher, ok := mm.store.(storage.SimilaritySearcher)
	if !ok {
		return
	}

	vec, err := mm.embedder.Embed(ctx, m.Content)
	if err != nil {
		log.Printf("Warning: failed to embed memory %s: %v", m.ID, err)
		return
	}
	if err := searcher.StoreMemoryEmbedding(ctx, m.ID, vec); err != nil && !errors.Is(err, storage.ErrNotSupported) {
		// ErrNotFound here means the insert landed as a reinforcement of an
		// existing row; the embedding is simply skipped.
		if !errors.Is(err, storage.ErrNotFound) {
			log.Printf("Warning: failed to store embedding for memory %s: %v", m.ID, err)
		}
	}
}

// GetRelevantMemories retrieves memories matching the query. Query tokens
// longer than 3 characters become keywords; with no usable keywords it falls
// back to the most recently reinforced memories. Failures return nil.
func (mm *MemoryManager) GetRelevantMemories(ctx context.Context, userID, query string, limit int) []types.Memory {
	if limit < 1 {
		limit = defaultRetrievalLimit
	}

	keywords := extractKeywords(query)

	var memories []types.Memory
	var err error
	if len(keywords) == 0 {
		memories, err = mm.store.RecentMemories(ctx, userID, storage.RetrievalMinConfidence, limit)
	} else {
		memories, err = mm.store.SearchMemories(ctx, userID, keywords, storage.RetrievalMinConfidence, limit)
	}
	if err != nil {
		log.Printf("ERROR: memory retrieval failed for %s: %v", userID, err)
		return nil
	}
	return memories
}

// GetSimilarMemories retrieves memories by embedding similarity when the
// store and embedder support it, falling back to keyword retrieval otherwise.
func (mm *MemoryManager) GetSimilarMemories(ctx context.Context, userID, query string, limit int) []types.Memory {
	if limit < 1 {
		limit = defaultRetrievalLimit
	}

	searcher, ok := mm.store.(storage.SimilaritySearcher)
	if !ok || mm.embedder == nil {
		return mm.GetRelevantMemories(ctx, userID, query, limit)
	}

	vec, err := mm.embedder.Embed(ctx, query)
	if err != nil {
		log.Printf("Warning: query embedding failed for %s, using keyword retrieval: %v", userID, err)
		return mm.GetRelevantMemories(ctx, userID, query, limit)
	}

	memories, err := searcher.SimilarMemories(ctx, userID, vec, limit)
	if err != nil {
		if !errors.Is(err, storage.ErrNotSupported) {
			log.Printf("ERROR: similarity retrieval failed for %s: %v", userID, err)
		}
		return mm.GetRelevantMemories(ctx, userID, query, limit)
	}
	return memories
}

// GetAllMemories returns every memory for the user, newest first. Failures
// return nil.
func (mm *MemoryManager) GetAllMemories(ctx context.Context, userID string) []types.Memory {
	memories, err := mm.store.ListMemories(ctx, userID)
	if err != nil {
		log.Printf("ERROR: failed to list memories for %s: %v", userID, err)
		return nil
	}
	return memories
}

// UpdateMemoryConfidence applies a clamped additive confidence update.
func (mm *MemoryManager) UpdateMemoryConfidence(ctx context.Context, id string, delta float64) error {
	return mm.store.UpdateMemoryConfidence(ctx, id, delta)
}

// PruneStaleMemories deletes the user's memories with confidence below the
// prune threshold and returns the number removed. Failures return 0.
func (mm *MemoryManager) PruneStaleMemories(ctx context.Context, userID string) int {
	pruned, err := mm.store.PruneMemories(ctx, userID, storage.PruneThreshold)
	if err != nil {
		log.Printf("ERROR: memory pruning failed for %s: %v", userID, err)
		return 0
	}
	if pruned > 0 {
		log.Printf("memory: pruned %d stale memories for %s", pruned, userID)
	}
	return pruned
}

// extractKeywords tokenizes by whitespace and keeps tokens longer than the
// minimum keyword length.
func extractKeywords(query string) []string {
	var keywords []string
	for _, token := range strings.Fields(query) {
		if len(token) > retrievalKeywordMinLength {
			keywords = append(keywords, token)
		}
	}
	return keywords
}
