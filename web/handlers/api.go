package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/mindloom/rapport/internal/config"
	"github.com/mindloom/rapport/internal/engine"
	"github.com/mindloom/rapport/internal/storage"
	"github.com/mindloom/rapport/pkg/types"
)

// APIHandlers contains HTTP handlers for the signal REST API.
type APIHandlers struct {
	engine *engine.SignalEngine
	store  storage.Store
	config *config.Config
}

// NewAPIHandlers creates a new APIHandlers instance.
func NewAPIHandlers(eng *engine.SignalEngine, store storage.Store, cfg *config.Config) *APIHandlers {
	return &APIHandlers{engine: eng, store: store, config: cfg}
}

// ErrorResponse is the JSON shape for error responses.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// analyzeRequest is the body for POST /api/analyze.
type analyzeRequest struct {
	UserID    string       `json:"user_id"`
	SessionID string       `json:"session_id"`
	MessageID string       `json:"message_id"`
	Message   string       `json:"message"`
	History   []types.Turn `json:"history"`
}

// Analyze handles POST /api/analyze - the full per-turn signal pipeline:
// emotion + trend, trust, relevant memories, plus the background writes.
func (h *APIHandlers) Analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.UserID == "" || req.SessionID == "" {
		respondError(w, http.StatusBadRequest, "user_id and session_id are required", nil)
		return
	}
	if len(req.History) == 0 && req.Message != "" {
		req.History = []types.Turn{{Role: types.RoleUser, Content: req.Message}}
	}

	signals := h.engine.ProcessTurn(r.Context(), engine.TurnInput{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		MessageID: req.MessageID,
		Message:   req.Message,
		History:   req.History,
	})

	respondJSON(w, http.StatusOK, signals)
}

// classifyRequest is the body for POST /api/emotion/classify.
type classifyRequest struct {
	Turns []types.Turn `json:"turns"`
}

// ClassifyEmotion handles POST /api/emotion/classify - stateless keyword
// classification with no storage reads or writes.
func (h *APIHandlers) ClassifyEmotion(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	respondJSON(w, http.StatusOK, h.engine.ClassifyEmotion(req.Turns))
}

// GetTimeline handles GET /api/timeline/{user_id}?days=30 - the emotion
// timeline window, oldest first.
func (h *APIHandlers) GetTimeline(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}
	days := parseInt(r.URL.Query().Get("days"), 30)

	since := time.Now().UTC().AddDate(0, 0, -days)
	entries, err := h.store.TimelineWindow(r.Context(), userID, since)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read timeline", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"days":    days,
	})
}

// GetTrust handles GET /api/trust/{user_id} - current score, label, and the
// factors audit map.
func (h *APIHandlers) GetTrust(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}

	rec, err := h.engine.GetTrustRecord(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read trust record", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":      rec.UserID,
		"score":        rec.Score,
		"label":        types.TrustLabel(rec.Score),
		"factors":      rec.Factors,
		"last_updated": rec.LastUpdated,
	})
}

// trustEventRequest is the body for POST /api/trust/{user_id}/events.
type trustEventRequest struct {
	Event types.TrustEvent `json:"event"`
}

// PostTrustEvent handles POST /api/trust/{user_id}/events - applies one
// trust event synchronously and returns the new score.
func (h *APIHandlers) PostTrustEvent(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}

	var req trustEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if !req.Event.Valid() {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown trust event %q", req.Event), nil)
		return
	}

	score := h.engine.UpdateTrustScore(r.Context(), userID, req.Event)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": userID,
		"score":   score,
		"label":   types.TrustLabel(score),
	})
}

// GetMemories handles GET /api/memories/{user_id}?q=...&limit=10. With a
// query it returns relevant memories; without one it returns all memories
// for the user.
func (h *APIHandlers) GetMemories(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}

	query := r.URL.Query().Get("q")
	limit := parseInt(r.URL.Query().Get("limit"), 10)
	if limit > 100 {
		limit = 100
	}

	var memories []types.Memory
	if query == "" {
		memories = h.engine.GetAllMemories(r.Context(), userID)
	} else {
		memories = h.engine.GetRelevantMemories(r.Context(), userID, query, limit)
	}
	if memories == nil {
		memories = []types.Memory{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"memories": memories,
		"count":    len(memories),
	})
}

// confidenceRequest is the body for POST /api/memories/{id}/confidence.
type confidenceRequest struct {
	Delta float64 `json:"delta"`
}

// PostMemoryConfidence handles POST /api/memories/{id}/confidence - the
// clamped additive confidence update.
func (h *APIHandlers) PostMemoryConfidence(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "memory id is required", nil)
		return
	}

	var req confidenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if err := h.engine.UpdateMemoryConfidence(r.Context(), id, req.Delta); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "memory not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to update confidence", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"updated": true})
}

// PostPrune handles POST /api/maintenance/prune/{user_id} - removes the
// user's memories below the confidence threshold.
func (h *APIHandlers) PostPrune(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}

	pruned := h.engine.PruneStaleMemories(r.Context(), userID)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": userID,
		"pruned":  pruned,
	})
}

// GetHealth handles GET /api/health.
func (h *APIHandlers) GetHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

func parseInt(s string, defaultValue int) int {
	if s == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(s)
	if err != nil || val < 1 {
		return defaultValue
	}
	return val
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers already sent; log only.
		fmt.Printf("failed to encode JSON response: %v\n", err)
	}
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errResp := ErrorResponse{
		Error: message,
		Code:  http.StatusText(statusCode),
	}
	if err != nil {
		errResp.Details = map[string]interface{}{
			"error": err.Error(),
		}
	}
	respondJSON(w, statusCode, errResp)
}
