// Package server provides HTTP server initialization and lifecycle
// management for the Rapport signal API.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/mindloom/rapport/internal/config"
	"github.com/mindloom/rapport/internal/engine"
	"github.com/mindloom/rapport/internal/llm"
	"github.com/mindloom/rapport/internal/storage"
	"github.com/mindloom/rapport/internal/storage/postgres"
	"github.com/mindloom/rapport/internal/storage/sqlite"
	"github.com/mindloom/rapport/web/handlers"
)

// securityHeadersMiddleware adds security headers to all HTTP responses.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// OpenStore creates the storage backend selected by the configuration.
func OpenStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.StorageEngine {
	case "sqlite", "":
		return sqlite.NewStore(filepath.Join(cfg.Storage.DataPath, "rapport.db"))
	case "postgres":
		if cfg.Storage.PostgresDSN == "" {
			return nil, fmt.Errorf("server: RAPPORT_POSTGRES_DSN is required for the postgres engine")
		}
		return postgres.NewStore(cfg.Storage.PostgresDSN)
	default:
		return nil, fmt.Errorf("server: unsupported storage engine %q", cfg.Storage.StorageEngine)
	}
}

// BuildEngine wires the signal engine from configuration: classifier lexicon
// overrides, the extraction LLM, and optional embeddings.
func BuildEngine(cfg *config.Config, store storage.Store, listener engine.SignalListener) (*engine.SignalEngine, error) {
	providerCfg := llmProviderConfig(cfg)

	generator, err := llm.NewTextGenerator(providerCfg)
	if err != nil {
		return nil, fmt.Errorf("server: failed to create LLM client: %w", err)
	}
	log.Printf("server: memory extraction via %s (%s)", cfg.LLM.Provider, generator.GetModel())

	var embedder llm.EmbeddingGenerator
	if cfg.LLM.EmbeddingsEnabled {
		embedder, err = llm.NewEmbeddingGenerator(providerCfg)
		if err != nil {
			return nil, fmt.Errorf("server: failed to create embedding client: %w", err)
		}
		if embedder == nil {
			log.Printf("Warning: provider %s has no embeddings API, similarity retrieval disabled", cfg.LLM.Provider)
		}
	}

	return engine.NewSignalEngine(store, engine.Options{
		Lexicon:   cfg.Tuning.EmotionLexicon(),
		Generator: generator,
		Embedder:  embedder,
		Listener:  listener,
	}), nil
}

func llmProviderConfig(cfg *config.Config) llm.ProviderConfig {
	switch cfg.LLM.Provider {
	case "openai":
		return llm.ProviderConfig{
			Provider: "openai",
			APIKey:   cfg.LLM.OpenAIAPIKey,
			Model:    cfg.LLM.OpenAIModel,
		}
	case "anthropic":
		return llm.ProviderConfig{
			Provider: "anthropic",
			APIKey:   cfg.LLM.AnthropicAPIKey,
			Model:    cfg.LLM.AnthropicModel,
		}
	default:
		return llm.ProviderConfig{
			Provider:       "ollama",
			BaseURL:        cfg.LLM.OllamaURL,
			Model:          cfg.LLM.OllamaModel,
			EmbeddingModel: cfg.LLM.OllamaEmbeddingModel,
		}
	}
}

// Server owns the HTTP listener, the signal engine, and the websocket hub.
type Server struct {
	cfg    *config.Config
	store  storage.Store
	engine *engine.SignalEngine
	hub    *handlers.WebSocketHub

	httpServer *http.Server
	listener   net.Listener
}

// New builds a fully wired server: store, engine, hub, routes.
func New(cfg *config.Config) (*Server, error) {
	store, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}

	hub := handlers.NewWebSocketHub()
	eng, err := BuildEngine(cfg, store, hub)
	if err != nil {
		store.Close()
		return nil, err
	}

	s := &Server{cfg: cfg, store: store, engine: eng, hub: hub}
	s.httpServer = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	api := handlers.NewAPIHandlers(s.engine, s.store, s.cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/analyze", api.Analyze)
	mux.HandleFunc("POST /api/emotion/classify", api.ClassifyEmotion)
	mux.HandleFunc("GET /api/timeline/{user_id}", api.GetTimeline)
	mux.HandleFunc("GET /api/trust/{user_id}", api.GetTrust)
	mux.HandleFunc("POST /api/trust/{user_id}/events", api.PostTrustEvent)
	mux.HandleFunc("GET /api/memories/{user_id}", api.GetMemories)
	mux.HandleFunc("POST /api/memories/{id}/confidence", api.PostMemoryConfidence)
	mux.HandleFunc("POST /api/maintenance/prune/{user_id}", api.PostPrune)
	mux.HandleFunc("GET /api/health", api.GetHealth)
	mux.Handle("/ws", s.hub)

	rl := handlers.NewRateLimiter(s.cfg.Security.RateLimit, s.cfg.Security.RateBurst)
	var handler http.Handler = mux
	handler = handlers.RateLimitMiddleware(handler, rl)
	handler = handlers.RequireAuth(handler, s.cfg)
	handler = securityHeadersMiddleware(handler)
	return handler
}

// Start begins listening and serving. It returns the bound address, which
// matters when the configured port is 0 (tests).
func (s *Server) Start() (string, error) {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("server: failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	go s.hub.Run()
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("ERROR: HTTP server stopped: %v", err)
		}
	}()

	return listener.Addr().String(), nil
}

// Shutdown drains in-flight requests, waits for the engine's background
// writes, and closes the store.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)

	s.engine.Wait()
	s.hub.Stop()

	if closeErr := s.store.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// Engine exposes the signal engine, used by the maintenance command.
func (s *Server) Engine() *engine.SignalEngine {
	return s.engine
}
