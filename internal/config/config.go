// Package config provides configuration management for Rapport.
// It loads settings from environment variables with the RAPPORT_ prefix
// and provides sensible defaults for all configuration options.
//
// Classifier keyword overrides and signal tuning live in an optional YAML
// file pointed at by RAPPORT_TUNING_PATH (see tuning.go).
package config

import (
	"os"
	"strconv"
)

// Config holds all configuration settings for the Rapport application.
type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	LLM      LLMConfig
	Security SecurityConfig
	Tuning   TuningConfig
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    // Server port (default: 7474)
	Host string // Server host (default: 0.0.0.0)
}

// StorageConfig contains database and storage configuration.
type StorageConfig struct {
	StorageEngine string // Storage engine type: sqlite, postgres (default: sqlite)
	DataPath      string // Path to data directory for sqlite (default: ./data)
	PostgresDSN   string // PostgreSQL connection string, used when engine is postgres
}

// LLMConfig contains LLM provider configuration for memory extraction.
type LLMConfig struct {
	Provider             string // LLM provider: ollama, openai, anthropic (default: ollama)
	OllamaURL            string // Ollama API URL (default: http://localhost:11434)
	OllamaModel          string // Ollama model name for extraction (default: qwen2.5:7b)
	OllamaEmbeddingModel string // Ollama model name for embeddings (default: nomic-embed-text)
	OpenAIAPIKey         string // OpenAI API key
	OpenAIModel          string // OpenAI model name (default: gpt-4o-mini)
	AnthropicAPIKey      string // Anthropic API key
	AnthropicModel       string // Anthropic model name (default: claude-haiku-4-5-20251001)
	EmbeddingsEnabled    bool   // Enable embedding storage and similarity retrieval (default: false)
}

// SecurityConfig contains security and authentication settings.
type SecurityConfig struct {
	SecurityMode string  // Security mode: development, production (default: development)
	APIToken     string  // API authentication token
	RateLimit    float64 // Requests per second per client (default: 10)
	RateBurst    int     // Burst allowance for the rate limiter (default: 20)
}

// LoadConfig loads configuration from environment variables with sensible
// defaults. All environment variables use the RAPPORT_ prefix. The tuning
// file, when configured, is loaded afterwards and overrides nothing in the
// env config — it only carries classifier keywords and signal thresholds.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvInt("RAPPORT_PORT", 7474),
			Host: getEnv("RAPPORT_HOST", "0.0.0.0"),
		},
		Storage: StorageConfig{
			StorageEngine: getEnv("RAPPORT_STORAGE_ENGINE", "sqlite"),
			DataPath:      getEnv("RAPPORT_DATA_PATH", "./data"),
			PostgresDSN:   getEnv("RAPPORT_POSTGRES_DSN", ""),
		},
		LLM: LLMConfig{
			Provider:             getEnv("RAPPORT_LLM_PROVIDER", "ollama"),
			OllamaURL:            getEnv("RAPPORT_OLLAMA_URL", "http://localhost:11434"),
			OllamaModel:          getEnv("RAPPORT_OLLAMA_MODEL", "qwen2.5:7b"),
			OllamaEmbeddingModel: getEnv("RAPPORT_OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			OpenAIAPIKey:         getEnv("RAPPORT_OPENAI_API_KEY", ""),
			OpenAIModel:          getEnv("RAPPORT_OPENAI_MODEL", "gpt-4o-mini"),
			AnthropicAPIKey:      getEnv("RAPPORT_ANTHROPIC_API_KEY", ""),
			AnthropicModel:       getEnv("RAPPORT_ANTHROPIC_MODEL", "claude-haiku-4-5-20251001"),
			EmbeddingsEnabled:    getEnvBool("RAPPORT_EMBEDDINGS_ENABLED", false),
		},
		Security: SecurityConfig{
			SecurityMode: getEnv("RAPPORT_SECURITY_MODE", "development"),
			APIToken:     getEnv("RAPPORT_API_TOKEN", ""),
			RateLimit:    float64(getEnvInt("RAPPORT_RATE_LIMIT", 10)),
			RateBurst:    getEnvInt("RAPPORT_RATE_BURST", 20),
		},
	}

	tuning, err := LoadTuning(getEnv("RAPPORT_TUNING_PATH", ""))
	if err != nil {
		return nil, err
	}
	cfg.Tuning = *tuning

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. Unparseable values fall back to the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default
// value. It recognizes "true", "1", "yes" as true and "false", "0", "no" as
// false.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
			return true
		case "false", "0", "no", "False", "FALSE", "No", "NO":
			return false
		}
	}
	return defaultValue
}
