package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	apperrors "brainvibe/backend/pkg/errors"
)

// Store backends
const (
	StoreMemory = "memory"
	StoreBadger = "badger"
	StoreNeo4j  = "neo4j"
)

// DefaultGeminiBaseURL is Gemini's OpenAI-compatible endpoint
const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"

// Config holds all application configuration
type Config struct {
	// App
	Port            string
	Env             string
	LogLevel        string
	CORSAllowOrigin string

	// Store
	StoreBackend string
	BadgerPath   string

	// Neo4j
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string

	// LLM
	GeminiAPIKey      string
	LLMBaseURL        string
	ModelID           string
	LLMTimeout        time.Duration
	LLMMaxRetries     int
	LLMRequestsPerMin int
	MaxDiffBytes      int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "8000"),
		Env:               getEnv("ENV", "development"),
		LogLevel:          getEnv("LOG_LEVEL", ""),
		CORSAllowOrigin:   getEnv("CORS_ALLOW_ORIGIN", "*"),
		StoreBackend:      strings.ToLower(getEnv("STORE_BACKEND", StoreBadger)),
		BadgerPath:        getEnv("BADGER_PATH", "data/brain"),
		Neo4jURI:          getEnv("NEO4J_URI", ""),
		Neo4jUser:         getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:     getEnv("NEO4J_PASSWORD", ""),
		Neo4jDatabase:     getEnv("NEO4J_DATABASE", ""),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		LLMBaseURL:        getEnv("LLM_BASE_URL", DefaultGeminiBaseURL),
		ModelID:           getEnv("MODEL_ID", "gemini-2.0-flash"),
		LLMTimeout:        time.Duration(getEnvInt("LLM_TIMEOUT_SECONDS", 60)) * time.Second,
		LLMMaxRetries:     getEnvInt("LLM_MAX_RETRIES", 3),
		LLMRequestsPerMin: getEnvInt("LLM_REQUESTS_PER_MINUTE", 30),
		MaxDiffBytes:      getEnvInt("MAX_DIFF_BYTES", 200_000),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.Port == "" {
		return apperrors.NewConfigMissingRequired("PORT")
	}
	switch c.StoreBackend {
	case StoreMemory:
	case StoreBadger:
		if c.BadgerPath == "" {
			return apperrors.NewConfigMissingRequired("BADGER_PATH")
		}
	case StoreNeo4j:
		if c.Neo4jURI == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_URI")
		}
		if c.Neo4jUser == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_USER")
		}
	default:
		return apperrors.NewConfigValidationFailed("STORE_BACKEND", fmt.Sprintf("unknown backend %q", c.StoreBackend))
	}
	if c.LLMMaxRetries < 1 {
		return apperrors.NewConfigValidationFailed("LLM_MAX_RETRIES", "must be at least 1")
	}
	if c.MaxDiffBytes < 1 {
		return apperrors.NewConfigValidationFailed("MAX_DIFF_BYTES", "must be positive")
	}
	// GEMINI_API_KEY is optional: without it analyze-diff is disabled
	return nil
}

// LLMEnabled reports whether diff analysis can reach a model
func (c *Config) LLMEnabled() bool {
	return c.GeminiAPIKey != ""
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
