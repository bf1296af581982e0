package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

// DefaultSessionTimeout closes a session after this much inactivity.
// Deployments have run anywhere from 2h to 6h.
const DefaultSessionTimeout = 6 * time.Hour

type Config struct {
	Mode Mode

	Port string

	GCPProjectID string

	// Dialog provider (OpenAI-compatible endpoint).
	DialogAPIKey  string
	DialogBaseURL string
	DialogModel   string

	// Memory provider (Gemini).
	GeminiAPIKey string
	GeminiModel  string

	StorageBackend string // "memory" or "firestore"
	UseMockLLM     bool   // true = use mocks even on GCP

	SessionTimeout time.Duration
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "TRUE"
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	// Plain numbers are read as hours (NOVA_SESSION_TIMEOUT=6).
	if h, err := strconv.Atoi(v); err == nil {
		return time.Duration(h) * time.Hour
	}
	return def
}

// Load reads all env vars and builds the config.
func Load() *Config {
	modeStr := getEnv("NOVA_MODE", "local")
	var mode Mode
	switch modeStr {
	case "gcp":
		mode = ModeGCP
	default:
		mode = ModeLocal
	}

	cfg := &Config{
		Mode: mode,

		Port: getEnv("NOVA_PORT", "8080"),

		GCPProjectID: getEnv("NOVA_GCP_PROJECT", ""),

		DialogAPIKey:  getEnv("NOVA_GROQ_API_KEY", ""),
		DialogBaseURL: getEnv("NOVA_GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		DialogModel:   getEnv("NOVA_GROQ_MODEL", "llama3-70b-8192"),

		GeminiAPIKey: getEnv("NOVA_GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("NOVA_GEMINI_MODEL", "gemini-1.5-flash-latest"),

		StorageBackend: getEnv("NOVA_STORAGE_BACKEND", "memory"),
		UseMockLLM:     getBoolEnv("NOVA_USE_MOCK_LLM", mode == ModeLocal),

		SessionTimeout: getDurationEnv("NOVA_SESSION_TIMEOUT", DefaultSessionTimeout),
	}

	// Minimal validation in GCP mode.
	if cfg.Mode == ModeGCP && cfg.GCPProjectID == "" {
		log.Fatal("NOVA_GCP_PROJECT must be set in gcp mode")
	}

	return cfg
}
