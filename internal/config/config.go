// Package config loads orchestrator settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/mhpenta/stylegen"
	"github.com/mhpenta/stylegen/provider/gemini"
	"github.com/mhpenta/stylegen/provider/openai"
)

// Config is the full set of recognized settings.
type Config struct {
	TextQueue  string
	ImageQueue string

	Gemini GeminiConfig
	OpenAI OpenAIConfig

	HTTPTimeout   time.Duration
	ImageCacheTTL time.Duration

	// Per-backend pacing. BackendRateInterval takes precedence over
	// BackendRatePerSecond; both zero leaves backends unpaced.
	BackendRatePerSecond float64
	BackendRateInterval  time.Duration
	BackendRateBurst     int

	UploadDir string
	Port      string
}

// GeminiConfig configures the Gemini text and image backends.
type GeminiConfig struct {
	Credentials []stylegen.Credential
	TextModel   string
	ImageModel  string
	BaseURL     string
}

// OpenAIConfig configures the OpenAI image backend.
type OpenAIConfig struct {
	APIKey                 string
	BaseURL                string
	ImageModel             string
	ToolModel              string
	ResponsesModel         string
	FallbackResponseModels []string
	Size                   string
	Quality                string
	OutputFormat           string
	InputFidelity          string
	Action                 string
	LegacyFallback         bool
	LegacyModel            string
}

// Load reads a .env file if present, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file, using process environment", "error", err.Error())
	}

	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a Config from the current environment without validating it.
func FromEnv() *Config {
	imageModel := getEnv("OPENAI_IMAGE_MODEL", openai.DefaultImageModel)

	return &Config{
		TextQueue:  getEnv("AI_STYLE_TEXT_PROVIDER_QUEUE", ""),
		ImageQueue: getEnv("AI_IMAGE_PROVIDER_QUEUE", ""),
		Gemini: GeminiConfig{
			Credentials: stylegen.ParseCredentials(
				os.Getenv("GEMINI_API_KEY"),
				os.Getenv("GEMINI_API_KEY2"),
				os.Getenv("GEMINI_API_KEYS"),
			),
			TextModel:  getEnv("GEMINI_STYLE_MODEL", gemini.DefaultTextModel),
			ImageModel: getEnv("GEMINI_IMAGE_MODEL", gemini.DefaultImageModel),
			BaseURL:    getEnv("GEMINI_BASE_URL", ""),
		},
		OpenAI: OpenAIConfig{
			APIKey:                 getEnv("OPENAI_API_KEY", ""),
			BaseURL:                getEnv("OPENAI_BASE_URL", openai.DefaultBaseURL),
			ImageModel:             imageModel,
			ToolModel:              getEnv("OPENAI_IMAGE_TOOL_MODEL", imageModel),
			ResponsesModel:         getEnv("OPENAI_RESPONSES_MODEL", openai.DefaultResponsesModel),
			FallbackResponseModels: getEnvList("OPENAI_RESPONSES_FALLBACK_MODELS", openai.DefaultFallbackResponseModels),
			Size:                   getEnv("OPENAI_IMAGE_TOOL_SIZE", openai.DefaultSize),
			Quality:                getEnv("OPENAI_IMAGE_TOOL_QUALITY", openai.DefaultQuality),
			OutputFormat:           getEnv("OPENAI_IMAGE_TOOL_FORMAT", openai.DefaultOutputFormat),
			InputFidelity:          getEnv("OPENAI_IMAGE_INPUT_FIDELITY", ""),
			Action:                 getEnv("OPENAI_IMAGE_TOOL_ACTION", ""),
			LegacyFallback:         getEnvFlag("OPENAI_USE_LEGACY_EDITS_FALLBACK"),
			LegacyModel:            getEnv("OPENAI_IMAGE_EDIT_FALLBACK_MODEL", openai.DefaultLegacyModel),
		},
		HTTPTimeout:          getEnvDuration("HTTP_TIMEOUT", 2*time.Minute),
		ImageCacheTTL:        getEnvDuration("IMAGE_CACHE_TTL", 5*time.Minute),
		BackendRatePerSecond: getEnvFloat("BACKEND_RATE_PER_SECOND", 0),
		BackendRateInterval:  getEnvDuration("BACKEND_RATE_INTERVAL", 0),
		BackendRateBurst:     getEnvInt("BACKEND_RATE_BURST", 1),
		UploadDir:            getEnv("UPLOAD_DIR", "uploads"),
		Port:                 getEnv("PORT", "8080"),
	}
}

// Validate checks value ranges. Missing credentials are not an error: a
// backend without credentials plans no attempts.
func (c *Config) Validate() error {
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	if c.ImageCacheTTL < 0 {
		return fmt.Errorf("IMAGE_CACHE_TTL must not be negative")
	}
	if c.BackendRatePerSecond < 0 {
		return fmt.Errorf("BACKEND_RATE_PER_SECOND must not be negative")
	}
	if c.BackendRateInterval < 0 {
		return fmt.Errorf("BACKEND_RATE_INTERVAL must not be negative")
	}
	if c.BackendRateBurst < 0 {
		return fmt.Errorf("BACKEND_RATE_BURST must not be negative")
	}
	if c.OpenAI.LegacyFallback && c.OpenAI.LegacyModel == "" {
		return fmt.Errorf("OPENAI_IMAGE_EDIT_FALLBACK_MODEL is required when OPENAI_USE_LEGACY_EDITS_FALLBACK is set")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList splits a comma list. An unset variable yields defaultValue; a set
// but empty list yields no entries.
func getEnvList(key string, defaultValue []string) []string {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return append([]string(nil), defaultValue...)
	}
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvFlag accepts 1, true and yes in any case.
func getEnvFlag(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
