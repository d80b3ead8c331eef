package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
// Note: This is a stateless service - generated pieces and sessions live in memory only
type Config struct {
	// Environment
	Environment string
	Port        string

	// LLM API Keys
	OpenAIAPIKey string // OpenAI API key for GPT models
	GeminiAPIKey string // Google Gemini API key

	// Pipeline
	LLMProvider      string // "openai" or "gemini"; empty infers from the model name
	AnalysisModel    string
	CompositionModel string
	ReasoningMode    string
	MusicSpecVariant string // "basic" or "extended"
	StageTimeout     time.Duration
	DefaultVolume    float64
	DefaultTempo     float64
	SessionIdleTTL   time.Duration // playback sessions unused this long are disposed
	Debug            bool

	// Observability
	SentryDSN           string // Sentry DSN for error tracking
	LangfusePublicKey   string // Langfuse public key
	LangfuseSecretKey   string // Langfuse secret key
	LangfuseHost        string // Langfuse host URL (cloud or self-hosted)
	LangfuseEnabled     bool   // Feature flag for Langfuse
	CloudWatchNamespace string
}

func Load() *Config {
	return &Config{
		Environment:         getEnv("ENVIRONMENT", "development"),
		Port:                getEnv("PORT", "8080"),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		LLMProvider:         getEnv("LLM_PROVIDER", ""),
		AnalysisModel:       getEnv("ANALYSIS_MODEL", "gpt-5-mini"),
		CompositionModel:    getEnv("COMPOSITION_MODEL", "gpt-5-mini"),
		ReasoningMode:       getEnv("REASONING_MODE", "low"),
		MusicSpecVariant:    getEnv("MUSIC_SPEC_VARIANT", "extended"),
		StageTimeout:        time.Duration(getEnvInt("STAGE_TIMEOUT_SECONDS", 60)) * time.Second,
		DefaultVolume:       getEnvFloat("DEFAULT_VOLUME", 50),
		DefaultTempo:        getEnvFloat("DEFAULT_TEMPO", 120),
		SessionIdleTTL:      time.Duration(getEnvInt("SESSION_IDLE_TIMEOUT_MINUTES", 30)) * time.Minute,
		Debug:               getEnv("DEBUG", "false") == "true",
		SentryDSN:           getEnv("SENTRY_DSN", ""),
		LangfusePublicKey:   getEnv("LANGFUSE_PUBLIC_KEY", ""),
		LangfuseSecretKey:   getEnv("LANGFUSE_SECRET_KEY", ""),
		LangfuseHost:        getEnv("LANGFUSE_HOST", "https://cloud.langfuse.com"),
		LangfuseEnabled:     getEnv("LANGFUSE_ENABLED", "false") == "true",
		CloudWatchNamespace: getEnv("CLOUDWATCH_NAMESPACE", "AlgoRhythm/API"),
	}
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return value
}
