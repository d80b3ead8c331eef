package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"ENVIRONMENT", "PORT", "LLM_PROVIDER", "ANALYSIS_MODEL", "MUSIC_SPEC_VARIANT",
		"STAGE_TIMEOUT_SECONDS", "DEFAULT_VOLUME", "DEFAULT_TEMPO", "LANGFUSE_ENABLED",
		"SESSION_IDLE_TIMEOUT_MINUTES",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "", cfg.LLMProvider)
	assert.Equal(t, "gpt-5-mini", cfg.AnalysisModel)
	assert.Equal(t, "extended", cfg.MusicSpecVariant)
	assert.Equal(t, 60*time.Second, cfg.StageTimeout)
	assert.Equal(t, 50.0, cfg.DefaultVolume)
	assert.Equal(t, 120.0, cfg.DefaultTempo)
	assert.Equal(t, 30*time.Minute, cfg.SessionIdleTTL)
	assert.False(t, cfg.LangfuseEnabled)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("LLM_PROVIDER", "gemini")
	t.Setenv("MUSIC_SPEC_VARIANT", "basic")
	t.Setenv("STAGE_TIMEOUT_SECONDS", "15")
	t.Setenv("DEFAULT_VOLUME", "80")
	t.Setenv("LANGFUSE_ENABLED", "true")
	t.Setenv("SESSION_IDLE_TIMEOUT_MINUTES", "5")

	cfg := Load()
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "gemini", cfg.LLMProvider)
	assert.Equal(t, "basic", cfg.MusicSpecVariant)
	assert.Equal(t, 15*time.Second, cfg.StageTimeout)
	assert.Equal(t, 80.0, cfg.DefaultVolume)
	assert.Equal(t, 5*time.Minute, cfg.SessionIdleTTL)
	assert.True(t, cfg.LangfuseEnabled)
}

func TestLoadIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("STAGE_TIMEOUT_SECONDS", "soon")
	t.Setenv("DEFAULT_TEMPO", "fast")

	cfg := Load()
	assert.Equal(t, 60*time.Second, cfg.StageTimeout)
	assert.Equal(t, 120.0, cfg.DefaultTempo)
}
