package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "http://localhost:8000", cfg.APIBaseURL)
	require.Equal(t, 300*time.Second, cfg.RequestTimeout)
	require.Equal(t, "results", cfg.DataDir)
	require.Equal(t, "info", cfg.LogLevel)
	require.Empty(t, cfg.MetricsAddr)
	require.Equal(t, 25, cfg.MaxUploadMB)
	require.Equal(t, 3*time.Second, cfg.MinStageDuration)
	require.Equal(t, 0.7, cfg.ChatTemperature)
	require.Equal(t, 1000, cfg.ChatMaxTokens)
	require.Equal(t, 20, cfg.ChatHistoryLimit)
	require.Equal(t, time.Hour, cfg.ChatSessionTTL)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("EVALMATE_API_BASE_URL", "http://backend:9000/")
	t.Setenv("EVALMATE_REQUEST_TIMEOUT", "30s")
	t.Setenv("EVALMATE_DATA_DIR", "out")
	t.Setenv("EVALMATE_LOG_LEVEL", "DEBUG")
	t.Setenv("EVALMATE_METRICS_ADDR", ":9100")
	t.Setenv("EVALMATE_MAX_UPLOAD_MB", "5")
	t.Setenv("EVALMATE_MIN_STAGE_SECONDS", "5")
	t.Setenv("EVALMATE_CHAT_TEMPERATURE", "0.3")
	t.Setenv("EVALMATE_CHAT_MAX_TOKENS", "2000")
	t.Setenv("EVALMATE_CHAT_HISTORY_LIMIT", "50")
	t.Setenv("EVALMATE_CHAT_SESSION_TTL", "2h")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "http://backend:9000", cfg.APIBaseURL)
	require.Equal(t, 30*time.Second, cfg.RequestTimeout)
	require.Equal(t, "out", cfg.DataDir)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, ":9100", cfg.MetricsAddr)
	require.Equal(t, 5, cfg.MaxUploadMB)
	require.Equal(t, 5*time.Second, cfg.MinStageDuration)
	require.Equal(t, 0.3, cfg.ChatTemperature)
	require.Equal(t, 2000, cfg.ChatMaxTokens)
	require.Equal(t, 50, cfg.ChatHistoryLimit)
	require.Equal(t, 2*time.Hour, cfg.ChatSessionTTL)
}

func TestLoadRejectsMalformedTimeout(t *testing.T) {
	t.Setenv("EVALMATE_REQUEST_TIMEOUT", "banana")

	_, err := Load()
	require.ErrorContains(t, err, "invalid request timeout")
}

func TestLoadRejectsMalformedSessionTTL(t *testing.T) {
	t.Setenv("EVALMATE_CHAT_SESSION_TTL", "soon")

	_, err := Load()
	require.ErrorContains(t, err, "invalid chat session ttl")
}

func TestLoadClampsOutOfRangeChatOptions(t *testing.T) {
	t.Setenv("EVALMATE_CHAT_MAX_TOKENS", "50")
	t.Setenv("EVALMATE_CHAT_TEMPERATURE", "3")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 1000, cfg.ChatMaxTokens)
	require.Equal(t, 0.7, cfg.ChatTemperature)
}

func TestLoadClampsNonPositiveUploadLimit(t *testing.T) {
	t.Setenv("EVALMATE_MAX_UPLOAD_MB", "-1")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 25, cfg.MaxUploadMB)
}
