package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the EvalMate client.
type Config struct {
	APIBaseURL       string
	RequestTimeout   time.Duration
	DataDir          string
	LogLevel         string
	MetricsAddr      string
	MaxUploadMB      int
	MinStageDuration time.Duration
	ChatTemperature  float64
	ChatMaxTokens    int
	ChatHistoryLimit int
	ChatSessionTTL   time.Duration
}

// Load reads configuration values from environment variables and an optional
// .env file. Every knob has a default; Load fails only on unparseable values.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("EVALMATE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("api.base_url", "http://localhost:8000")
	v.SetDefault("request.timeout", "300s")
	v.SetDefault("data.dir", "results")
	v.SetDefault("log.level", "info")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("max.upload_mb", 25)
	v.SetDefault("min.stage_seconds", 3)
	v.SetDefault("chat.temperature", 0.7)
	v.SetDefault("chat.max_tokens", 1000)
	v.SetDefault("chat.history_limit", 20)
	v.SetDefault("chat.session_ttl", "1h")

	timeout, err := time.ParseDuration(v.GetString("request.timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid request timeout: %w", err)
	}

	sessionTTL, err := time.ParseDuration(v.GetString("chat.session_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid chat session ttl: %w", err)
	}

	cfg := Config{
		APIBaseURL:       strings.TrimRight(v.GetString("api.base_url"), "/"),
		RequestTimeout:   timeout,
		DataDir:          v.GetString("data.dir"),
		LogLevel:         strings.ToLower(v.GetString("log.level")),
		MetricsAddr:      v.GetString("metrics.addr"),
		MaxUploadMB:      v.GetInt("max.upload_mb"),
		MinStageDuration: time.Duration(v.GetInt("min.stage_seconds")) * time.Second,
		ChatTemperature:  v.GetFloat64("chat.temperature"),
		ChatMaxTokens:    v.GetInt("chat.max_tokens"),
		ChatHistoryLimit: v.GetInt("chat.history_limit"),
		ChatSessionTTL:   sessionTTL,
	}

	if cfg.APIBaseURL == "" {
		return Config{}, fmt.Errorf("api base url must be provided")
	}

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 300 * time.Second
	}

	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 25
	}

	if cfg.ChatMaxTokens < 100 || cfg.ChatMaxTokens > 4000 {
		cfg.ChatMaxTokens = 1000
	}

	if cfg.ChatTemperature < 0 || cfg.ChatTemperature > 1 {
		cfg.ChatTemperature = 0.7
	}

	if cfg.ChatHistoryLimit <= 0 {
		cfg.ChatHistoryLimit = 20
	}

	return cfg, nil
}
