package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config contains all runtime settings for the voice-note-to-email service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	// Provider selects the remote model backend: auto|openai|mock.
	Provider      string
	OpenAIBaseURL string

	TranscribeModel string
	TextModel       string
	DefaultStyle    string

	PrimaryMaxDuration time.Duration
	TweakMaxDuration   time.Duration

	CredentialFile string
	DatabaseURL    string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "voicedraft"),
		AllowAnyOrigin:   false,
		Provider:         envOrDefault("MODEL_PROVIDER", "auto"),
		OpenAIBaseURL:    envOrDefault("OPENAI_BASE_URL", "https://api.openai.com"),
		TranscribeModel:  envOrDefault("TRANSCRIBE_MODEL_ID", "whisper-1"),
		TextModel:        envOrDefault("TEXT_MODEL_ID", "gpt-4o-mini"),
		DefaultStyle:     envOrDefault("EMAIL_STYLE", "formal"),
		CredentialFile:   envOrDefault("CREDENTIAL_FILE", ".voicedraft/credential.json"),
		DatabaseURL:      stringsTrimSpace("DATABASE_URL"),
		ShutdownTimeout:  15 * time.Second,
		// Upper bounds on capture length before the session stops itself.
		PrimaryMaxDuration: 5 * time.Minute,
		TweakMaxDuration:   2 * time.Minute,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.PrimaryMaxDuration, err = durationFromEnv("RECORD_MAX_DURATION", cfg.PrimaryMaxDuration)
	if err != nil {
		return Config{}, err
	}
	cfg.TweakMaxDuration, err = durationFromEnv("TWEAK_MAX_DURATION", cfg.TweakMaxDuration)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "auto", "openai", "mock":
	default:
		return Config{}, fmt.Errorf("invalid MODEL_PROVIDER: %q (expected auto|openai|mock)", cfg.Provider)
	}
	if cfg.PrimaryMaxDuration < time.Second {
		return Config{}, fmt.Errorf("RECORD_MAX_DURATION must be at least 1s")
	}
	if cfg.TweakMaxDuration < time.Second {
		return Config{}, fmt.Errorf("TWEAK_MAX_DURATION must be at least 1s")
	}
	if strings.TrimSpace(cfg.OpenAIBaseURL) == "" {
		return Config{}, fmt.Errorf("OPENAI_BASE_URL must not be empty")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
