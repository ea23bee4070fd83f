package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8080")
	}
	if cfg.TranscribeModel != "whisper-1" {
		t.Fatalf("TranscribeModel = %q, want %q", cfg.TranscribeModel, "whisper-1")
	}
	if cfg.TextModel != "gpt-4o-mini" {
		t.Fatalf("TextModel = %q, want %q", cfg.TextModel, "gpt-4o-mini")
	}
	if cfg.PrimaryMaxDuration != 5*time.Minute {
		t.Fatalf("PrimaryMaxDuration = %v, want 5m", cfg.PrimaryMaxDuration)
	}
	if cfg.TweakMaxDuration != 2*time.Minute {
		t.Fatalf("TweakMaxDuration = %v, want 2m", cfg.TweakMaxDuration)
	}
}

func TestLoadOverrides(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9090")
	t.Setenv("RECORD_MAX_DURATION", "90s")
	t.Setenv("MODEL_PROVIDER", "mock")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9090" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":9090")
	}
	if cfg.PrimaryMaxDuration != 90*time.Second {
		t.Fatalf("PrimaryMaxDuration = %v, want 90s", cfg.PrimaryMaxDuration)
	}
	if cfg.Provider != "mock" {
		t.Fatalf("Provider = %q, want %q", cfg.Provider, "mock")
	}
}

func TestLoadRejectsBadProvider(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("MODEL_PROVIDER", "grpc")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() expected error for invalid MODEL_PROVIDER")
	}
}

func TestLoadRejectsTinyRecordingWindow(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("TWEAK_MAX_DURATION", "100ms")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() expected error for sub-second TWEAK_MAX_DURATION")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"MODEL_PROVIDER",
		"OPENAI_BASE_URL",
		"TRANSCRIBE_MODEL_ID",
		"TEXT_MODEL_ID",
		"EMAIL_STYLE",
		"RECORD_MAX_DURATION",
		"TWEAK_MAX_DURATION",
		"CREDENTIAL_FILE",
		"DATABASE_URL",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}
