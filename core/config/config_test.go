package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNormalizeDefaults(t *testing.T) {
	cfg := &Config{
		Telegram:  TelegramConfig{Token: "123:abc"},
		Responder: ResponderConfig{Mode: "echo"},
	}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run mode = %q, want %q", cfg.Telegram.RunMode, RunModeLongpoll)
	}
	if cfg.Telegram.APIURL != "https://api.telegram.org" {
		t.Fatalf("api url = %q", cfg.Telegram.APIURL)
	}
	if cfg.RateLimit.IntervalMS != 1000 {
		t.Fatalf("rate limit interval = %d, want 1000", cfg.RateLimit.IntervalMS)
	}
	if cfg.Responder.TimeoutSeconds != 30 || cfg.Responder.MaxQuestions != 4 {
		t.Fatalf("responder defaults = %+v", cfg.Responder)
	}
	if cfg.Intake.PageSize != 4000 {
		t.Fatalf("page size = %d, want 4000", cfg.Intake.PageSize)
	}
	if cfg.Archive.Driver != "" {
		t.Fatalf("archive should stay disabled, got %q", cfg.Archive.Driver)
	}
}

func TestNormalizeRejectsProcessWithoutCommand(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{Token: "t"}}
	err := Normalize(cfg)
	if err == nil || !strings.Contains(err.Error(), "responder.command") {
		t.Fatalf("Normalize() error = %v, want responder.command error", err)
	}
}

func TestNormalizeRejectsUnknownExclusion(t *testing.T) {
	cfg := &Config{
		Telegram:  TelegramConfig{Token: "t"},
		Responder: ResponderConfig{Mode: ResponderEcho},
		RateLimit: RateLimitConfig{ExcludeUpdates: []string{"inline_query"}},
	}
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for unsupported exclusion")
	}
}

func TestNormalizeSQLiteArchiveDefaultsPath(t *testing.T) {
	cfg := &Config{
		Telegram:  TelegramConfig{Token: "t"},
		Responder: ResponderConfig{Mode: ResponderEcho},
		Archive:   ArchiveConfig{Driver: "SQLite"},
	}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if cfg.Archive.Driver != ArchiveSQLite || cfg.Archive.SQLitePath == "" {
		t.Fatalf("archive = %+v", cfg.Archive)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "telegram:\n  token: from-file\nresponder:\n  mode: http\n  url: http://localhost:9000/reply\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("BOT_TOKEN", "from-env")
	t.Setenv("RESPONDER_TIMEOUT_SECONDS", "12")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Telegram.Token != "from-env" {
		t.Fatalf("token = %q, want env override", cfg.Telegram.Token)
	}
	if cfg.Responder.Mode != ResponderHTTP || cfg.Responder.TimeoutSeconds != 12 {
		t.Fatalf("responder = %+v", cfg.Responder)
	}
}
