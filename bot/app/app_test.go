package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/m3rciful/petbot/bot/intake"
	"github.com/m3rciful/petbot/bot/session"
	"github.com/m3rciful/petbot/core/bootstrap"
	coreconfig "github.com/m3rciful/petbot/core/config"
	"github.com/m3rciful/petbot/core/database"
	"github.com/m3rciful/petbot/core/metrics"
	tg "github.com/m3rciful/petbot/core/telegram"
)

func echoConfig(t *testing.T) *coreconfig.Config {
	t.Helper()
	cfg := &coreconfig.Config{
		Telegram:  coreconfig.TelegramConfig{Token: "123:abc", AdminID: 1},
		Responder: coreconfig.ResponderConfig{Mode: coreconfig.ResponderEcho},
	}
	if err := coreconfig.Normalize(cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	return cfg
}

func TestBuildWithoutArchive(t *testing.T) {
	cfg := echoConfig(t)
	a, err := Build(cfg, &bootstrap.Result{Metrics: metrics.New("test")})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if a.server != nil {
		t.Fatal("metrics server must stay off without a listen address")
	}

	opts, err := a.TelegramRunOptions()
	if err != nil {
		t.Fatalf("TelegramRunOptions: %v", err)
	}
	if opts.Config != cfg || opts.Registry == nil || opts.Middlewares == nil {
		t.Fatalf("incomplete run options: %+v", opts)
	}
	endpoints := map[any]bool{}
	for _, r := range opts.Routes {
		endpoints[r.Endpoint] = true
	}
	for _, ep := range []string{"/start", "/reset", "/stats", "\acallback", "\atext", "\aphoto"} {
		if !endpoints[ep] {
			t.Fatalf("missing route %q", ep)
		}
	}
	if len(opts.Middlewares(func(any) {})) == 0 {
		t.Fatal("no middlewares")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.start(ctx, tg.Runtime{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := a.stop(context.Background(), tg.Runtime{}); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestBuildEngineRunsConversation(t *testing.T) {
	a, err := Build(echoConfig(t), &bootstrap.Result{Metrics: metrics.New("test")})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	out := a.engine.Handle(context.Background(), intake.Event{Kind: intake.EventText, UserID: 10, ChatID: 10, Text: "hi"})
	if out.Status != intake.StatusOK || len(out.Replies) == 0 {
		t.Fatalf("greeting outcome = %+v", out)
	}
	s, ok := a.store.Get(10)
	if !ok || s.Stage != session.StageAwaitingConsent || s.PendingDocument != session.DocumentTerms {
		t.Fatalf("session = %+v", s)
	}
}

func TestBuildWithSQLiteArchive(t *testing.T) {
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	a, err := Build(echoConfig(t), &bootstrap.Result{DB: db, Driver: database.DriverSQLite})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if a.archive.Driver() != database.DriverSQLite {
		t.Fatalf("archive driver = %q", a.archive.Driver())
	}
	if err := a.archive.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestBuildRejectsMissingDocument(t *testing.T) {
	cfg := echoConfig(t)
	cfg.Intake.TermsPath = filepath.Join(t.TempDir(), "missing.md")
	if _, err := Build(cfg, &bootstrap.Result{}); err == nil {
		t.Fatal("expected error for a missing terms file")
	}
}

func TestBuildClosesArchiveOnFailure(t *testing.T) {
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	cfg := echoConfig(t)
	cfg.Intake.TermsPath = filepath.Join(t.TempDir(), "missing.md")
	if _, err := Build(cfg, &bootstrap.Result{DB: db, Driver: database.DriverSQLite}); err == nil {
		t.Fatal("expected error for a missing terms file")
	}
	if err := db.Ping(); err == nil {
		t.Fatal("archive database left open after a failed build")
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "telegram:\n  token: \"123:abc\"\nresponder:\n  mode: echo\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	carrier, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if carrier.CoreConfig().Responder.Mode != coreconfig.ResponderEcho {
		t.Fatalf("mode = %q", carrier.CoreConfig().Responder.Mode)
	}
}
