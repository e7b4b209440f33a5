package cmd

import (
	"context"
	"errors"
	"testing"
	"time"

	coreconfig "github.com/m3rciful/petbot/core/config"
	coretelegram "github.com/m3rciful/petbot/core/telegram"
)

type testConfig struct{ cfg *coreconfig.Config }

func (c testConfig) CoreConfig() *coreconfig.Config { return c.cfg }

type testApp struct{ opts coretelegram.RunOptions }

func (a testApp) TelegramRunOptions() (coretelegram.RunOptions, error) { return a.opts, nil }

func TestRunWiresHooks(t *testing.T) {
	t.Setenv("PETBOT_TEST_CONFIG", "custom.yaml")

	var loadedPath string
	started, stopped := false, false
	err := Run(Options{
		ConfigEnvVar: "PETBOT_TEST_CONFIG",
		LoadConfig: func(path string) (ConfigCarrier, error) {
			loadedPath = path
			return testConfig{cfg: &coreconfig.Config{}}, nil
		},
		Bootstrap: func(ConfigCarrier) (TelegramApp, error) {
			return testApp{opts: coretelegram.RunOptions{
				OnStart: func(context.Context, coretelegram.Runtime) error { started = true; return nil },
				OnStop:  func(context.Context, coretelegram.Runtime) error { stopped = true; return nil },
			}}, nil
		},
		ShutdownLogger: func() error { return nil },
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			if err := opts.OnStart(ctx, coretelegram.Runtime{}); err != nil {
				return err
			}
			return opts.OnStop(ctx, coretelegram.Runtime{})
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if loadedPath != "custom.yaml" {
		t.Fatalf("config path = %q", loadedPath)
	}
	if !started || !stopped {
		t.Fatalf("started=%v stopped=%v", started, stopped)
	}
}

func TestRunPropagatesRuntimeError(t *testing.T) {
	boom := errors.New("handler panic")
	err := Run(Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(string) (ConfigCarrier, error) {
			return testConfig{cfg: &coreconfig.Config{}}, nil
		},
		Bootstrap:      func(ConfigCarrier) (TelegramApp, error) { return testApp{}, nil },
		ShutdownLogger: func() error { return nil },
		RunTelegram:    func(context.Context, coretelegram.RunOptions) error { return boom },
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestRunRequiresConfigPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	err := Run(Options{
		LoadConfig: func(string) (ConfigCarrier, error) { return nil, nil },
		Bootstrap:  func(ConfigCarrier) (TelegramApp, error) { return nil, nil },
	})
	if err == nil {
		t.Fatal("expected missing path error")
	}
}

func TestRunRejectsEmptyConfig(t *testing.T) {
	bootstrapped := false
	err := Run(Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig:        func(string) (ConfigCarrier, error) { return nil, nil },
		Bootstrap: func(ConfigCarrier) (TelegramApp, error) {
			bootstrapped = true
			return testApp{}, nil
		},
	})
	if err == nil || bootstrapped {
		t.Fatalf("err=%v bootstrapped=%v", err, bootstrapped)
	}
}

func TestRunRequiresHooks(t *testing.T) {
	if err := Run(Options{}); !errors.Is(err, errNoLoader) {
		t.Fatalf("err = %v", err)
	}
	load := func(string) (ConfigCarrier, error) { return testConfig{}, nil }
	if err := Run(Options{LoadConfig: load}); !errors.Is(err, errNoBootstrap) {
		t.Fatalf("err = %v", err)
	}
}

func TestConfigPathPrefersEnv(t *testing.T) {
	opts := Options{DefaultConfigPath: "config.yaml"}
	t.Setenv("CONFIG_PATH", "")
	if p, err := opts.configPath(); err != nil || p != "config.yaml" {
		t.Fatalf("default path = %q, %v", p, err)
	}
	t.Setenv("CONFIG_PATH", "/etc/petbot.yaml")
	if p, _ := opts.configPath(); p != "/etc/petbot.yaml" {
		t.Fatalf("env path = %q", p)
	}
}

func TestLifecycleLogsSkipReadyOnStartError(t *testing.T) {
	boom := errors.New("archive down")
	opts := withLifecycleLogs(coretelegram.RunOptions{
		OnStart: func(context.Context, coretelegram.Runtime) error { return boom },
	}, time.Now())
	if err := opts.OnStart(context.Background(), coretelegram.Runtime{}); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if err := opts.OnStop(context.Background(), coretelegram.Runtime{}); err != nil {
		t.Fatalf("stop without hook: %v", err)
	}
}
