// Package app assembles the pet-care bot from configuration: session store, rate
// limiter, responder bridge, intake engine, archive, metrics and Telegram routes.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/petbot/bot/archive"
	"github.com/m3rciful/petbot/bot/documents"
	"github.com/m3rciful/petbot/bot/intake"
	"github.com/m3rciful/petbot/bot/responder"
	"github.com/m3rciful/petbot/bot/session"
	"github.com/m3rciful/petbot/bot/transport"
	"github.com/m3rciful/petbot/core/bootstrap"
	"github.com/m3rciful/petbot/core/cmd"
	coreconfig "github.com/m3rciful/petbot/core/config"
	"github.com/m3rciful/petbot/core/logger"
	"github.com/m3rciful/petbot/core/metrics"
	"github.com/m3rciful/petbot/core/ratelimit"
	tg "github.com/m3rciful/petbot/core/telegram"
	"github.com/m3rciful/petbot/core/telegram/router"
	"github.com/m3rciful/petbot/core/telegram/sender"
)

const pruneEvery = time.Minute

// Config wraps the core configuration for the command runner.
type Config struct {
	*coreconfig.Config
}

// CoreConfig implements cmd.ConfigCarrier.
func (c Config) CoreConfig() *coreconfig.Config { return c.Config }

// LoadConfig reads path and validates it.
func LoadConfig(path string) (cmd.ConfigCarrier, error) {
	cfg, err := coreconfig.Load(path)
	if err != nil {
		return nil, err
	}
	return Config{Config: cfg}, nil
}

// App holds the wired components.
type App struct {
	cfg     *coreconfig.Config
	store   session.Store
	limiter *ratelimit.Limiter
	bridge  *responder.Bridge
	engine  *intake.Engine
	adapter *transport.Adapter
	archive *archive.Store
	metrics *metrics.Metrics
	server  *metrics.Server
}

// Bootstrap runs the shared bootstrap pipeline and builds the App.
func Bootstrap(carrier cmd.ConfigCarrier) (cmd.TelegramApp, error) {
	cfg := carrier.CoreConfig()
	res, err := bootstrap.Run(bootstrap.Options{Config: cfg})
	if err != nil {
		return nil, err
	}
	return Build(cfg, res)
}

// Build wires the components on top of bootstrapped infrastructure. The archive
// database is closed when any step fails.
func Build(cfg *coreconfig.Config, res *bootstrap.Result) (_ *App, err error) {
	if cfg == nil || res == nil {
		return nil, fmt.Errorf("app: config and bootstrap result are required")
	}

	store, err := archive.Attach(res.DB, res.Driver)
	if err != nil {
		if res.DB != nil {
			_ = res.DB.Close()
		}
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = store.Close()
		}
	}()

	docs, err := documents.Load(cfg.Intake)
	if err != nil {
		return nil, fmt.Errorf("app: consent documents: %w", err)
	}

	tr, err := responder.NewTransport(cfg.Responder)
	if err != nil {
		return nil, fmt.Errorf("app: responder: %w", err)
	}
	bridge, err := responder.New(responder.Options{
		Transport:     tr,
		Timeout:       time.Duration(cfg.Responder.TimeoutSeconds) * time.Second,
		MaxConcurrent: cfg.Responder.MaxConcurrent,
		Metrics:       res.Metrics,
	})
	if err != nil {
		return nil, err
	}

	sessions := session.NewMemoryStore()
	limiter := ratelimit.New(time.Duration(cfg.RateLimit.IntervalMS)*time.Millisecond, cfg.RateLimit.ExcludeUpdates...)

	engine, err := intake.NewEngine(intake.Options{
		Store:        sessions,
		Limiter:      limiter,
		Responder:    bridge,
		Documents:    docs,
		MaxQuestions: cfg.Responder.MaxQuestions,
		Archive:      store,
		Metrics:      res.Metrics,
	})
	if err != nil {
		return nil, err
	}

	adapter, err := transport.New(transport.Options{
		Engine:   engine,
		APIURL:   cfg.Telegram.APIURL,
		Token:    cfg.Telegram.Token,
		PageSize: cfg.Intake.PageSize,
	})
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:     cfg,
		store:   sessions,
		limiter: limiter,
		bridge:  bridge,
		engine:  engine,
		adapter: adapter,
		archive: store,
		metrics: res.Metrics,
	}
	if cfg.Metrics.Listen != "" {
		a.server = metrics.NewServer(cfg.Metrics.Listen, res.Metrics)
	}
	return a, nil
}

// TelegramRunOptions implements cmd.TelegramApp.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	reg := tg.NewRegistry()
	if err := a.adapter.Register(reg); err != nil {
		return tg.RunOptions{}, err
	}

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: a.cfg.Telegram.AdminID,
		OnAdminReject: func(c tele.Context) error {
			return c.Send("This command is for the bot administrator.")
		},
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.MessageRoutes(reg, a.adapter.OnMessage)...)

	middlewares := func(onPanic func(any)) []tg.Middleware {
		return tg.DefaultMiddlewares(onPanic, a.metrics.ObserveUpdate)
	}
	return tg.RunOptions{
		Config:            a.cfg,
		Registry:          reg,
		DispatcherOptions: sender.Options{MaxRetries: 2, OnResult: a.metrics.IncSend},
		Middlewares:       middlewares,
		Routes:            routes,
		OnStart:           a.start,
		OnStop:            a.stop,
	}, nil
}

func (a *App) start(ctx context.Context, rt tg.Runtime) error {
	if rt.Bot != nil {
		a.adapter.Attach(rt.Bot)
	}
	if a.server != nil {
		a.server.Start(ctx)
	}
	go a.pruneLoop(ctx)
	logger.Info(ctx, logger.ComponentApp, "wired",
		slog.String("responder", a.bridge.Transport()),
		slog.String("archive", a.archive.Driver()),
		slog.Duration("rate_limit", a.limiter.Interval()),
	)
	return nil
}

func (a *App) stop(ctx context.Context, _ tg.Runtime) error {
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			logger.Warn(ctx, logger.ComponentMetrics, "shutdown", slog.String("err", err.Error()))
		}
	}
	return a.archive.Close()
}

// pruneLoop drops limiter entries that can no longer block anyone.
func (a *App) pruneLoop(ctx context.Context) {
	t := time.NewTicker(pruneEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := a.limiter.Prune(now.Add(-a.limiter.Interval())); n > 0 {
				logger.Debug(ctx, logger.ComponentApp, "ratelimit.prune", slog.Int("removed", n))
			}
		}
	}
}
