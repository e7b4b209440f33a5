package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	coreconfig "github.com/m3rciful/petbot/core/config"
	"github.com/m3rciful/petbot/core/logger"
	tghelpers "github.com/m3rciful/petbot/core/telegram/helpers"
	"github.com/m3rciful/petbot/core/telegram/netutil"
	tgsender "github.com/m3rciful/petbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

const (
	botInitAttempts = 5
	botInitBackoff  = time.Second
	botInitMaxDelay = 16 * time.Second
)

// ErrHandlerPanic is the cancellation cause recorded when a handler panics.
var ErrHandlerPanic = errors.New("telegram: handler panic")

// Middleware is a global middleware installed with bot.Use.
type Middleware struct {
	Name string
	Use  tele.MiddlewareFunc
}

// Route binds a handler to an endpoint accepted by tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions configure RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	DispatcherOptions tgsender.Options
	// Dispatcher replaces the one built from DispatcherOptions.
	Dispatcher *tgsender.Dispatcher

	// Middlewares receive the panic hook so a recovered panic can stop the bot.
	Middlewares func(onPanic func(any)) []Middleware
	Routes      []Route

	// DisableWebhookCleanup keeps a registered webhook in long-poll mode.
	DisableWebhookCleanup   bool
	DisableHelperDispatcher bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime is what the lifecycle hooks get to work with.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// RunTelegram builds the bot and serves updates until ctx is done. A panic in
// any handler stops the bot and is returned as ErrHandlerPanic; a plain
// cancellation returns nil.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Config == nil {
		return errors.New("telegram: nil config provided")
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	rt, err := startBot(ctx, opts)
	if err != nil {
		return err
	}
	install(rt.Bot, opts, func(any) { cancel(ErrHandlerPanic) })
	InitBotCommands(ctx, rt.Bot, rt.Registry)

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			shutdown(rt, opts)
			return err
		}
	}

	done := make(chan struct{})
	go func() {
		rt.Bot.Start()
		close(done)
	}()
	select {
	case <-ctx.Done():
		rt.Bot.Stop()
		<-done
	case <-done:
	}
	runErr := context.Cause(ctx)

	var stopErr error
	if opts.OnStop != nil {
		stopErr = opts.OnStop(context.WithoutCancel(ctx), rt)
	}
	shutdown(rt, opts)

	switch {
	case errors.Is(runErr, ErrHandlerPanic):
		return runErr
	case stopErr != nil:
		return stopErr
	case runErr != nil && !errors.Is(runErr, context.Canceled):
		return runErr
	}
	return nil
}

// startBot connects to the Bot API and starts the send dispatcher.
func startBot(ctx context.Context, opts RunOptions) (Runtime, error) {
	cfg := opts.Config
	poller := BuildPoller(cfg)

	start := time.Now()
	bot, err := newBotWithRetry(ctx, tele.Settings{
		URL:    cfg.Telegram.APIURL,
		Token:  cfg.Telegram.Token,
		Poller: poller,
		Client: BuildHTTPClient(pollTimeout(cfg)),
	})
	if err != nil {
		return Runtime{}, fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	logMode(ctx, cfg, poller, time.Since(start))
	if _, polling := poller.(*tele.LongPoller); polling && !opts.DisableWebhookCleanup {
		clearWebhook(ctx, bot, cfg.Telegram.DropPending)
	}

	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = tgsender.NewDispatcher(opts.DispatcherOptions)
	}
	if !opts.DisableHelperDispatcher {
		tghelpers.SetDispatcher(dispatcher)
	}
	return Runtime{Bot: bot, Dispatcher: dispatcher, Registry: opts.Registry}, nil
}

// install registers the middlewares, then the routes.
func install(bot *tele.Bot, opts RunOptions, onPanic func(any)) {
	if opts.Middlewares != nil {
		for _, mw := range opts.Middlewares(onPanic) {
			if mw.Use != nil {
				bot.Use(mw.Use)
			}
		}
	}
	for _, route := range opts.Routes {
		if route.Endpoint != nil && route.Handler != nil {
			bot.Handle(route.Endpoint, route.Handler)
		}
	}
}

func shutdown(rt Runtime, opts RunOptions) {
	rt.Dispatcher.Close()
	if !opts.DisableHelperDispatcher {
		tghelpers.SetDispatcher(nil)
	}
}

func logMode(ctx context.Context, cfg *coreconfig.Config, poller tele.Poller, took time.Duration) {
	attrs := []slog.Attr{slog.Duration("duration", took)}
	if p, ok := poller.(*tele.Webhook); ok {
		attrs = append(attrs,
			slog.String("mode", coreconfig.RunModeWebhook),
			slog.String("listen", p.Listen),
			slog.String("public_url", p.Endpoint.PublicURL),
		)
	} else {
		attrs = append(attrs,
			slog.String("mode", coreconfig.RunModeLongpoll),
			slog.Duration("poll_timeout", pollTimeout(cfg)),
		)
	}
	logger.Info(ctx, logger.ComponentTG, "mode", attrs...)
}

// clearWebhook removes a webhook left by an earlier deployment, which would
// otherwise make getUpdates fail. Failure is logged and polling goes on.
func clearWebhook(ctx context.Context, bot *tele.Bot, dropPending bool) {
	if err := bot.RemoveWebhook(dropPending); err != nil {
		logger.Warn(ctx, logger.ComponentTG, "delete_webhook",
			slog.String("status", "fail"),
			slog.String("err", netutil.Redact(err)),
		)
		return
	}
	logger.Info(ctx, logger.ComponentTG, "delete_webhook", slog.Bool("drop_pending", dropPending))
}

// newBotWithRetry retries transient failures of the initial getMe call with
// doubling delays.
func newBotWithRetry(ctx context.Context, settings tele.Settings) (*tele.Bot, error) {
	delay := botInitBackoff
	for attempt := 1; ; attempt++ {
		bot, err := tele.NewBot(settings)
		if err == nil {
			return bot, nil
		}
		if attempt == botInitAttempts || !netutil.ShouldRetry(err) {
			return nil, err
		}
		logger.Warn(ctx, logger.ComponentTG, "init.retry",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("err", netutil.Redact(err)),
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		delay = min(delay*2, botInitMaxDelay)
	}
}
