package responder

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/petbot/core/logger"
	"github.com/m3rciful/petbot/core/metrics"
)

const (
	// DefaultTimeout bounds one exchange, including the wait for a free slot.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxConcurrent caps simultaneous exchanges process-wide.
	DefaultMaxConcurrent = 8
)

// ErrNoTransport is returned by New when Options.Transport is nil.
var ErrNoTransport = errors.New("responder: transport is required")

// Options configure a Bridge.
type Options struct {
	Transport     Transport
	Timeout       time.Duration
	MaxConcurrent int
	Metrics       *metrics.Metrics
}

// Bridge runs bounded-time exchanges against a Transport.
type Bridge struct {
	transport Transport
	timeout   time.Duration
	slots     chan struct{}
	metrics   *metrics.Metrics
}

// New validates opts and builds a Bridge.
func New(opts Options) (*Bridge, error) {
	if opts.Transport == nil {
		return nil, ErrNoTransport
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	limit := opts.MaxConcurrent
	if limit <= 0 {
		limit = DefaultMaxConcurrent
	}
	return &Bridge{
		transport: opts.Transport,
		timeout:   timeout,
		slots:     make(chan struct{}, limit),
		metrics:   opts.Metrics,
	}, nil
}

// Transport returns the name of the underlying transport.
func (b *Bridge) Transport() string { return b.transport.Name() }

// Exchange sends req and waits for the reply. Failures are always *Error except when
// the caller's context was cancelled.
func (b *Bridge) Exchange(ctx context.Context, req Request) (Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	id := uuid.NewString()
	select {
	case b.slots <- struct{}{}:
	case <-ctx.Done():
		err := classify(ctx, ctx.Err())
		b.logFailure(ctx, id, 0, err)
		return Reply{ExchangeID: id}, err
	}
	defer func() { <-b.slots }()

	done := b.metrics.ExchangeStarted()
	start := time.Now()
	resp, err := b.transport.Call(ctx, req)
	if err == nil && resp.Error != "" {
		err = &Error{Kind: KindRemote, Diagnostic: clip(resp.Error)}
	}
	took := time.Since(start)

	if err != nil {
		err = classify(ctx, err)
		outcome := "cancelled"
		if kind, ok := KindOf(err); ok {
			outcome = string(kind)
		}
		done(outcome)
		b.logFailure(ctx, id, took, err)
		return Reply{ExchangeID: id}, err
	}

	done("ok")
	logger.Info(ctx, logger.ComponentResponder, "responder.exchange",
		slog.String("exchange_id", id),
		slog.String("responder", b.transport.Name()),
		slog.String("status", "ok"),
		slog.Int("history_len", len(req.ChatHistory)),
		slog.Int("questions_asked", req.QuestionsAsked),
		slog.Duration("duration", logger.RoundMS(took)),
	)
	return Reply{Text: strings.TrimSpace(resp.Text), ExchangeID: id}, nil
}

func (b *Bridge) logFailure(ctx context.Context, id string, took time.Duration, err error) {
	attrs := []slog.Attr{
		slog.String("exchange_id", id),
		slog.String("responder", b.transport.Name()),
		slog.String("status", "error"),
		slog.Duration("duration", logger.RoundMS(took)),
	}
	var re *Error
	if errors.As(err, &re) {
		attrs = append(attrs, slog.String("kind", string(re.Kind)))
		if re.ExitCode != 0 {
			attrs = append(attrs, slog.Int("exit_code", re.ExitCode))
		}
		attrs = append(attrs, slog.String("err_code", re.Code()))
	}
	attrs = append(attrs, slog.String("err", err.Error()))
	logger.Warn(ctx, logger.ComponentResponder, "responder.exchange", attrs...)
}
