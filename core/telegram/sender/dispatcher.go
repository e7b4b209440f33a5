// Package sender queues outbound Bot API calls so handlers return quickly and
// replies to one chat keep their order.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/petbot/core/logger"
	"github.com/m3rciful/petbot/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned when the shard of the key has no free slot.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// Send outcomes passed to Options.OnResult.
const (
	ResultOK      = "ok"
	ResultRetried = "retried"
	ResultFailed  = "failed"
)

// Options tune the dispatcher. Zero values select defaults.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds one job including its retries.
	MaxDuration time.Duration
	// OnResult, if set, observes every finished job.
	OnResult func(action, result string)
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// Dispatcher runs queued calls on a fixed set of workers. Jobs are sharded by
// key, so jobs sharing a key run one at a time in enqueue order.
type Dispatcher struct {
	opts   Options
	shards []chan job
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	errs   atomic.Uint64
}

// NewDispatcher starts the workers.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	opts.MaxRetries = max(opts.MaxRetries, 0)
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 30 * time.Second
	}

	d := &Dispatcher{opts: opts, shards: make([]chan job, opts.Workers)}
	perShard := max(opts.QueueSize/opts.Workers, 1)
	d.wg.Add(len(d.shards))
	for i := range d.shards {
		d.shards[i] = make(chan job, perShard)
		go d.worker(d.shards[i])
	}
	return d
}

// Enqueue schedules run on the shard owning key, normally the chat id. run may
// be called again after a transient failure.
func (d *Dispatcher) Enqueue(ctx context.Context, key int64, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.shards[d.shardFor(key)] <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *Dispatcher) shardFor(key int64) int {
	return int(uint64(key) % uint64(len(d.shards)))
}

// ErrorCount returns the number of jobs that failed for good.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Close stops accepting jobs and waits for the queued ones.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, ch := range d.shards {
		close(ch)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) worker(jobs <-chan job) {
	defer d.wg.Done()
	for j := range jobs {
		d.handle(j)
	}
}

func (d *Dispatcher) handle(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.MaxDuration)
	defer cancel()
	start := time.Now()

	attempt, err := d.attempt(ctx, j)
	took := logger.RoundMS(time.Since(start))
	attrs := []slog.Attr{
		slog.String("action", j.action),
		slog.String("endpoint", j.endpoint),
		slog.Int("attempts", attempt),
		slog.Duration("duration", took),
	}

	result := ResultOK
	switch {
	case err != nil:
		result = ResultFailed
		d.errs.Add(1)
		logger.Error(ctx, logger.ComponentTG, "send.fail", append(attrs,
			slog.String("status", "fail"),
			slog.String("kind", string(netutil.Classify(err))),
			slog.String("err", netutil.Redact(err)),
		)...)
	case attempt > 1:
		result = ResultRetried
		logger.Info(ctx, logger.ComponentTG, "send.retried", append(attrs, slog.String("status", "ok"))...)
	default:
		logger.Debug(ctx, logger.ComponentTG, "send.ok", attrs...)
	}
	if d.opts.OnResult != nil {
		d.opts.OnResult(j.action, result)
	}
}

// attempt runs j until it succeeds, fails permanently, runs out of retries or
// ctx expires. Flood errors wait as long as Telegram asks.
func (d *Dispatcher) attempt(ctx context.Context, j job) (int, error) {
	limit := d.opts.MaxRetries + 1
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return n - 1, err
		}
		err := j.run()
		if err == nil {
			return n, nil
		}
		if n == limit || !netutil.ShouldRetry(err) {
			return n, err
		}

		delay := netutil.RetryAfter(err)
		if delay == 0 {
			delay = d.opts.RetryBackoff * time.Duration(n)
		}
		logger.Debug(ctx, logger.ComponentTG, "send.backoff",
			slog.String("action", j.action),
			slog.Int("attempt", n),
			slog.Duration("delay", delay),
			slog.String("kind", string(netutil.Classify(err))),
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return n, err
		case <-timer.C:
		}
	}
}
