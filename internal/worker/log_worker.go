// Package worker moves logs from the dispatcher to slow sinks on a separate
// goroutine, in batches, with retries.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/efreitasn/matchcore/internal/engine"
)

// BatchHandler persists or forwards a batch of logs. A returned error makes
// the worker retry the same batch.
type BatchHandler interface {
	HandleBatch(ctx context.Context, logs []engine.Log) error
}

// Pauser halts order intake.
type Pauser interface {
	Pause(source, reason string)
}

// Config tunes a LogWorker.
type Config struct {
	Name          string
	QueueSize     int
	BatchSize     int
	FlushInterval time.Duration
	MinBackoff    time.Duration
	MaxBackoff    time.Duration
	// PauseAfter is the number of failed attempts on one batch after which
	// intake is paused. Zero never pauses.
	PauseAfter int
}

func (c *Config) defaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 100 * time.Millisecond
	}
	if c.MinBackoff <= 0 {
		c.MinBackoff = 50 * time.Millisecond
	}
	if c.MaxBackoff < c.MinBackoff {
		c.MaxBackoff = 5 * time.Second
	}
}

// LogWorker buffers logs in a bounded channel and hands them to a
// BatchHandler. Handle blocks when the buffer is full, so a stuck sink
// eventually slows the dispatcher down instead of losing logs.
type LogWorker struct {
	cfg    Config
	sink   BatchHandler
	pauser Pauser
	logger *slog.Logger

	in        chan engine.Log
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a worker. Call Start to begin delivery.
func New(cfg Config, sink BatchHandler, pauser Pauser, logger *slog.Logger) *LogWorker {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &LogWorker{
		cfg:    cfg,
		sink:   sink,
		pauser: pauser,
		logger: logger.With(slog.String("worker", cfg.Name)),
		in:     make(chan engine.Log, cfg.QueueSize),
		done:   make(chan struct{}),
	}
}

// Handle enqueues a log. It implements dispatch.Handler.
func (w *LogWorker) Handle(l engine.Log) {
	select {
	case w.in <- l:
	case <-w.done:
		w.logger.Error("log dropped, worker stopped", slog.Uint64("seq", l.Seq))
	}
}

// Close stops accepting logs and waits until buffered ones are delivered.
func (w *LogWorker) Close() {
	w.closeOnce.Do(func() { close(w.in) })
	<-w.done
}

// Done is closed once the worker goroutine has exited.
func (w *LogWorker) Done() <-chan struct{} {
	return w.done
}

// Start launches the delivery goroutine. It stops after Close drains the
// buffer or when ctx is cancelled.
func (w *LogWorker) Start(ctx context.Context) {
	go func() {
		defer close(w.done)

		ticker := time.NewTicker(w.cfg.FlushInterval)
		defer ticker.Stop()

		batch := make([]engine.Log, 0, w.cfg.BatchSize)
		flush := func() {
			if len(batch) == 0 {
				return
			}
			w.deliver(ctx, batch)
			batch = batch[:0]
		}

		for {
			select {
			case l, ok := <-w.in:
				if !ok {
					flush()
					return
				}
				batch = append(batch, l)
				if len(batch) >= w.cfg.BatchSize {
					flush()
				}
			case <-ticker.C:
				flush()
			case <-ctx.Done():
				w.logger.Warn("worker cancelled",
					slog.Int("unsent", len(batch)+len(w.in)),
				)
				return
			}
		}
	}()
}

// deliver retries the batch with exponential backoff until it succeeds or
// ctx ends.
func (w *LogWorker) deliver(ctx context.Context, batch []engine.Log) {
	backoff := w.cfg.MinBackoff
	for attempt := 1; ; attempt++ {
		err := w.sink.HandleBatch(ctx, batch)
		if err == nil {
			return
		}

		w.logger.Error("batch delivery failed",
			slog.Int("attempt", attempt),
			slog.Int("size", len(batch)),
			slog.Uint64("first_seq", batch[0].Seq),
			slog.String("error", err.Error()),
		)
		if attempt == w.cfg.PauseAfter && w.pauser != nil {
			w.pauser.Pause("worker:"+w.cfg.Name, err.Error())
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > w.cfg.MaxBackoff {
			backoff = w.cfg.MaxBackoff
		}
	}
}
