// Package dispatch serializes every message for the matching core through a
// single bounded queue and one consumer goroutine. That goroutine is the only
// writer of engine state.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/efreitasn/matchcore/internal/domain"
	"github.com/efreitasn/matchcore/internal/engine"
	"github.com/efreitasn/matchcore/internal/health"
	"github.com/efreitasn/matchcore/internal/sequence"
)

const defaultQueueSize = 4096

// Pauser halts order intake. *health.Monitor implements it.
type Pauser interface {
	Pause(source, reason string)
	Paused() bool
}

// FatalError is returned by Run when a message could not be applied. Engine
// state is no longer trusted once this happens.
type FatalError struct {
	Message engine.Message
	Cause   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("dispatch %T: %v", e.Message, e.Cause)
}

func (e *FatalError) Unwrap() error {
	return e.Cause
}

// Config tunes the dispatcher.
type Config struct {
	QueueSize  int
	BandPolicy engine.BandPolicy
}

// Dispatcher owns all engines and applies messages to them one at a time.
type Dispatcher struct {
	cfg     Config
	queue   chan engine.Message
	done    chan struct{}
	running atomic.Bool

	engines  map[string]*engine.Engine
	instants map[string]*engine.InstantEngine
	plain    []string
	synth    []string

	arrival uint64

	seq     *sequence.Sequencer
	health  Pauser
	handler Handler
	logger  *slog.Logger
}

// New creates a dispatcher. Products must be registered before Run.
func New(cfg Config, seq *sequence.Sequencer, pauser Pauser, handler Handler, logger *slog.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if seq == nil {
		seq = sequence.New(0)
	}
	if handler == nil {
		handler = Fanout{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		cfg:      cfg,
		queue:    make(chan engine.Message, cfg.QueueSize),
		done:     make(chan struct{}),
		engines:  make(map[string]*engine.Engine),
		instants: make(map[string]*engine.InstantEngine),
		seq:      seq,
		health:   pauser,
		handler:  handler,
		logger:   logger,
	}
}

// Register creates the engine for a product. Synthetic products must be
// registered after both of their legs.
func (d *Dispatcher) Register(p *domain.Product) error {
	if d.running.Load() {
		return errors.New("dispatch: register after start")
	}
	if _, ok := d.engines[p.ID]; ok {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateProduct, p.ID)
	}
	if _, ok := d.instants[p.ID]; ok {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateProduct, p.ID)
	}

	if !p.Synthetic() {
		d.engines[p.ID] = engine.NewEngine(p, d.cfg.BandPolicy)
		d.plain = append(d.plain, p.ID)
		return nil
	}

	for _, leg := range []string{p.Instant.BaseProductID, p.Instant.QuoteProductID} {
		if _, ok := d.engines[leg]; !ok {
			return fmt.Errorf("dispatch: synthetic %s: leg %s: %w", p.ID, leg, domain.ErrProductNotFound)
		}
	}
	d.instants[p.ID] = engine.NewInstantEngine(p)
	d.synth = append(d.synth, p.ID)
	return nil
}

// SeedTradeSeq continues a product's trade numbering after seq, so trades
// made after a restart never reuse an id. It must be called before Run.
func (d *Dispatcher) SeedTradeSeq(productID string, seq uint64) error {
	if d.running.Load() {
		return errors.New("dispatch: seed after start")
	}
	e, ok := d.engines[productID]
	if !ok {
		return fmt.Errorf("dispatch: seed %s: %w", productID, domain.ErrProductNotFound)
	}
	e.Book().SeedTradeSeq(seq)
	return nil
}

// Submit enqueues a message, blocking while the queue is full. It fails fast
// when intake is paused or the loop has stopped.
func (d *Dispatcher) Submit(ctx context.Context, msg engine.Message) error {
	if d.health != nil && d.health.Paused() {
		return domain.ErrServicePaused
	}
	select {
	case <-d.done:
		return domain.ErrEngineHalted
	default:
	}

	select {
	case d.queue <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.done:
		return domain.ErrEngineHalted
	}
}

// Done is closed when Run returns.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// QueueLen returns the number of messages waiting.
func (d *Dispatcher) QueueLen() int {
	return len(d.queue)
}

// Run consumes the queue until ctx is cancelled or a message fails. A
// failure pauses the service and is returned as a *FatalError.
func (d *Dispatcher) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("dispatch: already running")
	}
	defer close(d.done)

	d.logger.Info("dispatcher started",
		slog.Int("products", len(d.plain)),
		slog.Int("synthetic_products", len(d.synth)),
	)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopped", slog.Uint64("last_seq", d.seq.Current()))
			return nil
		case msg := <-d.queue:
			if err := d.process(msg); err != nil {
				d.logger.Error("engine fatal error",
					slog.String("message", fmt.Sprintf("%T", msg)),
					slog.Any("detail", msg),
					slog.String("error", err.Error()),
				)
				if d.health != nil {
					d.health.Pause(health.SourceEngine, err.Error())
				}
				return err
			}
		}
	}
}

// process applies one message and emits its logs. Panics are fatal too.
func (d *Dispatcher) process(msg engine.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &FatalError{Message: msg, Cause: fmt.Errorf("panic: %v", r)}
		}
	}()

	logs, err := d.apply(msg)
	if err != nil {
		return &FatalError{Message: msg, Cause: err}
	}
	for i := range logs {
		logs[i].Seq = d.seq.Next()
		d.handler.Handle(logs[i])
	}
	return nil
}

func (d *Dispatcher) apply(msg engine.Message) ([]engine.Log, error) {
	switch m := msg.(type) {
	case engine.Place:
		if m.Order == nil {
			return nil, errors.New("place without order")
		}
		// Arrival order is the queue order.
		if m.Order.Seq == 0 {
			d.arrival++
			m.Order.Seq = d.arrival
		} else if m.Order.Seq > d.arrival {
			d.arrival = m.Order.Seq
		}
		return d.route(m.Order.ProductID, m)

	case engine.Cancel:
		return d.route(m.ProductID, m)

	case engine.DailyLimitOperation:
		e, ok := d.engines[m.ProductID]
		if !ok {
			return nil, fmt.Errorf("daily limit for %s: %w", m.ProductID, domain.ErrProductNotFound)
		}
		logs, err := e.Apply(m)
		if err != nil {
			return nil, err
		}
		return d.followUp(logs)

	case engine.Signal:
		if m.Type == engine.SignalOrderBookInitialized {
			return d.toSynthetics(m.ProductID, m)
		}
		logs, err := d.broadcast(m)
		if err != nil {
			return nil, err
		}
		return d.followUp(logs)

	case engine.PruneRequest:
		var logs []engine.Log
		for i, id := range d.plain {
			shard := m
			shard.ShardCount = len(d.plain)
			shard.ShardIndex = i
			out, err := d.engines[id].Apply(shard)
			if err != nil {
				return nil, err
			}
			logs = append(logs, out...)
		}
		return logs, nil

	default:
		return nil, fmt.Errorf("unsupported message %T", msg)
	}
}

// route delivers a message to the engine that owns productID.
func (d *Dispatcher) route(productID string, msg engine.Message) ([]engine.Log, error) {
	if e, ok := d.engines[productID]; ok {
		return e.Apply(msg)
	}
	if ie, ok := d.instants[productID]; ok {
		return d.applyInstant(ie, msg)
	}
	return nil, fmt.Errorf("route %s: %w", productID, domain.ErrProductNotFound)
}

func (d *Dispatcher) applyInstant(ie *engine.InstantEngine, msg engine.Message) ([]engine.Log, error) {
	baseID, quoteID := ie.Legs()
	return ie.Apply(msg, d.engines[baseID].Book(), d.engines[quoteID].Book())
}

// broadcast sends msg to every plain engine, then every synthetic engine.
func (d *Dispatcher) broadcast(msg engine.Message) ([]engine.Log, error) {
	var logs []engine.Log
	for _, id := range d.plain {
		out, err := d.engines[id].Apply(msg)
		if err != nil {
			return nil, err
		}
		logs = append(logs, out...)
	}
	for _, id := range d.synth {
		out, err := d.applyInstant(d.instants[id], msg)
		if err != nil {
			return nil, err
		}
		logs = append(logs, out...)
	}
	return logs, nil
}

// toSynthetics delivers msg to every synthetic product with leg as one of
// its legs.
func (d *Dispatcher) toSynthetics(leg string, msg engine.Message) ([]engine.Log, error) {
	var logs []engine.Log
	for _, id := range d.synth {
		ie := d.instants[id]
		baseID, quoteID := ie.Legs()
		if leg != baseID && leg != quoteID {
			continue
		}
		out, err := d.applyInstant(ie, msg)
		if err != nil {
			return nil, err
		}
		logs = append(logs, out...)
	}
	return logs, nil
}

// followUp appends the consequences of book-level logs: a leg opening or
// closing is forwarded to synthetics as a daily-limit operation, and an
// initialized book is announced to them as a signal.
func (d *Dispatcher) followUp(logs []engine.Log) ([]engine.Log, error) {
	n := len(logs)
	for i := 0; i < n; i++ {
		l := logs[i]
		var msg engine.Message
		switch l.Type {
		case engine.LogOrderBookStatusChanged:
			msg = engine.DailyLimitOperation{ProductID: l.ProductID, Open: l.Open, At: l.Timestamp}
		case engine.LogOrderBookInitialized:
			msg = engine.Signal{Type: engine.SignalOrderBookInitialized, ProductID: l.ProductID, At: l.Timestamp}
		default:
			continue
		}
		out, err := d.toSynthetics(l.ProductID, msg)
		if err != nil {
			return nil, err
		}
		logs = append(logs, out...)
	}
	return logs, nil
}
