package audit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// dropLogEvery samples drop warnings so a saturated buffer cannot flood the
// log. The first drop is always logged.
const dropLogEvery = 100

// Config controls dispatcher buffering and failure reporting.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool

	// Logger receives sink failures and sampled drop warnings.
	Logger *zap.Logger

	// OnDrop runs on the emitting goroutine for every event that never
	// reaches the sink. OnSinkError runs on the dispatch goroutine when the
	// sink rejects or panics on an event. Both must return quickly.
	OnDrop      func(Event)
	OnSinkError func(Event, error)
}

// Dispatcher forwards audit events to a sink on its own goroutine so the
// request path never waits on audit I/O.
type Dispatcher struct {
	cfg       Config
	sink      Sink
	logger    *zap.Logger
	ch        chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	failed    atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts the delivery goroutine. It returns nil when cfg
// disables auditing; a nil *Dispatcher accepts and discards every call.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Dispatcher{
		cfg:    cfg,
		sink:   sink,
		logger: logger.Named("audit"),
		ch:     make(chan Event, cfg.BufferSize),
		done:   make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.deliver(event)
		case <-d.done:
			for {
				select {
				case event := <-d.ch:
					d.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(event Event) {
	err := d.emitToSink(event)
	if err == nil {
		return
	}

	d.failed.Add(1)
	d.logger.Warn("audit sink failed",
		zap.String("event_type", event.EventType),
		zap.String("account_id", event.AccountID),
		zap.Error(err),
	)
	if d.cfg.OnSinkError != nil {
		d.cfg.OnSinkError(event, err)
	}
}

// emitToSink turns a sink panic into an error so one bad event cannot stop
// delivery of the rest.
func (d *Dispatcher) emitToSink(event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("audit sink panic: %v", r)
		}
	}()
	return d.sink.Emit(context.Background(), event)
}

// Emit queues event for delivery. With DropIfFull the call never blocks and
// a full buffer discards the event; otherwise it waits for room until ctx
// ends, which also discards the event.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- event:
		case <-d.done:
		default:
			d.drop(event, "buffer full")
		}
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
		d.drop(event, "context done")
	case <-d.done:
	}
}

func (d *Dispatcher) drop(event Event, reason string) {
	n := d.dropped.Add(1)
	if n == 1 || n%dropLogEvery == 0 {
		d.logger.Warn("audit event dropped",
			zap.String("event_type", event.EventType),
			zap.String("reason", reason),
			zap.Uint64("dropped_total", n),
		)
	}
	if d.cfg.OnDrop != nil {
		d.cfg.OnDrop(event)
	}
}

// Close stops accepting events, drains the buffer into the sink and waits
// for the delivery goroutine to exit.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped counts events that never reached the sink.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Failed counts events the sink rejected or panicked on.
func (d *Dispatcher) Failed() uint64 {
	if d == nil {
		return 0
	}
	return d.failed.Load()
}
