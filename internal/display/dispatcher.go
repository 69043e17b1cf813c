package display

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roman-kulish/synchro-tracker/internal/angle"
)

const queueSize = 64

// WithLogger sets the logger for the dispatcher
func WithLogger(logger *slog.Logger) func(*Dispatcher) {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithQueueSize sets how many readings may wait for the sink
func WithQueueSize(size int) func(*Dispatcher) {
	return func(d *Dispatcher) {
		d.queueSize = size
	}
}

// Dispatcher decouples the acquisition loop from slow sinks: readings are
// queued without blocking and delivered to the sink on a separate goroutine.
// When the queue is full the reading is dropped.
type Dispatcher struct {
	sink      Sink
	queueSize int
	queue     chan angle.Reading

	dropped atomic.Uint64
	wg      sync.WaitGroup
	once    sync.Once

	logger *slog.Logger
}

// NewDispatcher creates a Dispatcher and starts delivering to sink
func NewDispatcher(ctx context.Context, sink Sink, options ...func(*Dispatcher)) *Dispatcher {
	d := Dispatcher{
		sink:      sink,
		queueSize: queueSize,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&d)
	}

	d.queue = make(chan angle.Reading, max(d.queueSize, 1))

	d.wg.Add(1)
	go d.deliver(context.WithoutCancel(ctx))

	return &d
}

func (d *Dispatcher) deliver(ctx context.Context) {
	defer d.wg.Done()

	for r := range d.queue {
		if err := d.sink.Emit(ctx, r); err != nil {
			d.logger.Error(err.Error())
		}
	}
}

// Offer queues a reading; it reports false when the reading was dropped
func (d *Dispatcher) Offer(r angle.Reading) bool {
	select {
	case d.queue <- r:
		return true
	default:
		d.dropped.Add(1)
		return false
	}
}

// Dropped returns the number of readings dropped so far
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Close delivers the queued readings and closes the sink. Offer must not be
// called after Close.
func (d *Dispatcher) Close() error {
	var err error
	d.once.Do(func() {
		close(d.queue)
		d.wg.Wait()

		if err = d.sink.Close(); err != nil {
			err = fmt.Errorf("closing sink: %w", err)
		}
		if n := d.Dropped(); n > 0 {
			d.logger.Warn("readings dropped", slog.Uint64("count", n))
		}
	})
	return err
}
