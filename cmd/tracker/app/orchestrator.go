package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/synchro-tracker/internal/angle"
	"github.com/roman-kulish/synchro-tracker/internal/daq"
	"github.com/roman-kulish/synchro-tracker/internal/display"
	"github.com/roman-kulish/synchro-tracker/internal/rdc"
)

type sinkConfig struct {
	name      string
	sink      display.Sink
	queueSize int
}

// WithSink registers a sink fed through its own queue of queueSize readings
func WithSink(name string, sink display.Sink, queueSize int) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.sinks = append(o.sinks, sinkConfig{name: name, sink: sink, queueSize: queueSize})
	}
}

// WithReportInterval sets how often tracking progress is logged
func WithReportInterval(interval time.Duration) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.reportInterval = interval
	}
}

// WithLogger sets the logger for the orchestrator
func WithLogger(logger *slog.Logger) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// Orchestrator feeds the frames of a device through the tracking loop and
// hands every decimated reading to the registered sinks. Each sink runs behind
// a dispatcher so that a slow sink never stalls the acquisition.
type Orchestrator struct {
	device    *daq.Device
	converter *rdc.Converter
	sinks     []sinkConfig

	reportInterval time.Duration
	lastReport     time.Time
	readings       uint64

	logger *slog.Logger
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(device *daq.Device, converter *rdc.Converter, options ...func(*Orchestrator)) *Orchestrator {
	o := Orchestrator{
		device:    device,
		converter: converter,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&o)
	}

	return &o
}

// Run streams until ctx is done or the device fails. The sinks are drained
// and closed before Run returns; the device is left to the caller.
func (o *Orchestrator) Run(ctx context.Context) (err error) {
	if len(o.sinks) == 0 {
		return errors.New("no sinks to deliver readings to")
	}

	dispatchers := make([]*display.Dispatcher, len(o.sinks))
	for i, s := range o.sinks {
		dispatchers[i] = display.NewDispatcher(ctx, s.sink,
			display.WithQueueSize(s.queueSize),
			display.WithLogger(o.logger.With(slog.String("sink", s.name))),
		)
	}
	defer func() {
		errs := []error{err}
		for _, d := range dispatchers {
			errs = append(errs, d.Close())
		}
		err = errors.Join(errs...)
	}()

	start := time.Now()
	o.lastReport = start

	err = o.device.Stream(ctx, func(f rdc.Frame) error {
		r, ok := o.converter.Process(f)
		if !ok {
			return nil
		}

		o.readings++
		for _, d := range dispatchers {
			d.Offer(r)
		}
		o.report(r)
		return nil
	})
	if err != nil {
		return fmt.Errorf("streaming: %w", err)
	}

	elapsed := time.Since(start)
	o.logger.Info("tracking stopped",
		slog.String("samples", humanize.Comma(int64(o.converter.Samples()))),
		slog.String("readings", humanize.Comma(int64(o.readings))),
		slog.String("sampleRate", humanize.SIWithDigits(float64(o.converter.Samples())/max(elapsed.Seconds(), 1e-9), 1, "S/s")),
		slog.Duration("elapsed", elapsed.Round(time.Millisecond)),
	)
	return nil
}

func (o *Orchestrator) report(r angle.Reading) {
	if o.reportInterval <= 0 || r.Timestamp.Sub(o.lastReport) < o.reportInterval {
		return
	}
	o.lastReport = r.Timestamp

	o.logger.Info("tracking",
		slog.Float64("degrees", r.Rounded()),
		slog.String("samples", humanize.Comma(int64(r.Sample))),
	)
}

// Readings returns the number of readings produced by the last Run
func (o *Orchestrator) Readings() uint64 {
	return o.readings
}
