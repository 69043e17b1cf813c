package daq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roman-kulish/synchro-tracker/internal/rdc"
)

const (
	// FrameErrorsThreshold defines the number of consecutive frame read errors allowed
	FrameErrorsThreshold = 5

	// streamReadTimeout bounds a single port read while streaming so that
	// cancellation is observed between frames
	streamReadTimeout = 100 * time.Millisecond

	DeviceDI2108    = "di-2108"
	DeviceSimulator = "simulator"
)

// FrameHandler consumes one frame; returning an error ends the stream.
type FrameHandler func(rdc.Frame) error

// WithLogger sets the logger for the device
func WithLogger(logger *slog.Logger) func(d *Device) {
	return func(d *Device) {
		d.logger = logger.With(
			slog.String("device", d.kind),
			slog.String("deviceID", d.deviceID),
		)
	}
}

// WithSleep replaces the function used for the settle delays on shutdown
func WithSleep(sleep func(time.Duration)) func(d *Device) {
	return func(d *Device) {
		d.sleep = sleep
	}
}

// Device is an acquisition session with a DI-2108 (or a simulator speaking the
// same protocol). Open configures the scan, Stream delivers frames until
// cancelled and Close always leaves the device stopped and reset.
type Device struct {
	kind     string
	deviceID string
	port     Port
	config   *Config

	commander   *Commander
	isStreaming atomic.Bool
	streamMu    sync.Mutex

	closeOnce sync.Once
	closeErr  error

	sleep  func(time.Duration)
	logger *slog.Logger
}

// NewDevice creates a Device on an already opened port. The device takes
// ownership of the port and closes it in Close.
func NewDevice(kind, deviceID string, port Port, config *Config, options ...func(d *Device)) *Device {
	d := Device{
		kind:     kind,
		deviceID: deviceID,
		port:     port,
		config:   config,
		sleep:    time.Sleep,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&d)
	}

	d.commander = NewCommander(port, config.CommandTimeout.Duration())
	return &d
}

// Kind returns the device type, e.g. "di-2108"
func (d *Device) Kind() string {
	return d.kind
}

// DeviceID returns the device identifier, e.g. the serial port path
func (d *Device) DeviceID() string {
	return d.deviceID
}

// Open runs the setup sequence. Missing echoes for stop and reset are tolerated
// since the device may still be streaming from a previous session; with
// Config.Tolerant set every missing echo is only logged.
func (d *Device) Open(ctx context.Context) error {
	cmds, err := d.config.Commands()
	if err != nil {
		return err
	}

	d.logger.Info("configuring device...", slog.Int("commands", len(cmds)))

	for _, cmd := range cmds {
		err := d.commander.Exec(ctx, cmd)
		if err == nil {
			d.logger.Debug("command acknowledged", slog.String("command", cmd))
			continue
		}

		if errors.Is(err, ErrEchoTimeout) && (cmd == CmdStop || cmd == CmdReset || d.config.Tolerant) {
			d.logger.Warn(err.Error())
			continue
		}

		return NewRuntimeError(fmt.Sprintf("configuring %s", d.kind), err)
	}

	d.logger.Info("device configured")
	return nil
}

// Stream starts the scan and calls fn for every frame, in order, on the
// calling goroutine. It returns nil when ctx is cancelled, or the error that
// ended the stream.
func (d *Device) Stream(ctx context.Context, fn FrameHandler) error {
	if !d.streamMu.TryLock() {
		return ErrAlreadyStreaming
	}
	defer d.streamMu.Unlock()

	d.isStreaming.Store(true)
	defer d.isStreaming.Store(false)

	if err := d.port.ResetInputBuffer(); err != nil {
		return NewRuntimeError("resetting input buffer", err)
	}
	if err := d.port.SetReadTimeout(streamReadTimeout); err != nil {
		return NewRuntimeError("setting read timeout", err)
	}
	if err := d.commander.Send(CmdStart); err != nil {
		return NewRuntimeError("starting scan", err)
	}

	d.logger.Info("streaming started...")
	defer d.logger.Info("streaming stopped")

	reader := NewFrameReader(d.port)
	threshold := max(d.config.FrameErrorsThreshold, 1)

	var frameErrors int
	for {
		frame, err := reader.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return nil

			case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, fs.ErrClosed):
				return fmt.Errorf("%w: %w", ErrDeviceClosed, err)
			}

			frameErrors++
			d.logger.Warn(fmt.Sprintf("error reading frame: %s", err.Error()), slog.Int("consecutive", frameErrors))

			if frameErrors >= threshold {
				return fmt.Errorf("%w: %w", ErrTooManyFrameErrors, err)
			}
			continue
		}

		frameErrors = 0 // reset counter

		if err = fn(frame); err != nil {
			return err
		}
	}
}

// IsStreaming returns true while Stream is running
func (d *Device) IsStreaming() bool {
	return d.isStreaming.Load()
}

// Close stops the scan, resets the device, waiting for it to settle after
// each command, and closes the port. It is safe to call Close multiple times.
func (d *Device) Close() error {
	d.closeOnce.Do(func() {
		var errs []error

		settle := d.config.SettleDelay.Duration()
		for _, cmd := range []string{CmdStop, CmdReset} {
			if err := d.commander.Send(cmd); err != nil {
				errs = append(errs, err)
			}
			d.sleep(settle)
		}

		if err := d.port.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing port: %w", err))
		}

		d.closeErr = errors.Join(errs...)
		d.logger.Info("device stopped and reset")
	})

	return d.closeErr
}
