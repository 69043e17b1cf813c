package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/synchro-tracker/internal/daq"
	"github.com/roman-kulish/synchro-tracker/internal/display"
	"github.com/roman-kulish/synchro-tracker/internal/rdc"
	"github.com/roman-kulish/synchro-tracker/internal/storage"
	"github.com/roman-kulish/synchro-tracker/internal/telemetry"
)

const (
	storageDir      = "data"
	shutdownTimeout = 5 * time.Second
)

// Run opens the acquisition device, tracks the synchro until ctx is done and
// always leaves the device stopped and reset.
func Run(ctx context.Context, config *Config, logger *slog.Logger) (err error) {
	device, err := createDevice(config.Device, logger)
	if err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}
	defer func() {
		if cErr := device.Close(); cErr != nil {
			logger.Error(fmt.Sprintf("closing device: %s", cErr.Error()))
		}
	}()

	if err = device.Open(ctx); err != nil {
		return fmt.Errorf("failed to open device: %w", err)
	}

	converter := rdc.NewConverter(
		rdc.WithLoopGain(config.Tracker.Gain),
		rdc.WithDecimation(config.Tracker.Decimation),
	)

	options := []func(*Orchestrator){
		WithLogger(logger),
		WithReportInterval(config.Settings.ReportInterval.Duration()),
	}

	latest := telemetry.NewLatest()
	options = append(options, WithSink("latest", latest, 1))

	if config.Web.Enabled {
		room := display.NewRoom(logger.With(slog.String("component", "room")))
		go room.Run(ctx)

		stop, err := serveWeb(ctx, config.Web.Addr, display.NewHandler(room, latest), logger)
		if err != nil {
			return fmt.Errorf("failed to start web server: %w", err)
		}
		defer stop()

		options = append(options, WithSink("web", display.Present(config.Display.Presentation, room), config.Display.QueueSize))
	}

	if config.Storage.Enabled {
		store, err := createStorage(&config.Storage)
		if err != nil {
			return fmt.Errorf("failed to create storage: %w", err)
		}
		defer store.Close()

		sessionID, err := store.CreateSession(ctx, device.Kind(), device.DeviceID(), config.Device)
		if err != nil {
			return fmt.Errorf("creating session: %w", err)
		}
		logger.Info("recording session", slog.Int64("sessionID", sessionID))

		recorder := storage.NewRecorder(store, sessionID,
			storage.WithMaxBatchSize(config.Storage.MaxBatchSize),
			storage.WithRecorderLogger(logger),
		)
		options = append(options, WithSink("storage", recorder, 4*config.Storage.MaxBatchSize))
	}

	// opened last: from here on the dispatcher owns the display port and
	// closes it when the run ends
	displays, err := createDisplays(&config.Display)
	if err != nil {
		return fmt.Errorf("failed to create displays: %w", err)
	}
	if len(displays) > 0 {
		options = append(options, WithSink("display", display.Present(config.Display.Presentation, displays), config.Display.QueueSize))
	}

	logger.Info("tracking...",
		slog.String("frameRate", humanize.SIWithDigits(config.Device.FrameRate(), 1, "S/s")),
		slog.String("outputRate", humanize.SIWithDigits(config.OutputRate(), 1, "Hz")),
		slog.Float64("gain", config.Tracker.Gain),
		slog.Int("decimation", config.Tracker.Decimation),
	)

	return NewOrchestrator(device, converter, options...).Run(ctx)
}

func createDevice(config *daq.Config, logger *slog.Logger) (*daq.Device, error) {
	switch config.Source {
	case daq.SourceSerial:
		port, err := daq.OpenSerial(config)
		if err != nil {
			return nil, err
		}
		return daq.NewDevice(daq.DeviceDI2108, config.Port, port, config, daq.WithLogger(logger)), nil

	case daq.SourceSimulated:
		return daq.NewDevice(daq.DeviceSimulator, "simulator", daq.NewSimulator(config), config, daq.WithLogger(logger)), nil

	default:
		return nil, fmt.Errorf("unknown source '%s'", config.Source)
	}
}

// ListPorts writes the serial ports reported by list, one per line
func ListPorts(w io.Writer, list func() ([]string, error)) error {
	ports, err := list()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		_, err = fmt.Fprintln(w, "no serial ports found")
		return err
	}
	for _, port := range ports {
		if _, err = fmt.Fprintln(w, port); err != nil {
			return err
		}
	}
	return nil
}

func createDisplays(config *DisplayConfig) (display.Multi, error) {
	var displays display.Multi
	if config.Console {
		displays = append(displays, display.NewConsole(os.Stdout))
	}
	if config.SerialPort != "" {
		d, err := display.OpenSerialDisplay(config.SerialPort, config.BaudRate)
		if err != nil {
			return nil, err
		}
		displays = append(displays, d)
	}
	return displays, nil
}

// serveWeb listens on addr and serves handler until the returned stop function is called
func serveWeb(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(fmt.Sprintf("web server: %s", err.Error()))
		}
	}()
	logger.Info("web server started", slog.String("addr", ln.Addr().String()))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn(fmt.Sprintf("web server shutdown: %s", err.Error()))
		}
	}, nil
}

func createStorage(config *StorageConfig) (*storage.SqliteStore, error) {
	dir := config.DataDirectory
	if dir == "" {
		dir = storageDir
	}

	if !filepath.IsAbs(dir) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current working directory: %w", err)
		}
		dir = filepath.Join(wd, dir)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory '%s': %w", dir, err)
	}

	return storage.NewSqliteStore(filepath.Join(dir, config.Database)), nil
}
