package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/synchro-tracker/internal/angle"
	"github.com/roman-kulish/synchro-tracker/internal/storage"
)

// ErrNoReadings is returned when the session has nothing to draw
var ErrNoReadings = errors.New("no readings to draw")

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	return drawChart(ctx, store, config, logger)
}

func drawChart(ctx context.Context, store *storage.SqliteStore, config *Config, logger *slog.Logger) (err error) {
	session, err := store.Session(ctx, config.SessionID)
	if err != nil {
		return err
	}

	summary, err := store.Summary(ctx, config.SessionID)
	if err != nil {
		return err
	}
	if summary.Count == 0 {
		return fmt.Errorf("session %d: %w", config.SessionID, ErrNoReadings)
	}

	var opts []storage.ReaderOption
	var filters []any

	start, end := summary.FirstTime, summary.LastTime
	if config.From != nil {
		opts = append(opts, storage.WithStartTime(config.From.UTC()))
		filters = append(filters, slog.String("from", config.From.Format(time.DateTime)))
		start = laterOf(start, config.From.UTC())
	}
	if config.To != nil {
		opts = append(opts, storage.WithEndTime(config.To.UTC()))
		filters = append(filters, slog.String("to", config.To.Format(time.DateTime)))
		end = earlierOf(end, config.To.UTC())
	}
	if end.Before(start) {
		return fmt.Errorf("session %d has no readings in the requested time range: %w", config.SessionID, ErrNoReadings)
	}

	logger.Info("iterator configuration", filters...)

	renderer, err := NewChartRenderer(RenderConfig{
		Width:         config.Width,
		Height:        config.Height,
		Location:      config.TimeZone,
		Theme:         config.Theme,
		NoAnnotations: config.NoAnnotations,
	})
	if err != nil {
		return fmt.Errorf("creating chart renderer: %w", err)
	}

	iter, err := store.ReadAngles(ctx, config.SessionID, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cErr := iter.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	series := NewAngleSeries(renderer.PlotArea().Dx(), start, end, config.Presentation)
	for iter.Next(ctx) {
		series.Update(iter.Current())
		if config.Verbose {
			logger.Debug("batch read", slog.String("readings", humanize.Comma(series.Count)))
		}
	}
	if err = iter.Error(); err != nil {
		return err
	}
	if series.Count == 0 {
		return fmt.Errorf("session %d has no readings in the requested time range: %w", config.SessionID, ErrNoReadings)
	}

	logger.Info("finished reading angles",
		slog.Group("stats",
			slog.String("readings", humanize.Comma(series.Count)),
			slog.String("from", start.In(config.TimeZone).Format(time.DateTime)),
			slog.String("to", end.In(config.TimeZone).Format(time.DateTime)),
			slog.String("minDegrees", fmt.Sprintf("%0.1f°", series.MinDegrees)),
			slog.String("maxDegrees", fmt.Sprintf("%0.1f°", series.MaxDegrees)),
		))

	logger.Info("rendering chart",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.String("theme", string(config.Theme)),
			slog.Int("width", config.Width),
			slog.Int("height", config.Height),
		))

	img := renderer.Render(series, chartInfo(session, series, config))

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}
	defer func() {
		if cErr := out.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	return encode(out, img, config.Format)
}

func encode(w io.Writer, img image.Image, format ImageFormat) error {
	switch format {
	case ImagePNG:
		return png.Encode(w, img)

	case ImageJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{
			Quality: 98,
		})

	default:
		return fmt.Errorf("invalid image format: %s", format)
	}
}

func chartInfo(session *angle.TrackingSession, series *AngleSeries, config *Config) []string {
	rate := "n/a"
	if d := series.Duration().Seconds(); d > 0 {
		rate = humanize.SIWithDigits(float64(series.Count-1)/d, 1, "Hz")
	}

	return []string{
		fmt.Sprintf("Session %d: %s %s, started %s", session.ID, session.DeviceType, session.DeviceID,
			session.StartTime.In(config.TimeZone).Format(time.DateTime)),
		fmt.Sprintf("Readings: %s at %s from %s to %s (%s)", humanize.Comma(series.Count), rate,
			series.TimestampStart.In(config.TimeZone).Format(time.DateTime),
			series.TimestampEnd.In(config.TimeZone).Format(time.DateTime),
			series.Duration().Round(time.Second)),
		fmt.Sprintf("Angle: %0.1f° to %0.1f°, %s presentation", series.MinDegrees, series.MaxDegrees, config.Presentation),
	}
}

func laterOf(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

func earlierOf(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}
