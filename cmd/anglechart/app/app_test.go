package app

import (
	"context"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/synchro-tracker/internal/angle"
	"github.com/roman-kulish/synchro-tracker/internal/display"
	"github.com/roman-kulish/synchro-tracker/internal/storage"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// sweep returns n readings 1/15 s apart turning one degree per reading from -170°
func sweep(n int) []angle.Reading {
	rs := make([]angle.Reading, n)
	for i := range rs {
		deg := math180(-170 + float64(i))
		rs[i] = angle.Reading{
			Timestamp: epoch.Add(time.Duration(i) * time.Second / 15),
			Sample:    uint64(400 * (i + 1)),
			Theta:     angle.Radians(deg),
		}
	}
	return rs
}

// math180 wraps degrees to [-180, 180)
func math180(deg float64) float64 {
	for deg >= 180 {
		deg -= 360
	}
	return deg
}

func TestNewConfigFromCLI(t *testing.T) {
	c, err := NewConfigFromCLI([]string{
		"--db", "tracker.sqlite",
		"-s", "3",
		"-o", "out/chart",
		"-f", "JPEG",
		"--width", "800",
		"--from", "2024-05-01 12:00:00",
		"--to", "2024-05-01T12:30:00Z",
		"--tz", "UTC",
		"--theme", "dark",
		"--presentation", "alerter",
	})
	require.NoError(t, err)

	assert.Equal(t, "tracker.sqlite", c.DBPath)
	assert.Equal(t, int64(3), c.SessionID)
	assert.Equal(t, "out/chart.jpeg", c.OutputFile)
	assert.Equal(t, ImageJPEG, c.Format)
	assert.Equal(t, 800, c.Width)
	assert.Equal(t, defaultHeight, c.Height)
	require.NotNil(t, c.From)
	assert.True(t, epoch.Equal(*c.From))
	require.NotNil(t, c.To)
	assert.True(t, epoch.Add(30*time.Minute).Equal(*c.To))
	assert.Equal(t, DarkTheme, c.Theme)
	assert.Equal(t, display.PresentationAlerter, c.Presentation)
}

func TestNewConfigFromCLI_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "no db", args: []string{"-o", "out"}},
		{name: "no output", args: []string{"--db", "x.sqlite"}},
		{name: "session", args: []string{"--db", "x.sqlite", "-o", "out", "-s", "0"}},
		{name: "format", args: []string{"--db", "x.sqlite", "-o", "out", "-f", "gif"}},
		{name: "size", args: []string{"--db", "x.sqlite", "-o", "out", "--width", "10"}},
		{name: "theme", args: []string{"--db", "x.sqlite", "-o", "out", "--theme", "neon"}},
		{name: "presentation", args: []string{"--db", "x.sqlite", "-o", "out", "--presentation", "mirrored"}},
		{name: "time", args: []string{"--db", "x.sqlite", "-o", "out", "--from", "yesterday"}},
		{name: "range", args: []string{"--db", "x.sqlite", "-o", "out", "--tz", "UTC", "--from", "2024-05-02 00:00:00", "--to", "2024-05-01 00:00:00"}},
		{name: "zone", args: []string{"--db", "x.sqlite", "-o", "out", "--tz", "Mars/Olympus_Mons"}},
		{name: "flag", args: []string{"--db", "x.sqlite", "-o", "out", "--colour"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfigFromCLI(tt.args)
			assert.Error(t, err)
		})
	}
}

func TestAngleSeries(t *testing.T) {
	rs := sweep(11)
	s := NewAngleSeries(5, rs[0].Timestamp, rs[10].Timestamp, display.PresentationStandard)
	s.Update(rs[:4])
	s.Update(rs[4:])

	assert.Equal(t, int64(11), s.Count)
	assert.InDelta(t, -170, s.MinDegrees, 1e-9)
	assert.InDelta(t, -160, s.MaxDegrees, 1e-9)

	var total int
	for _, c := range s.Columns {
		total += c.Count
		assert.False(t, c.Wraps())
	}
	assert.Equal(t, 11, total)

	first, last := s.Columns[0], s.Columns[4]
	assert.InDelta(t, -170, first.First, 1e-9)
	assert.InDelta(t, -160, last.Last, 1e-9)
	assert.Equal(t, 1, last.Count, "only the final reading lands on the last column")
}

func TestAngleSeries_WrapAndPresentation(t *testing.T) {
	rs := []angle.Reading{
		{Timestamp: epoch, Theta: angle.Radians(179)},
		{Timestamp: epoch, Theta: angle.Radians(-179)},
	}

	s := NewAngleSeries(1, epoch, epoch, display.PresentationStandard)
	s.Update(rs)
	assert.True(t, s.Columns[0].Wraps())

	s = NewAngleSeries(3, epoch, epoch.Add(time.Second), display.PresentationAlerter)
	s.Update([]angle.Reading{{Timestamp: epoch, Theta: 0}})
	assert.InDelta(t, 90, s.Columns[0].First, 1e-9)
}

func TestChartRenderer(t *testing.T) {
	r, err := NewChartRenderer(RenderConfig{Width: 400, Height: 300, Location: time.UTC})
	require.NoError(t, err)

	plot := r.PlotArea()
	assert.Equal(t, 400-defaultLeftBorder-defaultRightBorder, plot.Dx())

	rs := sweep(400)
	s := NewAngleSeries(plot.Dx(), rs[0].Timestamp, rs[len(rs)-1].Timestamp, display.PresentationStandard)
	s.Update(rs)

	img := r.Render(s, []string{"info"})
	assert.Equal(t, 400, img.Bounds().Dx())
	assert.Equal(t, 300, img.Bounds().Dy())

	bare, err := NewChartRenderer(RenderConfig{Width: 400, Height: 300, NoAnnotations: true, Theme: DarkTheme})
	require.NoError(t, err)
	assert.Equal(t, 400, bare.PlotArea().Dx())

	_, err = NewChartRenderer(RenderConfig{Width: 50, Height: 50})
	assert.Error(t, err)
}

func createDatabase(t *testing.T, readings []angle.Reading) (string, int64) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "tracker.sqlite")
	store := storage.NewSqliteStore(dbPath)
	defer store.Close()

	id, err := store.CreateSession(context.Background(), "simulator", "sim0", nil)
	require.NoError(t, err)
	require.NoError(t, store.StoreReadings(context.Background(), id, readings))

	return dbPath, id
}

func TestRun(t *testing.T) {
	dbPath, id := createDatabase(t, sweep(900))

	config := NewConfig()
	config.DBPath = dbPath
	config.SessionID = id
	config.Width, config.Height = 640, 320
	config.TimeZone = time.UTC
	config.OutputFile = filepath.Join(t.TempDir(), "chart.png")

	require.NoError(t, Run(context.Background(), config, discardLogger()))

	f, err := os.Open(config.OutputFile)
	require.NoError(t, err)
	defer f.Close()

	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 640, img.Bounds().Dx())
	assert.Equal(t, 320, img.Bounds().Dy())
}

func TestRun_JPEGWithTimeRange(t *testing.T) {
	dbPath, id := createDatabase(t, sweep(900))

	from, to := epoch.Add(10*time.Second), epoch.Add(20*time.Second)

	config := NewConfig()
	config.DBPath = dbPath
	config.SessionID = id
	config.Format = ImageJPEG
	config.From, config.To = &from, &to
	config.OutputFile = filepath.Join(t.TempDir(), "chart.jpeg")

	require.NoError(t, Run(context.Background(), config, discardLogger()))

	f, err := os.Open(config.OutputFile)
	require.NoError(t, err)
	defer f.Close()

	_, err = jpeg.Decode(f)
	require.NoError(t, err)
}

func TestRun_NoReadings(t *testing.T) {
	dbPath, id := createDatabase(t, nil)

	config := NewConfig()
	config.DBPath = dbPath
	config.SessionID = id
	config.OutputFile = filepath.Join(t.TempDir(), "chart.png")

	err := Run(context.Background(), config, discardLogger())
	assert.ErrorIs(t, err, ErrNoReadings)

	config.DBPath = filepath.Join(t.TempDir(), "missing.sqlite")
	assert.ErrorIs(t, Run(context.Background(), config, discardLogger()), os.ErrNotExist)
}

func TestRun_EmptyTimeRange(t *testing.T) {
	dbPath, id := createDatabase(t, sweep(30))

	from := epoch.Add(time.Hour)

	config := NewConfig()
	config.DBPath = dbPath
	config.SessionID = id
	config.From = &from
	config.OutputFile = filepath.Join(t.TempDir(), "chart.png")

	assert.ErrorIs(t, Run(context.Background(), config, discardLogger()), ErrNoReadings)
}
