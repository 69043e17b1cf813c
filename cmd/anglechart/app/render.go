package app

import (
	"fmt"
	"image"
	"math"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	dpi            = 72.0
	fontSize       = 13.0
	lineSpacing    = 1.4
	tickMarkLength = 5
	pixelsPerLabel = 150.0
	degreesPerGrid = 45

	// Default border sizes in pixels
	defaultTopBorder    = 20
	defaultLeftBorder   = 60
	defaultBottomBorder = 90
	defaultRightBorder  = 20

	defaultTimeFormat = "15:04:05"
)

// BorderConfig defines the sizes of the space around the plot
type BorderConfig struct {
	Top    int
	Left   int // Space for the angle scale
	Bottom int // Space for the time scale and the information lines
	Right  int
}

// RenderConfig holds all configuration options for the chart
type RenderConfig struct {
	Width, Height int

	// Time display configuration
	TimeFormat string         // Format string for the time scale (e.g. "15:04:05")
	Location   *time.Location // Timezone for time display

	// Visual configuration
	FontSize      float64
	Theme         Theme
	NoAnnotations bool

	BorderConfig BorderConfig
}

// ChartRenderer draws an AngleSeries as angle over time
type ChartRenderer struct {
	config  RenderConfig
	palette Palette
	face    font.Face
}

// NewChartRenderer creates a renderer with the given configuration
func NewChartRenderer(config RenderConfig) (*ChartRenderer, error) {
	if config.TimeFormat == "" {
		config.TimeFormat = defaultTimeFormat
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}
	if config.NoAnnotations {
		config.BorderConfig = BorderConfig{}
	} else {
		if config.BorderConfig.Top == 0 {
			config.BorderConfig.Top = defaultTopBorder
		}
		if config.BorderConfig.Left == 0 {
			config.BorderConfig.Left = defaultLeftBorder
		}
		if config.BorderConfig.Bottom == 0 {
			config.BorderConfig.Bottom = defaultBottomBorder
		}
		if config.BorderConfig.Right == 0 {
			config.BorderConfig.Right = defaultRightBorder
		}
	}

	b := config.BorderConfig
	if config.Width-b.Left-b.Right < 1 || config.Height-b.Top-b.Bottom < 1 {
		return nil, fmt.Errorf("image %dx%d leaves no room for the plot", config.Width, config.Height)
	}

	ttf, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	return &ChartRenderer{
		config:  config,
		palette: GetPalette(config.Theme),
		face: truetype.NewFace(ttf, &truetype.Options{
			Size:    config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingFull,
		}),
	}, nil
}

func plotArea(config RenderConfig) image.Rectangle {
	b := config.BorderConfig
	return image.Rect(b.Left, b.Top, config.Width-b.Right, config.Height-b.Bottom)
}

// PlotArea returns the rectangle the trace is drawn in; a series should have
// one column per pixel of its width
func (r *ChartRenderer) PlotArea() image.Rectangle {
	return plotArea(r.config)
}

// Render draws the series and, unless disabled, the scales and info lines
func (r *ChartRenderer) Render(series *AngleSeries, info []string) image.Image {
	dc := gg.NewContext(r.config.Width, r.config.Height)
	dc.SetFontFace(r.face)

	dc.SetColor(r.palette.Background)
	dc.Clear()

	plot := r.PlotArea()

	r.drawGrid(dc, plot)
	r.drawTrace(dc, plot, series)

	if !r.config.NoAnnotations {
		r.drawAngleScale(dc, plot)
		r.drawTimeScale(dc, plot, series)
		r.drawInfo(dc, plot, info)
	}

	return dc.Image()
}

// y maps degrees in [-180, 180] to a row of the plot, +180 at the top
func y(plot image.Rectangle, deg float64) float64 {
	return float64(plot.Min.Y) + (180-deg)/360*float64(plot.Dy()-1)
}

func (r *ChartRenderer) drawGrid(dc *gg.Context, plot image.Rectangle) {
	dc.SetLineWidth(1)
	for deg := -180; deg <= 180; deg += degreesPerGrid {
		dc.SetColor(r.palette.Grid)
		if deg == 0 {
			dc.SetColor(r.palette.Axis)
		}
		py := math.Round(y(plot, float64(deg))) + 0.5
		dc.DrawLine(float64(plot.Min.X), py, float64(plot.Max.X), py)
		dc.Stroke()
	}
}

func (r *ChartRenderer) drawTrace(dc *gg.Context, plot image.Rectangle, series *AngleSeries) {
	dc.SetLineWidth(1)

	// per column spread
	dc.SetColor(r.palette.Range)
	for i, c := range series.Columns {
		if c.Count < 2 || c.Wraps() || i >= plot.Dx() {
			continue
		}
		px := float64(plot.Min.X+i) + 0.5
		dc.DrawLine(px, y(plot, c.Max), px, y(plot, c.Min))
		dc.Stroke()
	}

	// trace, broken where the angle wraps around
	dc.SetColor(r.palette.Line)
	dc.SetLineWidth(1.5)

	var prev *Column
	var prevX float64
	for i := range series.Columns {
		c := &series.Columns[i]
		if c.Count == 0 || i >= plot.Dx() {
			continue
		}
		px := float64(plot.Min.X+i) + 0.5

		if prev != nil && math.Abs(c.First-prev.Last) <= 180 {
			dc.DrawLine(prevX, y(plot, prev.Last), px, y(plot, c.First))
			dc.Stroke()
		} else {
			dc.DrawPoint(px, y(plot, c.First), 0.75)
			dc.Fill()
		}
		if !c.Wraps() && c.First != c.Last {
			dc.DrawLine(px, y(plot, c.First), px, y(plot, c.Last))
			dc.Stroke()
		}

		prev, prevX = c, px
	}
}

func (r *ChartRenderer) drawAngleScale(dc *gg.Context, plot image.Rectangle) {
	dc.SetColor(r.palette.Text)
	dc.SetLineWidth(1)

	for deg := -180; deg <= 180; deg += degreesPerGrid {
		py := y(plot, float64(deg))
		dc.DrawLine(float64(plot.Min.X-tickMarkLength), py, float64(plot.Min.X), py)
		dc.Stroke()
		dc.DrawStringAnchored(fmt.Sprintf("%d°", deg), float64(plot.Min.X-tickMarkLength-3), py, 1, 0.35)
	}
}

func (r *ChartRenderer) drawTimeScale(dc *gg.Context, plot image.Rectangle, series *AngleSeries) {
	dc.SetColor(r.palette.Text)
	dc.SetLineWidth(1)

	count := max(int(float64(plot.Dx())/pixelsPerLabel), 1)
	span := series.Duration()

	format := r.config.TimeFormat
	if span > 24*time.Hour {
		format = "01-02 " + format
	}

	base := float64(plot.Max.Y)
	for i := 0; i <= count; i++ {
		frac := float64(i) / float64(count)
		px := float64(plot.Min.X) + frac*float64(plot.Dx()-1)
		t := series.TimestampStart.Add(time.Duration(frac * float64(span)))

		dc.DrawLine(px, base, px, base+tickMarkLength)
		dc.Stroke()

		ax := 0.5
		switch i {
		case 0:
			ax = 0
		case count:
			ax = 1
		}
		dc.DrawStringAnchored(t.In(r.config.Location).Format(format), px, base+tickMarkLength+3, ax, 1)
	}
}

func (r *ChartRenderer) drawInfo(dc *gg.Context, plot image.Rectangle, info []string) {
	dc.SetColor(r.palette.Text)

	step := r.config.FontSize * lineSpacing
	py := float64(plot.Max.Y) + tickMarkLength + 3 + 2*step
	for _, s := range info {
		if py > float64(r.config.Height) {
			break
		}
		dc.DrawString(s, float64(plot.Min.X), py)
		py += step
	}
}
