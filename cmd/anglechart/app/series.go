package app

import (
	"math"
	"time"

	"github.com/roman-kulish/synchro-tracker/internal/angle"
	"github.com/roman-kulish/synchro-tracker/internal/display"
)

// Column aggregates the readings that fall on one pixel column
type Column struct {
	First, Last float64 // degrees
	Min, Max    float64 // degrees
	Count       int
}

// Wraps reports whether the readings of the column cross the ±180° seam
func (c Column) Wraps() bool {
	return c.Max-c.Min > 180
}

// AngleSeries reduces a session to one Column per pixel of the plot width
type AngleSeries struct {
	Width                        int
	TimestampStart, TimestampEnd time.Time
	MinDegrees, MaxDegrees       float64
	Count                        int64
	Columns                      []Column

	presentation display.Presentation
}

// NewAngleSeries creates a series spanning start to end over width columns
func NewAngleSeries(width int, start, end time.Time, p display.Presentation) *AngleSeries {
	width = max(width, 1)
	return &AngleSeries{
		Width:          width,
		TimestampStart: start,
		TimestampEnd:   end,
		MinDegrees:     math.MaxFloat64,
		MaxDegrees:     -math.MaxFloat64,
		Columns:        make([]Column, width),
		presentation:   p,
	}
}

func (s *AngleSeries) column(t time.Time) int {
	span := s.TimestampEnd.Sub(s.TimestampStart)
	if span <= 0 || s.Width == 1 {
		return 0
	}

	i := int(float64(t.Sub(s.TimestampStart)) / float64(span) * float64(s.Width-1))
	return max(0, min(i, s.Width-1))
}

func (s *AngleSeries) Update(readings []angle.Reading) {
	for _, r := range readings {
		deg := angle.Degrees(s.presentation.Apply(r.Theta))

		s.Count++
		s.MinDegrees = min(s.MinDegrees, deg)
		s.MaxDegrees = max(s.MaxDegrees, deg)

		c := &s.Columns[s.column(r.Timestamp)]
		if c.Count == 0 {
			c.First, c.Min, c.Max = deg, deg, deg
		}
		c.Last = deg
		c.Min = min(c.Min, deg)
		c.Max = max(c.Max, deg)
		c.Count++
	}
}

// Duration returns the time covered by the series
func (s *AngleSeries) Duration() time.Duration {
	return s.TimestampEnd.Sub(s.TimestampStart)
}
