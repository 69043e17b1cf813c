package rdc

import (
	"time"

	"github.com/roman-kulish/synchro-tracker/internal/angle"
)

// WithLoopGain sets the tracking loop gain of the converter
func WithLoopGain(gain float64) func(*Converter) {
	return func(c *Converter) {
		c.gain = gain
	}
}

// WithDecimation sets how many frames are consumed per emitted reading
func WithDecimation(n int) func(*Converter) {
	return func(c *Converter) {
		c.decimation = n
	}
}

// WithClock sets the clock used to timestamp readings
func WithClock(now func() time.Time) func(*Converter) {
	return func(c *Converter) {
		c.now = now
	}
}

// Converter is the software resolver-to-digital converter. It consumes one
// frame at a time: the frame is mapped to winding voltages, the secondary is
// Scott-T transformed, the reference is discriminated, the loop is updated and
// every n-th estimate is emitted as a reading.
type Converter struct {
	gain       float64
	decimation int
	now        func() time.Time

	tracker   *Tracker
	decimator *Decimator
	samples   uint64
}

// NewConverter creates a Converter with theta = 0
func NewConverter(options ...func(*Converter)) *Converter {
	c := Converter{
		gain:       DefaultGain,
		decimation: DefaultDecimation,
		now:        time.Now,
	}

	for _, option := range options {
		option(&c)
	}

	c.tracker = NewTracker(WithGain(c.gain))
	c.decimator = NewDecimator(c.decimation)

	return &c
}

// Process runs one frame through the loop. It returns a reading and true when
// the frame completes a decimation period.
func (c *Converter) Process(f Frame) (angle.Reading, bool) {
	in := f.Inputs()
	return c.Step(ScottT(in.S1S3, in.S3S2, in.S2S1), Reference(in.R2R1))
}

// Step runs one already transformed sample through the loop and decimator.
func (c *Converter) Step(v Vector, ref RefSign) (angle.Reading, bool) {
	theta := c.tracker.Update(v, ref)
	c.samples++

	if !c.decimator.Tick() {
		return angle.Reading{}, false
	}

	return angle.Reading{
		Timestamp: c.now(),
		Sample:    c.samples,
		Theta:     theta,
	}, true
}

// Theta returns the current loop estimate in radians
func (c *Converter) Theta() float64 {
	return c.tracker.Theta()
}

// Samples returns the number of frames processed since creation or reset
func (c *Converter) Samples() uint64 {
	return c.samples
}

// Decimation returns the decimation factor
func (c *Converter) Decimation() int {
	return c.decimator.Factor()
}

// Reset restores the converter to its initial state
func (c *Converter) Reset() {
	c.tracker.Reset()
	c.decimator.Reset()
	c.samples = 0
}
