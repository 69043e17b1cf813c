package rdc

import "math"

// DefaultGain is the loop integrator gain, 1/64
const DefaultGain = 0.015625

// WithGain sets the loop integrator gain
func WithGain(gain float64) func(*Tracker) {
	return func(t *Tracker) {
		t.gain = gain
	}
}

// Tracker is a type-II tracking loop: the phase error between the synchro
// vector and the current estimate is demodulated against the reference sign
// and integrated into theta. There is no proportional term.
//
// A Tracker is not safe for concurrent use; it is owned by the acquisition loop.
type Tracker struct {
	gain  float64
	theta float64 // radians, always in [-π, π)
}

// NewTracker creates a Tracker with theta = 0
func NewTracker(options ...func(*Tracker)) *Tracker {
	t := Tracker{
		gain: DefaultGain,
	}

	for _, option := range options {
		option(&t)
	}

	return &t
}

// Update advances the loop by one sample and returns the new estimate.
func (t *Tracker) Update(v Vector, ref RefSign) float64 {
	if ref == 0 {
		return t.theta // hold at the reference zero crossing
	}

	// sin(φ - θ) for a vector at angle φ
	delta := v.Sin*math.Cos(t.theta) - v.Cos*math.Sin(t.theta)
	demod := float64(ref) * delta

	t.theta = Wrap(t.theta + t.gain*demod)
	return t.theta
}

// Theta returns the current estimate in radians
func (t *Tracker) Theta() float64 {
	return t.theta
}

// Gain returns the loop integrator gain
func (t *Tracker) Gain() float64 {
	return t.gain
}

// Reset restores the estimate to 0
func (t *Tracker) Reset() {
	t.theta = 0
}

// Wrap maps an angle in radians into [-π, π) using a floored modulo, so
// negative inputs wrap the same way as positive ones. Values already in range
// are returned unchanged.
func Wrap(theta float64) float64 {
	if theta >= -math.Pi && theta < math.Pi {
		return theta
	}

	m := math.Mod(theta+math.Pi, 2*math.Pi)
	if m < 0 {
		m += 2 * math.Pi
	}
	if m >= 2*math.Pi {
		m = 0
	}

	return m - math.Pi
}
