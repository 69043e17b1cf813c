package angle

import (
	"math"
	"time"
)

// TrackingSession represents a single acquisition session with a specific device.
// Each session captures metadata about when and how the synchro was tracked.
type TrackingSession struct {
	ID         int64     `json:"ID"`                      // Unique identifier for the session
	StartTime  time.Time `json:"startTime"`               // When the acquisition session began
	DeviceType string    `json:"deviceType"`              // Type of acquisition device (e.g., "di-2108", "simulator")
	DeviceID   string    `json:"deviceID"`                // Device identifier (e.g., serial port path)
	Config     *string   `json:"config,string,omitempty"` // Optional device configuration in JSON format
}

// Reading is a single decimated output of the tracking loop.
type Reading struct {
	Timestamp time.Time `json:"timestamp"` // When the reading was emitted
	Sample    uint64    `json:"sample"`    // Index of the input sample that produced the reading, counted from 1
	Theta     float64   `json:"theta"`     // Loop angle estimate in radians, [-π, π)
}

// Degrees returns the reading angle in degrees, [-180, 180).
func (r Reading) Degrees() float64 {
	return Degrees(r.Theta)
}

// Rounded returns the reading angle in degrees rounded to one decimal place.
func (r Reading) Rounded() float64 {
	return RoundTenth(r.Degrees())
}

// RoundTenth rounds to one decimal place, halves to even.
func RoundTenth(v float64) float64 {
	return math.RoundToEven(10*v) / 10
}

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 {
	return deg * math.Pi / 180
}
