package rdc

import "math"

// scottGain is 2/√3, the Scott-T scaling of the quadrature leg
var scottGain = 2 / math.Sqrt(3)

// Vector is the orthogonal two-phase representation of a synchro secondary.
type Vector struct {
	Sin float64
	Cos float64
}

// ScottT converts the three line-to-line secondary voltages of a synchro into
// a sine/cosine pair. Only two of the three differences are independent; the
// third is accepted for symmetry with the wiring and ignored.
func ScottT(s1s3, s3s2, _ float64) Vector {
	return Vector{
		Sin: s1s3,
		Cos: scottGain * (s3s2 + 0.5*s1s3),
	}
}

// Synthesize is the inverse Scott-T transform: it returns the line-to-line
// secondary voltages of a synchro at angle phi (radians) for the instantaneous
// carrier value carrier.
func Synthesize(phi, carrier float64) (s1s3, s3s2, s2s1 float64) {
	const third = 2 * math.Pi / 3

	s1s3 = carrier * math.Sin(phi)
	s3s2 = carrier * math.Sin(phi+third)
	s2s1 = carrier * math.Sin(phi+2*third)
	return
}
