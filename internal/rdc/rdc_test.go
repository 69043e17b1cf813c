package rdc

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/roman-kulish/synchro-tracker/internal/angle"
)

func TestScottT(t *testing.T) {
	v := ScottT(0.5, 0.2, -0.7)

	assert.InDelta(t, 0.5, v.Sin, 1e-12, "sine leg is s1-s3")
	assert.InDelta(t, 0.51962, v.Cos, 1e-5, "cosine leg is 2/√3·(s3-s2 + s1-s3/2)")
}

func TestScottT_InverseRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		phi := rapid.Float64Range(-math.Pi, math.Pi).Draw(t, "phi")
		carrier := rapid.Float64Range(-1, 1).Draw(t, "carrier")

		v := ScottT(Synthesize(phi, carrier))

		assert.InDelta(t, carrier*math.Sin(phi), v.Sin, 1e-9)
		assert.InDelta(t, carrier*math.Cos(phi), v.Cos, 1e-9)
	})
}

func TestSynthesize_BalancedSecondary(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		phi := rapid.Float64Range(-10, 10).Draw(t, "phi")

		s1s3, s3s2, s2s1 := Synthesize(phi, 1)
		assert.InDelta(t, 0, s1s3+s3s2+s2s1, 1e-9, "line-to-line voltages of a balanced secondary sum to zero")
	})
}

func TestReference(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want RefSign
	}{
		{"zero", 0, 0},
		{"negative zero", math.Copysign(0, -1), 0},
		{"tiny positive", 1e-9, 1},
		{"tiny negative", -1e-9, -1},
		{"full scale", 1, 1},
		{"negative full scale", -1, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Reference(tt.in))
		})
	}
}

func TestWrap(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"zero", 0, 0},
		{"lower bound kept", -math.Pi, -math.Pi},
		{"upper bound maps to lower", math.Pi, -math.Pi},
		{"just over pi", math.Pi + 0.5, -math.Pi + 0.5},
		{"just under minus pi", -math.Pi - 0.5, math.Pi - 0.5},
		{"several turns negative", -5*math.Pi - 0.25, math.Pi - 0.25},
		{"several turns positive", 6*math.Pi + 0.25, 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Wrap(tt.in), 1e-9)
		})
	}
}

func TestWrap_Range(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		x := rapid.Float64Range(-1e6, 1e6).Draw(t, "theta")

		w := Wrap(x)
		assert.GreaterOrEqual(t, w, -math.Pi)
		assert.Less(t, w, math.Pi)

		// same angle, different representation
		assert.InDelta(t, 0, math.Sin(w-x), 1e-6)
		assert.InDelta(t, 1, math.Cos(w-x), 1e-6)
	})
}

func TestWrap_Idempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		x := rapid.Float64Range(-1e6, 1e6).Draw(t, "theta")

		w := Wrap(x)
		assert.Equal(t, w, Wrap(w))
	})
}

func TestTracker_ZeroInputHolds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		start := rapid.Float64Range(-math.Pi, math.Pi-1e-9).Draw(t, "start")
		refs := rapid.SliceOfN(rapid.IntRange(-1, 1), 1, 200).Draw(t, "refs")

		tr := NewTracker()
		tr.theta = start

		for _, r := range refs {
			tr.Update(Vector{}, RefSign(r))
		}
		assert.Equal(t, start, tr.Theta())
	})
}

func TestTracker_HoldsOnZeroReference(t *testing.T) {
	tr := NewTracker()
	tr.Update(Vector{Sin: 1, Cos: 0}, 1)
	before := tr.Theta()
	require.NotZero(t, before)

	tr.Update(Vector{Sin: 1, Cos: 0}, 0)
	assert.Equal(t, before, tr.Theta())
}

func TestTracker_SingleStep(t *testing.T) {
	tr := NewTracker()

	// theta = 0: delta = sin, demod = -sin, step = G·demod
	got := tr.Update(Vector{Sin: 0.5, Cos: 0.8}, -1)
	assert.InDelta(t, -0.5*DefaultGain, got, 1e-15)
	assert.Equal(t, DefaultGain, tr.Gain())

	tr.Reset()
	assert.Zero(t, tr.Theta())
}

func TestTracker_Converges(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		phi := rapid.Float64Range(-3, 3).Draw(t, "phi")
		amplitude := rapid.Float64Range(0.5, 1).Draw(t, "amplitude")

		tr := NewTracker()
		for i := 0; i < 4000; i++ {
			carrier := amplitude
			if i%2 == 1 {
				carrier = -amplitude
			}
			v := Vector{Sin: carrier * math.Sin(phi), Cos: carrier * math.Cos(phi)}
			tr.Update(v, Reference(carrier))
		}

		assert.InDelta(t, 0, Wrap(tr.Theta()-phi), 1e-3)
	})
}

func TestTracker_CustomGainIsFaster(t *testing.T) {
	phi := angle.Radians(45)
	v := Vector{Sin: math.Sin(phi), Cos: math.Cos(phi)}

	slow := NewTracker()
	fast := NewTracker(WithGain(0.125))
	for i := 0; i < 20; i++ {
		slow.Update(v, 1)
		fast.Update(v, 1)
	}

	assert.Less(t, math.Abs(fast.Theta()-phi), math.Abs(slow.Theta()-phi))
}

func TestDecimator(t *testing.T) {
	d := NewDecimator(DefaultDecimation)

	var emitted []int
	for i := 1; i <= 4000; i++ {
		if d.Tick() {
			emitted = append(emitted, i)
		}
	}

	require.Len(t, emitted, 10, "one emission per 400 samples")
	assert.Equal(t, 400, emitted[0], "first emission on the 400th sample")
	for i, s := range emitted {
		assert.Equal(t, (i+1)*400, s)
	}
}

func TestDecimator_MinimumFactor(t *testing.T) {
	d := NewDecimator(0)
	assert.Equal(t, 1, d.Factor())
	assert.True(t, d.Tick())
	assert.True(t, d.Tick())
}

func TestFrame_Inputs(t *testing.T) {
	f := Frame{16384, -8192, 32767, -32768}
	in := f.Inputs()

	assert.Equal(t, -0.5, in.R2R1, "reference channel is negated")
	assert.Equal(t, -0.25, in.S1S3)
	assert.InDelta(t, 1, in.S3S2, 1e-4)
	assert.Equal(t, -1.0, in.S2S1)
}

func TestQuantize(t *testing.T) {
	assert.Equal(t, int16(0), Quantize(0))
	assert.Equal(t, int16(16384), Quantize(0.5))
	assert.Equal(t, int16(-16384), Quantize(-0.5))
	assert.Equal(t, int16(32767), Quantize(1.5))
	assert.Equal(t, int16(-32768), Quantize(-1.5))
}

// synchroFrame builds the frame the acquisition device would capture for a
// synchro at phi with the given instantaneous carrier.
func synchroFrame(phi, carrier float64) Frame {
	s1s3, s3s2, s2s1 := Synthesize(phi, carrier)
	return Frame{
		Quantize(-carrier), // captured as Vr1-Vr2
		Quantize(s1s3),
		Quantize(s3s2),
		Quantize(s2s1),
	}
}

func TestConverter_TracksFixedAngle(t *testing.T) {
	epoch := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var tick time.Duration
	c := NewConverter(WithClock(func() time.Time {
		tick += time.Millisecond
		return epoch.Add(tick)
	}))

	phi := angle.Radians(30)

	var readings []angle.Reading
	for i := 0; i < 4000; i++ {
		carrier := 0.8
		if i%2 == 1 {
			carrier = -0.8
		}
		if r, ok := c.Process(synchroFrame(phi, carrier)); ok {
			readings = append(readings, r)
		}
	}

	require.Len(t, readings, 10)
	last := readings[9]
	assert.Equal(t, uint64(4000), last.Sample)
	assert.InDelta(t, 30, last.Degrees(), 0.5)
	assert.InDelta(t, 30, last.Rounded(), 0.5)
	assert.True(t, readings[0].Timestamp.Before(last.Timestamp))
	assert.Equal(t, uint64(4000), c.Samples())
}

func TestConverter_NegativeAngleOnCarrier(t *testing.T) {
	c := NewConverter(WithDecimation(100), WithLoopGain(1.0/32))
	phi := angle.Radians(-135)

	var last angle.Reading
	for i := 0; i < 6000; i++ {
		// 400 Hz carrier sampled at 6 kS/s
		carrier := 0.9 * math.Sin(2*math.Pi*400*float64(i)/6000)
		if r, ok := c.Process(synchroFrame(phi, carrier)); ok {
			last = r
		}
	}

	assert.Equal(t, 100, c.Decimation())
	assert.InDelta(t, -135, last.Degrees(), 0.5)

	c.Reset()
	assert.Zero(t, c.Theta())
	assert.Zero(t, c.Samples())
}
