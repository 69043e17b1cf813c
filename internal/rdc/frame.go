package rdc

const (
	// NumChannels is the number of acquisition channels in a frame
	NumChannels = 4

	// FullScale normalizes a raw 16-bit sample to [-1, 1)
	FullScale = 32768.0
)

// Channel positions within a frame for the installed synchro wiring.
const (
	ChannelR1R2 = iota // Vr1 - Vr2, reference winding
	ChannelS1S3        // Vs1 - Vs3
	ChannelS3S2        // Vs3 - Vs2
	ChannelS2S1        // Vs2 - Vs1, redundant for a balanced secondary
)

// Frame is one simultaneous sample of every acquisition channel, in scan list order.
type Frame [NumChannels]int16

// Inputs holds the normalized differential voltages recovered from a frame.
type Inputs struct {
	R2R1 float64 // Vr2 - Vr1, the negated reference channel
	S1S3 float64 // Vs1 - Vs3
	S3S2 float64 // Vs3 - Vs2
	S2S1 float64 // Vs2 - Vs1, not consumed by the loop
}

// Inputs maps raw channels to the voltages used by the converter. The reference
// channel is captured as Vr1-Vr2 but the loop needs Vr2-Vr1, so it is negated here.
func (f Frame) Inputs() Inputs {
	return Inputs{
		R2R1: -float64(f[ChannelR1R2]) / FullScale,
		S1S3: float64(f[ChannelS1S3]) / FullScale,
		S3S2: float64(f[ChannelS3S2]) / FullScale,
		S2S1: float64(f[ChannelS2S1]) / FullScale,
	}
}

// Quantize converts a normalized voltage to a raw sample, saturating at full scale.
func Quantize(v float64) int16 {
	s := v * FullScale
	switch {
	case s >= FullScale-1:
		return 32767
	case s <= -FullScale:
		return -32768
	}

	if s < 0 {
		return int16(s - 0.5)
	}
	return int16(s + 0.5)
}
