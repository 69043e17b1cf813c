package daq

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/roman-kulish/synchro-tracker/internal/angle"
	"github.com/roman-kulish/synchro-tracker/internal/rdc"
)

// maxSimulatedBurst caps the number of frames generated by a single read
const maxSimulatedBurst = 256

// Simulator is an in-memory DI-2108 driving a synthetic synchro. It echoes
// commands like the real device and, once started, streams frames of a shaft
// at the configured angle and rotation rate on a sinusoidal carrier.
type Simulator struct {
	config SimulationConfig

	mu          sync.Mutex
	sampleRate  float64
	readTimeout time.Duration
	pending     bytes.Buffer // echoes and frame bytes not yet read
	line        []byte       // command being received
	streaming   bool
	closed      bool
	sample      uint64
	started     time.Time
	rng         *rand.Rand

	now   func() time.Time
	sleep func(time.Duration)
}

// NewSimulator creates a simulator for the given configuration
func NewSimulator(config *Config) *Simulator {
	return &Simulator{
		config:      config.Simulation,
		sampleRate:  config.FrameRate(),
		readTimeout: streamReadTimeout,
		rng:         rand.New(rand.NewPCG(1, 2)),
		now:         time.Now,
		sleep:       time.Sleep,
	}
}

// Write receives commands terminated by a carriage return
func (s *Simulator) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrDeviceClosed
	}

	for _, b := range p {
		if b != commandTerminator {
			s.line = append(s.line, b)
			continue
		}

		cmd := string(s.line)
		s.line = s.line[:0]
		s.handle(cmd)
	}

	return len(p), nil
}

func (s *Simulator) handle(cmd string) {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return
	}

	switch fields[0] {
	case "start":
		s.streaming = true
		s.started = s.now()
		return // the binary stream follows, no echo

	case "stop":
		s.streaming = false

	case "reset":
		s.streaming = false
		s.sample = 0

	case "srate":
		if len(fields) == 2 {
			if v, err := strconv.Atoi(fields[1]); err == nil && v > 0 {
				s.sampleRate = float64(v)
			}
		}
	}

	s.pending.WriteString(cmd)
	s.pending.WriteByte(commandTerminator)
}

// Read returns pending echoes, then frames while streaming. With nothing to
// deliver it waits for the read timeout and returns 0 bytes.
func (s *Simulator) Read(p []byte) (int, error) {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return 0, io.EOF
	}

	if s.pending.Len() == 0 && s.streaming {
		s.generate((len(p) + FrameSize - 1) / FrameSize)
	}

	if s.pending.Len() == 0 {
		timeout := s.readTimeout
		s.mu.Unlock()
		s.sleep(timeout)
		return 0, nil
	}

	n, _ := s.pending.Read(p)
	s.mu.Unlock()
	return n, nil
}

// generate appends up to n frames. In realtime mode no more frames are
// produced than the sample rate allows since start.
func (s *Simulator) generate(n int) {
	n = min(max(n, 1), maxSimulatedBurst)

	if s.config.Realtime {
		due := uint64(s.now().Sub(s.started).Seconds() * s.sampleRate)
		if due <= s.sample {
			wait := time.Duration(float64(s.sample+1-due) / s.sampleRate * float64(time.Second))
			s.mu.Unlock()
			s.sleep(wait)
			s.mu.Lock()
			due = s.sample + 1
		}
		n = min(n, int(due-s.sample))
	}

	var frame []byte
	for i := 0; i < n; i++ {
		frame = AppendFrame(frame[:0], s.Frame(s.sample))
		s.pending.Write(frame)
		s.sample++
	}
}

// Frame returns the frame captured at sample index i.
func (s *Simulator) Frame(i uint64) rdc.Frame {
	t := float64(i) / s.sampleRate
	phi := angle.Radians(s.config.Angle + s.config.Rate*t)
	carrier := s.config.Amplitude * math.Sin(2*math.Pi*s.config.CarrierHz*t)

	s1s3, s3s2, s2s1 := rdc.Synthesize(phi, carrier)
	return rdc.Frame{
		rdc.Quantize(-carrier + s.noise()), // captured as Vr1-Vr2
		rdc.Quantize(s1s3 + s.noise()),
		rdc.Quantize(s3s2 + s.noise()),
		rdc.Quantize(s2s1 + s.noise()),
	}
}

func (s *Simulator) noise() float64 {
	if s.config.Noise == 0 {
		return 0
	}
	return s.config.Noise * (2*s.rng.Float64() - 1)
}

// SetReadTimeout sets how long an empty read blocks
func (s *Simulator) SetReadTimeout(t time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t < 0 {
		return fmt.Errorf("negative read timeout: %s", t)
	}
	s.readTimeout = t
	return nil
}

// ResetInputBuffer discards bytes not yet read
func (s *Simulator) ResetInputBuffer() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending.Reset()
	return nil
}

// IsStreaming reports whether the simulated scan is running
func (s *Simulator) IsStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.streaming
}

// Close ends the simulation; later reads return io.EOF
func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.streaming = false
	return nil
}
