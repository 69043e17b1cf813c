package daq

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/synchro-tracker/internal/rdc"
)

const (
	SourceSerial    Source = "serial"
	SourceSimulated Source = "simulated"

	// FilterLastPoint is the default channel filter mode
	FilterLastPoint FilterMode = 0
	FilterAverage   FilterMode = 1
	FilterMaximum   FilterMode = 2
	FilterMinimum   FilterMode = 3

	SampleRateMin = 1
	SampleRateMax = 160_000

	PacketSizeMax = 7

	DefaultPort           = "/dev/ttyACM0"
	DefaultBaudRate       = 115200
	DefaultSampleRate     = 6000
	DefaultCommandTimeout = 250 * time.Millisecond
	DefaultSettleDelay    = 500 * time.Millisecond
)

var validSources = map[Source]struct{}{
	SourceSerial:    {},
	SourceSimulated: {},
}

// Source selects where frames come from
type Source string

func (s Source) String() string {
	return string(s)
}

// FilterMode is the DI-2108 per-channel decimation filter
type FilterMode int

// Duration is a time.Duration that (un)marshals as a Go duration string, e.g. "250ms"
type Duration time.Duration

func NewDuration(d time.Duration) Duration {
	return Duration(d)
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("daq.Duration: failed to parse: %s", err)
	}

	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalJSON(bytes []byte) error {
	var v string
	if err := json.Unmarshal(bytes, &v); err != nil {
		return err
	}

	duration, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("daq.Duration: failed to parse: %s", err)
	}

	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// SimulationConfig describes the synthetic synchro used when Source is "simulated"
type SimulationConfig struct {
	Angle     float64 `yaml:"angle" json:"angle"`         // Initial shaft angle in degrees
	Rate      float64 `yaml:"rate" json:"rate"`           // Shaft rotation in degrees per second
	CarrierHz float64 `yaml:"carrierHz" json:"carrierHz"` // Reference excitation frequency (default: 400 Hz)
	Amplitude float64 `yaml:"amplitude" json:"amplitude"` // Carrier amplitude relative to full scale (default: 0.8)
	Noise     float64 `yaml:"noise" json:"noise"`         // Peak uniform noise relative to full scale
	Realtime  bool    `yaml:"realtime" json:"realtime"`   // Pace frames at the sample rate
}

// Config is the DI-2108 acquisition configuration
type Config struct {
	Source   Source `yaml:"source" json:"source"`     // serial or simulated (default: serial)
	Port     string `yaml:"port" json:"port"`         // Serial device, e.g. /dev/ttyACM0
	BaudRate int    `yaml:"baudRate" json:"baudRate"` // Ignored by the USB CDC link but required to open the port

	SampleRate  int          `yaml:"sampleRate" json:"sampleRate"` // srate, frames per second
	Decimation  int          `yaml:"dec" json:"dec"`               // dec (default: 1)
	DecimationA int          `yaml:"deca" json:"deca"`             // deca (default: 1)
	PacketSize  int          `yaml:"packetSize" json:"packetSize"` // ps, 0 is the smallest packet
	Filters     []FilterMode `yaml:"filters" json:"filters"`       // filter mode per scan list position
	Tolerant    bool         `yaml:"tolerant" json:"tolerant"`     // Do not abort when a setup command is not echoed

	CommandTimeout       Duration `yaml:"commandTimeout" json:"commandTimeout"`             // Deadline for a command echo
	SettleDelay          Duration `yaml:"settleDelay" json:"settleDelay"`                   // Pause after stop/reset on shutdown
	FrameErrorsThreshold int      `yaml:"frameErrorsThreshold" json:"frameErrorsThreshold"` // Consecutive read errors tolerated

	Simulation SimulationConfig `yaml:"simulation" json:"simulation"`
}

// NewConfig returns a Config with the defaults for the installed synchro
func NewConfig() *Config {
	return &Config{
		Source:               SourceSerial,
		Port:                 DefaultPort,
		BaudRate:             DefaultBaudRate,
		SampleRate:           DefaultSampleRate,
		Decimation:           1,
		DecimationA:          1,
		Filters:              []FilterMode{FilterLastPoint, FilterLastPoint, FilterLastPoint, FilterLastPoint},
		CommandTimeout:       NewDuration(DefaultCommandTimeout),
		SettleDelay:          NewDuration(DefaultSettleDelay),
		FrameErrorsThreshold: FrameErrorsThreshold,
		Simulation: SimulationConfig{
			CarrierHz: 400,
			Amplitude: 0.8,
			Realtime:  true,
		},
	}
}

func (c *Config) Validate() error {
	if _, ok := validSources[c.Source]; !ok {
		return NewConfigError(fmt.Sprintf("daq.Config: invalid source: %q", c.Source))
	}
	if c.Source == SourceSerial && c.Port == "" {
		return NewConfigError("daq.Config: serial port is required")
	}
	if c.BaudRate <= 0 {
		return NewConfigError(fmt.Sprintf("daq.Config: baud rate must be positive: %d", c.BaudRate))
	}
	if c.SampleRate < SampleRateMin || c.SampleRate > SampleRateMax {
		return NewConfigError(fmt.Sprintf("daq.Config: invalid sample rate: %d, must be between %d and %d", c.SampleRate, SampleRateMin, SampleRateMax))
	}
	if c.Decimation < 1 {
		return NewConfigError(fmt.Sprintf("daq.Config: dec must be at least 1: %d", c.Decimation))
	}
	if c.DecimationA < 1 {
		return NewConfigError(fmt.Sprintf("daq.Config: deca must be at least 1: %d", c.DecimationA))
	}
	if c.PacketSize < 0 || c.PacketSize > PacketSizeMax {
		return NewConfigError(fmt.Sprintf("daq.Config: packet size must be between 0 and %d: %d", PacketSizeMax, c.PacketSize))
	}
	if len(c.Filters) > rdc.NumChannels {
		return NewConfigError(fmt.Sprintf("daq.Config: at most %d filters: %d given", rdc.NumChannels, len(c.Filters)))
	}
	for i, f := range c.Filters {
		if f < FilterLastPoint || f > FilterMinimum {
			return NewConfigError(fmt.Sprintf("daq.Config: invalid filter mode for channel %d: %d", i, f))
		}
	}
	if c.CommandTimeout <= 0 {
		return NewConfigError(fmt.Sprintf("daq.Config: command timeout must be positive: %s", c.CommandTimeout))
	}
	if c.SettleDelay < 0 {
		return NewConfigError(fmt.Sprintf("daq.Config: settle delay must not be negative: %s", c.SettleDelay))
	}
	if c.FrameErrorsThreshold < 1 {
		return NewConfigError(fmt.Sprintf("daq.Config: frame errors threshold must be at least 1: %d", c.FrameErrorsThreshold))
	}
	if c.Source == SourceSimulated {
		if c.Simulation.CarrierHz <= 0 || c.Simulation.CarrierHz*2 > float64(c.SampleRate) {
			return NewConfigError(fmt.Sprintf("daq.Config: simulated carrier must be positive and below Nyquist: %0.1f Hz", c.Simulation.CarrierHz))
		}
		if c.Simulation.Amplitude <= 0 || c.Simulation.Amplitude > 1 {
			return NewConfigError(fmt.Sprintf("daq.Config: simulated amplitude must be in (0, 1]: %0.2f", c.Simulation.Amplitude))
		}
		if c.Simulation.Noise < 0 || c.Simulation.Noise > 1 {
			return NewConfigError(fmt.Sprintf("daq.Config: simulated noise must be in [0, 1]: %0.2f", c.Simulation.Noise))
		}
	}

	return nil
}

// Commands returns the setup sequence for the DI-2108: leave any previous
// scan, switch to binary output, scan channels 0..3 in order and program the
// sample rate. Commands are returned without the trailing carriage return.
func (c *Config) Commands() ([]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	cmds := []string{
		CmdStop,
		CmdReset,
		"encode 0", // binary
	}

	for i := 0; i < rdc.NumChannels; i++ {
		cmds = append(cmds, fmt.Sprintf("slist %d %d", i, i))
	}

	for i := 0; i < rdc.NumChannels; i++ {
		mode := FilterLastPoint
		if i < len(c.Filters) {
			mode = c.Filters[i]
		}
		cmds = append(cmds, fmt.Sprintf("filter %d %d", i, mode))
	}

	cmds = append(cmds,
		"srate "+strconv.Itoa(c.SampleRate),
		"dec "+strconv.Itoa(c.Decimation),
		"deca "+strconv.Itoa(c.DecimationA),
		"ps "+strconv.Itoa(c.PacketSize),
	)

	return cmds, nil
}

// FrameRate returns the expected number of frames per second delivered by the device
func (c *Config) FrameRate() float64 {
	return float64(c.SampleRate) / float64(max(c.Decimation, 1)*max(c.DecimationA, 1))
}
