package app

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/synchro-tracker/internal/daq"
	"github.com/roman-kulish/synchro-tracker/internal/display"
	"github.com/roman-kulish/synchro-tracker/internal/rdc"
	"github.com/roman-kulish/synchro-tracker/internal/storage"
)

const (
	defaultWebAddr      = "127.0.0.1:8080"
	defaultDatabaseFile = "tracker.sqlite"
	defaultQueueSize    = 64
)

// Config represents the main application configuration
type Config struct {
	Settings Settings      `yaml:"settings"`
	Device   *daq.Config   `yaml:"device"`
	Tracker  TrackerConfig `yaml:"tracker"`
	Display  DisplayConfig `yaml:"display"`
	Web      WebConfig     `yaml:"web"`
	Storage  StorageConfig `yaml:"storage"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel       string       `yaml:"logLevel"`
	ReportInterval daq.Duration `yaml:"reportInterval"` // How often tracking progress is logged, 0 disables it
}

// TrackerConfig holds the tracking loop parameters
type TrackerConfig struct {
	Gain       float64 `yaml:"gain"`       // Loop gain (default: 1/64)
	Decimation int     `yaml:"decimation"` // Samples per reading (default: 400)
}

// DisplayConfig represents the human facing outputs
type DisplayConfig struct {
	Console      bool                 `yaml:"console"`
	SerialPort   string               `yaml:"serialPort"` // Serial display, disabled when empty
	BaudRate     int                  `yaml:"baudRate"`
	Presentation display.Presentation `yaml:"presentation"`
	QueueSize    int                  `yaml:"queueSize"`
}

// WebConfig represents the live websocket and status endpoint
type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// StorageConfig represents storage settings
type StorageConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DataDirectory string `yaml:"dataDirectory"`
	Database      string `yaml:"database"`
	MaxBatchSize  int    `yaml:"maxBatchSize"`
}

// NewConfig returns the configuration used for any key missing from the file
func NewConfig() *Config {
	return &Config{
		Settings: Settings{
			LogLevel: "info",
		},
		Device: daq.NewConfig(),
		Tracker: TrackerConfig{
			Gain:       rdc.DefaultGain,
			Decimation: rdc.DefaultDecimation,
		},
		Display: DisplayConfig{
			Console:      true,
			BaudRate:     9600,
			Presentation: display.PresentationStandard,
			QueueSize:    defaultQueueSize,
		},
		Web: WebConfig{
			Addr: defaultWebAddr,
		},
		Storage: StorageConfig{
			DataDirectory: storageDir,
			Database:      defaultDatabaseFile,
			MaxBatchSize:  storage.DefaultMaxBatchSize,
		},
	}
}

// LoadConfig reads a YAML configuration file over the defaults and validates it
func LoadConfig(path string) (*Config, error) {
	p, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return ParseConfig(p)
}

// ParseConfig decodes a YAML document over the defaults and validates it
func ParseConfig(p []byte) (*Config, error) {
	config := NewConfig()
	if err := yaml.Unmarshal(p, config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if config.Device == nil {
		config.Device = daq.NewConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	if err := c.Device.Validate(); err != nil {
		return err
	}
	if c.Settings.ReportInterval < 0 {
		return errors.New("settings: report interval must not be negative")
	}
	if c.Tracker.Gain <= 0 || c.Tracker.Gain >= 1 {
		return fmt.Errorf("tracker: gain must be in (0, 1): %g", c.Tracker.Gain)
	}
	if c.Tracker.Decimation < 1 {
		return fmt.Errorf("tracker: decimation must be at least 1: %d", c.Tracker.Decimation)
	}
	if err := c.Display.Presentation.Validate(); err != nil {
		return fmt.Errorf("display: %w", err)
	}
	if c.Display.SerialPort != "" && c.Display.BaudRate <= 0 {
		return fmt.Errorf("display: baud rate must be positive: %d", c.Display.BaudRate)
	}
	if c.Display.QueueSize < 1 {
		return fmt.Errorf("display: queue size must be at least 1: %d", c.Display.QueueSize)
	}
	if c.Web.Enabled && c.Web.Addr == "" {
		return errors.New("web: listen address is required")
	}
	if c.Storage.Enabled {
		if c.Storage.Database == "" {
			return errors.New("storage: database file name is required")
		}
		if c.Storage.MaxBatchSize < 1 {
			return fmt.Errorf("storage: max batch size must be at least 1: %d", c.Storage.MaxBatchSize)
		}
	}
	return nil
}

// OutputRate returns the number of readings per second
func (c *Config) OutputRate() float64 {
	return c.Device.FrameRate() / float64(c.Tracker.Decimation)
}
