package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/roman-kulish/synchro-tracker/internal/display"
)

const (
	ImagePNG  ImageFormat = "png"
	ImageJPEG ImageFormat = "jpeg"

	defaultWidth  = 1600
	defaultHeight = 600

	minWidth  = 200
	minHeight = 150
)

type ImageFormat string

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

// timeLayouts are accepted by --from and --to
var timeLayouts = []string{time.RFC3339Nano, time.DateTime, "2006-01-02T15:04:05"}

type Config struct {
	DBPath        string
	SessionID     int64
	OutputFile    string
	Format        ImageFormat
	Width         int
	Height        int
	From          *time.Time
	To            *time.Time
	TimeZone      *time.Location
	Theme         Theme
	Presentation  display.Presentation
	Verbose       bool
	NoAnnotations bool
}

func NewConfig() *Config {
	return &Config{
		Format:       ImagePNG,
		Width:        defaultWidth,
		Height:       defaultHeight,
		TimeZone:     time.Local,
		Theme:        LightTheme,
		Presentation: display.PresentationStandard,
	}
}

// NewConfigFromCLI parses the command line arguments, without the program name
func NewConfigFromCLI(args []string) (*Config, error) {
	c := NewConfig()

	fs := pflag.NewFlagSet("anglechart", pflag.ContinueOnError)

	var imageFormat, from, to, tz, theme, presentation string
	fs.StringVar(&c.DBPath, "db", "", "Path to the database file")
	fs.Int64VarP(&c.SessionID, "session", "s", 1, "Session ID")
	fs.StringVarP(&c.OutputFile, "output", "o", "", "Path to the output file, without extension")
	fs.StringVarP(&imageFormat, "format", "f", string(ImagePNG), "Output image format. [png, jpeg]")
	fs.IntVar(&c.Width, "width", defaultWidth, "Image width in pixels")
	fs.IntVar(&c.Height, "height", defaultHeight, "Image height in pixels")
	fs.StringVar(&from, "from", "", "Skip readings before this time (RFC 3339 or \"2006-01-02 15:04:05\")")
	fs.StringVar(&to, "to", "", "Skip readings after this time (RFC 3339 or \"2006-01-02 15:04:05\")")
	fs.StringVar(&tz, "tz", "Local", "Time zone of the time scale and of --from/--to without offset")
	fs.StringVar(&theme, "theme", string(LightTheme), "Color theme. [light, dark]")
	fs.StringVar(&presentation, "presentation", string(display.PresentationStandard), "Angle presentation. [standard, alerter]")
	fs.BoolVarP(&c.Verbose, "verbose", "v", false, "Enable more verbose output")
	fs.BoolVar(&c.NoAnnotations, "no-annotations", false, "Disable annotations such as time and angle scales")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var err error
	if c.TimeZone, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("invalid time zone: %w", err)
	}
	if c.From, err = parseTime(from, c.TimeZone); err != nil {
		return nil, fmt.Errorf("invalid --from: %w", err)
	}
	if c.To, err = parseTime(to, c.TimeZone); err != nil {
		return nil, fmt.Errorf("invalid --to: %w", err)
	}

	c.Format = ImageFormat(strings.ToLower(imageFormat))
	c.Theme = Theme(strings.ToLower(theme))
	c.Presentation = display.Presentation(strings.ToLower(presentation))

	if err = c.Validate(); err != nil {
		fs.Usage()
		return nil, err
	}

	c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	return c, nil
}

func (c *Config) Validate() error {
	switch {
	case c.DBPath == "":
		return errors.New("db path is required")
	case c.SessionID <= 0:
		return errors.New("session id is required")
	case c.OutputFile == "":
		return errors.New("output file is required")
	case c.Width < minWidth || c.Height < minHeight:
		return fmt.Errorf("image must be at least %dx%d: %dx%d", minWidth, minHeight, c.Width, c.Height)
	case c.From != nil && c.To != nil && c.From.After(*c.To):
		return fmt.Errorf("--from %s is after --to %s", c.From.Format(time.DateTime), c.To.Format(time.DateTime))
	}

	if _, ok := validImageFormats[c.Format]; !ok {
		return fmt.Errorf("invalid image format: %s", c.Format)
	}
	if _, ok := themes[c.Theme]; !ok {
		return fmt.Errorf("invalid theme: %s", c.Theme)
	}
	return c.Presentation.Validate()
}

func parseTime(s string, loc *time.Location) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}

	var err error
	for _, layout := range timeLayouts {
		var t time.Time
		if t, err = time.ParseInLocation(layout, s, loc); err == nil {
			return &t, nil
		}
	}
	return nil, err
}
