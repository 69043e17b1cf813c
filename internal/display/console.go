package display

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"

	"github.com/roman-kulish/synchro-tracker/internal/angle"
)

// Console prints every reading in degrees, rounded to a tenth, one per line.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Emit(_ context.Context, r angle.Reading) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := fmt.Fprintf(c.w, "%5.1f\n", r.Rounded()); err != nil {
		return fmt.Errorf("writing console: %w", err)
	}
	return nil
}

func (c *Console) Close() error {
	return nil
}

// DisplayPort is the link to a serial display
type DisplayPort interface {
	io.WriteCloser
	ResetInputBuffer() error
}

// SerialDisplay sends every reading in degrees with two decimals to a serial
// display. Anything the display sends back is discarded.
type SerialDisplay struct {
	mu   sync.Mutex
	port DisplayPort
}

// NewSerialDisplay creates a SerialDisplay on an open port; Close closes the port
func NewSerialDisplay(port DisplayPort) *SerialDisplay {
	return &SerialDisplay{port: port}
}

// OpenSerialDisplay opens the display serial port in 8N1 mode
func OpenSerialDisplay(name string, baudRate int) (*SerialDisplay, error) {
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("opening display port '%s': %w", name, err)
	}

	return NewSerialDisplay(port), nil
}

func (d *SerialDisplay) Emit(_ context.Context, r angle.Reading) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := fmt.Fprintf(d.port, "%8.2f\n", r.Degrees()); err != nil {
		return fmt.Errorf("writing display: %w", err)
	}
	if err := d.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("resetting display input: %w", err)
	}
	return nil
}

func (d *SerialDisplay) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.port.Close()
}
