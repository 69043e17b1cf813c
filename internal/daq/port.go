package daq

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// Port is the byte link to the acquisition device. A read that times out
// returns 0 bytes and a nil error.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// OpenSerial opens the serial port named in the config in 8N1 mode
func OpenSerial(config *Config) (Port, error) {
	mode := &serial.Mode{
		BaudRate: config.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(config.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("opening serial port '%s': %w", config.Port, err)
	}

	return port, nil
}

// Ports lists the serial ports present on the system
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("listing serial ports: %w", err)
	}
	return ports, nil
}
