package daq

import (
	"bytes"
	"context"
	"fmt"
	"time"
)

const (
	CmdStop  = "stop"
	CmdReset = "reset"
	CmdStart = "start 0"

	// commandTerminator ends every command sent to the device
	commandTerminator = '\r'

	// pollInterval bounds a single port read while waiting for an echo
	pollInterval = 10 * time.Millisecond
)

// Commander sends ASCII commands to the device and waits for each one to be
// echoed back.
type Commander struct {
	port    Port
	timeout time.Duration
	buf     []byte
}

// NewCommander creates a Commander waiting at most timeout for every echo
func NewCommander(port Port, timeout time.Duration) *Commander {
	return &Commander{
		port:    port,
		timeout: timeout,
		buf:     make([]byte, 64),
	}
}

// Send writes a command without waiting for its echo
func (c *Commander) Send(cmd string) error {
	if _, err := c.port.Write(append([]byte(cmd), commandTerminator)); err != nil {
		return fmt.Errorf("writing '%s': %w", cmd, err)
	}
	return nil
}

// Exec writes a command and waits until the device echoes it. It returns
// ErrEchoTimeout when the echo does not arrive before the deadline, or the
// context error when ctx is done first.
func (c *Commander) Exec(ctx context.Context, cmd string) error {
	if err := c.port.SetReadTimeout(min(c.timeout, pollInterval)); err != nil {
		return fmt.Errorf("setting read timeout: %w", err)
	}

	want := append([]byte(cmd), commandTerminator)
	if _, err := c.port.Write(want); err != nil {
		return fmt.Errorf("writing '%s': %w", cmd, err)
	}

	deadline := time.Now().Add(c.timeout)
	var echo []byte
	for !bytes.Contains(echo, want) {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("waiting for '%s' echo: %w", cmd, err)
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: '%s' after %s", ErrEchoTimeout, cmd, c.timeout)
		}

		n, err := c.port.Read(c.buf)
		if err != nil {
			return fmt.Errorf("reading '%s' echo: %w", cmd, err)
		}
		echo = append(echo, c.buf[:n]...)
	}

	return nil
}
