package daq

import "errors"

var (
	// ErrEchoTimeout is returned when the device does not echo a command before the deadline
	ErrEchoTimeout = errors.New("command echo timeout")

	// ErrDeviceClosed is returned when the link to the device is closed while in use
	ErrDeviceClosed = errors.New("device closed")

	// ErrTooManyFrameErrors is returned when the number of consecutive frame read errors exceeds the threshold
	ErrTooManyFrameErrors = errors.New("too many consecutive frame errors")

	// ErrAlreadyStreaming is returned when Stream is called on a streaming device
	ErrAlreadyStreaming = errors.New("device is already streaming")
)

// ConfigError is a custom error type for configuration errors
type ConfigError struct {
	msg string
}

func NewConfigError(msg string) *ConfigError {
	return &ConfigError{msg}
}

func (e *ConfigError) Error() string {
	return e.msg
}

// RuntimeError is a custom error type for device faults after the link is open
type RuntimeError struct {
	msg string
	err error
}

func NewRuntimeError(msg string, err error) *RuntimeError {
	return &RuntimeError{msg, err}
}

func (e *RuntimeError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

func (e *RuntimeError) Unwrap() error {
	return e.err
}
