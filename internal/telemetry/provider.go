package telemetry

import (
	"context"
	"sync/atomic"

	"github.com/roman-kulish/synchro-tracker/internal/angle"
)

// Provider returns the most recent reading, or nil before the first one
type Provider interface {
	Get() *angle.Reading
}

// Latest keeps the last reading it received. It is safe for concurrent use
// and serves as both a sink and a Provider.
type Latest struct {
	current atomic.Pointer[angle.Reading]
}

func NewLatest() *Latest {
	return &Latest{}
}

func (l *Latest) Get() *angle.Reading {
	return l.current.Load()
}

func (l *Latest) Emit(_ context.Context, r angle.Reading) error {
	l.current.Store(&r)
	return nil
}

func (l *Latest) Close() error {
	return nil
}
