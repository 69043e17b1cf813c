package display

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/roman-kulish/synchro-tracker/internal/angle"
	"github.com/roman-kulish/synchro-tracker/internal/rdc"
)

const (
	// PresentationStandard shows the loop angle as is
	PresentationStandard Presentation = "standard"

	// PresentationAlerter shows 90° minus the loop angle: the angle a loop
	// driven by the 3π/2 - θ error term settles on, as read by the altitude
	// alerter demo unit
	PresentationAlerter Presentation = "alerter"
)

var validPresentations = map[Presentation]struct{}{
	PresentationStandard: {},
	PresentationAlerter:  {},
}

// Sink consumes decimated readings
type Sink interface {
	Emit(ctx context.Context, r angle.Reading) error
	Close() error
}

// Presentation selects how an angle is shown to a human
type Presentation string

func (p Presentation) String() string {
	return string(p)
}

// Validate returns an error for an unknown presentation
func (p Presentation) Validate() error {
	if _, ok := validPresentations[p]; !ok {
		return fmt.Errorf("display.Presentation: invalid presentation: %q", p)
	}
	return nil
}

// Apply maps a loop angle in radians to the presented angle, still in [-π, π)
func (p Presentation) Apply(theta float64) float64 {
	switch p {
	case PresentationAlerter:
		return rdc.Wrap(math.Pi/2 - theta)
	default:
		return theta
	}
}

// Present wraps a sink so that it receives presented readings
func Present(p Presentation, sink Sink) Sink {
	if p == PresentationStandard || p == "" {
		return sink
	}
	return &presented{p, sink}
}

type presented struct {
	presentation Presentation
	Sink
}

func (s *presented) Emit(ctx context.Context, r angle.Reading) error {
	r.Theta = s.presentation.Apply(r.Theta)
	return s.Sink.Emit(ctx, r)
}

// Multi fans a reading out to every sink. All sinks receive the reading even
// when some of them fail; errors are joined.
type Multi []Sink

func (m Multi) Emit(ctx context.Context, r angle.Reading) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
