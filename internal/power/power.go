// Package power takes the host down into suspend once the remote goes idle.
package power

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
)

// Suspender arms the wake source and enters low-power sleep.
type Suspender interface {
	// ConfigureWake arms the button line so that level wakes the host.
	ConfigureWake(offset, level int) error
	// Suspend blocks until the host resumes, or returns an error if it could not sleep.
	Suspend() error
}

// NetworkDisabler turns off the radio before sleeping.
type NetworkDisabler interface {
	Disable(ctx context.Context) error
}

// Resource is something torn down before suspend.
type Resource struct {
	Name   string
	Closer io.Closer
}

// Wake identifies the button that resumes the host.
type Wake struct {
	Offset int
	Level  int
}

// Sequence is the ordered power-down procedure.
type Sequence struct {
	Resources []Resource
	Network   NetworkDisabler
	Suspender Suspender
	Wake      Wake
}

// Run closes every resource, disables networking, arms the wake line and suspends.
// Close and network failures are logged and do not stop the sequence. A failure
// to arm the wake line aborts before suspending.
func (s *Sequence) Run(ctx context.Context) error {
	for _, r := range s.Resources {
		if r.Closer == nil {
			continue
		}
		if err := r.Closer.Close(); err != nil {
			log.Warn().Err(err).Str("resource", r.Name).Msg("power: close failed")
		} else {
			log.Debug().Str("resource", r.Name).Msg("power: closed")
		}
	}

	if s.Network != nil {
		if err := s.Network.Disable(ctx); err != nil {
			log.Warn().Err(err).Msg("power: disable network failed")
		}
	}

	if s.Suspender == nil {
		return errors.New("power: no suspender configured")
	}
	if err := s.Suspender.ConfigureWake(s.Wake.Offset, s.Wake.Level); err != nil {
		return fmt.Errorf("configure wake on pin %d: %w", s.Wake.Offset, err)
	}

	log.Info().Int("wake_pin", s.Wake.Offset).Msg("power: suspending")
	if err := s.Suspender.Suspend(); err != nil {
		return fmt.Errorf("suspend: %w", err)
	}
	log.Info().Msg("power: resumed")
	return nil
}
