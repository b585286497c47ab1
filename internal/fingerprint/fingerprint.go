// Package fingerprint defines the fingerprint capture capability used during
// registration.
package fingerprint

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultScanDelay is how long the simulated scan takes.
const DefaultScanDelay = 3000 * time.Millisecond

// Reader captures one fingerprint. A nil error means the print was taken.
type Reader interface {
	Scan(ctx context.Context) error
}

// Simulated is a placeholder reader with no sensor behind it: every scan
// succeeds after Delay. Swap it for a real Reader without touching the workflow.
type Simulated struct {
	Delay time.Duration
	Clock clockwork.Clock
}

func NewSimulated() *Simulated {
	return &Simulated{Delay: DefaultScanDelay, Clock: clockwork.NewRealClock()}
}

func (s *Simulated) Scan(ctx context.Context) error {
	clock := s.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	delay := s.Delay
	if delay <= 0 {
		delay = DefaultScanDelay
	}

	timer := clock.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.Chan():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
