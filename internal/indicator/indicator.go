// Package indicator maps outcomes and lifecycle events to LED blink patterns
// and plays them without blocking the caller.
package indicator

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/sweeney/audio-remote/internal/gpio"
	"github.com/sweeney/audio-remote/internal/logic"
)

// Signal is something worth showing the user.
type Signal int

const (
	Success Signal = iota
	PeerConnected
	NoPeer
	PeerLost
	SendError
	EncodeOverflow
	LowBattery
	NetworkFailure
	Startup
)

func (s Signal) String() string {
	switch s {
	case Success:
		return "success"
	case PeerConnected:
		return "peer_connected"
	case NoPeer:
		return "no_peer"
	case PeerLost:
		return "peer_lost"
	case SendError:
		return "send_error"
	case EncodeOverflow:
		return "encode_overflow"
	case LowBattery:
		return "low_battery"
	case NetworkFailure:
		return "network_failure"
	case Startup:
		return "startup"
	default:
		return "unknown"
	}
}

// Pattern is a number of equal blinks. Off time between blinks equals On.
type Pattern struct {
	Count int
	On    time.Duration
}

const (
	blink      = 100 * time.Millisecond
	errorBlink = 80 * time.Millisecond
)

var patterns = map[Signal]Pattern{
	Success:        {1, blink},
	PeerConnected:  {1, blink},
	NoPeer:         {1, 400 * time.Millisecond},
	PeerLost:       {2, errorBlink},
	SendError:      {3, errorBlink},
	EncodeOverflow: {4, errorBlink},
	LowBattery:     {5, errorBlink},
	NetworkFailure: {5, errorBlink},
	Startup:        {2, 150 * time.Millisecond},
}

// PatternFor returns the blink pattern of s.
func PatternFor(s Signal) Pattern {
	return patterns[s]
}

// ForOutcome returns the signal for a dispatch outcome. Throttled requests show nothing.
func ForOutcome(o logic.Outcome) (Signal, bool) {
	switch o {
	case logic.OutcomeSent:
		return Success, true
	case logic.OutcomeNoPeer:
		return NoPeer, true
	case logic.OutcomeOverflow:
		return EncodeOverflow, true
	case logic.OutcomeSendFailed:
		return SendError, true
	default:
		return 0, false
	}
}

// Blinker plays queued signals on an LED from its own goroutine.
type Blinker struct {
	led   gpio.LED
	clock clockwork.Clock
	queue chan Signal
}

// NewBlinker creates a blinker holding at most depth pending signals.
func NewBlinker(led gpio.LED, clock clockwork.Clock, depth int) *Blinker {
	if depth <= 0 {
		depth = 4
	}
	return &Blinker{led: led, clock: clock, queue: make(chan Signal, depth)}
}

// Signal queues s. It never blocks; it reports false when s was dropped.
func (b *Blinker) Signal(s Signal) bool {
	select {
	case b.queue <- s:
		return true
	default:
		log.Debug().Str("signal", s.String()).Msg("indicator: queue full, dropping")
		return false
	}
}

// Run plays signals until ctx is cancelled, then switches the LED off.
func (b *Blinker) Run(ctx context.Context) error {
	defer b.set(false)
	for {
		select {
		case <-ctx.Done():
			return nil
		case s := <-b.queue:
			if !b.play(ctx, PatternFor(s)) {
				return nil
			}
		}
	}
}

func (b *Blinker) play(ctx context.Context, p Pattern) bool {
	for i := 0; i < p.Count; i++ {
		b.set(true)
		if !b.wait(ctx, p.On) {
			return false
		}
		b.set(false)
		// The trailing gap separates back-to-back patterns.
		if !b.wait(ctx, p.On) {
			return false
		}
	}
	return true
}

func (b *Blinker) wait(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-b.clock.After(d):
		return true
	}
}

func (b *Blinker) set(on bool) {
	if err := b.led.Set(on); err != nil {
		log.Debug().Err(err).Msg("indicator: led write failed")
	}
}
