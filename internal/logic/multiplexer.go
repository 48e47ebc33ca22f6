package logic

import (
	"fmt"
	"time"
)

// Multiplexer owns the fixed set of channels and turns their events into
// dispatch requests.
type Multiplexer struct {
	timing     Timing
	channels   []*Channel
	lastRepeat map[ChannelID]time.Time
}

// NewMultiplexer builds one channel per config entry. Channel ids must be unique.
func NewMultiplexer(cfgs []ChannelConfig, timing Timing, now time.Time) (*Multiplexer, error) {
	m := &Multiplexer{
		timing:     timing,
		lastRepeat: make(map[ChannelID]time.Time, len(cfgs)),
	}
	seen := make(map[ChannelID]bool, len(cfgs))
	for _, cfg := range cfgs {
		if seen[cfg.ID] {
			return nil, fmt.Errorf("duplicate channel %q", cfg.ID)
		}
		seen[cfg.ID] = true
		m.channels = append(m.channels, NewChannel(cfg, timing, now))
	}
	return m, nil
}

// Poll updates every channel with its current raw level and returns the
// requests produced this tick. A channel missing from levels is read as inactive.
// All channels are evaluated before the caller dispatches anything.
func (m *Multiplexer) Poll(now time.Time, levels map[ChannelID]bool) []Request {
	var reqs []Request

	for _, ch := range m.channels {
		cfg := ch.Config()
		switch ch.Update(now, levels[cfg.ID]) {
		case EventShortPress:
			reqs = append(reqs, Request{
				Source: cfg.ID,
				Cmd:    cfg.Short,
				Extra:  extraFor(cfg),
			})
			continue
		case EventLongPress:
			// Repeats are paced from the moment repeat mode is entered.
			m.lastRepeat[cfg.ID] = ch.LongPressAt()
			continue
		}

		if !ch.RepeatReady() {
			continue
		}
		if now.Sub(m.lastRepeat[cfg.ID]) >= m.timing.Repeat {
			m.lastRepeat[cfg.ID] = now
			reqs = append(reqs, Request{Source: cfg.ID, Cmd: cfg.Repeat})
		}
	}

	return reqs
}

// Channels returns a status view of every channel in configuration order.
func (m *Multiplexer) Channels() []ChannelStatus {
	out := make([]ChannelStatus, len(m.channels))
	for i, ch := range m.channels {
		out[i] = ch.Status()
	}
	return out
}

func extraFor(cfg ChannelConfig) ExtraFunc {
	if !cfg.CaptureTimestamp {
		return nil
	}
	return func(sinceBoot time.Duration) map[string]any {
		return map[string]any{"ts": sinceBoot.Milliseconds()}
	}
}
