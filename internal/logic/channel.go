package logic

import "time"

// Channel tracks debounce and press state for a single button.
type Channel struct {
	cfg    ChannelConfig
	timing Timing

	raw         bool      // last observed raw level (true = active)
	rawSince    time.Time // time raw last changed
	pressed     bool      // debounced logical state
	pressStart  time.Time
	longFired   bool
	longFiredAt time.Time
}

// NewChannel creates a released channel. The debounce window starts at now.
func NewChannel(cfg ChannelConfig, timing Timing, now time.Time) *Channel {
	return &Channel{
		cfg:      cfg,
		timing:   timing,
		rawSince: now,
	}
}

// ID returns the channel identity.
func (c *Channel) ID() ChannelID {
	return c.cfg.ID
}

// Config returns the static channel configuration.
func (c *Channel) Config() ChannelConfig {
	return c.cfg
}

// Update feeds one raw sample and returns the event produced this tick, if any.
func (c *Channel) Update(now time.Time, raw bool) ChannelEvent {
	if raw != c.raw {
		// Level changed: restart the debounce window, no logical change yet.
		c.raw = raw
		c.rawSince = now
		return EventNone
	}

	if now.Sub(c.rawSince) < c.timing.Debounce {
		return EventNone
	}

	switch {
	case raw && !c.pressed:
		c.pressed = true
		c.pressStart = now
		c.longFired = false
		return EventPressStart

	case !raw && c.pressed:
		duration := now.Sub(c.pressStart)
		wasLong := c.longFired
		c.pressed = false
		c.longFired = false
		if !wasLong && duration < c.timing.LongPress {
			return EventShortPress
		}
		return EventRelease

	case raw && c.pressed && !c.longFired:
		if c.cfg.Repeat != "" && now.Sub(c.pressStart) >= c.timing.LongPress {
			c.longFired = true
			c.longFiredAt = now
			return EventLongPress
		}
	}

	return EventNone
}

// RepeatReady reports whether the channel is held in continuous-repeat mode.
func (c *Channel) RepeatReady() bool {
	return c.pressed && c.longFired && c.cfg.Repeat != ""
}

// LongPressAt returns when repeat mode was entered. Only meaningful while RepeatReady.
func (c *Channel) LongPressAt() time.Time {
	return c.longFiredAt
}

// State returns the logical state, reporting Debouncing while an unconfirmed
// level change is pending.
func (c *Channel) State() PressState {
	if c.raw != c.pressed {
		return StateDebouncing
	}
	if c.pressed {
		return StatePressed
	}
	return StateReleased
}

// Status returns a read-only view for status consumers.
func (c *Channel) Status() ChannelStatus {
	return ChannelStatus{
		ID:             c.cfg.ID,
		State:          c.State(),
		LongPressFired: c.longFired,
	}
}
