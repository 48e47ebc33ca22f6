package logic

import (
	"testing"
	"time"

	"pgregory.net/rapid"
)

const tick = 5 * time.Millisecond

var testStart = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

type timedEvent struct {
	at    time.Duration
	event ChannelEvent
}

// drive feeds the channel one sample per tick for the given duration.
// level reports the raw level at an offset from testStart.
func drive(c *Channel, until time.Duration, level func(at time.Duration) bool) []timedEvent {
	var out []timedEvent
	for at := time.Duration(0); at <= until; at += tick {
		if e := c.Update(testStart.Add(at), level(at)); e != EventNone {
			out = append(out, timedEvent{at: at, event: e})
		}
	}
	return out
}

func heldBetween(from, to time.Duration) func(time.Duration) bool {
	return func(at time.Duration) bool { return at >= from && at < to }
}

func TestChannelShortPress(t *testing.T) {
	c := NewChannel(ChannelConfig{ID: "next", Short: CmdNext}, DefaultTiming(), testStart)

	events := drive(c, time.Second, heldBetween(100*time.Millisecond, 300*time.Millisecond))

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d: %v", len(events), events)
	}
	if events[0].event != EventPressStart || events[0].at != 150*time.Millisecond {
		t.Errorf("expected press start at 150ms, got %s at %v", events[0].event, events[0].at)
	}
	if events[1].event != EventShortPress || events[1].at != 350*time.Millisecond {
		t.Errorf("expected short press at 350ms, got %s at %v", events[1].event, events[1].at)
	}
	if c.State() != StateReleased {
		t.Errorf("expected RELEASED, got %s", c.State())
	}
}

func TestChannelDebounceIgnoresJitter(t *testing.T) {
	c := NewChannel(ChannelConfig{ID: "next", Short: CmdNext}, DefaultTiming(), testStart)

	// Bounce every 10ms for 100ms, then settle active.
	level := func(at time.Duration) bool {
		if at < 100*time.Millisecond {
			return (at/(10*time.Millisecond))%2 == 0
		}
		return true
	}
	events := drive(c, 400*time.Millisecond, level)

	if len(events) != 1 {
		t.Fatalf("expected exactly 1 event, got %d: %v", len(events), events)
	}
	if events[0].event != EventPressStart {
		t.Errorf("expected press start, got %s", events[0].event)
	}
	if events[0].at != 150*time.Millisecond {
		t.Errorf("expected press start 50ms after settling, got %v", events[0].at)
	}
}

func TestChannelStateDebouncing(t *testing.T) {
	c := NewChannel(ChannelConfig{ID: "next", Short: CmdNext}, DefaultTiming(), testStart)

	c.Update(testStart, true)
	if c.State() != StateDebouncing {
		t.Errorf("expected DEBOUNCING after raw change, got %s", c.State())
	}
	c.Update(testStart.Add(50*time.Millisecond), true)
	if c.State() != StatePressed {
		t.Errorf("expected PRESSED after window, got %s", c.State())
	}
}

func TestChannelLongPressWithoutRepeat(t *testing.T) {
	c := NewChannel(ChannelConfig{ID: "next", Short: CmdNext}, DefaultTiming(), testStart)

	events := drive(c, 4*time.Second, heldBetween(0, 3*time.Second))

	if len(events) != 2 {
		t.Fatalf("expected press start and release, got %v", events)
	}
	if events[1].event != EventRelease {
		t.Errorf("expected plain release after long hold, got %s", events[1].event)
	}
	if c.RepeatReady() {
		t.Error("channel without repeat command must never be repeat-ready")
	}
}

func TestChannelLongPressEntersRepeatMode(t *testing.T) {
	c := NewChannel(ChannelConfig{ID: "volume_up", Short: CmdVolumeUp, Repeat: CmdVolumeUp}, DefaultTiming(), testStart)

	events := drive(c, 1600*time.Millisecond, heldBetween(0, 10*time.Second))

	if len(events) != 2 {
		t.Fatalf("expected press start and long press, got %v", events)
	}
	if events[1].event != EventLongPress || events[1].at != 1550*time.Millisecond {
		t.Errorf("expected long press at 1550ms, got %s at %v", events[1].event, events[1].at)
	}
	if !c.RepeatReady() {
		t.Error("expected repeat-ready while held")
	}
	if !c.Status().LongPressFired {
		t.Error("expected LongPressFired in status")
	}
}

func TestChannelLongPressSuppressesShortPress(t *testing.T) {
	c := NewChannel(ChannelConfig{ID: "volume_up", Short: CmdVolumeUp, Repeat: CmdVolumeUp}, DefaultTiming(), testStart)

	events := drive(c, 3*time.Second, heldBetween(0, 2*time.Second))

	for _, e := range events {
		if e.event == EventShortPress {
			t.Fatalf("short press must be suppressed after a long press, got %v", events)
		}
	}
	last := events[len(events)-1]
	if last.event != EventRelease {
		t.Errorf("expected release, got %s", last.event)
	}
	if c.RepeatReady() || c.Status().LongPressFired {
		t.Error("long press flag must clear on release")
	}
}

func TestChannelJustUnderLongPressThreshold(t *testing.T) {
	c := NewChannel(ChannelConfig{ID: "next", Short: CmdNext}, DefaultTiming(), testStart)

	// Press confirmed at 50ms, release confirmed at 1545ms: 1495ms held.
	events := drive(c, 2*time.Second, heldBetween(0, 1495*time.Millisecond))

	if len(events) != 2 || events[1].event != EventShortPress {
		t.Fatalf("expected short press, got %v", events)
	}
}

// Every logical transition must match a raw level that persisted for the
// whole debounce window, regardless of how fast the input bounces.
func TestChannelDebounceProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		timing := DefaultTiming()
		window := int(timing.Debounce / tick)

		segments := rapid.SliceOfN(rapid.IntRange(1, 60), 1, 40).Draw(rt, "segments")
		var levels []bool
		level := rapid.Bool().Draw(rt, "first")
		for _, n := range segments {
			for i := 0; i < n; i++ {
				levels = append(levels, level)
			}
			level = !level
		}

		c := NewChannel(ChannelConfig{ID: "x", Short: CmdNext, Repeat: CmdNext}, timing, testStart)
		pressed := false
		lastChange := -window
		for i, raw := range levels {
			e := c.Update(testStart.Add(time.Duration(i)*tick), raw)
			var next bool
			switch e {
			case EventPressStart:
				next = true
			case EventShortPress, EventRelease:
				next = false
			default:
				continue
			}
			if next == pressed {
				rt.Fatalf("tick %d: event %s without a state change", i, e)
			}
			if i-lastChange < window {
				rt.Fatalf("tick %d: state changed %d ticks after previous change", i, i-lastChange)
			}
			if i < window {
				rt.Fatalf("tick %d: state changed before a full window elapsed", i)
			}
			for j := i - window; j <= i; j++ {
				if levels[j] != next {
					rt.Fatalf("tick %d: new state %v not stable over window (tick %d = %v)", i, next, j, levels[j])
				}
			}
			pressed = next
			lastChange = i
		}
	})
}
