// Package logic contains the pure state machines of the remote: button debounce and
// press tracking, command dispatch with throttling, battery hysteresis and idle tracking.
// This package has NO external dependencies (no GPIO, network, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"fmt"
	"time"
)

// ChannelID is the stable identity of one input source.
type ChannelID string

// BatteryChannel is the synthetic source used by the battery monitor.
const BatteryChannel ChannelID = "battery"

// Command is a name from the fixed command vocabulary.
type Command string

const (
	CmdPlayPause   Command = "play_pause"
	CmdNext        Command = "next"
	CmdPrev        Command = "prev"
	CmdVolumeUp    Command = "volume_up"
	CmdVolumeDown  Command = "volume_down"
	CmdSpeedCycle  Command = "speed_cycle"
	CmdRepeatCycle Command = "repeat_cycle"
	CmdNote        Command = "note"
	CmdLowBattery  Command = "low_battery"
	CmdStatus      Command = "status"
	CmdPong        Command = "pong"
)

// Vocabulary lists every command the remote may emit.
var Vocabulary = []Command{
	CmdPlayPause, CmdNext, CmdPrev, CmdVolumeUp, CmdVolumeDown,
	CmdSpeedCycle, CmdRepeatCycle, CmdNote, CmdLowBattery, CmdStatus, CmdPong,
}

// Valid reports whether c is part of the vocabulary.
func (c Command) Valid() bool {
	for _, v := range Vocabulary {
		if v == c {
			return true
		}
	}
	return false
}

// PressState is the logical state of a channel.
type PressState string

const (
	StateReleased   PressState = "RELEASED"
	StateDebouncing PressState = "DEBOUNCING"
	StatePressed    PressState = "PRESSED"
)

// ChannelEvent is what a channel reports for one tick.
type ChannelEvent int

const (
	EventNone ChannelEvent = iota
	EventPressStart
	EventShortPress
	EventLongPress
	EventRelease
)

func (e ChannelEvent) String() string {
	switch e {
	case EventNone:
		return "none"
	case EventPressStart:
		return "press_start"
	case EventShortPress:
		return "short_press"
	case EventLongPress:
		return "long_press"
	case EventRelease:
		return "release"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// ChannelConfig is the static configuration of one button.
type ChannelConfig struct {
	ID     ChannelID
	Short  Command
	Repeat Command // empty when the button has no continuous repeat
	// CaptureTimestamp adds a "ts" field holding the release time in ms since boot.
	CaptureTimestamp bool
}

// Timing holds the thresholds shared by all channels.
type Timing struct {
	Debounce    time.Duration
	LongPress   time.Duration
	Repeat      time.Duration
	MinInterval time.Duration
}

// DefaultTiming returns the stock thresholds.
func DefaultTiming() Timing {
	return Timing{
		Debounce:    50 * time.Millisecond,
		LongPress:   1500 * time.Millisecond,
		Repeat:      200 * time.Millisecond,
		MinInterval: 100 * time.Millisecond,
	}
}

// ExtraFunc builds command-specific fields at dispatch time.
type ExtraFunc func(sinceBoot time.Duration) map[string]any

// Request asks the dispatcher to send a command on behalf of a source.
type Request struct {
	Source ChannelID
	Cmd    Command
	Extra  ExtraFunc
}

// OutboundCommand is a sequenced command ready for encoding.
type OutboundCommand struct {
	Name      Command
	Seq       uint16
	Timestamp int64 // ms since boot
	Extra     map[string]any
}

// Outcome is the observable result of a dispatch attempt.
type Outcome string

const (
	OutcomeSent       Outcome = "SENT"
	OutcomeThrottled  Outcome = "THROTTLED"
	OutcomeNoPeer     Outcome = "NO_PEER"
	OutcomeOverflow   Outcome = "ENCODE_OVERFLOW"
	OutcomeSendFailed Outcome = "SEND_FAILED"
)

// OutcomeCounts tracks dispatch outcomes since startup.
type OutcomeCounts struct {
	Sent       int
	Throttled  int
	NoPeer     int
	Overflow   int
	SendFailed int
}

// Add increments the counter for o.
func (c *OutcomeCounts) Add(o Outcome) {
	switch o {
	case OutcomeSent:
		c.Sent++
	case OutcomeThrottled:
		c.Throttled++
	case OutcomeNoPeer:
		c.NoPeer++
	case OutcomeOverflow:
		c.Overflow++
	case OutcomeSendFailed:
		c.SendFailed++
	}
}

// ChannelStatus is a read-only view of a channel for status consumers.
type ChannelStatus struct {
	ID             ChannelID
	State          PressState
	LongPressFired bool
}
