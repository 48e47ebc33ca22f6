// Package status provides a thread-safe view of the remote's state for the
// status page, the MQTT mirror, and get_status replies.
package status

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sweeney/audio-remote/internal/logic"
	"github.com/sweeney/audio-remote/internal/netinfo"
	"github.com/sweeney/audio-remote/internal/syncutil"
)

// Config contains daemon configuration for display.
type Config struct {
	TickMs        int64
	DebounceMs    int64
	LongPressMs   int64
	RepeatMs      int64
	MinIntervalMs int64
	IdleTimeoutMs int64
	HeartbeatMs   int64
	Listen        string
	Broker        string // empty when the mirror is disabled
}

// Core is the engine-owned state published once per tick.
type Core struct {
	Channels     []logic.ChannelStatus
	NextSeq      uint16
	Peer         string
	Battery      float64
	BatteryKnown bool
	LowBattery   bool
	Power        logic.PowerState
	LastActivity time.Time
	Counts       logic.OutcomeCounts
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Core
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *netinfo.NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Idle returns the time since the last activity.
func (s Snapshot) Idle() time.Duration {
	if s.LastActivity.IsZero() {
		return 0
	}
	return s.Now.Sub(s.LastActivity)
}

// PeerAttached reports whether a peer is connected.
func (s Snapshot) PeerAttached() bool {
	return s.Peer != ""
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	clock clockwork.Clock

	mu   syncutil.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(clock clockwork.Clock, startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		clock: clock,
		snap: Snapshot{
			Core:      Core{Power: logic.PowerActive, LastActivity: startTime},
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update replaces the engine-owned state. Called from the engine on every tick.
func (t *Tracker) Update(core Core) {
	channels := append([]logic.ChannelStatus(nil), core.Channels...)
	core.Channels = channels

	t.mu.Lock()
	t.snap.Core = core
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *netinfo.NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set from the tracker's clock at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.clock.Now()
	return s
}
