package logic

import "time"

// PowerState is the device power state.
type PowerState string

const (
	PowerActive    PowerState = "ACTIVE"
	PowerSuspended PowerState = "SUSPENDED"
)

// Activity tracks the last time anything happened on the device.
type Activity struct {
	idleTimeout time.Duration
	last        time.Time
}

// NewActivity starts the idle countdown at now.
func NewActivity(idleTimeout time.Duration, now time.Time) *Activity {
	return &Activity{idleTimeout: idleTimeout, last: now}
}

// Touch resets the idle countdown.
func (a *Activity) Touch(now time.Time) {
	if now.After(a.last) {
		a.last = now
	}
}

// Last returns the last activity time.
func (a *Activity) Last() time.Time {
	return a.last
}

// Idle returns the time elapsed since the last activity.
func (a *Activity) Idle(now time.Time) time.Duration {
	return now.Sub(a.last)
}

// Expired reports whether the device should power down: no peer is attached
// and the idle timeout has elapsed. A timeout <= 0 disables power-down.
func (a *Activity) Expired(now time.Time, peerAttached bool) bool {
	if a.idleTimeout <= 0 || peerAttached {
		return false
	}
	return now.Sub(a.last) >= a.idleTimeout
}

// Connection is the single-peer attachment state.
type Connection struct {
	peer     string
	attached bool
}

// Connect attaches peer, evicting any previously captured peer.
// It returns the evicted peer id, if any.
func (c *Connection) Connect(peer string) (evicted string) {
	if c.attached && c.peer != peer {
		evicted = c.peer
	}
	c.peer = peer
	c.attached = true
	return evicted
}

// Disconnect detaches peer if it is the current one. It reports whether the
// state changed.
func (c *Connection) Disconnect(peer string) bool {
	if !c.attached || c.peer != peer {
		return false
	}
	c.peer = ""
	c.attached = false
	return true
}

// Attached reports whether a peer is connected.
func (c *Connection) Attached() bool {
	return c.attached
}

// Peer returns the current peer id, empty when disconnected.
func (c *Connection) Peer() string {
	return c.peer
}
