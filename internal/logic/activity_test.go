package logic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestActivityExpiresAtExactTimeout(t *testing.T) {
	a := NewActivity(300*time.Second, testStart)

	assert.False(t, a.Expired(testStart.Add(300*time.Second-time.Millisecond), false))
	assert.True(t, a.Expired(testStart.Add(300*time.Second), false))
}

func TestActivityTouchResetsCountdown(t *testing.T) {
	a := NewActivity(300*time.Second, testStart)

	a.Touch(testStart.Add(299 * time.Second))
	assert.Equal(t, time.Duration(0), a.Idle(testStart.Add(299*time.Second)))
	assert.False(t, a.Expired(testStart.Add(300*time.Second), false))
	assert.True(t, a.Expired(testStart.Add(599*time.Second), false))
}

func TestActivityTouchNeverMovesBackwards(t *testing.T) {
	a := NewActivity(time.Minute, testStart.Add(time.Minute))
	a.Touch(testStart)
	assert.Equal(t, testStart.Add(time.Minute), a.Last())
}

func TestActivityPeerAttachedPreventsExpiry(t *testing.T) {
	a := NewActivity(time.Second, testStart)
	assert.False(t, a.Expired(testStart.Add(time.Hour), true))
}

func TestActivityDisabled(t *testing.T) {
	a := NewActivity(0, testStart)
	assert.False(t, a.Expired(testStart.Add(time.Hour), false))
}

func TestConnectionSinglePeer(t *testing.T) {
	var c Connection
	assert.False(t, c.Attached())

	assert.Empty(t, c.Connect("a"))
	assert.True(t, c.Attached())
	assert.Equal(t, "a", c.Peer())

	assert.Equal(t, "a", c.Connect("b"), "new peer evicts the previous one")
	assert.Equal(t, "b", c.Peer())

	assert.False(t, c.Disconnect("a"), "stale peer disconnect is ignored")
	assert.True(t, c.Attached())

	assert.True(t, c.Disconnect("b"))
	assert.False(t, c.Attached())
	assert.Empty(t, c.Peer())
}

func TestHeartbeat(t *testing.T) {
	h := NewHeartbeat(testStart)

	assert.Nil(t, h.Check(testStart.Add(15*time.Minute), 0, OutcomeCounts{}), "disabled")
	assert.Nil(t, h.Check(testStart.Add(14*time.Minute), 15*time.Minute, OutcomeCounts{}))

	hb := h.Check(testStart.Add(15*time.Minute), 15*time.Minute, OutcomeCounts{Sent: 3})
	if assert.NotNil(t, hb) {
		assert.Equal(t, 15*time.Minute, hb.Uptime)
		assert.Equal(t, 3, hb.Counts.Sent)
	}
	assert.Nil(t, h.Check(testStart.Add(15*time.Minute+time.Second), 15*time.Minute, OutcomeCounts{}))
	assert.NotNil(t, h.Check(testStart.Add(30*time.Minute), 15*time.Minute, OutcomeCounts{}))
}

func TestOutcomeCountsAdd(t *testing.T) {
	var c OutcomeCounts
	for _, o := range []Outcome{OutcomeSent, OutcomeSent, OutcomeThrottled, OutcomeNoPeer, OutcomeOverflow, OutcomeSendFailed} {
		c.Add(o)
	}
	assert.Equal(t, OutcomeCounts{Sent: 2, Throttled: 1, NoPeer: 1, Overflow: 1, SendFailed: 1}, c)
}

func TestCommandValid(t *testing.T) {
	assert.True(t, CmdVolumeUp.Valid())
	assert.False(t, Command("eject").Valid())
}
