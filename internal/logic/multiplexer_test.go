package logic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timedRequest struct {
	at  time.Duration
	req Request
}

func pollFor(m *Multiplexer, until time.Duration, levels func(at time.Duration) map[ChannelID]bool) []timedRequest {
	var out []timedRequest
	for at := time.Duration(0); at <= until; at += tick {
		for _, r := range m.Poll(testStart.Add(at), levels(at)) {
			out = append(out, timedRequest{at: at, req: r})
		}
	}
	return out
}

func only(id ChannelID, held func(time.Duration) bool) func(time.Duration) map[ChannelID]bool {
	return func(at time.Duration) map[ChannelID]bool {
		return map[ChannelID]bool{id: held(at)}
	}
}

func TestNewMultiplexerRejectsDuplicateIDs(t *testing.T) {
	_, err := NewMultiplexer([]ChannelConfig{
		{ID: "next", Short: CmdNext},
		{ID: "next", Short: CmdPrev},
	}, DefaultTiming(), testStart)
	require.Error(t, err)
}

func TestMultiplexerShortPressRequest(t *testing.T) {
	m, err := NewMultiplexer([]ChannelConfig{{ID: "next", Short: CmdNext}}, DefaultTiming(), testStart)
	require.NoError(t, err)

	reqs := pollFor(m, 3*time.Second, only("next", heldBetween(0, 200*time.Millisecond)))

	require.Len(t, reqs, 1)
	assert.Equal(t, ChannelID("next"), reqs[0].req.Source)
	assert.Equal(t, CmdNext, reqs[0].req.Cmd)
	assert.Nil(t, reqs[0].req.Extra)
}

func TestMultiplexerNoRepeatWithoutRepeatCommand(t *testing.T) {
	m, err := NewMultiplexer([]ChannelConfig{{ID: "next", Short: CmdNext}}, DefaultTiming(), testStart)
	require.NoError(t, err)

	reqs := pollFor(m, 10*time.Second, only("next", heldBetween(0, 9*time.Second)))

	assert.Empty(t, reqs)
}

func TestMultiplexerRepeatBurst(t *testing.T) {
	m, err := NewMultiplexer([]ChannelConfig{
		{ID: "volume_up", Short: CmdVolumeUp, Repeat: CmdVolumeUp},
	}, DefaultTiming(), testStart)
	require.NoError(t, err)

	reqs := pollFor(m, 3*time.Second, only("volume_up", heldBetween(0, 2*time.Second)))

	// Long press confirmed at 1550ms; repeats 200ms apart from there.
	require.Len(t, reqs, 2)
	assert.Equal(t, 1750*time.Millisecond, reqs[0].at)
	assert.Equal(t, 1950*time.Millisecond, reqs[1].at)
	for _, r := range reqs {
		assert.Equal(t, CmdVolumeUp, r.req.Cmd)
	}
}

func TestMultiplexerRepeatSpacing(t *testing.T) {
	timing := DefaultTiming()
	m, err := NewMultiplexer([]ChannelConfig{
		{ID: "volume_down", Short: CmdVolumeDown, Repeat: CmdVolumeDown},
	}, timing, testStart)
	require.NoError(t, err)

	reqs := pollFor(m, 6*time.Second, only("volume_down", heldBetween(0, 5*time.Second)))

	require.NotEmpty(t, reqs)
	for i := 1; i < len(reqs); i++ {
		assert.GreaterOrEqual(t, reqs[i].at-reqs[i-1].at, timing.Repeat)
	}
}

func TestMultiplexerCaptureTimestamp(t *testing.T) {
	m, err := NewMultiplexer([]ChannelConfig{
		{ID: "note", Short: CmdNote, CaptureTimestamp: true},
	}, DefaultTiming(), testStart)
	require.NoError(t, err)

	reqs := pollFor(m, time.Second, only("note", heldBetween(0, 100*time.Millisecond)))

	require.Len(t, reqs, 1)
	require.NotNil(t, reqs[0].req.Extra)
	extra := reqs[0].req.Extra(reqs[0].at)
	assert.Equal(t, int64(150), extra["ts"])
}

func TestMultiplexerChannelsIndependent(t *testing.T) {
	m, err := NewMultiplexer([]ChannelConfig{
		{ID: "next", Short: CmdNext},
		{ID: "prev", Short: CmdPrev},
	}, DefaultTiming(), testStart)
	require.NoError(t, err)

	held := heldBetween(0, 200*time.Millisecond)
	reqs := pollFor(m, time.Second, func(at time.Duration) map[ChannelID]bool {
		return map[ChannelID]bool{"next": held(at), "prev": held(at)}
	})

	require.Len(t, reqs, 2)
	assert.Equal(t, reqs[0].at, reqs[1].at)
	assert.Equal(t, CmdNext, reqs[0].req.Cmd)
	assert.Equal(t, CmdPrev, reqs[1].req.Cmd)

	statuses := m.Channels()
	require.Len(t, statuses, 2)
	assert.Equal(t, StateReleased, statuses[0].State)
}
