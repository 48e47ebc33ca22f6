package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payloads(msgs []bufferedMsg) []byte {
	out := make([]byte, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.payload[0])
	}
	return out
}

func pushN(rb *ringBuffer, from, n int) {
	for i := from; i < from+n; i++ {
		rb.push(bufferedMsg{topic: "t", payload: []byte{byte(i)}})
	}
}

func TestRingBuffer(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		pushed   int
		want     []byte
		dropped  int
	}{
		{"empty", 4, 0, nil, 0},
		{"partial", 4, 3, []byte{0, 1, 2}, 0},
		{"exactly full", 4, 4, []byte{0, 1, 2, 3}, 0},
		{"overflow keeps newest", 4, 7, []byte{3, 4, 5, 6}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb := newRingBuffer(tt.capacity)
			pushN(rb, 0, tt.pushed)
			assert.Equal(t, tt.dropped, rb.dropped)

			got := rb.drainAll()
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			assert.Equal(t, tt.want, payloads(got))
			assert.Zero(t, rb.len())
			assert.Zero(t, rb.dropped)
		})
	}
}

func TestRingBufferReusedAfterDrain(t *testing.T) {
	rb := newRingBuffer(5)
	pushN(rb, 0, 3)
	require.Len(t, rb.drainAll(), 3)

	pushN(rb, 10, 4)
	assert.Equal(t, 4, rb.len())
	assert.Equal(t, []byte{10, 11, 12, 13}, payloads(rb.drainAll()))
	assert.Nil(t, rb.drainAll())
}

func TestRingBufferPreservesFields(t *testing.T) {
	rb := newRingBuffer(2)
	rb.push(bufferedMsg{topic: "audio-remote/system", payload: []byte(`{"x":1}`), qos: 1, retained: true})

	got := rb.drainAll()
	require.Len(t, got, 1)
	assert.Equal(t, bufferedMsg{topic: "audio-remote/system", payload: []byte(`{"x":1}`), qos: 1, retained: true}, got[0])
}
