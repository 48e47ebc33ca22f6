package mqtt

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doneToken struct{}

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Error() error                   { return nil }

func (doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// stubClient records publishes; the rest of paho.Client is left unimplemented.
type stubClient struct {
	paho.Client
	open atomic.Bool

	mu     sync.Mutex
	topics []string
	bodies []string
}

func (c *stubClient) IsConnectionOpen() bool { return c.open.Load() }

func (c *stubClient) Publish(topic string, qos byte, retained bool, payload any) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics = append(c.topics, topic)
	c.bodies = append(c.bodies, string(payload.([]byte)))
	return doneToken{}
}

func (c *stubClient) published() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.bodies...)
}

func newStubPublisher(size int) (*RealPublisher, *stubClient) {
	client := &stubClient{}
	return &RealPublisher{client: client, topics: NewTopics(""), buf: newRingBuffer(size)}, client
}

func TestRealPublisherBuffersUntilReconnect(t *testing.T) {
	p, client := newStubPublisher(8)

	p.publish(bufferedMsg{topic: "t", payload: []byte("a")})
	p.publish(bufferedMsg{topic: "t", payload: []byte("b")})
	assert.Empty(t, client.published())
	assert.Equal(t, 2, p.buf.len())

	client.open.Store(true)
	p.flush()
	assert.Equal(t, []string{"a", "b"}, client.published(), "replayed oldest first")
	assert.Zero(t, p.buf.len())

	p.publish(bufferedMsg{topic: "t", payload: []byte("c")})
	assert.Equal(t, []string{"a", "b", "c"}, client.published())
}

func TestRealPublisherSystemEventBuffered(t *testing.T) {
	p, client := newStubPublisher(8)

	require.NoError(t, p.PublishSystem(SystemEvent{Timestamp: time.Unix(0, 0), Event: "STARTUP"}))
	client.open.Store(true)
	p.flush()

	require.Len(t, client.published(), 1)
	assert.Contains(t, client.published()[0], "STARTUP")
	assert.Equal(t, []string{p.topics.System}, client.topics)
}

func TestRealPublisherNothingStrandedAcrossReconnect(t *testing.T) {
	const publishers, each = 8, 50
	p, client := newStubPublisher(publishers * each)

	var wg sync.WaitGroup
	for w := 0; w < publishers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e := 0; e < each; e++ {
				p.publish(bufferedMsg{topic: "t", payload: []byte("m")})
			}
		}()
	}

	// What the on-connect handler does: the connection opens, then flush runs.
	client.open.Store(true)
	p.flush()
	wg.Wait()

	assert.Zero(t, p.buf.len(), "no message left behind after the flush")
	assert.Len(t, client.published(), publishers*each)
}
