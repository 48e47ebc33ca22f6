package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/sweeney/audio-remote/internal/syncutil"
)

// Options configures the real publisher.
type Options struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	BufferSize  int
}

const publishTimeout = 5 * time.Second

// RealPublisher publishes to an actual MQTT broker. Publishing never blocks the
// caller: messages are handed to paho, or buffered while disconnected and
// replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	topics Topics

	mu  syncutil.Mutex
	buf *ringBuffer
}

// NewRealPublisher creates a publisher and starts connecting in the background.
func NewRealPublisher(o Options) *RealPublisher {
	if o.BufferSize <= 0 {
		o.BufferSize = 64
	}
	if o.ClientID == "" {
		o.ClientID = "audio-remote"
	}
	p := &RealPublisher{
		topics: NewTopics(o.TopicPrefix),
		buf:    newRingBuffer(o.BufferSize),
	}

	will, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE", Reason: "LWT"})
	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(p.topics.System, string(will), 1, true).
		SetOnConnectHandler(func(paho.Client) {
			log.Info().Str("broker", o.Broker).Msg("mqtt: connected")
			p.flush()
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn().Err(err).Msg("mqtt: connection lost")
		})

	p.client = paho.NewClient(opts)
	p.client.Connect()
	return p
}

// PublishCommand mirrors a command at QoS 0.
func (p *RealPublisher) PublishCommand(event CommandEvent) error {
	payload, err := FormatCommandPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	p.publish(bufferedMsg{topic: p.topics.Commands, payload: payload})
	return nil
}

// PublishSystem sends a lifecycle event at QoS 1.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	p.publish(bufferedMsg{topic: p.topics.System, payload: payload, qos: 1, retained: event.Retained})
	return nil
}

// publish sends msg, or buffers it while the broker is unreachable. The
// connection check and the push share p.mu with flush, so a message is either
// sent or drained by the next flush.
func (p *RealPublisher) publish(msg bufferedMsg) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.client.IsConnectionOpen() {
		p.buf.push(msg)
		return
	}
	p.send(msg)
}

func (p *RealPublisher) send(msg bufferedMsg) {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			log.Warn().Str("topic", msg.topic).Msg("mqtt: publish timeout")
			return
		}
		if err := token.Error(); err != nil {
			log.Warn().Err(err).Str("topic", msg.topic).Msg("mqtt: publish failed")
		}
	}()
}

func (p *RealPublisher) flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	pending := p.buf.drainAll()
	if len(pending) > 0 {
		log.Info().Int("count", len(pending)).Msg("mqtt: replaying buffered messages")
	}
	for _, msg := range pending {
		p.send(msg)
	}
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second quiesce
	return nil
}
