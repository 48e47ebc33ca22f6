// Package transport accepts the WebSocket peer and funnels its traffic into a
// bounded event queue that the engine drains once per tick.
package transport

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/olahol/melody"
	"github.com/rs/zerolog/log"

	"github.com/sweeney/audio-remote/internal/syncutil"
)

// ErrNoPeer is returned by SendText when no peer is attached.
var ErrNoPeer = errors.New("transport: no peer attached")

// ErrClosed is returned once the hub has been closed.
var ErrClosed = errors.New("transport: closed")

const peerKey = "peer"

// EventKind classifies a transport event.
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventMessage
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventMessage:
		return "message"
	default:
		return "unknown"
	}
}

// Event is one connection change or inbound text message.
type Event struct {
	Kind    EventKind
	Peer    string
	Payload []byte
}

// Config tunes the hub.
type Config struct {
	EventBuffer    int
	PingPeriod     time.Duration
	MaxMessageSize int64
}

// DefaultConfig returns the stock hub settings.
func DefaultConfig() Config {
	return Config{EventBuffer: 64, PingPeriod: 15 * time.Second, MaxMessageSize: 512}
}

// Hub serves the WebSocket endpoint. The most recent connection is the peer;
// commands are only ever written to it.
type Hub struct {
	m      *melody.Melody
	events chan Event
	done   chan struct{}

	// messageLimit is the queue depth above which inbound messages are
	// dropped; the remaining slots are reserved for connection changes.
	messageLimit int

	mu      syncutil.Mutex
	session *melody.Session
	peer    string
	closed  bool
	dropped int
}

// NewHub creates a hub and registers its melody handlers.
func NewHub(cfg Config) *Hub {
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultConfig().EventBuffer
	}

	m := melody.New()
	m.Upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	if cfg.PingPeriod > 0 {
		m.Config.PingPeriod = cfg.PingPeriod
		if m.Config.PongWait <= cfg.PingPeriod {
			m.Config.PongWait = cfg.PingPeriod * 2
		}
	}
	if cfg.MaxMessageSize > 0 {
		m.Config.MaxMessageSize = cfg.MaxMessageSize
	}

	reserve := max(cfg.EventBuffer/4, 1)
	h := &Hub{
		m:            m,
		events:       make(chan Event, cfg.EventBuffer),
		done:         make(chan struct{}),
		messageLimit: max(cfg.EventBuffer-reserve, 1),
	}
	m.HandleConnect(h.handleConnect)
	m.HandleDisconnect(h.handleDisconnect)
	m.HandleMessage(h.handleMessage)
	m.HandleError(func(s *melody.Session, err error) {
		log.Debug().Err(err).Str("peer", peerOf(s)).Msg("transport: session error")
	})
	return h
}

// ServeHTTP upgrades the request to a WebSocket session.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.m.HandleRequest(w, r); err != nil {
		log.Error().Err(err).Msg("transport: handling websocket request")
	}
}

// Events returns the queue of connection changes and inbound messages.
func (h *Hub) Events() <-chan Event {
	return h.events
}

// PeerAttached reports whether a peer is connected.
func (h *Hub) PeerAttached() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session != nil
}

// Peer returns the id of the attached peer, or "".
func (h *Hub) Peer() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.peer
}

// Dropped returns how many inbound messages were discarded because the queue was full.
func (h *Hub) Dropped() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// SendText writes payload to the attached peer.
func (h *Hub) SendText(payload []byte) error {
	h.mu.Lock()
	s := h.session
	closed := h.closed
	h.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if s == nil {
		return ErrNoPeer
	}
	return s.Write(payload)
}

// Close disconnects every session and stops accepting new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.session = nil
	h.peer = ""
	close(h.done)
	h.mu.Unlock()
	return h.m.Close()
}

func (h *Hub) handleConnect(s *melody.Session) {
	id := uuid.NewString()
	s.Set(peerKey, id)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = s.Close()
		return
	}
	prev := h.peer
	h.session = s
	h.peer = id
	h.mu.Unlock()

	log.Info().Str("peer", id).Str("remote", s.Request.RemoteAddr).Str("replaced", prev).Msg("transport: peer connected")
	h.emit(Event{Kind: EventConnected, Peer: id})
}

func (h *Hub) handleDisconnect(s *melody.Session) {
	id := peerOf(s)

	h.mu.Lock()
	if h.session == s {
		h.session = nil
		h.peer = ""
	}
	h.mu.Unlock()

	log.Info().Str("peer", id).Msg("transport: peer disconnected")
	h.emit(Event{Kind: EventDisconnected, Peer: id})
}

func (h *Hub) handleMessage(s *melody.Session, msg []byte) {
	h.emit(Event{Kind: EventMessage, Peer: peerOf(s), Payload: msg})
}

// emit queues ev for the engine. Messages are dropped under pressure;
// connection changes never are, they wait for room until the hub closes.
func (h *Hub) emit(ev Event) {
	if ev.Kind != EventMessage {
		select {
		case h.events <- ev:
		case <-h.done:
		}
		return
	}

	if len(h.events) < h.messageLimit {
		select {
		case h.events <- ev:
			return
		default:
		}
	}
	h.mu.Lock()
	h.dropped++
	h.mu.Unlock()
	log.Warn().Str("peer", ev.Peer).Msg("transport: event queue full, dropping message")
}

func peerOf(s *melody.Session) string {
	if v, ok := s.Get(peerKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
