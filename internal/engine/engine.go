// Package engine runs the remote's control loop. One goroutine owns every piece
// of core state and advances it once per tick: transport events are drained,
// buttons are sampled and dispatched, the battery is checked, and an idle
// device is powered down.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/sweeney/audio-remote/internal/gpio"
	"github.com/sweeney/audio-remote/internal/indicator"
	"github.com/sweeney/audio-remote/internal/logic"
	"github.com/sweeney/audio-remote/internal/mqtt"
	"github.com/sweeney/audio-remote/internal/netinfo"
	"github.com/sweeney/audio-remote/internal/protocol"
	"github.com/sweeney/audio-remote/internal/status"
	"github.com/sweeney/audio-remote/internal/transport"
)

// ErrSuspended is returned by Run and Step once the device has been put to sleep.
// The process is expected to exit; the service manager starts it fresh after wake.
var ErrSuspended = errors.New("engine: suspended")

// Voltmeter reads the battery voltage.
type Voltmeter interface {
	Read() (float64, error)
}

// Indicator accepts user-visible signals without blocking.
type Indicator interface {
	Signal(s indicator.Signal) bool
}

// PowerDown puts the host to sleep.
type PowerDown interface {
	Run(ctx context.Context) error
}

// Options holds the engine's timing and thresholds.
type Options struct {
	Channels        []logic.ChannelConfig
	Timing          logic.Timing
	Tick            time.Duration
	IdleTimeout     time.Duration
	BatteryInterval time.Duration
	LowThreshold    float64
	Margin          float64
	Heartbeat       time.Duration
	MaxMessageSize  int
}

// DefaultOptions returns the stock settings without any channels.
func DefaultOptions() Options {
	return Options{
		Timing:          logic.DefaultTiming(),
		Tick:            5 * time.Millisecond,
		IdleTimeout:     300 * time.Second,
		BatteryInterval: 30 * time.Second,
		LowThreshold:    3.2,
		Margin:          0.1,
		MaxMessageSize:  protocol.DefaultMaxMessageSize,
	}
}

// Deps are the engine's collaborators. Clock, Reader and Link are required;
// the rest may be nil.
type Deps struct {
	Clock      clockwork.Clock
	Reader     gpio.Reader
	Link       protocol.Link
	Events     <-chan transport.Event
	Voltmeter  Voltmeter
	Indicator  Indicator
	Publisher  mqtt.Publisher
	MQTTStatus mqtt.ConnectionStatus
	Tracker    *status.Tracker
	PowerDown  PowerDown
	Network    func() *netinfo.NetworkInfo
}

// Engine is the owned core context. All fields are touched only from the
// goroutine calling Run or Step.
type Engine struct {
	opts Options
	deps Deps

	start      time.Time
	mux        *logic.Multiplexer
	sink       *mirrorSink
	encoder    *protocol.Encoder
	dispatcher *logic.Dispatcher
	activity   *logic.Activity
	conn       logic.Connection
	monitor    *logic.ThresholdMonitor
	heartbeat  *logic.Heartbeat

	power       logic.PowerState
	network     *netinfo.NetworkInfo
	readFailing bool
}

// mirrorSink remembers the last command handed to the encoder so the
// dispatch outcome can be mirrored with its sequence number.
type mirrorSink struct {
	enc  *protocol.Encoder
	last logic.OutboundCommand
}

func (m *mirrorSink) Transmit(cmd logic.OutboundCommand) (logic.Outcome, error) {
	m.last = cmd
	return m.enc.Transmit(cmd)
}

// New builds an engine whose clock starts now.
func New(opts Options, deps Deps) (*Engine, error) {
	if deps.Clock == nil || deps.Reader == nil || deps.Link == nil {
		return nil, errors.New("engine: clock, reader and link are required")
	}
	if opts.Tick <= 0 {
		return nil, fmt.Errorf("engine: tick must be positive, got %v", opts.Tick)
	}

	now := deps.Clock.Now()
	mux, err := logic.NewMultiplexer(opts.Channels, opts.Timing, now)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	enc := protocol.NewEncoder(deps.Link, opts.MaxMessageSize)
	sink := &mirrorSink{enc: enc}
	activity := logic.NewActivity(opts.IdleTimeout, now)

	return &Engine{
		opts:       opts,
		deps:       deps,
		start:      now,
		mux:        mux,
		sink:       sink,
		encoder:    enc,
		dispatcher: logic.NewDispatcher(sink, activity, opts.Timing.MinInterval, now),
		activity:   activity,
		monitor:    logic.NewThresholdMonitor(opts.LowThreshold, opts.Margin, opts.BatteryInterval),
		heartbeat:  logic.NewHeartbeat(now),
		power:      logic.PowerActive,
	}, nil
}

// Run announces startup and steps the engine on every tick until ctx is
// cancelled (returns nil) or the device suspends (returns ErrSuspended).
func (e *Engine) Run(ctx context.Context) error {
	e.startup()

	ticker := e.deps.Clock.NewTicker(e.opts.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			if err := e.Step(ctx, e.deps.Clock.Now()); err != nil {
				return err
			}
		}
	}
}

// Step advances the engine by one tick.
func (e *Engine) Step(ctx context.Context, now time.Time) error {
	if e.power == logic.PowerSuspended {
		return ErrSuspended
	}

	e.drainEvents(now)
	e.pollInputs(now)
	e.checkBattery(now)
	e.checkHeartbeat(now)
	e.publishState(now)

	if e.activity.Expired(now, e.conn.Attached()) {
		return e.suspend(ctx, now)
	}
	return nil
}

// Shutdown publishes the final lifecycle event after Run has returned.
func (e *Engine) Shutdown(reason string) {
	e.publishSystem("SHUTDOWN", reason)
}

func (e *Engine) startup() {
	e.refreshNetwork()
	e.publishState(e.deps.Clock.Now())
	e.signal(indicator.Startup)
	e.publishSystem("STARTUP", "")
	log.Info().
		Int("channels", len(e.opts.Channels)).
		Dur("tick", e.opts.Tick).
		Dur("idle_timeout", e.opts.IdleTimeout).
		Msg("engine: started")
}

func (e *Engine) drainEvents(now time.Time) {
	for {
		select {
		case ev, ok := <-e.deps.Events:
			if !ok {
				e.deps.Events = nil
				return
			}
			e.handleEvent(now, ev)
		default:
			return
		}
	}
}

func (e *Engine) handleEvent(now time.Time, ev transport.Event) {
	e.activity.Touch(now)

	switch ev.Kind {
	case transport.EventConnected:
		if evicted := e.conn.Connect(ev.Peer); evicted != "" {
			log.Info().Str("peer", ev.Peer).Str("evicted", evicted).Msg("engine: peer replaced")
		}
		e.signal(indicator.PeerConnected)
		if !e.linkedTo(ev.Peer) {
			log.Debug().Str("peer", ev.Peer).Msg("engine: peer already replaced, skipping greeting")
			return
		}
		if err := e.encoder.Reply(protocol.GreetingMessage(e.statusInfo())); err != nil {
			log.Warn().Err(err).Msg("engine: greeting failed")
		}

	case transport.EventDisconnected:
		if e.conn.Disconnect(ev.Peer) {
			e.signal(indicator.PeerLost)
		}

	case transport.EventMessage:
		if ev.Peer != e.conn.Peer() {
			log.Debug().Str("peer", ev.Peer).Msg("engine: ignoring message from replaced peer")
			return
		}
		e.handleMessage(ev.Payload)
	}
}

// peerLink is implemented by links that can name their live peer.
type peerLink interface {
	Peer() string
}

// linkedTo reports whether the link's live session still belongs to peer.
func (e *Engine) linkedTo(peer string) bool {
	pl, ok := e.deps.Link.(peerLink)
	if !ok {
		return true
	}
	return pl.Peer() == peer
}

func (e *Engine) handleMessage(payload []byte) {
	in, err := protocol.ParseInbound(payload)
	if err != nil {
		log.Debug().Err(err).Msg("engine: unreadable peer message")
		return
	}

	var reply protocol.Message
	switch in.Cmd {
	case protocol.InPing:
		reply = protocol.PongMessage()
	case protocol.InGetStatus:
		reply = protocol.StatusMessage(e.statusInfo())
	default:
		log.Debug().Str("cmd", in.Cmd).Msg("engine: unknown peer request")
		return
	}
	if err := e.encoder.Reply(reply); err != nil {
		log.Warn().Err(err).Str("cmd", in.Cmd).Msg("engine: reply failed")
	}
}

func (e *Engine) pollInputs(now time.Time) {
	levels, err := e.deps.Reader.Read()
	if err != nil {
		if !e.readFailing {
			log.Error().Err(err).Msg("engine: gpio read failed")
			e.readFailing = true
		}
		return
	}
	if e.readFailing {
		log.Info().Msg("engine: gpio read recovered")
		e.readFailing = false
	}

	for _, req := range e.mux.Poll(now, levels) {
		outcome := e.dispatch(now, req)
		if s, ok := indicator.ForOutcome(outcome); ok {
			e.signal(s)
		}
	}
}

func (e *Engine) dispatch(now time.Time, req logic.Request) logic.Outcome {
	outcome, err := e.dispatcher.Dispatch(now, req)
	if outcome == logic.OutcomeThrottled {
		return outcome
	}

	cmd := e.sink.last
	ev := log.Debug()
	if err != nil {
		ev = log.Warn().Err(err)
	}
	ev.Str("source", string(req.Source)).
		Str("cmd", string(req.Cmd)).
		Uint16("seq", cmd.Seq).
		Str("outcome", string(outcome)).
		Msg("engine: dispatched")

	if e.deps.Publisher != nil {
		err := e.deps.Publisher.PublishCommand(mqtt.CommandEvent{
			Timestamp: now,
			Source:    req.Source,
			Command:   cmd,
			Outcome:   outcome,
		})
		if err != nil {
			log.Debug().Err(err).Msg("engine: mirror publish failed")
		}
	}
	return outcome
}

func (e *Engine) checkBattery(now time.Time) {
	if e.deps.Voltmeter == nil || !e.monitor.Due(now) {
		return
	}
	e.monitor.MarkChecked(now)

	v, err := e.deps.Voltmeter.Read()
	if err != nil {
		log.Warn().Err(err).Msg("engine: battery read failed")
		return
	}
	if !e.monitor.Observe(v) {
		return
	}

	log.Warn().Float64("voltage", v).Float64("threshold", e.opts.LowThreshold).Msg("engine: battery low")
	fields := protocol.LowBatteryFields(v)
	e.dispatch(now, logic.Request{
		Source: logic.BatteryChannel,
		Cmd:    logic.CmdLowBattery,
		Extra:  func(time.Duration) map[string]any { return fields },
	})
	e.signal(indicator.LowBattery)
}

func (e *Engine) checkHeartbeat(now time.Time) {
	hb := e.heartbeat.Check(now, e.opts.Heartbeat, e.dispatcher.Counts())
	if hb == nil {
		return
	}
	log.Info().
		Dur("uptime", hb.Uptime).
		Int("sent", hb.Counts.Sent).
		Int("throttled", hb.Counts.Throttled).
		Int("no_peer", hb.Counts.NoPeer).
		Msg("engine: heartbeat")

	e.refreshNetwork()
	e.publishState(now)
	e.publishSystem("HEARTBEAT", "")
}

func (e *Engine) suspend(ctx context.Context, now time.Time) error {
	log.Info().Dur("idle", e.activity.Idle(now)).Msg("engine: idle timeout, powering down")

	e.power = logic.PowerSuspended
	e.publishState(now)
	e.publishSystem("SUSPEND", "IDLE")

	if e.deps.PowerDown != nil {
		if err := e.deps.PowerDown.Run(ctx); err != nil {
			return fmt.Errorf("engine: power down: %w", err)
		}
	}
	return ErrSuspended
}

func (e *Engine) publishState(now time.Time) {
	if e.deps.Tracker == nil {
		return
	}
	battery, known := e.monitor.Last()
	e.deps.Tracker.Update(status.Core{
		Channels:     e.mux.Channels(),
		NextSeq:      e.dispatcher.NextSeq(),
		Peer:         e.conn.Peer(),
		Battery:      battery,
		BatteryKnown: known,
		LowBattery:   e.monitor.Warned(),
		Power:        e.power,
		LastActivity: e.activity.Last(),
		Counts:       e.dispatcher.Counts(),
	})
	if e.deps.MQTTStatus != nil {
		e.deps.Tracker.SetMQTTConnected(e.deps.MQTTStatus.IsConnected())
	}
}

func (e *Engine) publishSystem(event, reason string) {
	if e.deps.Publisher == nil {
		return
	}
	se := mqtt.SystemEvent{
		Timestamp: e.deps.Clock.Now(),
		Event:     event,
		Reason:    reason,
		Retained:  true,
	}
	if e.deps.Tracker != nil {
		se.RawPayload = status.FormatStatusEvent(e.deps.Tracker.Snapshot(), event, reason)
	}
	if err := e.deps.Publisher.PublishSystem(se); err != nil {
		log.Warn().Err(err).Str("event", event).Msg("engine: system event publish failed")
	}
}

func (e *Engine) refreshNetwork() {
	if e.deps.Network == nil {
		return
	}
	e.network = e.deps.Network()
	if e.deps.Tracker != nil && e.network != nil {
		e.deps.Tracker.SetNetwork(e.network)
	}
}

func (e *Engine) statusInfo() protocol.StatusInfo {
	info := protocol.StatusInfo{Connected: e.conn.Attached()}
	info.Battery, _ = e.monitor.Last()
	if e.network != nil {
		info.IP = e.network.IP
		info.RSSI = e.network.RSSI
	}
	return info
}

func (e *Engine) signal(s indicator.Signal) {
	if e.deps.Indicator != nil {
		e.deps.Indicator.Signal(s)
	}
}

// NextSeq returns the sequence number the next sent command will carry.
func (e *Engine) NextSeq() uint16 {
	return e.dispatcher.NextSeq()
}

// Counts returns dispatch outcome counters.
func (e *Engine) Counts() logic.OutcomeCounts {
	return e.dispatcher.Counts()
}

// PowerState returns the current power state.
func (e *Engine) PowerState() logic.PowerState {
	return e.power
}
