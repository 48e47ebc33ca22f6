package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/audio-remote/internal/protocol"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Power         string       `json:"power"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	IdleSeconds   int64        `json:"idle_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Peer          PeerJSON     `json:"peer"`
	NextSeq       uint16       `json:"next_seq"`
	Battery       *BatteryJSON `json:"battery,omitempty"`
	Buttons       []ButtonJSON `json:"buttons"`
	Counts        CountsJSON   `json:"outcome_counts"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// PeerJSON reports the WebSocket peer.
type PeerJSON struct {
	Connected bool   `json:"connected"`
	ID        string `json:"id,omitempty"`
}

// BatteryJSON reports the last battery sample.
type BatteryJSON struct {
	Voltage float64 `json:"voltage"`
	Low     bool    `json:"low"`
}

// ButtonJSON is one channel's state.
type ButtonJSON struct {
	ID     string `json:"id"`
	State  string `json:"state"`
	Repeat bool   `json:"repeating"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker,omitempty"`
}

// CountsJSON is the JSON representation of dispatch outcome counters.
type CountsJSON struct {
	Sent       int `json:"sent"`
	Throttled  int `json:"throttled"`
	NoPeer     int `json:"no_peer"`
	Overflow   int `json:"encode_overflow"`
	SendFailed int `json:"send_failed"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type,omitempty"`
	IP         string `json:"ip"`
	Status     string `json:"status,omitempty"`
	Gateway    string `json:"gateway,omitempty"`
	WifiStatus string `json:"wifi_status,omitempty"`
	SSID       string `json:"ssid,omitempty"`
	RSSI       int    `json:"rssi"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs        int64  `json:"tick_ms"`
	DebounceMs    int64  `json:"debounce_ms"`
	LongPressMs   int64  `json:"long_press_ms"`
	RepeatMs      int64  `json:"repeat_ms"`
	MinIntervalMs int64  `json:"min_interval_ms"`
	IdleTimeoutMs int64  `json:"idle_timeout_ms"`
	HeartbeatMs   int64  `json:"heartbeat_ms"`
	Listen        string `json:"listen"`
}

func buildInner(snap Snapshot) StatusInner {
	power := string(snap.Power)
	if power == "" {
		power = "UNKNOWN"
	}

	inner := StatusInner{
		Power:         power,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		IdleSeconds:   int64(snap.Idle().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Peer:          PeerJSON{Connected: snap.PeerAttached(), ID: snap.Peer},
		NextSeq:       snap.NextSeq,
		Buttons:       make([]ButtonJSON, 0, len(snap.Channels)),
		Counts: CountsJSON{
			Sent:       snap.Counts.Sent,
			Throttled:  snap.Counts.Throttled,
			NoPeer:     snap.Counts.NoPeer,
			Overflow:   snap.Counts.Overflow,
			SendFailed: snap.Counts.SendFailed,
		},
		MQTT: MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			TickMs:        snap.Config.TickMs,
			DebounceMs:    snap.Config.DebounceMs,
			LongPressMs:   snap.Config.LongPressMs,
			RepeatMs:      snap.Config.RepeatMs,
			MinIntervalMs: snap.Config.MinIntervalMs,
			IdleTimeoutMs: snap.Config.IdleTimeoutMs,
			HeartbeatMs:   snap.Config.HeartbeatMs,
			Listen:        snap.Config.Listen,
		},
	}
	for _, ch := range snap.Channels {
		inner.Buttons = append(inner.Buttons, ButtonJSON{
			ID:     string(ch.ID),
			State:  string(ch.State),
			Repeat: ch.LongPressFired,
		})
	}
	if snap.BatteryKnown {
		inner.Battery = &BatteryJSON{Voltage: protocol.RoundVoltage(snap.Battery), Low: snap.LowBattery}
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
			RSSI:       snap.Network.RSSI,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

// Info returns the fields reported in get_status replies.
func (s Snapshot) Info() protocol.StatusInfo {
	info := protocol.StatusInfo{Battery: s.Battery, Connected: s.PeerAttached()}
	if s.Network != nil {
		info.IP = s.Network.IP
		info.RSSI = s.Network.RSSI
	}
	return info
}
