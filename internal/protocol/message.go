// Package protocol encodes commands into the bounded JSON messages exchanged
// with the peer and decodes the peer's requests.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/sweeney/audio-remote/internal/logic"
)

// DefaultMaxMessageSize is the largest encoded message the peer accepts.
const DefaultMaxMessageSize = 256

// ErrOverflow is returned when an encoded message would exceed the size bound.
var ErrOverflow = errors.New("encoded message exceeds size bound")

// ErrEncode is returned when a message cannot be marshalled at all.
var ErrEncode = errors.New("message not encodable")

// Inbound request names.
const (
	InPing      = "ping"
	InGetStatus = "get_status"
)

// Message is one JSON object on the wire. Seq and Timestamp are only set on
// sequenced outbound commands; Fields carries command-specific extras.
type Message struct {
	Cmd       logic.Command
	Seq       *uint16
	Timestamp *int64
	Fields    map[string]any
}

var reserved = map[string]bool{"cmd": true, "seq": true, "timestamp": true}

// MarshalJSON writes cmd, seq and timestamp first, then extra fields in key order.
func (m Message) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"cmd":`)
	if err := writeValue(&buf, string(m.Cmd)); err != nil {
		return nil, err
	}
	if m.Seq != nil {
		fmt.Fprintf(&buf, `,"seq":%d`, *m.Seq)
	}
	if m.Timestamp != nil {
		fmt.Fprintf(&buf, `,"timestamp":%d`, *m.Timestamp)
	}

	keys := make([]string, 0, len(m.Fields))
	for k := range m.Fields {
		if !reserved[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		buf.WriteByte(',')
		if err := writeValue(&buf, k); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeValue(&buf, m.Fields[k]); err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeValue(buf *bytes.Buffer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(data)
	return nil
}

// CommandMessage builds the wire message for a sequenced command.
func CommandMessage(cmd logic.OutboundCommand) Message {
	seq := cmd.Seq
	ts := cmd.Timestamp
	return Message{
		Cmd:       cmd.Name,
		Seq:       &seq,
		Timestamp: &ts,
		Fields:    cmd.Extra,
	}
}

// Encode marshals msg and enforces the size bound. Nothing is returned on overflow.
func Encode(msg Message, maxSize int) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrEncode, msg.Cmd, err)
	}
	if maxSize > 0 && len(data) > maxSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrOverflow, msg.Cmd, len(data), maxSize)
	}
	return data, nil
}

// Inbound is a request received from the peer.
type Inbound struct {
	Cmd string `json:"cmd"`
}

// ParseInbound decodes a peer request.
func ParseInbound(payload []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(payload, &in); err != nil {
		return Inbound{}, fmt.Errorf("decode inbound: %w", err)
	}
	if in.Cmd == "" {
		return Inbound{}, errors.New("decode inbound: missing cmd")
	}
	return in, nil
}

// StatusInfo is the device state reported in status messages.
type StatusInfo struct {
	Battery   float64
	Connected bool
	IP        string
	RSSI      int
}

// PongMessage is the fixed reply to a ping.
func PongMessage() Message {
	return Message{Cmd: logic.CmdPong}
}

// StatusMessage answers get_status.
func StatusMessage(info StatusInfo) Message {
	return Message{
		Cmd: logic.CmdStatus,
		Fields: map[string]any{
			"battery":   RoundVoltage(info.Battery),
			"connected": info.Connected,
			"ip":        info.IP,
			"rssi":      info.RSSI,
		},
	}
}

// GreetingMessage is sent to a peer as soon as it attaches.
func GreetingMessage(info StatusInfo) Message {
	msg := StatusMessage(info)
	msg.Fields["status"] = "connected"
	return msg
}

// LowBatteryFields is the extra payload of a low_battery warning.
func LowBatteryFields(voltage float64) map[string]any {
	return map[string]any{"voltage": RoundVoltage(voltage)}
}

// RoundVoltage rounds to two decimals for the wire.
func RoundVoltage(v float64) float64 {
	return math.Round(v*100) / 100
}
