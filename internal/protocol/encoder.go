package protocol

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/audio-remote/internal/logic"
)

// ErrTransport wraps failures reported by the link when sending.
var ErrTransport = errors.New("transport send failed")

// Link is the capability the encoder needs from the transport.
type Link interface {
	// PeerAttached reports whether a peer is currently connected.
	PeerAttached() bool
	// SendText sends one text payload to the attached peer.
	SendText(payload []byte) error
}

// Encoder turns sequenced commands into bounded messages and hands them to the link.
type Encoder struct {
	link    Link
	maxSize int
}

// NewEncoder creates an encoder. maxSize <= 0 selects DefaultMaxMessageSize.
func NewEncoder(link Link, maxSize int) *Encoder {
	if maxSize <= 0 {
		maxSize = DefaultMaxMessageSize
	}
	return &Encoder{link: link, maxSize: maxSize}
}

// Transmit implements logic.Sink.
func (e *Encoder) Transmit(cmd logic.OutboundCommand) (logic.Outcome, error) {
	if !e.link.PeerAttached() {
		log.Debug().Str("cmd", string(cmd.Name)).Msg("protocol: no peer attached, command not sent")
		return logic.OutcomeNoPeer, nil
	}

	payload, err := Encode(CommandMessage(cmd), e.maxSize)
	if err != nil {
		// Overflow and unencodable extras share the outcome; the error tells them apart.
		return logic.OutcomeOverflow, err
	}

	if err := e.link.SendText(payload); err != nil {
		return logic.OutcomeSendFailed, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	log.Debug().Bytes("payload", payload).Msg("protocol: sent")
	return logic.OutcomeSent, nil
}

// Reply sends an unsequenced message (pong, status) to the attached peer.
func (e *Encoder) Reply(msg Message) error {
	if !e.link.PeerAttached() {
		return nil
	}
	payload, err := Encode(msg, e.maxSize)
	if err != nil {
		return err
	}
	if err := e.link.SendText(payload); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}
