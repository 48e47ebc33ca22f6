// Package gpio provides button input and indicator output with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"errors"

	"github.com/sweeney/audio-remote/internal/logic"
)

// ErrNotSupported is returned by the real implementation on non-Linux platforms.
var ErrNotSupported = errors.New("gpio: not supported on this platform (requires Linux)")

// Reader reads the raw levels of every configured button.
type Reader interface {
	// Read returns true for each channel whose button is physically active.
	// Active-low inversion is already applied.
	Read() (map[logic.ChannelID]bool, error)

	// Close releases GPIO resources.
	Close() error
}

// LED drives the status indicator.
type LED interface {
	Set(on bool) error
	Close() error
}

// Pin binds a channel to a GPIO line offset (BCM numbering).
type Pin struct {
	ID     logic.ChannelID
	Offset int
}

// DefaultChip is the character device the buttons are wired to.
const DefaultChip = "gpiochip0"
