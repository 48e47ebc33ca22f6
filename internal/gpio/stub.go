//go:build !linux

package gpio

import "github.com/sweeney/audio-remote/internal/logic"

// RealReader is not available on non-Linux platforms.
type RealReader struct{}

// NewRealReader returns ErrNotSupported on non-Linux platforms.
func NewRealReader(chipName string, pins []Pin) (*RealReader, error) {
	return nil, ErrNotSupported
}

// Read is not implemented on non-Linux platforms.
func (r *RealReader) Read() (map[logic.ChannelID]bool, error) {
	return nil, ErrNotSupported
}

// WakeLevel mirrors the Linux implementation.
func (r *RealReader) WakeLevel() int {
	return 0
}

// Close is not implemented on non-Linux platforms.
func (r *RealReader) Close() error {
	return nil
}

// RealLED is not available on non-Linux platforms.
type RealLED struct{}

// NewRealLED returns ErrNotSupported on non-Linux platforms.
func NewRealLED(chipName string, offset int) (*RealLED, error) {
	return nil, ErrNotSupported
}

// Set is not implemented on non-Linux platforms.
func (l *RealLED) Set(on bool) error {
	return ErrNotSupported
}

// Close is not implemented on non-Linux platforms.
func (l *RealLED) Close() error {
	return nil
}
