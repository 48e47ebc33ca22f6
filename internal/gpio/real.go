//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/audio-remote/internal/logic"
)

// RealReader reads buttons from actual hardware using the Linux GPIO character device.
// Buttons pull their line to ground, so lines are requested with pull-up bias
// and a raw 0 means pressed.
type RealReader struct {
	chip  *gpiocdev.Chip
	pins  []Pin
	lines []*gpiocdev.Line
}

// NewRealReader requests every pin as a biased input.
func NewRealReader(chipName string, pins []Pin) (*RealReader, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	r := &RealReader{chip: chip, pins: pins}
	for _, p := range pins {
		line, err := chip.RequestLine(p.Offset, gpiocdev.AsInput, gpiocdev.WithPullUp)
		if err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("request %s pin %d: %w", p.ID, p.Offset, err)
		}
		r.lines = append(r.lines, line)
	}
	return r, nil
}

// Read returns the active state of each button.
func (r *RealReader) Read() (map[logic.ChannelID]bool, error) {
	levels := make(map[logic.ChannelID]bool, len(r.pins))
	for i, line := range r.lines {
		raw, err := line.Value()
		if err != nil {
			return nil, fmt.Errorf("read %s pin: %w", r.pins[i].ID, err)
		}
		levels[r.pins[i].ID] = raw == 0
	}
	return levels, nil
}

// WakeLevel is the raw level a button drives when pressed.
func (r *RealReader) WakeLevel() int {
	return 0
}

// Close releases the lines, leaving them as biased inputs.
func (r *RealReader) Close() error {
	var errs []error
	for i, line := range r.lines {
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullUp); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", r.pins[i].ID, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", r.pins[i].ID, err))
		}
	}
	r.lines = nil
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		r.chip = nil
	}
	return errors.Join(errs...)
}

// RealLED drives the indicator LED through an output line.
type RealLED struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewRealLED requests offset as an output, initially off.
func NewRealLED(chipName string, offset int) (*RealLED, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	line, err := chip.RequestLine(offset, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request led pin %d: %w", offset, err)
	}
	return &RealLED{chip: chip, line: line}, nil
}

// Set switches the LED.
func (l *RealLED) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := l.line.SetValue(v); err != nil {
		return fmt.Errorf("set led: %w", err)
	}
	return nil
}

// Close turns the LED off and releases the line.
func (l *RealLED) Close() error {
	var errs []error
	if err := l.line.SetValue(0); err != nil {
		errs = append(errs, fmt.Errorf("led off: %w", err))
	}
	if err := l.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close led pin: %w", err))
	}
	if err := l.chip.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close chip: %w", err))
	}
	return errors.Join(errs...)
}
