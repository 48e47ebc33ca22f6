// Package battery samples the battery voltage through an ADC exposed by the
// Linux IIO subsystem.
package battery

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// DefaultRawPath is the IIO channel the battery divider feeds.
const DefaultRawPath = "/sys/bus/iio/devices/iio:device0/in_voltage0_raw"

// Sampler returns one raw ADC reading.
type Sampler interface {
	ReadRaw() (int, error)
}

// Calibration maps raw ADC counts to battery volts.
type Calibration struct {
	ADCMax           int
	ReferenceVoltage float64
	DividerRatio     float64
}

// DefaultCalibration is a 12-bit ADC at 3.3 V behind a 1:2 divider.
func DefaultCalibration() Calibration {
	return Calibration{ADCMax: 4095, ReferenceVoltage: 3.3, DividerRatio: 2.0}
}

// Voltage converts a raw reading.
func (c Calibration) Voltage(raw int) float64 {
	if c.ADCMax <= 0 {
		return 0
	}
	return float64(raw) / float64(c.ADCMax) * c.ReferenceVoltage * c.DividerRatio
}

// IIOSampler reads the raw value file of an IIO voltage channel.
type IIOSampler struct {
	fs   afero.Fs
	path string
}

// NewIIOSampler creates a sampler for path on fs.
func NewIIOSampler(fs afero.Fs, path string) *IIOSampler {
	if path == "" {
		path = DefaultRawPath
	}
	return &IIOSampler{fs: fs, path: path}
}

// ReadRaw reads and parses the current ADC count.
func (s *IIOSampler) ReadRaw() (int, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", s.path, err)
	}
	raw, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", s.path, err)
	}
	if raw < 0 {
		return 0, fmt.Errorf("parse %s: negative count %d", s.path, raw)
	}
	return raw, nil
}

// ErrOutOfRange is returned for a raw count outside the ADC's range.
var ErrOutOfRange = errors.New("battery: raw reading out of range")

// Gauge combines a sampler with its calibration.
type Gauge struct {
	sampler Sampler
	cal     Calibration
}

// NewGauge creates a gauge.
func NewGauge(sampler Sampler, cal Calibration) *Gauge {
	return &Gauge{sampler: sampler, cal: cal}
}

// Read samples the battery and returns volts.
func (g *Gauge) Read() (float64, error) {
	if g == nil || g.sampler == nil {
		return 0, errors.New("battery: no sampler")
	}
	raw, err := g.sampler.ReadRaw()
	if err != nil {
		return 0, err
	}
	if raw < 0 || (g.cal.ADCMax > 0 && raw > g.cal.ADCMax) {
		return 0, fmt.Errorf("%w: %d not in [0, %d]", ErrOutOfRange, raw, g.cal.ADCMax)
	}
	return g.cal.Voltage(raw), nil
}

// FakeSampler returns a settable raw value.
type FakeSampler struct {
	Raw int
	Err error
}

// ReadRaw returns the configured value.
func (f *FakeSampler) ReadRaw() (int, error) {
	return f.Raw, f.Err
}

// RawFor returns the count that cal maps closest to volts.
func RawFor(volts float64, cal Calibration) int {
	if cal.ReferenceVoltage == 0 || cal.DividerRatio == 0 {
		return 0
	}
	return int(volts/(cal.ReferenceVoltage*cal.DividerRatio)*float64(cal.ADCMax) + 0.5)
}
