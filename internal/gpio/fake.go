package gpio

import (
	"errors"
	"sync"

	"github.com/sweeney/audio-remote/internal/logic"
)

// FakeReader is a test double that returns scripted button levels.
type FakeReader struct {
	mu sync.Mutex

	// Samples contains scripted levels to return.
	// Each call to Read() consumes the next sample.
	Samples []map[logic.ChannelID]bool

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples ...map[logic.ChannelID]bool) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeReader) Read() (map[logic.ChannelID]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ReadError != nil {
		return nil, f.ReadError
	}
	if len(f.Samples) == 0 {
		return nil, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	out := make(map[logic.ChannelID]bool, len(sample))
	for k, v := range sample {
		out[k] = v
	}
	return out, nil
}

// Set replaces the script with a single held sample.
func (f *FakeReader) Set(levels map[logic.ChannelID]bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Samples = []map[logic.ChannelID]bool{levels}
	f.index = 0
}

// Press holds id active, leaving other buttons released.
func (f *FakeReader) Press(id logic.ChannelID) {
	f.Set(map[logic.ChannelID]bool{id: true})
}

// ReleaseAll releases every button.
func (f *FakeReader) ReleaseAll() {
	f.Set(map[logic.ChannelID]bool{})
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Reset resets the reader to the beginning of samples.
func (f *FakeReader) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.index = 0
	f.Closed = false
}

// FakeLED records every level written to it.
type FakeLED struct {
	mu      sync.Mutex
	history []bool
	Closed  bool
}

// Set records the level.
func (l *FakeLED) Set(on bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.history = append(l.history, on)
	return nil
}

// History returns a copy of the written levels.
func (l *FakeLED) History() []bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]bool(nil), l.history...)
}

// Blinks counts off-to-on transitions.
func (l *FakeLED) Blinks() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	prev := false
	for _, on := range l.history {
		if on && !prev {
			n++
		}
		prev = on
	}
	return n
}

// Close marks the LED as closed.
func (l *FakeLED) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Closed = true
	return nil
}
