package power

import (
	"context"
	"fmt"
	"sync"
)

// Recorder collects the calls made by fakes in order.
type Recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *Recorder) record(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

// Calls returns the recorded calls.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// FakeSuspender records wake configuration and suspend requests.
type FakeSuspender struct {
	Rec        *Recorder
	WakeErr    error
	SuspendErr error
}

// ConfigureWake records the wake line.
func (f *FakeSuspender) ConfigureWake(offset, level int) error {
	f.Rec.record("wake:%d:%d", offset, level)
	return f.WakeErr
}

// Suspend records the request.
func (f *FakeSuspender) Suspend() error {
	f.Rec.record("suspend")
	return f.SuspendErr
}

// FakeNetwork records Disable calls.
type FakeNetwork struct {
	Rec *Recorder
	Err error
}

// Disable records the call.
func (f *FakeNetwork) Disable(ctx context.Context) error {
	f.Rec.record("network")
	return f.Err
}

// FakeCloser records Close calls under Name.
type FakeCloser struct {
	Rec  *Recorder
	Name string
	Err  error
}

// Close records the call.
func (f *FakeCloser) Close() error {
	f.Rec.record("close:%s", f.Name)
	return f.Err
}
