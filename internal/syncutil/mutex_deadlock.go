//go:build deadlock

// Package syncutil wraps the mutex types so that `-tags deadlock` swaps in
// lock-order and timeout detection while developing on the device.
package syncutil

import (
	"time"

	deadlock "github.com/sasha-s/go-deadlock"
)

// Detecting reports whether the deadlock detector is compiled in.
const Detecting = true

func init() {
	// Locks on the tick path are held for microseconds.
	deadlock.Opts.DeadlockTimeout = 5 * time.Second
}

// Mutex is a mutual exclusion lock.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex is a reader/writer mutual exclusion lock.
type RWMutex struct {
	deadlock.RWMutex
}
