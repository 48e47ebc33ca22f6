//go:build !deadlock

// Package syncutil wraps the mutex types so that `-tags deadlock` swaps in
// lock-order and timeout detection while developing on the device.
package syncutil

import "sync"

// Detecting reports whether the deadlock detector is compiled in.
const Detecting = false

// Mutex is a mutual exclusion lock.
type Mutex struct {
	sync.Mutex
}

// RWMutex is a reader/writer mutual exclusion lock.
type RWMutex struct {
	sync.RWMutex
}
