//go:build !deadlock

// Package syncutil selects between the standard library mutexes and the
// go-deadlock instrumented ones. Build with -tags deadlock to enable
// lock-order checking during development.
package syncutil

import "sync"

type Mutex = sync.Mutex

type RWMutex = sync.RWMutex
