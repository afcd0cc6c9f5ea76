// Package globaltime is the process clock. Tests swap it to pin timestamps
// that end up in published state and mock payloads.
package globaltime

import (
	"sync"
	"time"
)

var (
	mu      sync.RWMutex
	nowFunc = time.Now
)

func Now() time.Time {
	mu.RLock()
	defer mu.RUnlock()
	return nowFunc()
}

func UTC() time.Time {
	return Now().UTC()
}

// Since is time.Since against the process clock.
func Since(t time.Time) time.Duration {
	return Now().Sub(t)
}

// SetMockTime freezes the clock at t until ResetTime is called.
func SetMockTime(t time.Time) {
	SetNowFunc(func() time.Time { return t })
}

// SetNowFunc installs fn as the clock and returns a function restoring the
// previous one.
func SetNowFunc(fn func() time.Time) (restore func()) {
	mu.Lock()
	defer mu.Unlock()
	previous := nowFunc
	nowFunc = fn
	return func() {
		mu.Lock()
		defer mu.Unlock()
		nowFunc = previous
	}
}

func ResetTime() {
	mu.Lock()
	defer mu.Unlock()
	nowFunc = time.Now
}
