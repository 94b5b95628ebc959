// Package coarsetime serves a clock refreshed every few milliseconds by a
// background goroutine. Connection bookkeeping (creation, last use, idle
// checks) reads it on every acquire and release, where time.Now would be the
// dominant cost.
package coarsetime

import (
	"sync/atomic"
	"time"
)

// Resolution is the refresh interval: Now lags the wall clock by at most this.
const Resolution = 10 * time.Millisecond

var now atomic.Pointer[time.Time]

func init() {
	store(time.Now())

	ticker := time.NewTicker(Resolution)
	go func() {
		for t := range ticker.C {
			store(t)
		}
	}()
}

func store(t time.Time) {
	now.Store(&t)
}

func Now() time.Time {
	return *now.Load()
}

// Since is the coarse equivalent of time.Since.
func Since(t time.Time) time.Duration {
	return Now().Sub(t)
}
