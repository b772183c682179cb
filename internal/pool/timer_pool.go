// Package pool provides pooled timers for code paths that arm a timer per
// operation, such as bounded reply waits and cyclic send pacing.
package pool

import (
	"sync"
	"time"
)

var timerPool sync.Pool

// GetTimer returns a timer armed with duration d, reusing a pooled timer when
// one is available. Return it with PutTimer.
func GetTimer(d time.Duration) *time.Timer {
	v := timerPool.Get()
	if v == nil {
		return time.NewTimer(d)
	}

	t := v.(*time.Timer) //nolint:errcheck // only *time.Timer enters the pool
	if t.Reset(d) {
		// The timer was still active; drain a stale tick if one fired.
		select {
		case <-t.C:
		default:
		}
	}

	return t
}

// PutTimer stops t and returns it to the pool. The caller must not touch t
// afterwards.
func PutTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	timerPool.Put(t)
}
