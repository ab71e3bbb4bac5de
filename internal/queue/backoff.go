package queue

import (
	"runtime"
	"time"
)

// loopsBeforeYield bounds how wide Backoff's Gosched spin grows; once
// the spin width passes it, Pause falls back to a short sleep.
const loopsBeforeYield = 16

// Backoff is an adaptive spin-then-yield primitive used on every
// contended wait in this package: cell-generation waits, ring-boundary
// crossings, and ring-growth handoffs.
//
// Go has no portable inline PAUSE instruction, so the "busy spin"
// phase is expressed as a bounded number of runtime.Gosched calls
// rather than a tight CPU-relaxation loop; past the threshold, Backoff
// degrades to a short sleep instead of spinning the scheduler runqueue
// harder. This mirrors the wait strategies used elsewhere in the
// example pack (e.g. a Gosched-based yield followed by a sleep-based
// strategy for slow consumers).
type Backoff struct {
	count int32
}

// NewBackoff returns a Backoff ready for its first Pause call.
func NewBackoff() *Backoff {
	return &Backoff{count: 1}
}

// Pause spins (or yields) once, widening the next spin.
func (b *Backoff) Pause() {
	if b.count <= loopsBeforeYield {
		for i := int32(0); i < b.count; i++ {
			runtime.Gosched()
		}
		b.count *= 2
		return
	}
	time.Sleep(time.Microsecond)
}

// BoundedPause spins once and reports whether the caller should keep
// spinning (true) or fall back to a slower path (false) because the
// threshold has been crossed.
func (b *Backoff) BoundedPause() bool {
	for i := int32(0); i < b.count; i++ {
		runtime.Gosched()
	}
	if b.count < loopsBeforeYield {
		b.count *= 2
		return true
	}
	return false
}

// Reset rewinds the spin width back to its initial value.
func (b *Backoff) Reset() {
	b.count = 1
}
