package bench

import (
	"runtime"
	"time"
)

// spinsBeforeSleep bounds how long a drain loop spins on an empty queue
// observation before falling back to a short sleep. The bench package
// keeps its own tiny backoff rather than importing the queue package's
// Backoff, since a consumer here is polling for "the run has ended", a
// coarser-grained wait than anything inside the queue itself.
const spinsBeforeSleep = 64

type spin struct{ n int }

func newSpin() *spin { return &spin{} }

func (s *spin) reset() { s.n = 0 }

// retry reports whether the caller should keep polling (true) or stop
// (false) because the queue has been empty long enough that the caller
// should treat the run as finished. The fixed-quota drain loop uses the
// false return to exit; the heavy-run loop ignores it and keeps polling
// until every producer has stopped.
func (s *spin) retry() bool {
	s.n++
	if s.n < spinsBeforeSleep {
		runtime.Gosched()
		return true
	}
	time.Sleep(time.Millisecond)
	return s.n < spinsBeforeSleep*4
}
