package queue

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// Config configures a StripedQueue at construction time.
type Config struct {
	// StripeCount is the number of independent micro-queues; must be a
	// power of two. Default 4.
	StripeCount uint32
	// InitialRingSize is the cell count of each stripe's first ring;
	// must be a power of two. Default 16.
	InitialRingSize uint32
	// StartIndex seeds the shared sequence counters. Default 0; set to
	// a value near the 32-bit wraparound boundary to exercise it.
	StartIndex uint32
}

// DefaultConfig returns the configuration used when no override is given.
func DefaultConfig() Config {
	return Config{
		StripeCount:     4,
		InitialRingSize: initialRingLengthDefault,
		StartIndex:      0,
	}
}

func (c Config) validate() {
	if c.StripeCount == 0 || c.StripeCount&(c.StripeCount-1) != 0 {
		panic("queue: StripeCount must be a power of two")
	}
	if c.InitialRingSize < 2 || c.InitialRingSize&(c.InitialRingSize-1) != 0 {
		panic("queue: InitialRingSize must be a power of two >= 2")
	}
}

// StripedQueue is an unbounded MPMC FIFO queue for fixed-size values of
// type T. It never blocks: Push always succeeds, Pop returns false on an
// empty observation rather than waiting. One shared set of counters
// issues the sequence numbers for every push and pop; the N independent
// micro-queues spread the slot writes and ring growth, not the counter
// traffic.
type StripedQueue[T any] struct {
	stripeMask uint32
	stripes    []*microQueue[T]

	preWrite atomic.Uint32
	preRead  atomic.Uint32
	read     atomic.Uint32

	log *zap.Logger
}

// New constructs a StripedQueue with the given configuration. Panics if
// cfg.StripeCount or cfg.InitialRingSize is not a power of two.
func New[T any](cfg Config, log *zap.Logger) *StripedQueue[T] {
	cfg.validate()
	if log == nil {
		log = zap.NewNop()
	}

	q := &StripedQueue[T]{
		stripeMask: cfg.StripeCount - 1,
		stripes:    make([]*microQueue[T], cfg.StripeCount),
		log:        log,
	}
	q.preWrite.Store(cfg.StartIndex)
	q.preRead.Store(cfg.StartIndex)
	q.read.Store(cfg.StartIndex)

	for i := uint32(0); i < cfg.StripeCount; i++ {
		q.stripes[i] = newMicroQueue[T](i, cfg.StripeCount, cfg.InitialRingSize, cfg.StartIndex)
	}

	log.Debug("striped queue constructed",
		zap.Uint32("stripe_count", cfg.StripeCount),
		zap.Uint32("initial_ring_size", cfg.InitialRingSize),
		zap.Uint32("start_index", cfg.StartIndex),
	)
	return q
}

// Push enqueues value and always succeeds.
func (q *StripedQueue[T]) Push(value T) {
	s := q.preWrite.Add(1) - 1
	b := NewBackoff()
	q.stripes[s&q.stripeMask].push(s, value, b)
}

// Pop dequeues the oldest available value using the fast-path
// reservation protocol: a consumer reserves a tentative sequence via
// pre_read, confirms a producer has already committed past it by
// comparing against pre_write with a signed 32-bit difference, and only
// then commits the read sequence. This avoids a CAS loop on the common
// path at the cost of a transient over-reservation that is immediately
// undone on an empty observation.
func (q *StripedQueue[T]) Pop(out *T) bool {
	tentative := q.preRead.Add(1) - 1
	writeMark := q.preWrite.Load()

	if int32(writeMark-tentative) <= 0 {
		q.preRead.Add(^uint32(0)) // undo: fetch-and-decrement
		return false
	}

	s := q.read.Add(1) - 1
	b := NewBackoff()
	q.stripes[s&q.stripeMask].pop(s, out, b)
	return true
}

// PopCAS is an alternate pop implementation using a compare-and-swap
// retry loop instead of the pre_read reservation counter. Provided for
// comparison against the fast-path variant; both satisfy the same
// ordering invariants.
func (q *StripedQueue[T]) PopCAS(out *T) bool {
	for {
		r := q.read.Load()
		w := q.preWrite.Load()
		if int32(w-r) <= 0 {
			return false
		}
		if q.read.CompareAndSwap(r, r+1) {
			b := NewBackoff()
			q.stripes[r&q.stripeMask].pop(r, out, b)
			return true
		}
	}
}

// Size returns an approximate, unsigned, monotone-per-stripe element
// count. It is a raw difference of two independently loaded counters and
// may transiently overshoot actual occupancy; treat it as advisory only.
func (q *StripedQueue[T]) Size() uint32 {
	return q.preWrite.Load() - q.read.Load()
}
