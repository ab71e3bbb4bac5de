package queue

import "sync/atomic"

// microQueue owns one stripe's chain of rings. Growth is entirely local:
// a producer that fills its current ring allocates and publishes the next
// one, doubling length, without ever touching another stripe.
type microQueue[T any] struct {
	stripeIndex uint32
	stride      uint32

	rings [maxRingChainLength]atomic.Pointer[ring[T]]

	writeCursor atomic.Uint32 // index into rings[], advanced by the owning producer path
	readCursor  atomic.Uint32 // index into rings[], advanced by the owning consumer path

	writeRing atomic.Pointer[ring[T]]
	readRing  atomic.Pointer[ring[T]]
}

// maxRingChainLength bounds the number of rings in a single stripe's
// chain: starting at length 16 with stride 4, 25 rings of doubling
// length together span 64*(2^25-1), just under 2^31 sequence numbers.
const maxRingChainLength = 25

// initialRingLengthDefault is the cell count of a stripe's first ring.
const initialRingLengthDefault = 16

func newMicroQueue[T any](stripeIndex, stride, initialLength, startIndex uint32) *microQueue[T] {
	mq := &microQueue[T]{stripeIndex: stripeIndex, stride: stride}
	// The stripe's first sequence is the first s >= startIndex with
	// s&(stride-1) == stripeIndex, matching StripedQueue's dispatch.
	base := startIndex + ((stripeIndex - startIndex) & (stride - 1))
	first := newRing[T](initialLength, stride, base)
	mq.rings[0].Store(first)
	mq.writeRing.Store(first)
	mq.readRing.Store(first)
	return mq
}

// push places value at sequence s, growing the ring chain as needed.
func (mq *microQueue[T]) push(s uint32, value T, b *Backoff) {
	for {
		r := mq.writeRing.Load()
		switch r.push(s, value, b) {
		case outcomeDone:
			b.Reset()
			return
		case outcomeAdvance:
			mq.growWrite(r)
			b.Reset()
			continue
		case outcomeChase:
			b.Pause()
		default: // outcomeRetry never returned by push
			b.Pause()
		}
	}
}

// pop takes the value at sequence s into *out, growing across the read
// side of the chain as needed.
func (mq *microQueue[T]) pop(s uint32, out *T, b *Backoff) {
	for {
		r := mq.readRing.Load()
		switch r.pop(s, out, b) {
		case outcomeDone:
			b.Reset()
			return
		case outcomeAdvance:
			mq.growRead(r)
			b.Reset()
		case outcomeChase:
			b.Pause()
		case outcomeRetry:
			b.Pause()
		}
	}
}

// growWrite is called by the single producer that observed its current
// write ring fill up (outcomeAdvance on push). It allocates the next ring
// at double length, publishes it into the index table with release
// ordering, then installs it as the active write ring.
func (mq *microQueue[T]) growWrite(full *ring[T]) {
	w := mq.writeCursor.Load()
	if next := mq.rings[w+1].Load(); next != nil {
		// Another goroutine racing the same boundary already grew it.
		mq.writeRing.Store(next)
		mq.writeCursor.Store(w + 1)
		return
	}
	nextLength := full.length * 2
	// The successor's base must be the sequence that triggered growth
	// (full.beginIndex.Load() + full.capacity), not full's original
	// baseIndex + capacity: if earlier half-reclamations already
	// advanced beginIndex, baseIndex undercounts by however many halves
	// were reclaimed, and the successor would map the triggering
	// sequence to a nonzero slot, permanently stranding its low half at
	// the pristine tag.
	nextBase := full.beginIndex.Load() + full.capacity
	next := newRing[T](nextLength, mq.stride, nextBase)

	if !mq.rings[w+1].CompareAndSwap(nil, next) {
		next = mq.rings[w+1].Load()
	}
	full.next.Store(next)
	mq.writeRing.Store(next)
	mq.writeCursor.Store(w + 1)
}

// growRead is called once a ring's reader has confirmed (via
// outcomeAdvance on pop) that the stalled writer already moved the chain
// forward. It waits for the successor ring to appear, releases the
// drained ring's backing array, then advances the read cursor.
func (mq *microQueue[T]) growRead(drained *ring[T]) {
	b := NewBackoff()
	var next *ring[T]
	for {
		next = drained.next.Load()
		if next != nil {
			break
		}
		b.Pause()
	}
	drained.release()
	r := mq.readCursor.Load()
	mq.readCursor.Store(r + 1)
	mq.readRing.Store(next)
}
