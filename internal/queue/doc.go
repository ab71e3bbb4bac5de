// Package queue implements a multi-producer/multi-consumer unbounded
// lock-free FIFO queue for fixed-size value-typed elements, plus a
// bounded single-ring variant that shares its reservation/publish
// discipline.
//
// The unbounded queue (StripedQueue) splits one logical FIFO sequence
// across a small power-of-two number of micro-queues ("stripes") to
// reduce false sharing and allocator contention. Each micro-queue owns
// a chain of rings ("circles") that grows geometrically when a
// producer wraps past the tail of the current ring. A two-phase pop
// reservation protocol lets a consumer detect emptiness without a
// compare-and-swap loop while still serialising consumers correctly
// across 32-bit sequence-counter wraparound.
//
// None of the types here block: every operation either completes or
// returns false/empty. Waiting under contention is bounded adaptive
// spinning (see Backoff), never a kernel wait.
package queue
