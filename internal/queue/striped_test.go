package queue

import (
	"sync"
	"testing"

	"go.uber.org/zap"
)

func TestStripedQueue_SingleProducerSingleConsumer_InOrder(t *testing.T) {
	q := New[uint32](DefaultConfig(), zap.NewNop())

	const n = 1_000_000
	for i := uint32(0); i < n; i++ {
		q.Push(i)
	}
	for i := uint32(0); i < n; i++ {
		var out uint32
		if !q.Pop(&out) {
			t.Fatalf("pop %d: expected a value, queue reported empty", i)
		}
		if out != i {
			t.Fatalf("pop %d: expected %d, got %d", i, i, out)
		}
	}
	var out uint32
	if q.Pop(&out) {
		t.Fatalf("expected empty queue after draining all pushes, got %d", out)
	}
}

func TestStripedQueue_PopOnEmptyReturnsFalse(t *testing.T) {
	q := New[uint32](DefaultConfig(), zap.NewNop())
	var out uint32
	if q.Pop(&out) {
		t.Fatal("expected Pop on empty queue to return false")
	}
}

func TestStripedQueue_ConcurrentProducersConsumers_Conservation(t *testing.T) {
	q := New[uint64](DefaultConfig(), zap.NewNop())

	const producers = 8
	const perProducer = 25_000
	const total = producers * perProducer

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(uint64(p)<<32 | uint64(i))
			}
		}(p)
	}
	wg.Wait()

	seen := make(map[uint64]bool, total)
	var mu sync.Mutex
	var consumers sync.WaitGroup
	consumers.Add(producers)
	for c := 0; c < producers; c++ {
		go func() {
			defer consumers.Done()
			for {
				var out uint64
				if !q.Pop(&out) {
					return
				}
				mu.Lock()
				if seen[out] {
					t.Errorf("duplicate delivery of %#x", out)
				}
				seen[out] = true
				mu.Unlock()
			}
		}()
	}
	consumers.Wait()

	// Drain any stragglers left by the racy termination check above.
	for {
		var out uint64
		if !q.Pop(&out) {
			break
		}
		mu.Lock()
		seen[out] = true
		mu.Unlock()
	}

	if len(seen) != total {
		t.Fatalf("conservation violated: pushed %d, observed %d distinct deliveries", total, len(seen))
	}
}

func TestStripedQueue_WrapAroundStartIndex(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StartIndex = 0xFFFF_FF80
	q := New[uint32](cfg, zap.NewNop())

	const n = 512
	for i := uint32(0); i < n; i++ {
		q.Push(i)
	}
	for i := uint32(0); i < n; i++ {
		var out uint32
		if !q.Pop(&out) {
			t.Fatalf("pop %d: expected a value across the sequence wraparound", i)
		}
		if out != i {
			t.Fatalf("pop %d: expected %d, got %d", i, i, out)
		}
	}
}

func TestStripedQueue_PopCASAgreesWithFastPath(t *testing.T) {
	q := New[uint32](DefaultConfig(), zap.NewNop())
	for i := uint32(0); i < 100; i++ {
		q.Push(i)
	}
	for i := uint32(0); i < 100; i++ {
		var out uint32
		if !q.PopCAS(&out) {
			t.Fatalf("PopCAS %d: expected a value", i)
		}
		if out != i {
			t.Fatalf("PopCAS %d: expected %d, got %d", i, i, out)
		}
	}
}

func TestStripedQueue_SizeIsAdvisory(t *testing.T) {
	q := New[uint32](DefaultConfig(), zap.NewNop())
	if q.Size() != 0 {
		t.Fatalf("expected size 0 on an empty queue, got %d", q.Size())
	}
	for i := uint32(0); i < 10; i++ {
		q.Push(i)
	}
	if q.Size() != 10 {
		t.Fatalf("expected size 10, got %d", q.Size())
	}
}

func TestStripedQueue_PanicsOnNonPowerOfTwoStripeCount(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for non-power-of-two StripeCount")
		}
	}()
	cfg := DefaultConfig()
	cfg.StripeCount = 3
	New[uint32](cfg, zap.NewNop())
}
