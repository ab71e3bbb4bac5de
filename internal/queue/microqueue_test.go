package queue

import "testing"

func TestMicroQueue_SingleProducerSingleConsumer_InOrder(t *testing.T) {
	const stride = 1
	mq := newMicroQueue[uint32](0, stride, 4, 0)
	b := NewBackoff()

	const n = 200 // forces several ring growths past the initial length of 4
	for s := uint32(0); s < n; s++ {
		mq.push(s, s, b)
	}
	for s := uint32(0); s < n; s++ {
		var out uint32
		mq.pop(s, &out, b)
		if out != s {
			t.Fatalf("pop(%d): expected %d, got %d", s, s, out)
		}
	}
}

func TestMicroQueue_InterleavedPushPop(t *testing.T) {
	const stride = 1
	mq := newMicroQueue[uint32](0, stride, 4, 0)
	b := NewBackoff()

	var next uint32
	for s := uint32(0); s < 64; s++ {
		mq.push(s, s*2, b)
		if s%3 == 0 {
			var out uint32
			mq.pop(next, &out, b)
			if out != next*2 {
				t.Fatalf("pop(%d): expected %d, got %d", next, next*2, out)
			}
			next++
		}
	}
	for ; next < 64; next++ {
		var out uint32
		mq.pop(next, &out, b)
		if out != next*2 {
			t.Fatalf("pop(%d): expected %d, got %d", next, next*2, out)
		}
	}
}
