package bench

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestChecker_ConsistentWhenEverySlotSentAndReceivedOnce(t *testing.T) {
	c := NewChecker(4, 100, zap.NewNop())

	for stripe := uint32(0); stripe < 4; stripe++ {
		for slot := uint32(0); slot < 100; slot++ {
			p := c.Send(stripe, slot)
			c.Received(p)
		}
	}

	ok, violations := c.IsConsistent()
	require.True(t, ok)
	require.Empty(t, violations)
}

func TestChecker_FlagsUnreceivedSlot(t *testing.T) {
	c := NewChecker(1, 4, zap.NewNop())

	for slot := uint32(0); slot < 4; slot++ {
		p := c.Send(0, slot)
		if slot != 2 {
			c.Received(p)
		}
	}

	ok, violations := c.IsConsistent()
	require.False(t, ok)
	require.Len(t, violations, 1)
	require.Equal(t, uint32(2), violations[0].SlotID)
	require.Equal(t, uint32(1), violations[0].SendCount)
	require.Equal(t, uint32(0), violations[0].ReceiveCount)
}

func TestChecker_FlagsDuplicateReceive(t *testing.T) {
	c := NewChecker(1, 1, zap.NewNop())

	p := c.Send(0, 0)
	c.Received(p)
	c.Received(p)

	ok, violations := c.IsConsistent()
	require.False(t, ok)
	require.Len(t, violations, 1)
	require.Equal(t, uint32(2), violations[0].ReceiveCount)
}

func TestChecker_RunIDIsStableAcrossCalls(t *testing.T) {
	c := NewChecker(1, 1, zap.NewNop())
	require.Equal(t, c.RunID(), c.RunID())
	require.NotEmpty(t, c.RunID())
}

func TestChecker_ConcurrentSendReceiveIsConsistent(t *testing.T) {
	const stripes, perStripe = 8, 5000
	c := NewChecker(stripes, perStripe, zap.NewNop())

	var wg sync.WaitGroup
	wg.Add(stripes)
	for stripe := uint32(0); stripe < stripes; stripe++ {
		go func(stripe uint32) {
			defer wg.Done()
			for slot := uint32(0); slot < perStripe; slot++ {
				p := c.Send(stripe, slot)
				c.Received(p)
			}
		}(stripe)
	}
	wg.Wait()

	ok, violations := c.IsConsistent()
	require.True(t, ok)
	require.Empty(t, violations)
}

func TestConservationChecker_ConsistentWhenCountsMatch(t *testing.T) {
	c := NewConservationChecker()

	for i := uint32(0); i < 1000; i++ {
		p := c.Send(i%4, i)
		c.Received(p)
	}

	ok, sent, received := c.IsConsistent()
	require.True(t, ok)
	require.Equal(t, uint64(1000), sent)
	require.Equal(t, uint64(1000), received)
}

func TestConservationChecker_InconsistentWhenReceivedLags(t *testing.T) {
	c := NewConservationChecker()

	for i := uint32(0); i < 10; i++ {
		c.Send(0, i)
	}
	for i := uint32(0); i < 7; i++ {
		c.Received(Payload{})
	}

	ok, sent, received := c.IsConsistent()
	require.False(t, ok)
	require.Equal(t, uint64(10), sent)
	require.Equal(t, uint64(7), received)
}
