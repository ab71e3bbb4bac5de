package bench

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rishavpaul/stripedqueue/internal/queue"
)

func TestDriver_RunFixed_DeliversExactlyPerProducerPerConsumer(t *testing.T) {
	q := queue.New[Payload](queue.Config{StripeCount: 4, InitialRingSize: 8}, zap.NewNop())
	checker := NewChecker(4, 2000, zap.NewNop())
	driver := NewDriver(q, checker, zap.NewNop(), nil)

	result := driver.Run(Config{Producers: 4, Consumers: 4, PerProducer: 2000})

	require.Equal(t, uint64(8000), result.Pushed)
	require.Equal(t, uint64(8000), result.Popped)

	ok, violations := checker.IsConsistent()
	require.True(t, ok, "violations: %v", violations)
}

func TestDriver_RunFixed_SingleProducerSingleConsumer(t *testing.T) {
	q := queue.New[Payload](queue.DefaultConfig(), zap.NewNop())
	checker := NewChecker(1, 500, zap.NewNop())
	driver := NewDriver(q, checker, zap.NewNop(), nil)

	result := driver.Run(Config{Producers: 1, Consumers: 1, PerProducer: 500})

	require.Equal(t, uint64(500), result.Pushed)
	require.Equal(t, uint64(500), result.Popped)
	ok, _ := checker.IsConsistent()
	require.True(t, ok)
}

func TestDriver_RunHeavy_ConservesSentAndReceivedWithinDuration(t *testing.T) {
	q := queue.New[Payload](queue.Config{StripeCount: 2, InitialRingSize: 8}, zap.NewNop())
	checker := NewConservationChecker()
	driver := NewDriver(q, checker, zap.NewNop(), nil)

	start := time.Now()
	result := driver.Run(Config{
		Producers:            2,
		Consumers:             2,
		Heavy:                 50 * time.Millisecond,
		FlowControlThreshold:  1 << 16,
		SampleInterval:        10 * time.Millisecond,
	})
	elapsed := time.Since(start)

	require.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	require.NotEmpty(t, result.Samples)

	ok, sent, received := checker.IsConsistent()
	require.True(t, ok)
	require.Equal(t, result.Pushed, sent)
	require.Equal(t, result.Popped, received)
}

func TestDriver_RunHeavy_NearZeroFlowControlThresholdTerminatesAndConserves(t *testing.T) {
	q := queue.New[Payload](queue.Config{StripeCount: 1, InitialRingSize: 8}, zap.NewNop())
	checker := NewConservationChecker()
	driver := NewDriver(q, checker, zap.NewNop(), nil)

	// A near-zero threshold forces producers into statusWait almost
	// immediately; the run should still terminate cleanly and conserve.
	result := driver.Run(Config{
		Producers:            1,
		Consumers:             1,
		Heavy:                 30 * time.Millisecond,
		FlowControlThreshold:  1,
		SampleInterval:        5 * time.Millisecond,
	})

	ok, sent, received := checker.IsConsistent()
	require.True(t, ok)
	require.Equal(t, result.Pushed, sent)
	require.Equal(t, result.Popped, received)
}
