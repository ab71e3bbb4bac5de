package main

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rishavpaul/stripedqueue/internal/bench"
	"github.com/rishavpaul/stripedqueue/internal/queue"
)

func newWrapStressCmd(log *zap.Logger) *cobra.Command {
	var producers, consumers, opsPerProducer, stripes, ringSize int
	var margin int

	cmd := &cobra.Command{
		Use:   "wrap-stress",
		Short: "Seed the sequence counters near the uint32 boundary and exercise wraparound",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrapStress(log, wrapStressOptions{
				producers:      producers,
				consumers:      consumers,
				opsPerProducer: opsPerProducer,
				stripes:        uint32(stripes),
				ringSize:       uint32(ringSize),
				startIndex:     uint32(math.MaxUint32 - margin),
			})
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&producers, "producers", 4, "number of producer goroutines")
	flags.IntVar(&consumers, "consumers", 4, "number of consumer goroutines")
	flags.IntVar(&opsPerProducer, "ops", 500_000, "messages each producer pushes, crossing the wraparound boundary")
	flags.IntVar(&stripes, "stripes", 4, "StripeCount passed to the queue under test")
	flags.IntVar(&ringSize, "ring-size", 16, "InitialRingSize passed to the queue under test")
	flags.IntVar(&margin, "margin", 128, "how many sequence numbers below 2^32-1 to start from")

	return cmd
}

type wrapStressOptions struct {
	producers, consumers, opsPerProducer int
	stripes, ringSize                    uint32
	startIndex                           uint32
}

// runWrapStress seeds a StripedQueue's shared counters close enough to the
// uint32 boundary that an ordinary run crosses it, exercising the signed
// 32-bit difference comparisons in Pop and the sequence-to-local-index
// arithmetic in every stripe's rings. Uses the exact-delivery Checker
// rather than ConservationChecker since opsPerProducer is a fixed quota
// here.
func runWrapStress(log *zap.Logger, opts wrapStressOptions) error {
	cfg := queue.Config{
		StripeCount:     opts.stripes,
		InitialRingSize: opts.ringSize,
		StartIndex:      opts.startIndex,
	}
	q := queue.New[bench.Payload](cfg, log)
	checker := bench.NewChecker(uint32(opts.producers), uint32(opts.opsPerProducer), log)

	log.Info("starting wrap-stress run",
		zap.Uint32("start_index", opts.startIndex),
		zap.Int("producers", opts.producers),
		zap.Int("ops_per_producer", opts.opsPerProducer),
	)

	var wg sync.WaitGroup
	wg.Add(opts.producers)
	for p := 0; p < opts.producers; p++ {
		go func(p uint32) {
			defer wg.Done()
			for slot := uint32(0); slot < uint32(opts.opsPerProducer); slot++ {
				q.Push(checker.Send(p, slot))
			}
		}(uint32(p))
	}

	var popped uint64
	done := make(chan struct{})
	var cwg sync.WaitGroup
	cwg.Add(opts.consumers)
	for c := 0; c < opts.consumers; c++ {
		go func() {
			defer cwg.Done()
			var out bench.Payload
			for {
				if q.Pop(&out) {
					checker.Received(out)
					atomic.AddUint64(&popped, 1)
					continue
				}
				select {
				case <-done:
					return
				default:
				}
			}
		}()
	}

	wg.Wait()
	close(done)
	cwg.Wait()

	for {
		var out bench.Payload
		if !q.Pop(&out) {
			break
		}
		checker.Received(out)
		atomic.AddUint64(&popped, 1)
	}

	ok, violations := checker.IsConsistent()
	fmt.Printf("popped=%d final_size=%d consistent=%v\n", popped, q.Size(), ok)
	if !ok {
		log.Error("wrap-stress delivery check failed", zap.Int("violations", len(violations)))
		return fmt.Errorf("queuebench: wrap-stress run failed the delivery check with %d violations", len(violations))
	}
	return nil
}
