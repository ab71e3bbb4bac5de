package main

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rishavpaul/stripedqueue/internal/queue"
)

func newBoundedCmd(log *zap.Logger) *cobra.Command {
	var capacity, producers, consumers, opsPerProducer int

	cmd := &cobra.Command{
		Use:   "bounded",
		Short: "Stress-test the bounded ring queue under random interleaving",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBounded(log, boundedOptions{
				capacity:       uint32(capacity),
				producers:      producers,
				consumers:      consumers,
				opsPerProducer: opsPerProducer,
			})
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&capacity, "capacity", 32, "bounded queue capacity (power of two)")
	flags.IntVar(&producers, "producers", 4, "number of producer goroutines")
	flags.IntVar(&consumers, "consumers", 2, "number of consumer goroutines")
	flags.IntVar(&opsPerProducer, "ops", 100_000, "elements each producer pushes (a rejected push is retried)")

	return cmd
}

type boundedOptions struct {
	capacity                    uint32
	producers, consumers, opsPerProducer int
}

func runBounded(log *zap.Logger, opts boundedOptions) error {
	q := queue.NewBounded[uint64](opts.capacity)

	var pushed, popped, pushFailures uint64
	var wg sync.WaitGroup
	wg.Add(opts.producers)
	for p := 0; p < opts.producers; p++ {
		go func(p int) {
			defer wg.Done()
			for i := 0; i < opts.opsPerProducer; i++ {
				v := uint64(p)<<32 | uint64(i)
				for !q.Push(v) {
					atomic.AddUint64(&pushFailures, 1)
					time.Sleep(time.Microsecond)
				}
				atomic.AddUint64(&pushed, 1)
			}
		}(p)
	}

	done := make(chan struct{})
	var cwg sync.WaitGroup
	cwg.Add(opts.consumers)
	for c := 0; c < opts.consumers; c++ {
		go func() {
			defer cwg.Done()
			var out uint64
			for {
				if q.Pop(&out) {
					atomic.AddUint64(&popped, 1)
					continue
				}
				select {
				case <-done:
					return
				default:
					time.Sleep(time.Microsecond)
				}
			}
		}()
	}

	wg.Wait()
	close(done)
	cwg.Wait()

	for {
		var out uint64
		if !q.Pop(&out) {
			break
		}
		atomic.AddUint64(&popped, 1)
	}

	log.Info("bounded queue run complete",
		zap.Uint64("pushed", pushed),
		zap.Uint64("popped", popped),
		zap.Uint64("push_failures_observed", pushFailures),
	)
	fmt.Printf("pushed=%d popped=%d push_failures_observed=%d\n", pushed, popped, pushFailures)

	if pushed != popped {
		return fmt.Errorf("queuebench: bounded run lost or duplicated elements: pushed=%d popped=%d", pushed, popped)
	}
	return nil
}
