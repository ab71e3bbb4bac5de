package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rishavpaul/stripedqueue/internal/bench"
	"github.com/rishavpaul/stripedqueue/internal/queue"
)

func newRunCmd(log *zap.Logger) *cobra.Command {
	var times, repeat, minThreads, maxThreads, stripes, ringSize int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sweep producer/consumer thread counts over the striped queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(log, sweepOptions{
				times:      times,
				repeat:     repeat,
				minThreads: minThreads,
				maxThreads: maxThreads,
				stripes:    uint32(stripes),
				ringSize:   uint32(ringSize),
			})
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&times, "times", 250_000, "messages each producer pushes per trial")
	flags.IntVar(&repeat, "repeat", 3, "number of trials per thread-count configuration")
	flags.IntVar(&minThreads, "min-threads", 1, "smallest producer/consumer thread count (power of two)")
	flags.IntVar(&maxThreads, "max-threads", 8, "largest producer/consumer thread count (power of two)")
	flags.IntVar(&stripes, "stripes", 4, "StripeCount passed to the queue under test")
	flags.IntVar(&ringSize, "ring-size", 16, "InitialRingSize passed to the queue under test")

	return cmd
}

type sweepOptions struct {
	times, repeat, minThreads, maxThreads int
	stripes, ringSize                     uint32
}

// runSweep sweeps producer/consumer thread counts over powers of two
// from minThreads to maxThreads, running repeat trials at each, and
// prints one summary line per configuration plus every individual trial
// at debug level. Each trial's queue is registered in a Registry under
// its configuration label, looked back up once as a sanity check, and
// deleted when the trial ends.
func runSweep(log *zap.Logger, opts sweepOptions) error {
	registry := queue.NewRegistry[bench.Payload]()
	anyFailed := false

	for threads := opts.minThreads; threads <= opts.maxThreads; threads *= 2 {
		var trialResults []bench.Result

		for trial := 0; trial < opts.repeat; trial++ {
			label := fmt.Sprintf("threads=%d trial=%d/%d", threads, trial+1, opts.repeat)

			cfg := queue.Config{StripeCount: opts.stripes, InitialRingSize: opts.ringSize}
			q := queue.New[bench.Payload](cfg, log)
			registry.Register(label, q)

			checker := bench.NewChecker(uint32(threads), uint32(opts.times), log)
			driver := bench.NewDriver(q, checker, log, nil)

			result := driver.Run(bench.Config{
				Producers:   threads,
				Consumers:   threads,
				PerProducer: uint32(opts.times),
			})

			ok, violations := checker.IsConsistent()
			if !ok {
				anyFailed = true
				log.Error("delivery check failed", zap.String("config", label), zap.Int("violations", len(violations)))
			}

			log.Debug("trial complete", zap.String("config", label),
				zap.Uint64("pushed", result.Pushed), zap.Uint64("popped", result.Popped))
			trialResults = append(trialResults, result)

			if registry.Get(label) != q {
				log.Error("registry lookup did not return the trial's own queue", zap.String("config", label))
			}
			registry.Delete(label)
		}

		printMedian(fmt.Sprintf("threads=%-3d", threads), trialResults)
	}

	if anyFailed {
		return fmt.Errorf("queuebench: one or more configurations failed the delivery check")
	}
	return nil
}

// printMedian prints the median push/pop throughput across a
// configuration's trials, as a summary line in addition to the
// per-trial detail already logged at debug level above.
func printMedian(label string, results []bench.Result) {
	if len(results) == 0 {
		return
	}
	pushRates := make([]float64, len(results))
	popRates := make([]float64, len(results))
	for i, r := range results {
		pushRates[i] = ratePerMs(r.Pushed, r.PushElapsed)
		popRates[i] = ratePerMs(r.Popped, r.PopElapsed)
	}
	sort.Float64s(pushRates)
	sort.Float64s(popRates)
	mid := len(results) / 2

	fmt.Printf("%-28s push=%.2f msg/ms (median) pop=%.2f msg/ms (median)\n", label, pushRates[mid], popRates[mid])
}
