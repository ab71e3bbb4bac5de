// Command queuebench is the benchmark orchestrator. Its subcommands
// sweep producer/consumer thread counts (run), drive a fixed-duration
// load test with periodic sampling (heavy), stress the bounded ring
// queue (bounded), and exercise sequence-counter wraparound
// (wrap-stress) against the queues in internal/queue.
package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

func main() {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if err := newRootCmd(mustLogger(level), level).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// mustLogger builds a production logger whose verbosity tracks level,
// so a --verbose flag processed after construction (cobra's
// PersistentPreRun runs after every subcommand closure has already
// captured the *zap.Logger) can still take effect by mutating the
// shared AtomicLevel instead of swapping out the logger itself.
func mustLogger(level zap.AtomicLevel) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	log, err := cfg.Build()
	if err != nil {
		// zap itself failed to construct; there is nothing smarter to do
		// than fall back to a logger that discards everything.
		return zap.NewNop()
	}
	return log
}
