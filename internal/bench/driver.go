package bench

import (
	"context"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// runStatus is a Ready/Wait/Finish tri-state flag used to flow-control
// producers in the heavy-run variant, expressed as a plain int32
// switched atomically instead of a virtual-dispatch enum.
type runStatus int32

const (
	statusReady runStatus = iota
	statusWait
	statusFinish
)

// TargetQueue is the subset of StripedQueue's surface the driver needs.
// Declaring it as an interface (rather than importing the concrete
// queue package type) lets the same driver drive both the striped
// queue and any comparison queue with an equivalent non-blocking
// contract.
type TargetQueue interface {
	Push(value Payload)
	Pop(out *Payload) bool
	Size() uint32
}

// Config configures one driver run.
type Config struct {
	Producers   int
	Consumers   int
	PerProducer uint32 // messages each producer sends; ignored when Heavy is set

	// Heavy, when non-zero, switches the driver into the timed variant:
	// producers push forever and are flow-controlled by
	// FlowControlThreshold; the run stops after Heavy elapses.
	Heavy                time.Duration
	FlowControlThreshold uint32
	SampleInterval       time.Duration
}

// ThroughputSample is one periodic measurement taken during a run: the
// queue's approximate size at that moment. It holds no push or pop rate.
type ThroughputSample struct {
	At   time.Duration
	Size uint32
}

// Result summarizes one completed run.
type Result struct {
	Pushed      uint64
	Popped      uint64
	PushElapsed time.Duration
	PopElapsed  time.Duration
	Samples     []ThroughputSample

	// MetricsAddr is the "host:port" a /metrics endpoint listened on for
	// this run, or "" when the driver was built without a registry.
	MetricsAddr string
}

// Driver spawns producer/consumer goroutines against a target queue,
// routes every push/pop through a Tally, and measures throughput.
type Driver struct {
	queue   TargetQueue
	checker Tally
	log     *zap.Logger

	metricsReg   *prometheus.Registry
	sizeGauge    prometheus.Gauge
	pushCounter  prometheus.Counter
	popCounter   prometheus.Counter
	retryCounter prometheus.Counter

	status atomic.Int32
}

// NewDriver constructs a Driver targeting queue, tallying through
// checker. metricsReg may be nil, in which case the driver records no
// Prometheus metrics and serves no /metrics endpoint (used outside the
// heavy-run subcommand).
func NewDriver(queue TargetQueue, checker Tally, log *zap.Logger, metricsReg *prometheus.Registry) *Driver {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Driver{queue: queue, checker: checker, log: log}
	if metricsReg != nil {
		d.metricsReg = metricsReg
		d.sizeGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "queuebench_queue_size",
			Help: "Approximate size of the queue under test, sampled periodically.",
		})
		d.pushCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queuebench_pushed_total",
			Help: "Messages pushed into the queue under test.",
		})
		d.popCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queuebench_popped_total",
			Help: "Messages popped from the queue under test.",
		})
		d.retryCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queuebench_pop_retries_total",
			Help: "Pop attempts that observed the queue empty and retried.",
		})
		metricsReg.MustRegister(d.sizeGauge, d.pushCounter, d.popCounter, d.retryCounter)
	}
	return d
}

func (d *Driver) incPush() {
	if d.pushCounter != nil {
		d.pushCounter.Inc()
	}
}

func (d *Driver) incPop() {
	if d.popCounter != nil {
		d.popCounter.Inc()
	}
}

func (d *Driver) incRetry() {
	if d.retryCounter != nil {
		d.retryCounter.Inc()
	}
}

// Run spawns cfg.Producers producer goroutines and cfg.Consumers
// consumer goroutines, waits for completion, and returns a Result.
func (d *Driver) Run(cfg Config) Result {
	if cfg.Heavy > 0 {
		return d.runHeavy(cfg)
	}
	return d.runFixed(cfg)
}

// runFixed is the bounded-quota variant: each producer pushes exactly
// cfg.PerProducer messages, each consumer pops until the queue has been
// observed empty.
func (d *Driver) runFixed(cfg Config) Result {
	var pushed, popped uint64
	var wg sync.WaitGroup

	pushStart := time.Now()
	wg.Add(cfg.Producers)
	for p := 0; p < cfg.Producers; p++ {
		go func(stripeID uint32) {
			defer wg.Done()
			for slot := uint32(0); slot < cfg.PerProducer; slot++ {
				d.queue.Push(d.checker.Send(stripeID, slot))
				atomic.AddUint64(&pushed, 1)
				d.incPush()
			}
		}(uint32(p))
	}
	wg.Wait()
	pushElapsed := time.Since(pushStart)

	popStart := time.Now()
	var cwg sync.WaitGroup
	cwg.Add(cfg.Consumers)
	for c := 0; c < cfg.Consumers; c++ {
		go func() {
			defer cwg.Done()
			var out Payload
			b := newSpin()
			for {
				if d.queue.Pop(&out) {
					d.checker.Received(out)
					atomic.AddUint64(&popped, 1)
					d.incPop()
					b.reset()
					continue
				}
				d.incRetry()
				if !b.retry() {
					return
				}
			}
		}()
	}
	cwg.Wait()
	popElapsed := time.Since(popStart)

	return Result{
		Pushed:      atomic.LoadUint64(&pushed),
		Popped:      atomic.LoadUint64(&popped),
		PushElapsed: pushElapsed,
		PopElapsed:  popElapsed,
	}
}

// runHeavy is the timed variant: producers push forever, flow-controlled
// by FlowControlThreshold, until Heavy elapses; consumers keep draining
// until every producer has returned and the queue is observed empty.
func (d *Driver) runHeavy(cfg Config) Result {
	d.status.Store(int32(statusReady))
	var pushed, popped uint64
	stop := make(chan struct{})
	producersDone := make(chan struct{})

	var metricsAddr string
	if d.metricsReg != nil {
		addr, stopMetrics := d.serveMetrics()
		metricsAddr = addr
		defer stopMetrics()
	}

	var wg sync.WaitGroup
	wg.Add(cfg.Producers)
	for p := 0; p < cfg.Producers; p++ {
		go func(stripeID uint32) {
			defer wg.Done()
			var slot uint32
			for {
				switch runStatus(d.status.Load()) {
				case statusFinish:
					return
				case statusWait:
					time.Sleep(time.Millisecond)
				default:
					d.queue.Push(d.checker.Send(stripeID, slot))
					slot++
					atomic.AddUint64(&pushed, 1)
					d.incPush()
				}
			}
		}(uint32(p))
	}

	var cwg sync.WaitGroup
	cwg.Add(cfg.Consumers)
	for c := 0; c < cfg.Consumers; c++ {
		go func() {
			defer cwg.Done()
			var out Payload
			b := newSpin()
			for {
				if d.queue.Pop(&out) {
					d.checker.Received(out)
					atomic.AddUint64(&popped, 1)
					d.incPop()
					b.reset()
					continue
				}
				select {
				case <-producersDone:
					return
				default:
				}
				d.incRetry()
				b.retry()
			}
		}()
	}

	samplesCh := d.sampleLoop(cfg, stop)

	time.Sleep(cfg.Heavy)
	// Stop the sampler before setting Finish, so a late tick cannot
	// overwrite Finish with Ready or Wait.
	close(stop)
	samples := <-samplesCh
	d.status.Store(int32(statusFinish))
	wg.Wait()
	close(producersDone)
	cwg.Wait()

	return Result{
		Pushed:      atomic.LoadUint64(&pushed),
		Popped:      atomic.LoadUint64(&popped),
		Samples:     samples,
		MetricsAddr: metricsAddr,
	}
}

// serveMetrics starts an ephemeral HTTP server exposing d.metricsReg on
// /metrics and returns its listen address plus a func that shuts it
// down. A heavy run has no long-lived, explicitly-configured server to
// mount onto, so this spins up its own loopback listener on an
// OS-assigned port for the run's duration instead.
func (d *Driver) serveMetrics() (addr string, stop func()) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		d.log.Warn("metrics listener failed, heavy run continues without /metrics", zap.Error(err))
		return "", func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(d.metricsReg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux}

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			d.log.Warn("metrics server stopped unexpectedly", zap.Error(err))
		}
	}()

	d.log.Info("metrics endpoint listening", zap.String("addr", ln.Addr().String()))
	return ln.Addr().String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// sampleLoop periodically records queue size and toggles the flow-control
// status flag. It runs in its own goroutine and delivers the collected
// samples on the returned channel once stop is closed.
func (d *Driver) sampleLoop(cfg Config, stop <-chan struct{}) <-chan []ThroughputSample {
	interval := cfg.SampleInterval
	if interval <= 0 {
		interval = time.Second
	}
	result := make(chan []ThroughputSample, 1)

	go func() {
		var samples []ThroughputSample
		start := time.Now()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				result <- samples
				return
			case <-ticker.C:
				size := d.queue.Size()
				if d.sizeGauge != nil {
					d.sizeGauge.Set(float64(size))
				}
				samples = append(samples, ThroughputSample{At: time.Since(start), Size: size})

				if size > cfg.FlowControlThreshold {
					d.status.Store(int32(statusWait))
				} else {
					d.status.Store(int32(statusReady))
				}
			}
		}
	}()
	return result
}
