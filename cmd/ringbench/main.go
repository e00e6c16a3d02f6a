// Command ringbench wires a disruptor pipeline end to end and reports a
// rough throughput sample. It exists as a runnable smoke test for the
// library, not as a rigorous benchmark harness.
package main

import (
	"flag"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/fluxring/disruptor"
)

type event struct {
	sequence int64
}

type counterHandler struct {
	count atomic.Int64
}

func (h *counterHandler) OnStart()    {}
func (h *counterHandler) OnShutdown() {}

func (h *counterHandler) OnEvent(sequence int64, batchSize int64, endOfBatch bool, e *event) error {
	if e == nil {
		return nil
	}
	h.count.Add(1)
	return nil
}

func main() {
	var (
		capacity  = flag.Int64("capacity", 1<<16, "ring buffer capacity, rounded up to a power of two")
		producers = flag.Int("producers", 1, "number of concurrent producer goroutines")
		events    = flag.Int64("events", 1<<20, "total events to publish across all producers")
		claim     = flag.String("claim", "single", "claim strategy: single, multi, multi-low-contention")
		wait      = flag.String("wait", "busy-spin", "wait strategy: blocking, sleeping, yielding, busy-spin")
		verbose   = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	logger := zap.NewNop()
	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			log.Fatalf("build logger: %v", err)
		}
		logger = l
	}

	claimOption, err := parseClaimStrategy(*claim)
	if err != nil {
		log.Fatal(err)
	}
	waitOption, err := parseWaitStrategy(*wait)
	if err != nil {
		log.Fatal(err)
	}
	if *producers > 1 && claimOption == disruptor.SingleThreaded {
		log.Fatal("-producers > 1 requires -claim=multi or -claim=multi-low-contention")
	}

	handler := &counterHandler{}
	d, err := disruptor.NewBuilder[event](*capacity).
		WithClaimStrategy(claimOption).
		WithWaitStrategy(waitOption).
		WithLogger(logger).
		WithHandler(handler).
		Build()
	if err != nil {
		log.Fatalf("build disruptor: %v", err)
	}

	perProducer := *events / int64(*producers)
	var producerWg sync.WaitGroup
	start := time.Now()
	for p := 0; p < *producers; p++ {
		producerWg.Add(1)
		go func() {
			defer producerWg.Done()
			publisher := d.Publisher()
			for i := int64(0); i < perProducer; i++ {
				publisher.PublishEvent(disruptor.TranslatorFunc[event](func(sequence int64, slot *event) {
					slot.sequence = sequence
				}))
			}
		}()
	}

	go func() {
		producerWg.Wait()
		d.Halt()
	}()

	if err := d.Run(); err != nil {
		log.Fatalf("run disruptor: %v", err)
	}
	elapsed := time.Since(start)

	total := handler.count.Load()
	fmt.Printf("consumed %d events in %s (%.0f events/sec)\n", total, elapsed, float64(total)/elapsed.Seconds())
}

func parseClaimStrategy(s string) (disruptor.ClaimStrategyOption, error) {
	switch s {
	case "single":
		return disruptor.SingleThreaded, nil
	case "multi":
		return disruptor.MultiThreaded, nil
	case "multi-low-contention":
		return disruptor.MultiThreadedLowContention, nil
	default:
		return 0, fmt.Errorf("unknown claim strategy %q", s)
	}
}

func parseWaitStrategy(s string) (disruptor.WaitStrategyOption, error) {
	switch s {
	case "blocking":
		return disruptor.Blocking, nil
	case "sleeping":
		return disruptor.Sleeping, nil
	case "yielding":
		return disruptor.Yielding, nil
	case "busy-spin":
		return disruptor.BusySpin, nil
	default:
		return 0, fmt.Errorf("unknown wait strategy %q", s)
	}
}
