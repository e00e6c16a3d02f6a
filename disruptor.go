// Package disruptor provides a lock-free, single-consumer event-processing
// ring buffer in the style of the LMAX Disruptor.
//
// If for some reason you have Go code that needs to process messages at
// sub-microsecond latency, where shaving every nanosecond counts, then
// consider the disruptor pattern: producers claim monotonically increasing
// sequence numbers on a preallocated ring, and a single consumer goroutine
// drains published sequences in batches.
//
// For an unbounded single-producer/single-consumer variant built from a
// chain of fixed-size blocks, see the sibling package
// github.com/fluxring/disruptor/dynamic.
package disruptor

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fluxring/disruptor/internal/seq"
)

var (
	// ErrMissingHandler is returned by Build if no WithHandler stage was
	// configured.
	ErrMissingHandler = fmt.Errorf("disruptor: missing at least one handler stage")
)

// Builder assembles a Disruptor pipeline: one ring buffer, one Sequencer
// shared by however many producers call Publisher(), and one or more
// consumer stages wired in sequence — each stage's barrier depends on the
// previous stage's progress, so stage N never overtakes stage N-1. A
// single stage is the common case; a chain models a pipeline of dependent
// consumers (e.g. "journal, then replicate, then apply").
type Builder[T any] struct {
	capacity         int64
	claimOption      ClaimStrategyOption
	waitOption       WaitStrategyOption
	timeConfig       TimeConfig
	logger           *zap.Logger
	exceptionHandler ExceptionHandler[T]
	stages           []EventHandler[T]
}

// NewBuilder returns a Builder for a ring of capacity slots (rounded up to
// a power of two).
func NewBuilder[T any](capacity int64) *Builder[T] {
	return &Builder[T]{
		capacity:    capacity,
		claimOption: SingleThreaded,
		waitOption:  Blocking,
		timeConfig:  DefaultTimeConfig(),
		logger:      zap.NewNop(),
	}
}

// WithClaimStrategy selects how producers claim sequences. Use
// MultiThreaded or MultiThreadedLowContention when more than one goroutine
// will call Publisher() concurrently.
func (b *Builder[T]) WithClaimStrategy(option ClaimStrategyOption) *Builder[T] {
	b.claimOption = option
	return b
}

// WithWaitStrategy selects how the consumer stages wait for new sequences.
func (b *Builder[T]) WithWaitStrategy(option WaitStrategyOption) *Builder[T] {
	b.waitOption = option
	return b
}

// WithTimeConfig overrides the Sleep/MaxIdle durations shared by the wait
// strategy and every stage's idle tick.
func (b *Builder[T]) WithTimeConfig(cfg TimeConfig) *Builder[T] {
	b.timeConfig = cfg
	return b
}

// WithLogger attaches structured logging to every consumer stage.
func (b *Builder[T]) WithLogger(logger *zap.Logger) *Builder[T] {
	b.logger = logger
	return b
}

// WithExceptionHandler overrides the default no-op exception handler
// shared by every consumer stage.
func (b *Builder[T]) WithExceptionHandler(h ExceptionHandler[T]) *Builder[T] {
	b.exceptionHandler = h
	return b
}

// WithHandler appends a consumer stage. The first call's stage gates
// directly on the producer cursor; each subsequent call's stage gates on
// the previous one, forming a dependency chain.
func (b *Builder[T]) WithHandler(handler EventHandler[T]) *Builder[T] {
	b.stages = append(b.stages, handler)
	return b
}

// Build validates the configuration and wires the ring buffer, Sequencer,
// EventPublisher, and consumer stage chain together.
func (b *Builder[T]) Build() (*Disruptor[T], error) {
	if b.capacity <= 0 {
		return nil, ErrCapacity
	}
	if len(b.stages) == 0 {
		return nil, ErrMissingHandler
	}

	ring, err := NewRingBuffer[T](b.capacity)
	if err != nil {
		return nil, err
	}
	sequencer, err := NewSequencer(b.capacity,
		WithClaimStrategy(b.claimOption),
		WithWaitStrategy(b.waitOption),
		WithTimeConfig(b.timeConfig),
		WithSequencerLogger(b.logger),
	)
	if err != nil {
		return nil, err
	}

	var dependents []seq.Reader
	processors := make([]*BatchEventProcessor[T], 0, len(b.stages))
	for _, handler := range b.stages {
		barrier := sequencer.NewBarrier(dependents...)
		p := NewBatchEventProcessor(ring, barrier, handler,
			WithExceptionHandler(b.exceptionHandler),
			WithProcessorTimeConfig[T](b.timeConfig),
			WithLogger[T](b.logger),
		)
		processors = append(processors, p)
		dependents = []seq.Reader{p.Sequence()}
	}
	lastStage := processors[len(processors)-1]
	sequencer.SetGatingSequences(lastStage.Sequence())

	return &Disruptor[T]{
		ring:       ring,
		sequencer:  sequencer,
		publisher:  NewEventPublisher(sequencer, ring),
		processors: processors,
	}, nil
}

// Disruptor wires a ring buffer, its Sequencer, a producer-facing
// EventPublisher, and one or more dependent consumer stages.
type Disruptor[T any] struct {
	ring       *RingBuffer[T]
	sequencer  *Sequencer
	publisher  *EventPublisher[T]
	processors []*BatchEventProcessor[T]
}

// Publisher returns the EventPublisher producers use to claim, fill, and
// publish events. Safe for concurrent use by multiple goroutines only if
// built WithClaimStrategy(MultiThreaded) or
// WithClaimStrategy(MultiThreadedLowContention).
func (d *Disruptor[T]) Publisher() *EventPublisher[T] {
	return d.publisher
}

// Sequencer exposes the underlying Sequencer for advanced use (e.g.
// inspecting OccupiedCapacity, or building an additional barrier for a
// consumer stage not managed by this Disruptor).
func (d *Disruptor[T]) Sequencer() *Sequencer {
	return d.sequencer
}

// Run starts every consumer stage, each on its own goroutine, and blocks
// until all of them return (i.e. until Halt is called on each, or a
// handler forces one to stop). The first non-nil error among the stages
// that stopped due to a forced handler shutdown is returned.
func (d *Disruptor[T]) Run() error {
	errs := make(chan error, len(d.processors))
	for _, p := range d.processors {
		go func(p *BatchEventProcessor[T]) {
			errs <- p.Run()
		}(p)
	}
	var first error
	for range d.processors {
		if err := <-errs; err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Halt stops every consumer stage.
func (d *Disruptor[T]) Halt() {
	for _, p := range d.processors {
		p.Halt()
	}
}
