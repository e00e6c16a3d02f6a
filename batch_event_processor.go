package disruptor

import (
	"errors"

	"go.uber.org/zap"

	"github.com/fluxring/disruptor/internal/barrier"
	"github.com/fluxring/disruptor/internal/seq"
)

// EventHandler dispatches published events for a BatchEventProcessor.
// OnEvent is called at most once per sequence with a non-nil event, plus
// once per loop iteration with a nil event when MaxIdle is positive, whether
// or not that iteration delivered events — handlers must check for a nil
// event to distinguish the idle tick.
type EventHandler[T any] interface {
	OnStart()
	OnEvent(sequence int64, batchSize int64, endOfBatch bool, event *T) error
	OnShutdown()
}

// ExceptionHandler is invoked when OnEvent returns a non-nil error that
// isn't the cooperative alert signal. Returning a non-nil error from
// Handle forces the processor to stop instead of skipping the event.
type ExceptionHandler[T any] interface {
	Handle(err error, sequence int64, event *T) error
}

// NopExceptionHandler discards handler errors and lets the loop continue.
type NopExceptionHandler[T any] struct{}

// Handle always returns nil.
func (NopExceptionHandler[T]) Handle(err error, sequence int64, event *T) error { return nil }

const (
	stateNew = iota
	stateRunning
	stateHalted
)

// BatchEventProcessor is the single-goroutine consumer loop that drains a
// Sequencer's published sequences in batches and dispatches them to an
// EventHandler.
type BatchEventProcessor[T any] struct {
	ring             *RingBuffer[T]
	barrier          *barrier.SequenceBarrier
	handler          EventHandler[T]
	exceptionHandler ExceptionHandler[T]
	timeConfig       TimeConfig
	logger           *zap.Logger
	sequence         *seq.Sequence
	state            seq.Sequence
}

// ProcessorOption configures a BatchEventProcessor at construction.
type ProcessorOption[T any] func(*processorConfig[T])

type processorConfig[T any] struct {
	exceptionHandler ExceptionHandler[T]
	timeConfig       TimeConfig
	logger           *zap.Logger
}

// WithExceptionHandler overrides the default NopExceptionHandler.
func WithExceptionHandler[T any](h ExceptionHandler[T]) ProcessorOption[T] {
	return func(c *processorConfig[T]) { c.exceptionHandler = h }
}

// WithProcessorTimeConfig overrides the idle-tick MaxIdle duration used by
// the processor's barrier wait.
func WithProcessorTimeConfig[T any](cfg TimeConfig) ProcessorOption[T] {
	return func(c *processorConfig[T]) { c.timeConfig = cfg }
}

// WithLogger attaches a *zap.Logger; defaults to zap.NewNop().
func WithLogger[T any](logger *zap.Logger) ProcessorOption[T] {
	return func(c *processorConfig[T]) { c.logger = logger }
}

// NewBatchEventProcessor returns a processor draining ring via b,
// dispatching to handler.
func NewBatchEventProcessor[T any](ring *RingBuffer[T], b *barrier.SequenceBarrier, handler EventHandler[T], opts ...ProcessorOption[T]) *BatchEventProcessor[T] {
	cfg := processorConfig[T]{
		exceptionHandler: NopExceptionHandler[T]{},
		timeConfig:       DefaultTimeConfig(),
		logger:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	p := &BatchEventProcessor[T]{
		ring:             ring,
		barrier:          b,
		handler:          handler,
		exceptionHandler: cfg.exceptionHandler,
		timeConfig:       cfg.timeConfig,
		logger:           cfg.logger,
		sequence:         seq.NewSequence(seq.InitialValue),
	}
	p.state.Set(stateNew)
	return p
}

// Sequence returns the processor's own progress sequence, to be registered
// as a gating sequence on the Sequencer so producers don't overtake it.
func (p *BatchEventProcessor[T]) Sequence() *seq.Sequence {
	return p.sequence
}

// Run executes the consumer loop until Halt is called or the handler forces
// shutdown. It returns ErrAlreadyRunning if called while already running.
func (p *BatchEventProcessor[T]) Run() error {
	if !p.state.CompareAndSwap(stateNew, stateRunning) && !p.state.CompareAndSwap(stateHalted, stateRunning) {
		return ErrAlreadyRunning
	}
	p.logger.Debug("processor starting")
	p.handler.OnStart()

	var event *T
	next := p.sequence.Get() + 1

	for {
		available, err := p.barrier.WaitForTimeout(next, p.timeConfig.MaxIdle)
		if err != nil {
			// The only error a wait strategy returns is the alert signal.
			if !errors.Is(err, barrier.ErrAlert) {
				p.logger.Warn("unexpected wait error", zap.Error(err))
			}
			break
		}

		batchSize := available - next + 1
		for ; next <= available; next++ {
			event = p.ring.Get(next)
			if herr := p.handler.OnEvent(next, batchSize, next == available, event); herr != nil {
				if derr := p.dispatchError(herr, next, event); derr != nil {
					p.logger.Warn("exception handler forced shutdown", zap.Error(derr))
					p.sequence.Set(next)
					p.finish()
					return derr
				}
				// Skip just the failing event and resume waiting for the
				// next sequence, rather than draining the rest of this
				// batch under an exception handler that already fired.
				next++
				break
			}
		}

		if p.timeConfig.MaxIdle > 0 {
			if herr := p.handler.OnEvent(next, 0, false, nil); herr != nil {
				if derr := p.dispatchError(herr, next, nil); derr != nil {
					p.logger.Warn("exception handler forced shutdown", zap.Error(derr))
					p.sequence.Set(next - 1)
					p.finish()
					return derr
				}
			}
		}

		p.sequence.Set(next - 1)
	}

	p.finish()
	return nil
}

func (p *BatchEventProcessor[T]) dispatchError(err error, sequence int64, event *T) error {
	return p.exceptionHandler.Handle(err, sequence, event)
}

func (p *BatchEventProcessor[T]) finish() {
	p.handler.OnShutdown()
	p.state.Set(stateHalted)
	p.logger.Debug("processor stopped")
}

// Halt requests that Run return as soon as the current wait or batch
// finishes; it alerts the barrier so a blocked wait strategy returns
// promptly.
func (p *BatchEventProcessor[T]) Halt() {
	p.barrier.Alert()
}
