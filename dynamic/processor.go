package dynamic

import (
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
)

// EventHandler dispatches dequeued values for a Processor. OnEvent is
// called once per dequeued value, plus, when MaxIdle ticking is enabled,
// once with a zero value and ok=false after every drained batch and after
// every backed-off empty poll.
type EventHandler[T any] interface {
	OnStart()
	OnEvent(sequence int64, batchSize int64, endOfBatch bool, event *T, ok bool) error
	OnShutdown()
}

// ExceptionHandler is invoked when OnEvent returns a non-nil error.
// Returning a non-nil error from Handle forces the processor to stop.
type ExceptionHandler[T any] interface {
	Handle(err error, sequence int64, event *T) error
}

// NopExceptionHandler discards handler errors and lets the loop continue.
type NopExceptionHandler[T any] struct{}

// Handle always returns nil.
func (NopExceptionHandler[T]) Handle(err error, sequence int64, event *T) error { return nil }

// WaitOption selects how a Processor waits when the queue is empty. Only
// Sleeping and Yielding are meaningfully distinct; Blocking and BusySpin
// both degrade to Yielding, since the dynamic queue has no cursor/condvar
// to block on and a real busy-spin here would starve the single producer
// goroutine on most schedulers.
type WaitOption int

const (
	Sleeping WaitOption = iota
	Yielding
	Blocking // degrades to Yielding
	BusySpin // degrades to Yielding
)

const maxRetries = 1

// Processor is the single-consumer loop draining a dynamic.RingBuffer.
type Processor[T any] struct {
	ring             *RingBuffer[T]
	waitOption       WaitOption
	handler          EventHandler[T]
	exceptionHandler ExceptionHandler[T]
	maxIdle          time.Duration
	logger           *zap.Logger

	mu      sync.Mutex
	running bool
}

// ProcessorOption configures a Processor at construction.
type ProcessorOption[T any] func(*processorConfig[T])

type processorConfig[T any] struct {
	exceptionHandler ExceptionHandler[T]
	maxIdle          time.Duration
	logger           *zap.Logger
}

// WithExceptionHandler overrides the default NopExceptionHandler.
func WithExceptionHandler[T any](h ExceptionHandler[T]) ProcessorOption[T] {
	return func(c *processorConfig[T]) { c.exceptionHandler = h }
}

// WithMaxIdle sets the idle-tick interval; 0 disables ticking. Defaults to
// 10µs, matching the fixed pipeline's default.
func WithMaxIdle[T any](d time.Duration) ProcessorOption[T] {
	return func(c *processorConfig[T]) { c.maxIdle = d }
}

// WithLogger attaches a *zap.Logger; defaults to zap.NewNop().
func WithLogger[T any](logger *zap.Logger) ProcessorOption[T] {
	return func(c *processorConfig[T]) { c.logger = logger }
}

// NewProcessor returns a Processor draining ring with waitOption's policy,
// dispatching to handler.
func NewProcessor[T any](ring *RingBuffer[T], waitOption WaitOption, handler EventHandler[T], opts ...ProcessorOption[T]) *Processor[T] {
	cfg := processorConfig[T]{
		exceptionHandler: NopExceptionHandler[T]{},
		maxIdle:          10 * time.Microsecond,
		logger:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if waitOption == Blocking || waitOption == BusySpin {
		waitOption = Yielding
	}
	return &Processor[T]{
		ring:             ring,
		waitOption:       waitOption,
		handler:          handler,
		exceptionHandler: cfg.exceptionHandler,
		maxIdle:          cfg.maxIdle,
		logger:           cfg.logger,
	}
}

func (p *Processor[T]) wait(retries *int) bool {
	if *retries > 0 {
		*retries--
		return false
	}
	switch p.waitOption {
	case Sleeping:
		time.Sleep(p.maxIdle)
	default:
		runtime.Gosched()
	}
	return true
}

// Run executes the consumer loop until Halt is called. It returns
// ErrAlreadyRunning if called while already running.
func (p *Processor[T]) Run() error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrAlreadyRunning
	}
	p.running = true
	p.mu.Unlock()

	p.logger.Debug("dynamic processor starting")
	p.handler.OnStart()

	var sequence int64
	retries := maxRetries

	for {
		available := p.ring.OccupiedApprox()
		if available == 0 {
			backedOff := p.wait(&retries)
			if backedOff {
				retries = maxRetries
				p.mu.Lock()
				running := p.running
				p.mu.Unlock()
				if !running {
					break
				}
				if p.maxIdle > 0 {
					var zero T
					if herr := p.handler.OnEvent(sequence, 0, false, &zero, false); herr != nil {
						if derr := p.exceptionHandler.Handle(herr, sequence, &zero); derr != nil {
							p.logger.Warn("exception handler forced shutdown", zap.Error(derr))
							p.finish()
							return derr
						}
					}
				}
			}
			continue
		}

		drained := int64(0)
		for drained < available {
			value, ok := p.ring.Dequeue()
			if !ok {
				break
			}
			if herr := p.handler.OnEvent(sequence, available, drained+1 == available, &value, true); herr != nil {
				if derr := p.exceptionHandler.Handle(herr, sequence, &value); derr != nil {
					p.logger.Warn("exception handler forced shutdown", zap.Error(derr))
					p.finish()
					return derr
				}
			}
			sequence++
			drained++
		}
		retries = maxRetries

		if p.maxIdle > 0 {
			var zero T
			if herr := p.handler.OnEvent(sequence, 0, false, &zero, false); herr != nil {
				if derr := p.exceptionHandler.Handle(herr, sequence, &zero); derr != nil {
					p.logger.Warn("exception handler forced shutdown", zap.Error(derr))
					p.finish()
					return derr
				}
			}
		}
	}

	p.finish()
	return nil
}

func (p *Processor[T]) finish() {
	p.handler.OnShutdown()
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	p.logger.Debug("dynamic processor stopped")
}

// Halt requests that Run return once its current wait or batch finishes.
func (p *Processor[T]) Halt() {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
}
