// Package wait provides the consumer-side wait strategies: blocking,
// sleeping, yielding, and busy-spin. Each implements Strategy, and all four
// check for an alert on every spin so a halted consumer returns promptly.
package wait

import (
	"runtime"
	"sync"
	"time"

	"github.com/fluxring/disruptor/internal/seq"
)

// AlertChecker reports whether a cooperative stop has been requested.
// SequenceBarrier implements this; a Strategy calls CheckAlert on every
// spin of its wait loop and returns ErrAlert as soon as it does.
type AlertChecker interface {
	CheckAlert() error
}

// Option selects a wait strategy by name, mirroring the disruptor's
// Claim-strategy-style enum in spec form.
type Option int

const (
	// Blocking waits on a condition variable; lowest CPU use, highest
	// latency and contention.
	Blocking Option = iota
	// Sleeping spins a few times then sleeps for a configured duration.
	Sleeping
	// Yielding spins a few times then yields the scheduler.
	Yielding
	// BusySpin never yields or sleeps; lowest, most consistent latency,
	// highest CPU use.
	BusySpin
)

// defaultRetries is the spin budget Sleeping and Yielding burn through
// before backing off, matching the original implementation's default.
const defaultRetries = 10

// TimeConfig holds the durations used by strategies that back off instead
// of pure-spinning.
type TimeConfig struct {
	// Sleep is how long the Sleeping strategy sleeps once its retry
	// budget is exhausted. Defaults to 1ms.
	Sleep time.Duration
	// MaxIdle is the periodic "wake up and check anyway" interval used by
	// BatchEventProcessor's idle-tick behavior. Defaults to 10µs.
	MaxIdle time.Duration
}

// DefaultTimeConfig returns the spec's documented defaults.
func DefaultTimeConfig() TimeConfig {
	return TimeConfig{Sleep: time.Millisecond, MaxIdle: 10 * time.Microsecond}
}

// Strategy is how a consumer waits for a requested sequence to become
// available, and how a producer signals it when blocking is in use.
type Strategy interface {
	// WaitFor blocks until cursor (or, if dependents is non-empty, the
	// minimum of dependents) reaches at least sequence, or the barrier is
	// alerted. It returns the highest contiguous available sequence
	// observed, which may exceed sequence and enables batching.
	WaitFor(sequence int64, cursor seq.Reader, dependents []seq.Reader, barrier AlertChecker) (int64, error)
	// WaitForTimeout is WaitFor but also returns once elapsed wall time
	// exceeds timeout, without error.
	WaitForTimeout(sequence int64, cursor seq.Reader, dependents []seq.Reader, barrier AlertChecker, timeout time.Duration) (int64, error)
	// SignalAllWhenBlocking wakes any goroutine parked in WaitFor. It is a
	// no-op for every strategy except Blocking.
	SignalAllWhenBlocking()
}

// New constructs the Strategy named by option.
func New(option Option, cfg TimeConfig) Strategy {
	switch option {
	case Blocking:
		return NewBlocking()
	case Sleeping:
		return NewSleeping(cfg.Sleep)
	case Yielding:
		return NewYielding()
	case BusySpin:
		return NewBusySpin()
	default:
		return NewBlocking()
	}
}

func availableFrom(cursor seq.Reader, dependents []seq.Reader, sequence int64) (int64, bool) {
	if len(dependents) == 0 {
		available := cursor.Get()
		return available, available >= sequence
	}
	available := seq.MinimumSequence(dependents)
	return available, available >= sequence
}

// Blocking uses a mutex and condition variable. Producers call
// SignalAllWhenBlocking (via Sequencer.Publish) to wake a waiting consumer.
type Blocking struct {
	mu   sync.Mutex
	cond *sync.Cond
}

// NewBlocking returns a ready-to-use Blocking strategy.
func NewBlocking() *Blocking {
	b := &Blocking{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *Blocking) WaitFor(sequence int64, cursor seq.Reader, dependents []seq.Reader, barrier AlertChecker) (int64, error) {
	available := cursor.Get()
	if available < sequence {
		b.mu.Lock()
		for {
			available = cursor.Get()
			if available >= sequence {
				break
			}
			if err := barrier.CheckAlert(); err != nil {
				b.mu.Unlock()
				return 0, err
			}
			b.cond.Wait()
		}
		b.mu.Unlock()
	}

	if len(dependents) == 0 {
		return available, nil
	}
	for {
		available = seq.MinimumSequence(dependents)
		if available >= sequence {
			return available, nil
		}
		if err := barrier.CheckAlert(); err != nil {
			return 0, err
		}
	}
}

func (b *Blocking) WaitForTimeout(sequence int64, cursor seq.Reader, dependents []seq.Reader, barrier AlertChecker, timeout time.Duration) (int64, error) {
	deadline := time.Now().Add(timeout)
	available := cursor.Get()
	if available < sequence {
		done := make(chan struct{})
		go func() {
			select {
			case <-time.After(timeout):
				b.cond.Broadcast()
			case <-done:
			}
		}()
		b.mu.Lock()
		for {
			available = cursor.Get()
			if available >= sequence {
				break
			}
			if err := barrier.CheckAlert(); err != nil {
				b.mu.Unlock()
				close(done)
				return 0, err
			}
			if time.Now().After(deadline) {
				break
			}
			b.cond.Wait()
		}
		b.mu.Unlock()
		close(done)
	}

	if len(dependents) == 0 {
		return available, nil
	}
	for {
		available = seq.MinimumSequence(dependents)
		if available >= sequence {
			return available, nil
		}
		if err := barrier.CheckAlert(); err != nil {
			return 0, err
		}
		if time.Now().After(deadline) {
			return available, nil
		}
	}
}

func (b *Blocking) SignalAllWhenBlocking() {
	b.mu.Lock()
	b.cond.Broadcast()
	b.mu.Unlock()
}

// Sleeping spins a few times then sleeps for sleepTime.
type Sleeping struct {
	sleepTime time.Duration
}

// NewSleeping returns a Sleeping strategy that sleeps for sleepTime once
// its spin budget is exhausted.
func NewSleeping(sleepTime time.Duration) *Sleeping {
	return &Sleeping{sleepTime: sleepTime}
}

func (s *Sleeping) applyBackoff(barrier AlertChecker, counter *int) error {
	if err := barrier.CheckAlert(); err != nil {
		return err
	}
	if *counter > 0 {
		*counter--
		return nil
	}
	time.Sleep(s.sleepTime)
	return nil
}

func (s *Sleeping) WaitFor(sequence int64, cursor seq.Reader, dependents []seq.Reader, barrier AlertChecker) (int64, error) {
	counter := defaultRetries
	for {
		available, ok := availableFrom(cursor, dependents, sequence)
		if ok {
			return available, nil
		}
		if err := s.applyBackoff(barrier, &counter); err != nil {
			return 0, err
		}
	}
}

func (s *Sleeping) WaitForTimeout(sequence int64, cursor seq.Reader, dependents []seq.Reader, barrier AlertChecker, timeout time.Duration) (int64, error) {
	deadline := time.Now().Add(timeout)
	counter := defaultRetries
	for {
		available, ok := availableFrom(cursor, dependents, sequence)
		if ok {
			return available, nil
		}
		if err := s.applyBackoff(barrier, &counter); err != nil {
			return 0, err
		}
		if time.Now().After(deadline) {
			return available, nil
		}
	}
}

func (s *Sleeping) SignalAllWhenBlocking() {}

// Yielding spins a few times then yields the scheduler.
type Yielding struct{}

// NewYielding returns a Yielding strategy.
func NewYielding() *Yielding { return &Yielding{} }

func (y *Yielding) applyBackoff(barrier AlertChecker, counter *int) error {
	if err := barrier.CheckAlert(); err != nil {
		return err
	}
	if *counter > 0 {
		*counter--
		return nil
	}
	runtime.Gosched()
	return nil
}

func (y *Yielding) WaitFor(sequence int64, cursor seq.Reader, dependents []seq.Reader, barrier AlertChecker) (int64, error) {
	counter := defaultRetries
	for {
		available, ok := availableFrom(cursor, dependents, sequence)
		if ok {
			return available, nil
		}
		if err := y.applyBackoff(barrier, &counter); err != nil {
			return 0, err
		}
	}
}

func (y *Yielding) WaitForTimeout(sequence int64, cursor seq.Reader, dependents []seq.Reader, barrier AlertChecker, timeout time.Duration) (int64, error) {
	deadline := time.Now().Add(timeout)
	counter := defaultRetries
	for {
		available, ok := availableFrom(cursor, dependents, sequence)
		if ok {
			return available, nil
		}
		if err := y.applyBackoff(barrier, &counter); err != nil {
			return 0, err
		}
		if time.Now().After(deadline) {
			return available, nil
		}
	}
}

func (y *Yielding) SignalAllWhenBlocking() {}

// BusySpin never backs off; only alert checks and sequence reads happen in
// the loop.
type BusySpin struct{}

// NewBusySpin returns a BusySpin strategy.
func NewBusySpin() *BusySpin { return &BusySpin{} }

func (bs *BusySpin) WaitFor(sequence int64, cursor seq.Reader, dependents []seq.Reader, barrier AlertChecker) (int64, error) {
	for {
		available, ok := availableFrom(cursor, dependents, sequence)
		if ok {
			return available, nil
		}
		if err := barrier.CheckAlert(); err != nil {
			return 0, err
		}
	}
}

func (bs *BusySpin) WaitForTimeout(sequence int64, cursor seq.Reader, dependents []seq.Reader, barrier AlertChecker, timeout time.Duration) (int64, error) {
	deadline := time.Now().Add(timeout)
	for {
		available, ok := availableFrom(cursor, dependents, sequence)
		if ok {
			return available, nil
		}
		if err := barrier.CheckAlert(); err != nil {
			return 0, err
		}
		if time.Now().After(deadline) {
			return available, nil
		}
	}
}

func (bs *BusySpin) SignalAllWhenBlocking() {}
