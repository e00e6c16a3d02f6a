// Package barrier provides SequenceBarrier, the consumer-facing handle that
// combines a wait strategy, the sequences it waits on, and a cooperative
// alert/halt signal.
package barrier

import (
	"errors"
	"time"

	"github.com/fluxring/disruptor/internal/seq"
	"github.com/fluxring/disruptor/internal/wait"
)

// ErrAlert is returned by WaitFor once the barrier has been alerted, so a
// BatchEventProcessor spinning in wait.Strategy.WaitFor knows to stop
// cleanly rather than treat the return as a handler failure.
var ErrAlert = errors.New("disruptor: barrier alerted")

// SequenceBarrier gates a consumer on a cursor and, optionally, the
// sequences of upstream consumers it must not overtake.
type SequenceBarrier struct {
	strategy   wait.Strategy
	cursor     *seq.Sequence
	dependents []seq.Reader
	alerted    seq.Sequence
}

// alertedTrue/alertedFalse are the only two values the alerted Sequence
// ever holds; seq.Sequence gives the flag the same acquire/release
// semantics every other cross-goroutine signal in this package uses.
const (
	alertedFalse int64 = 0
	alertedTrue  int64 = 1
)

// New returns a SequenceBarrier that waits on cursor via strategy, gated
// additionally by dependents (the sequences of consumers upstream of this
// one in a reader group; nil or empty if this consumer gates directly on
// the producer cursor).
func New(strategy wait.Strategy, cursor *seq.Sequence, dependents []seq.Reader) *SequenceBarrier {
	b := &SequenceBarrier{strategy: strategy, cursor: cursor, dependents: dependents}
	b.alerted.Set(alertedFalse)
	return b
}

// WaitFor blocks until sequence is available on the cursor (and on every
// dependent), returning the highest contiguous available sequence, or
// ErrAlert if Alert was called first.
func (b *SequenceBarrier) WaitFor(sequence int64) (int64, error) {
	return b.strategy.WaitFor(sequence, b.cursor, b.dependents, b)
}

// WaitForTimeout is WaitFor bounded by timeout.
func (b *SequenceBarrier) WaitForTimeout(sequence int64, timeout time.Duration) (int64, error) {
	return b.strategy.WaitForTimeout(sequence, b.cursor, b.dependents, b, timeout)
}

// Cursor returns the current published sequence, unfiltered by dependents.
func (b *SequenceBarrier) Cursor() int64 {
	return b.cursor.Get()
}

// IsAlerted reports whether Alert has been called since the last
// ClearAlert.
func (b *SequenceBarrier) IsAlerted() bool {
	return b.alerted.Get() == alertedTrue
}

// Alert requests that any goroutine currently or subsequently blocked in
// WaitFor return ErrAlert, and wakes a goroutine parked in a Blocking wait.
func (b *SequenceBarrier) Alert() {
	b.alerted.Set(alertedTrue)
	b.strategy.SignalAllWhenBlocking()
}

// ClearAlert resets the alert flag so the barrier can be reused.
func (b *SequenceBarrier) ClearAlert() {
	b.alerted.Set(alertedFalse)
}

// CheckAlert implements wait.AlertChecker.
func (b *SequenceBarrier) CheckAlert() error {
	if b.IsAlerted() {
		return ErrAlert
	}
	return nil
}
