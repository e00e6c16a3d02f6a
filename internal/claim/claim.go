// Package claim provides the producer-side claim strategies: how a producer
// goroutine reserves the next sequence(s) on a ring buffer and how it
// publishes them to the cursor that consumers watch.
package claim

import (
	"runtime"
	"time"

	"code.hybscloud.com/spin"

	"github.com/fluxring/disruptor/internal/seq"
)

// DefaultPendingBufferSize is the size of MultiThreaded's pending-publication
// ring, matching the original implementation's default.
const DefaultPendingBufferSize = 1024

// defaultRetries is the spin budget the multi-threaded strategies burn
// through before sleeping while waiting for a free slot or a predecessor's
// publish.
const defaultRetries = 1000

// Option selects a claim strategy by name.
type Option int

const (
	// SingleThreaded assumes exactly one producer goroutine; no
	// synchronization is needed to claim a sequence, only to wait for
	// consumers to free up ring slots.
	SingleThreaded Option = iota
	// MultiThreadedLowContention allows any number of producers but
	// serializes publish by having each producer spin until its
	// predecessor's publish has advanced the cursor.
	MultiThreadedLowContention
	// MultiThreaded allows any number of producers and lets them publish
	// out of order via a pending-publication ring, so one producer's slow
	// claim doesn't stall another's publish.
	MultiThreaded
)

// Strategy is how a producer claims and publishes sequences.
type Strategy interface {
	// IncrementAndGet claims delta sequences and returns the last one,
	// blocking (by spin/yield/sleep, never via a wait.Strategy) until the
	// gating sequences show the claimed slots are free.
	IncrementAndGet(delta int64, dependents []seq.Reader) int64
	// SetSequence forces the strategy's internal cursor to sequence, used
	// only when a producer has already claimed out of band (e.g.
	// recovering a reservation). It still waits for the slot to be free.
	SetSequence(sequence int64, dependents []seq.Reader)
	// HasAvailableCapacity reports whether the next claim would succeed
	// without blocking. Advisory only: a concurrent claim may race it.
	HasAvailableCapacity(dependents []seq.Reader) bool
	// SerialisePublishing makes sequence (and the batchSize-1 sequences
	// before it) visible on cursor, in claim order for
	// MultiThreadedLowContention/MultiThreaded or directly for
	// SingleThreaded.
	SerialisePublishing(sequence int64, cursor *seq.Sequence, batchSize int64)
}

// New constructs the Strategy named by option for a ring of the given
// capacity, which must already be a power of two.
func New(option Option, capacity int64) Strategy {
	switch option {
	case MultiThreadedLowContention:
		return newMultiThreadedLowContention(capacity)
	case MultiThreaded:
		return newMultiThreaded(capacity, DefaultPendingBufferSize)
	default:
		return newSingleThreaded(capacity)
	}
}

// singleThreaded is the zero-synchronization-on-claim strategy for exactly
// one producer goroutine.
type singleThreaded struct {
	capacity          int64
	sequence          *seq.MutableLong
	minGatingSequence *seq.MutableLong
}

func newSingleThreaded(capacity int64) *singleThreaded {
	return &singleThreaded{
		capacity:          capacity,
		sequence:          seq.NewMutableLong(seq.InitialValue),
		minGatingSequence: seq.NewMutableLong(seq.InitialValue),
	}
}

func (s *singleThreaded) waitForFreeSlotAt(sequence int64, dependents []seq.Reader) {
	wrapPoint := sequence - s.capacity
	if wrapPoint <= s.minGatingSequence.Get() {
		return
	}
	for {
		minSequence := seq.MinimumSequence(dependents)
		if wrapPoint <= minSequence {
			s.minGatingSequence.Set(minSequence)
			return
		}
		runtime.Gosched()
	}
}

func (s *singleThreaded) IncrementAndGet(delta int64, dependents []seq.Reader) int64 {
	next := s.sequence.IncrementAndGet(delta)
	s.waitForFreeSlotAt(next, dependents)
	return next
}

func (s *singleThreaded) SetSequence(sequence int64, dependents []seq.Reader) {
	s.sequence.Set(sequence)
	s.waitForFreeSlotAt(sequence, dependents)
}

func (s *singleThreaded) HasAvailableCapacity(dependents []seq.Reader) bool {
	wrapPoint := s.sequence.Get() + 1 - s.capacity
	if wrapPoint > s.minGatingSequence.Get() {
		minSequence := seq.MinimumSequence(dependents)
		s.minGatingSequence.Set(minSequence)
		if wrapPoint > minSequence {
			return false
		}
	}
	return true
}

func (s *singleThreaded) SerialisePublishing(sequence int64, cursor *seq.Sequence, batchSize int64) {
	cursor.Set(sequence)
}

// multiThreadedLowContention allows concurrent claimers but makes every
// claimer's publish wait for its predecessor's, so the cursor advances in
// exactly claim order.
type multiThreadedLowContention struct {
	capacity          int64
	sequence          *seq.Sequence
	minGatingSequence *seq.MutableLong
}

func newMultiThreadedLowContention(capacity int64) *multiThreadedLowContention {
	return &multiThreadedLowContention{
		capacity:          capacity,
		sequence:          seq.NewSequence(seq.InitialValue),
		minGatingSequence: seq.NewMutableLong(seq.InitialValue),
	}
}

func (m *multiThreadedLowContention) applyBackPressure(sw *spin.Wait, counter *int) {
	if *counter > 0 {
		*counter--
		return
	}
	time.Sleep(time.Millisecond)
	sw.Once()
}

func (m *multiThreadedLowContention) waitForFreeSlotAt(sequence int64, dependents []seq.Reader) {
	wrapPoint := sequence - m.capacity
	if wrapPoint <= m.minGatingSequence.Get() {
		return
	}
	sw := spin.Wait{}
	counter := defaultRetries
	for {
		minSequence := seq.MinimumSequence(dependents)
		if wrapPoint <= minSequence {
			m.minGatingSequence.Set(minSequence)
			return
		}
		m.applyBackPressure(&sw, &counter)
	}
}

func (m *multiThreadedLowContention) IncrementAndGet(delta int64, dependents []seq.Reader) int64 {
	next := m.sequence.IncrementAndGet(delta)
	m.waitForFreeSlotAt(next, dependents)
	return next
}

func (m *multiThreadedLowContention) SetSequence(sequence int64, dependents []seq.Reader) {
	m.sequence.Set(sequence)
	m.waitForFreeSlotAt(sequence, dependents)
}

func (m *multiThreadedLowContention) HasAvailableCapacity(dependents []seq.Reader) bool {
	wrapPoint := m.sequence.Get() + 1 - m.capacity
	if wrapPoint > m.minGatingSequence.Get() {
		minSequence := seq.MinimumSequence(dependents)
		m.minGatingSequence.Set(minSequence)
		if wrapPoint > minSequence {
			return false
		}
	}
	return true
}

// SerialisePublishing waits, with the same retry-then-sleep back-off as the
// wrap wait, until the cursor has caught up to the start of this claim's
// batch, then advances it — serializing publish order without serializing
// claim order.
func (m *multiThreadedLowContention) SerialisePublishing(sequence int64, cursor *seq.Sequence, batchSize int64) {
	expected := sequence - batchSize
	sw := spin.Wait{}
	counter := defaultRetries
	for expected != cursor.Get() {
		m.applyBackPressure(&sw, &counter)
	}
	cursor.Set(sequence)
}

// multiThreaded additionally decouples claim from publish order: producers
// record their claimed sequences in a pending-publication ring, and any
// producer whose predecessors have already landed may advance the cursor on
// their behalf.
type multiThreaded struct {
	capacity           int64
	sequence           *seq.Sequence
	minGatingSequence  *seq.MutableLong
	pendingSize        int64
	pendingMask        int64
	pendingPublication []seq.Sequence
}

func newMultiThreaded(capacity int64, pendingBufferSize int64) *multiThreaded {
	pending := make([]seq.Sequence, pendingBufferSize)
	for i := range pending {
		pending[i] = *seq.NewSequence(seq.InitialValue)
	}
	return &multiThreaded{
		capacity:           capacity,
		sequence:           seq.NewSequence(seq.InitialValue),
		minGatingSequence:  seq.NewMutableLong(seq.InitialValue),
		pendingSize:        pendingBufferSize,
		pendingMask:        pendingBufferSize - 1,
		pendingPublication: pending,
	}
}

func (m *multiThreaded) applyBackPressure(sw *spin.Wait, counter *int) {
	if *counter > 0 {
		*counter--
		return
	}
	time.Sleep(time.Millisecond)
	sw.Once()
}

func (m *multiThreaded) waitForFreeSlotAt(sequence int64, dependents []seq.Reader) {
	wrapPoint := sequence - m.capacity
	if wrapPoint <= m.minGatingSequence.Get() {
		return
	}
	sw := spin.Wait{}
	counter := defaultRetries
	for {
		minSequence := seq.MinimumSequence(dependents)
		if wrapPoint <= minSequence {
			m.minGatingSequence.Set(minSequence)
			return
		}
		m.applyBackPressure(&sw, &counter)
	}
}

func (m *multiThreaded) IncrementAndGet(delta int64, dependents []seq.Reader) int64 {
	next := m.sequence.IncrementAndGet(delta)
	m.waitForFreeSlotAt(next, dependents)
	return next
}

func (m *multiThreaded) SetSequence(sequence int64, dependents []seq.Reader) {
	m.sequence.Set(sequence)
	m.waitForFreeSlotAt(sequence, dependents)
}

func (m *multiThreaded) HasAvailableCapacity(dependents []seq.Reader) bool {
	wrapPoint := m.sequence.Get() + 1 - m.capacity
	if wrapPoint > m.minGatingSequence.Get() {
		minSequence := seq.MinimumSequence(dependents)
		m.minGatingSequence.Set(minSequence)
		if wrapPoint > minSequence {
			return false
		}
	}
	return true
}

// SerialisePublishing marks this batch pending, then — only if the cursor
// isn't already past it — races to walk the cursor forward through however
// many contiguous pending sequences are already marked, so a fast producer
// can publish on behalf of slower ones that claimed before it.
func (m *multiThreaded) SerialisePublishing(sequence int64, cursor *seq.Sequence, batchSize int64) {
	sw := spin.Wait{}
	counter := defaultRetries
	for sequence-cursor.Get() > m.pendingSize {
		m.applyBackPressure(&sw, &counter)
	}

	expected := sequence - batchSize
	for pending := expected + 1; pending <= sequence; pending++ {
		m.pendingPublication[pending&m.pendingMask].Set(pending)
	}

	cursorSequence := cursor.Get()
	if cursorSequence >= sequence {
		return
	}
	if expected < cursorSequence {
		expected = cursorSequence
	}

	next := expected + 1
	for cursor.CompareAndSwap(expected, next) {
		expected = next
		next++
		if m.pendingPublication[next&m.pendingMask].Get() != next {
			break
		}
	}
}
