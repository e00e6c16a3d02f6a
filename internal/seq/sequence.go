// Package seq provides the cache-line-padded sequence counters that are the
// sole inter-goroutine synchronization primitive used by the disruptor's
// claim strategies, wait strategies, and ring buffer.
package seq

import "code.hybscloud.com/atomix"

// InitialValue is the sentinel a Sequence starts at: nothing has been
// published or consumed yet.
const InitialValue int64 = -1

// cacheLine is the assumed cache line size on supported platforms (amd64,
// arm64). Sequence relies on this to keep its value off any cache line
// shared with a neighboring counter; on platforms with a smaller line size
// the padding is merely generous, while on platforms with a larger one it
// does not fully isolate the value.
const cacheLine = 64

type pad [cacheLine]byte

// Sequence is an atomic, cache-line-padded 64-bit counter.
//
// Sequence requires 8-byte atomic loads/stores to be naturally aligned and
// indivisible, which holds on amd64 and arm64. Embedding Sequence by value
// inside another struct preserves the padding; do not place two Sequence
// fields adjacent without the padding fields this type already carries,
// since Go does not guarantee field alignment to 64 bytes on its own.
type Sequence struct {
	_     pad
	value atomix.Int64
	_     pad
}

// NewSequence returns a Sequence initialized to v.
func NewSequence(v int64) *Sequence {
	s := &Sequence{}
	s.value.StoreRelease(v)
	return s
}

// Get is an acquire load of the current value.
func (s *Sequence) Get() int64 {
	return s.value.LoadAcquire()
}

// Set is a release store of v.
func (s *Sequence) Set(v int64) {
	s.value.StoreRelease(v)
}

// IncrementAndGet adds delta with release semantics and returns the new
// value.
func (s *Sequence) IncrementAndGet(delta int64) int64 {
	return s.value.AddAcqRel(delta)
}

// CompareAndSwap atomically sets the value to desired if it currently
// equals expected, with release semantics on success.
func (s *Sequence) CompareAndSwap(expected, desired int64) bool {
	return s.value.CompareAndSwapAcqRel(expected, desired)
}

// MutableLong is a non-atomic 64-bit counter for use by a single owner
// goroutine. It exists so that a claim strategy's locally cached values
// don't need atomic instructions when only one goroutine ever touches them.
type MutableLong struct {
	value int64
}

// NewMutableLong returns a MutableLong initialized to v.
func NewMutableLong(v int64) *MutableLong {
	return &MutableLong{value: v}
}

// Get returns the current value.
func (m *MutableLong) Get() int64 { return m.value }

// Set assigns v.
func (m *MutableLong) Set(v int64) { m.value = v }

// IncrementAndGet adds delta and returns the new value.
func (m *MutableLong) IncrementAndGet(delta int64) int64 {
	m.value += delta
	return m.value
}

// PaddedLong is a MutableLong padded to its own cache line, for use when
// the owning goroutine's counter sits next to memory touched by other
// goroutines (e.g. a claim strategy's struct fields).
type PaddedLong struct {
	_ pad
	MutableLong
	_ pad
}

// NewPaddedLong returns a PaddedLong initialized to v.
func NewPaddedLong(v int64) *PaddedLong {
	p := &PaddedLong{}
	p.MutableLong.value = v
	return p
}

// Reader is a read-only view of a Sequence, satisfied by *Sequence itself
// and by any aggregate (such as a minimum-of-many) that exposes one logical
// sequence value.
type Reader interface {
	Get() int64
}

// MinimumSequence reads each of seqs with acquire semantics and returns the
// smallest value observed. An empty seqs returns math.MaxInt64, the
// sentinel meaning "no gate — unbounded", which a single producer with no
// registered consumer yet relies on to claim without bound.
func MinimumSequence(seqs []Reader) int64 {
	if len(seqs) == 0 {
		return maxInt64
	}
	minimum := seqs[0].Get()
	for _, s := range seqs[1:] {
		if v := s.Get(); v < minimum {
			minimum = v
		}
	}
	return minimum
}

const maxInt64 = int64(^uint64(0) >> 1)
