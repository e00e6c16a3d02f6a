package disruptor

// RingBuffer is a fixed, power-of-two array of preallocated event slots.
// Producers and consumers coordinate access to it purely through
// sequences; the buffer itself holds no per-slot metadata.
type RingBuffer[T any] struct {
	buffer []T
	mask   int64
}

// NewRingBuffer returns a RingBuffer of capacity slots, rounded up to the
// next power of two if it isn't one already.
func NewRingBuffer[T any](capacity int64) (*RingBuffer[T], error) {
	if capacity <= 0 {
		return nil, ErrCapacity
	}
	capacity = ceilToPowerOfTwo(capacity)
	return &RingBuffer[T]{
		buffer: make([]T, capacity),
		mask:   capacity - 1,
	}, nil
}

// Get returns a pointer to the slot for sequence. Callers must only read
// or write it while holding the corresponding claim or after confirming
// via a barrier that the sequence has been published.
func (r *RingBuffer[T]) Get(sequence int64) *T {
	return &r.buffer[sequence&r.mask]
}

// Capacity returns the number of slots in the buffer.
func (r *RingBuffer[T]) Capacity() int64 {
	return int64(len(r.buffer))
}

func ceilToPowerOfTwo(n int64) int64 {
	if n&(n-1) == 0 {
		return n
	}
	p := int64(1)
	for p < n {
		p <<= 1
	}
	return p
}
