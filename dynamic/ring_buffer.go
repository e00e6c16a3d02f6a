// Package dynamic provides an unbounded single-producer/single-consumer
// queue built from a linked chain of fixed-size blocks. Unlike the root
// package's RingBuffer, blocks are allocated lazily as the producer
// outruns the consumer and are never freed, keeping enqueue and dequeue
// wait-free on the common path at the cost of retained memory.
package dynamic

import (
	"go.uber.org/zap"

	"github.com/fluxring/disruptor/internal/seq"
)

// DefaultBlockSize is the per-block capacity used when none is specified.
const DefaultBlockSize = 1024

// block is one fixed-size segment of the chain. head is the next slot the
// consumer will read; tail is the next slot the producer will write. Both
// only ever increase, bounded by size.
type block[T any] struct {
	slots []T
	head  seq.Sequence
	tail  seq.Sequence
	next  *block[T]
}

func newBlock[T any](size int64) *block[T] {
	b := &block[T]{slots: make([]T, size)}
	b.head.Set(0)
	b.tail.Set(0)
	return b
}

func (b *block[T]) size() int64 { return int64(len(b.slots)) }
func (b *block[T]) drained() bool {
	return b.head.Get() >= b.size()
}
func (b *block[T]) full() bool {
	return b.tail.Get() >= b.size()
}

// RingBuffer is the unbounded SPSC queue. Exactly one goroutine may call
// Enqueue and exactly one (possibly different) goroutine may call
// Dequeue; calling either from more than one goroutine concurrently is a
// race.
type RingBuffer[T any] struct {
	blockSize int64
	producer  *block[T]
	consumer  *block[T]
	blocks    int64
	logger    *zap.Logger
}

// Option configures a RingBuffer at construction.
type Option func(*config)

type config struct {
	blockSize int64
	logger    *zap.Logger
}

// WithBlockSize overrides DefaultBlockSize.
func WithBlockSize(size int64) Option {
	return func(c *config) { c.blockSize = size }
}

// WithLogger attaches structured logging for block-allocation events.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// NewRingBuffer returns an empty RingBuffer with one initial block
// allocated.
func NewRingBuffer[T any](opts ...Option) *RingBuffer[T] {
	cfg := config{blockSize: DefaultBlockSize, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	first := newBlock[T](cfg.blockSize)
	return &RingBuffer[T]{
		blockSize: cfg.blockSize,
		producer:  first,
		consumer:  first,
		blocks:    1,
		logger:    cfg.logger,
	}
}

// Enqueue appends value, allocating a new block and linking it at the end
// of the chain when the producer's current block is full. Drained blocks
// are never reused. The only way Enqueue blocks is the cost of that
// allocation.
func (r *RingBuffer[T]) Enqueue(value T) {
	b := r.producer
	if b.full() {
		if b.next == nil {
			b.next = newBlock[T](r.blockSize)
			r.blocks++
			r.logger.Debug("allocated new block", zap.Int64("blocks", r.blocks))
		}
		b = b.next
		r.producer = b
	}
	idx := b.tail.Get()
	b.slots[idx] = value
	b.tail.Set(idx + 1)
}

// Dequeue removes and returns the oldest value, reporting false if the
// queue is currently empty.
func (r *RingBuffer[T]) Dequeue() (T, bool) {
	b := r.consumer
	for b.drained() {
		if b.next == nil {
			var zero T
			return zero, false
		}
		r.consumer = b.next
		b = r.consumer
	}
	if b.head.Get() >= b.tail.Get() {
		var zero T
		return zero, false
	}
	idx := b.head.Get()
	value := b.slots[idx]
	b.head.Set(idx + 1)
	return value, true
}

// OccupiedApprox returns a best-effort count of enqueued-but-not-dequeued
// values, summed across every block in the chain. It is approximate under
// concurrent enqueue/dequeue, but safe to call from either side — it's
// only ever used as a wait-loop hint, never for correctness.
func (r *RingBuffer[T]) OccupiedApprox() int64 {
	var total int64
	for b := r.consumer; b != nil; b = b.next {
		total += b.tail.Get() - b.head.Get()
	}
	return total
}

// Blocks returns the number of blocks currently allocated in the chain.
func (r *RingBuffer[T]) Blocks() int64 {
	return r.blocks
}
