package disruptor

import (
	"time"

	"go.uber.org/zap"

	"github.com/fluxring/disruptor/internal/barrier"
	"github.com/fluxring/disruptor/internal/claim"
	"github.com/fluxring/disruptor/internal/seq"
	"github.com/fluxring/disruptor/internal/wait"
)

// claimWarnThreshold is how long a single Next/NextN call may spend
// blocked in the claim strategy's wrap wait before it's considered a
// canary for a stuck consumer.
const claimWarnThreshold = 50 * time.Millisecond

// claimWarnRateLimit bounds how often that canary is logged, since a
// genuinely stuck consumer would otherwise produce one warning per slow
// claim.
const claimWarnRateLimit = int64(time.Second)

// ClaimStrategyOption names a claim strategy; see internal/claim.Option.
type ClaimStrategyOption = claim.Option

const (
	SingleThreaded             = claim.SingleThreaded
	MultiThreadedLowContention = claim.MultiThreadedLowContention
	MultiThreaded              = claim.MultiThreaded
)

// WaitStrategyOption names a wait strategy; see internal/wait.Option.
type WaitStrategyOption = wait.Option

const (
	Blocking = wait.Blocking
	Sleeping = wait.Sleeping
	Yielding = wait.Yielding
	BusySpin = wait.BusySpin
)

// TimeConfig holds the Sleep and MaxIdle durations a Sequencer's wait
// strategy and a BatchEventProcessor's idle tick are configured with.
type TimeConfig = wait.TimeConfig

// DefaultTimeConfig returns Sleep: 1ms, MaxIdle: 10µs.
func DefaultTimeConfig() TimeConfig { return wait.DefaultTimeConfig() }

// Sequencer composes a claim strategy, a wait strategy, the published
// cursor, and the gating sequences producers must not overtake.
type Sequencer struct {
	capacity      int64
	claim         claim.Strategy
	wait          wait.Strategy
	cursor        *seq.Sequence
	gating        []seq.Reader
	logger        *zap.Logger
	lastClaimWarn *seq.Sequence
}

// SequencerOption configures a Sequencer at construction.
type SequencerOption func(*sequencerConfig)

type sequencerConfig struct {
	claimOption ClaimStrategyOption
	waitOption  WaitStrategyOption
	timeConfig  TimeConfig
	logger      *zap.Logger
}

// WithClaimStrategy selects the claim strategy. Defaults to SingleThreaded.
func WithClaimStrategy(option ClaimStrategyOption) SequencerOption {
	return func(c *sequencerConfig) { c.claimOption = option }
}

// WithWaitStrategy selects the wait strategy. Defaults to Blocking.
func WithWaitStrategy(option WaitStrategyOption) SequencerOption {
	return func(c *sequencerConfig) { c.waitOption = option }
}

// WithTimeConfig overrides the Sleep/MaxIdle durations. Defaults to
// DefaultTimeConfig().
func WithTimeConfig(cfg TimeConfig) SequencerOption {
	return func(c *sequencerConfig) { c.timeConfig = cfg }
}

// WithSequencerLogger attaches a *zap.Logger used to warn when a claim
// spins past claimWarnThreshold waiting on gating sequences — a canary
// for a stuck consumer. Defaults to zap.NewNop().
func WithSequencerLogger(logger *zap.Logger) SequencerOption {
	return func(c *sequencerConfig) { c.logger = logger }
}

// NewSequencer returns a Sequencer over a buffer of capacity slots
// (rounded up to a power of two).
func NewSequencer(capacity int64, opts ...SequencerOption) (*Sequencer, error) {
	if capacity <= 0 {
		return nil, ErrCapacity
	}
	cfg := sequencerConfig{
		claimOption: SingleThreaded,
		waitOption:  Blocking,
		timeConfig:  DefaultTimeConfig(),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	capacity = ceilToPowerOfTwo(capacity)
	return &Sequencer{
		capacity:      capacity,
		claim:         claim.New(cfg.claimOption, capacity),
		wait:          wait.New(cfg.waitOption, cfg.timeConfig),
		cursor:        seq.NewSequence(seq.InitialValue),
		logger:        cfg.logger,
		lastClaimWarn: seq.NewSequence(0),
	}, nil
}

// Capacity returns the (power-of-two) buffer size this Sequencer gates.
func (s *Sequencer) Capacity() int64 { return s.capacity }

// SetGatingSequences replaces the set of consumer sequences that bound how
// far producers may claim ahead of the slowest consumer.
func (s *Sequencer) SetGatingSequences(gating ...seq.Reader) {
	s.gating = gating
}

// Next claims the next single sequence, blocking until a slot is free.
func (s *Sequencer) Next() int64 {
	return s.nextN(1)
}

// NextN claims the next n sequences as a batch and returns the last one in
// the batch; the caller fills slots lo..hi where lo = result-n+1.
func (s *Sequencer) NextN(n int64) int64 {
	return s.nextN(n)
}

func (s *Sequencer) nextN(n int64) int64 {
	start := time.Now()
	next := s.claim.IncrementAndGet(n, s.gating)
	if elapsed := time.Since(start); elapsed > claimWarnThreshold {
		s.warnSlowClaim(next, elapsed)
	}
	return next
}

// warnSlowClaim logs a canary warning for a claim that spun past
// claimWarnThreshold, rate-limited to once per claimWarnRateLimit across
// every producer sharing this Sequencer.
func (s *Sequencer) warnSlowClaim(sequence int64, elapsed time.Duration) {
	now := time.Now().UnixNano()
	last := s.lastClaimWarn.Get()
	if now-last < claimWarnRateLimit {
		return
	}
	if !s.lastClaimWarn.CompareAndSwap(last, now) {
		return
	}
	s.logger.Warn("claim spun past threshold waiting on gating sequences",
		zap.Int64("sequence", sequence), zap.Duration("elapsed", elapsed))
}

// Claim forces the producer's internal counter to sequence, as when
// recovering a reservation obtained out of band. It still waits for the
// slot to be free before returning.
func (s *Sequencer) Claim(sequence int64) {
	s.claim.SetSequence(sequence, s.gating)
}

// Publish makes sequence visible to consumers.
func (s *Sequencer) Publish(sequence int64) {
	s.claim.SerialisePublishing(sequence, s.cursor, 1)
	s.wait.SignalAllWhenBlocking()
}

// PublishRange makes the batch lo..hi visible to consumers in one call.
func (s *Sequencer) PublishRange(lo, hi int64) {
	s.claim.SerialisePublishing(hi, s.cursor, hi-lo+1)
	s.wait.SignalAllWhenBlocking()
}

// ForcePublish stores sequence directly onto the cursor, bypassing a claim
// strategy's ordering guarantees. Usable for recovering from a translator
// failure where the slot was already claimed and must be published to
// avoid stalling the consumer; EventPublisher's own recovery path calls
// Publish, not ForcePublish.
func (s *Sequencer) ForcePublish(sequence int64) {
	s.cursor.Set(sequence)
	s.wait.SignalAllWhenBlocking()
}

// HasAvailableCapacity reports, advisedly, whether the next claim would
// not block.
func (s *Sequencer) HasAvailableCapacity() bool {
	return s.claim.HasAvailableCapacity(s.gating)
}

// Cursor returns the highest published sequence.
func (s *Sequencer) Cursor() int64 {
	return s.cursor.Get()
}

// OccupiedCapacity returns the number of published sequences the slowest
// gating sequence has not yet passed, modulo the capacity: a buffer
// holding exactly capacity unconsumed events reports 0.
func (s *Sequencer) OccupiedCapacity() int64 {
	consumed := seq.MinimumSequence(s.gating)
	produced := s.cursor.Get()
	return ((produced - consumed) + s.capacity) % s.capacity
}

// RemainingCapacity returns the capacity minus OccupiedCapacity.
func (s *Sequencer) RemainingCapacity() int64 {
	return s.capacity - s.OccupiedCapacity()
}

// NewBarrier returns a SequenceBarrier over this Sequencer's cursor,
// additionally gated on dependents (the sequences of upstream consumers,
// for a multi-stage reader group).
func (s *Sequencer) NewBarrier(dependents ...seq.Reader) *barrier.SequenceBarrier {
	return barrier.New(s.wait, s.cursor, dependents)
}
