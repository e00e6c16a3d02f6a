package disruptor

// Translator writes event data into the preallocated slot for sequence. It
// must not retain slot beyond the call.
type Translator[T any] interface {
	TranslateTo(sequence int64, slot *T)
}

// TranslatorFunc adapts a plain function to Translator.
type TranslatorFunc[T any] func(sequence int64, slot *T)

// TranslateTo calls f.
func (f TranslatorFunc[T]) TranslateTo(sequence int64, slot *T) { f(sequence, slot) }

// EventPublisher claims a sequence, fills the corresponding slot via a
// Translator, and publishes it, on top of a Sequencer and RingBuffer pair.
type EventPublisher[T any] struct {
	sequencer *Sequencer
	ring      *RingBuffer[T]
}

// NewEventPublisher returns an EventPublisher over sequencer and ring.
// sequencer.Capacity() and ring.Capacity() must match.
func NewEventPublisher[T any](sequencer *Sequencer, ring *RingBuffer[T]) *EventPublisher[T] {
	return &EventPublisher[T]{sequencer: sequencer, ring: ring}
}

// PublishEvent claims the next sequence, runs translator against its slot,
// and publishes. If translator panics, the already-claimed sequence is
// still published (forwarding whatever partial write occurred) so the
// consumer is never stalled waiting on a slot that will never publish;
// the panic is re-raised to the caller after publishing.
func (p *EventPublisher[T]) PublishEvent(translator Translator[T]) {
	sequence := p.sequencer.Next()
	defer p.sequencer.Publish(sequence)
	translator.TranslateTo(sequence, p.ring.Get(sequence))
}

// TryPublishEvent is PublishEvent but returns false, without claiming,
// if HasAvailableCapacity reports the buffer full. This check-then-claim
// is advisory only: a racing producer may fill the buffer in between in a
// multi-producer configuration.
func (p *EventPublisher[T]) TryPublishEvent(translator Translator[T]) bool {
	if !p.sequencer.HasAvailableCapacity() {
		return false
	}
	p.PublishEvent(translator)
	return true
}

// Reservation is an explicit claim/publish handle for callers that need to
// separate "reserve a slot" from "fill it" from "make it visible" — for
// example to recover from a translator failure without double-claiming.
type Reservation[T any] struct {
	sequence int64
	slot     *T
}

// Claim reserves the next sequence and returns a Reservation exposing its
// slot. The caller must call Publish exactly once, even if filling the
// slot fails, or the consumer stalls waiting for this sequence forever.
func (p *EventPublisher[T]) Claim() Reservation[T] {
	sequence := p.sequencer.Next()
	return Reservation[T]{sequence: sequence, slot: p.ring.Get(sequence)}
}

// Slot returns the reserved slot to fill in place.
func (r Reservation[T]) Slot() *T { return r.slot }

// Sequence returns the reserved sequence number.
func (r Reservation[T]) Sequence() int64 { return r.sequence }

// Publish makes the reservation's sequence visible to consumers. Safe to
// call even if the slot was never filled or filling it failed partway —
// publishing an incompletely-written slot is preferable to stalling the
// consumer indefinitely, per this module's resolution of translator
// failure semantics: callers that need stricter guarantees should fill
// the slot with a sentinel value before calling Publish.
func (p *EventPublisher[T]) Publish(r Reservation[T]) {
	p.sequencer.Publish(r.sequence)
}
