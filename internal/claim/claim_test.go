package claim

import (
	"sync"
	"testing"

	"github.com/fluxring/disruptor/internal/seq"
)

func TestSingleThreaded_ClaimAndPublish(t *testing.T) {
	s := New(SingleThreaded, 8)
	cursor := seq.NewSequence(seq.InitialValue)
	consumer := seq.NewSequence(seq.InitialValue)
	dependents := []seq.Reader{consumer}

	next := s.IncrementAndGet(1, dependents)
	if next != 0 {
		t.Fatalf("IncrementAndGet(1) = %d, want 0", next)
	}
	s.SerialisePublishing(next, cursor, 1)
	if got := cursor.Get(); got != 0 {
		t.Fatalf("cursor.Get() = %d, want 0", got)
	}
}

func TestSingleThreaded_WaitsForFreeSlot(t *testing.T) {
	s := New(SingleThreaded, 2)
	consumer := seq.NewSequence(seq.InitialValue)
	dependents := []seq.Reader{consumer}

	// Fill the 2-slot buffer: sequences 0 and 1 claim without blocking.
	s.IncrementAndGet(1, dependents)
	s.IncrementAndGet(1, dependents)

	claimed := make(chan int64, 1)
	go func() {
		claimed <- s.IncrementAndGet(1, dependents)
	}()

	select {
	case <-claimed:
		t.Fatal("IncrementAndGet() returned before consumer freed a slot")
	default:
	}

	consumer.Set(0)
	if got := <-claimed; got != 2 {
		t.Fatalf("IncrementAndGet() = %d, want 2", got)
	}
}

func TestMultiThreadedLowContention_SerializesPublishOrder(t *testing.T) {
	s := New(MultiThreadedLowContention, 1024)
	cursor := seq.NewSequence(seq.InitialValue)
	consumer := seq.NewSequence(seq.InitialValue)
	dependents := []seq.Reader{consumer}

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			next := s.IncrementAndGet(1, dependents)
			s.SerialisePublishing(next, cursor, 1)
		}()
	}
	wg.Wait()

	if got := cursor.Get(); got != n-1 {
		t.Fatalf("cursor.Get() = %d, want %d", got, n-1)
	}
}

func TestMultiThreaded_PublishesMonotonically(t *testing.T) {
	s := New(MultiThreaded, 4096)
	cursor := seq.NewSequence(seq.InitialValue)
	consumer := seq.NewSequence(seq.InitialValue)
	dependents := []seq.Reader{consumer}

	const producers = 3
	const perProducer = 2000
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				next := s.IncrementAndGet(1, dependents)
				s.SerialisePublishing(next, cursor, 1)
				consumer.Set(next)
			}
		}()
	}
	wg.Wait()

	if got := cursor.Get(); got != producers*perProducer-1 {
		t.Fatalf("cursor.Get() = %d, want %d", got, producers*perProducer-1)
	}
}

func TestHasAvailableCapacity(t *testing.T) {
	s := New(SingleThreaded, 2)
	consumer := seq.NewSequence(seq.InitialValue)
	dependents := []seq.Reader{consumer}

	if !s.HasAvailableCapacity(dependents) {
		t.Fatal("HasAvailableCapacity() = false on an empty buffer, want true")
	}
	s.IncrementAndGet(1, dependents)
	s.IncrementAndGet(1, dependents)
	if s.HasAvailableCapacity(dependents) {
		t.Fatal("HasAvailableCapacity() = true on a full buffer, want false")
	}
}
