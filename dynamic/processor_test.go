package dynamic

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/google/go-cmp/cmp"
)

type recordingHandler struct {
	mu       sync.Mutex
	started  bool
	shutdown bool
	got      []int
}

func (h *recordingHandler) OnStart()    { h.mu.Lock(); h.started = true; h.mu.Unlock() }
func (h *recordingHandler) OnShutdown() { h.mu.Lock(); h.shutdown = true; h.mu.Unlock() }

func (h *recordingHandler) OnEvent(sequence int64, batchSize int64, endOfBatch bool, event *int, ok bool) error {
	if !ok {
		return nil
	}
	h.mu.Lock()
	h.got = append(h.got, *event)
	h.mu.Unlock()
	return nil
}

func (h *recordingHandler) snapshot() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int(nil), h.got...)
}

func TestProcessor_DrainsEnqueuedValuesInOrder(t *testing.T) {
	const n = 19
	ring := NewRingBuffer[int](WithBlockSize(8))
	handler := &recordingHandler{}
	p := NewProcessor[int](ring, Sleeping, handler, WithMaxIdle[int](time.Millisecond))

	done := make(chan error, 1)
	go func() { done <- p.Run() }()

	for i := 0; i < n; i++ {
		ring.Enqueue(i)
	}

	require.Eventually(t, func() bool {
		return len(handler.snapshot()) == n
	}, time.Second, time.Millisecond, "processor did not drain all enqueued values")

	p.Halt()
	require.NoError(t, <-done)

	want := make([]int, n)
	for i := range want {
		want[i] = i
	}
	if diff := cmp.Diff(want, handler.snapshot()); diff != "" {
		t.Errorf("drained values (-want +got):\n%s", diff)
	}
	require.True(t, handler.started)
	require.True(t, handler.shutdown)
}

func TestProcessor_RunTwiceWithoutHaltRaises(t *testing.T) {
	ring := NewRingBuffer[int](WithBlockSize(4))
	handler := &recordingHandler{}
	p := NewProcessor[int](ring, Yielding, handler)

	done := make(chan error, 1)
	go func() { done <- p.Run() }()
	time.Sleep(2 * time.Millisecond)

	require.ErrorIs(t, p.Run(), ErrAlreadyRunning)

	p.Halt()
	<-done
}

type erroringHandler struct{}

func (erroringHandler) OnStart()    {}
func (erroringHandler) OnShutdown() {}
func (erroringHandler) OnEvent(sequence int64, batchSize int64, endOfBatch bool, event *int, ok bool) error {
	if !ok {
		return nil
	}
	return errors.New("handler failed")
}

func TestProcessor_ExceptionHandlerCanForceShutdown(t *testing.T) {
	ring := NewRingBuffer[int](WithBlockSize(4))
	boom := errors.New("boom")
	p := NewProcessor[int](ring, Sleeping, erroringHandler{},
		WithExceptionHandler[int](exceptionHandlerFunc(func(err error, sequence int64, event *int) error {
			return boom
		})),
	)

	done := make(chan error, 1)
	go func() { done <- p.Run() }()
	ring.Enqueue(1)

	select {
	case err := <-done:
		require.ErrorIs(t, err, boom)
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after the exception handler forced shutdown")
	}
}

type exceptionHandlerFunc func(err error, sequence int64, event *int) error

func (f exceptionHandlerFunc) Handle(err error, sequence int64, event *int) error {
	return f(err, sequence, event)
}
