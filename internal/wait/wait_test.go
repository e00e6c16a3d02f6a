package wait

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fluxring/disruptor/internal/seq"
)

type fakeBarrier struct {
	mu      sync.Mutex
	alerted bool
}

func (f *fakeBarrier) CheckAlert() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.alerted {
		return errAlert
	}
	return nil
}

func (f *fakeBarrier) alert() {
	f.mu.Lock()
	f.alerted = true
	f.mu.Unlock()
}

var errAlert = errors.New("alerted")

func TestStrategies_WaitForUnblocksOnCursorAdvance(t *testing.T) {
	testCases := []struct {
		name   string
		option Option
	}{
		{"Blocking", Blocking},
		{"Sleeping", Sleeping},
		{"Yielding", Yielding},
		{"BusySpin", BusySpin},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			strategy := New(tc.option, TimeConfig{Sleep: time.Millisecond, MaxIdle: time.Microsecond})
			cursor := seq.NewSequence(seq.InitialValue)
			barrier := &fakeBarrier{}

			done := make(chan int64, 1)
			go func() {
				available, err := strategy.WaitFor(0, cursor, nil, barrier)
				if err != nil {
					t.Errorf("WaitFor() error = %v", err)
				}
				done <- available
			}()

			time.Sleep(5 * time.Millisecond)
			cursor.Set(0)
			strategy.SignalAllWhenBlocking()

			select {
			case available := <-done:
				if available < 0 {
					t.Errorf("WaitFor() available = %d, want >= 0", available)
				}
			case <-time.After(time.Second):
				t.Fatal("WaitFor() did not unblock after cursor advanced")
			}
		})
	}
}

func TestStrategies_WaitForReturnsOnAlert(t *testing.T) {
	testCases := []struct {
		name   string
		option Option
	}{
		{"Blocking", Blocking},
		{"Sleeping", Sleeping},
		{"Yielding", Yielding},
		{"BusySpin", BusySpin},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			strategy := New(tc.option, TimeConfig{Sleep: time.Millisecond, MaxIdle: time.Microsecond})
			cursor := seq.NewSequence(seq.InitialValue)
			barrier := &fakeBarrier{}

			done := make(chan error, 1)
			go func() {
				_, err := strategy.WaitFor(0, cursor, nil, barrier)
				done <- err
			}()

			time.Sleep(5 * time.Millisecond)
			barrier.alert()
			strategy.SignalAllWhenBlocking()

			select {
			case err := <-done:
				if !errors.Is(err, errAlert) {
					t.Errorf("WaitFor() error = %v, want %v", err, errAlert)
				}
			case <-time.After(time.Second):
				t.Fatal("WaitFor() did not return after alert")
			}
		})
	}
}

func TestStrategies_WaitForTimeoutExpires(t *testing.T) {
	strategy := New(Sleeping, TimeConfig{Sleep: time.Millisecond, MaxIdle: time.Microsecond})
	cursor := seq.NewSequence(seq.InitialValue)
	barrier := &fakeBarrier{}

	start := time.Now()
	available, err := strategy.WaitForTimeout(0, cursor, nil, barrier, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitForTimeout() error = %v", err)
	}
	if available >= 0 {
		t.Errorf("WaitForTimeout() available = %d, want < 0 (nothing published)", available)
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Errorf("WaitForTimeout() returned after %v, want >= ~20ms", elapsed)
	}
}

func TestAvailableFrom(t *testing.T) {
	cursor := seq.NewSequence(5)
	if available, ok := availableFrom(cursor, nil, 5); !ok || available != 5 {
		t.Errorf("availableFrom() = (%d, %v), want (5, true)", available, ok)
	}
	if _, ok := availableFrom(cursor, nil, 6); ok {
		t.Errorf("availableFrom() ok = true, want false")
	}
	dependents := []seq.Reader{seq.NewSequence(5), seq.NewSequence(2)}
	if available, ok := availableFrom(cursor, dependents, 2); !ok || available != 2 {
		t.Errorf("availableFrom() with dependents = (%d, %v), want (2, true)", available, ok)
	}
}
