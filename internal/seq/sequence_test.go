package seq

import "testing"

func TestSequenceGetSet(t *testing.T) {
	s := NewSequence(InitialValue)
	if got := s.Get(); got != InitialValue {
		t.Fatalf("Get() = %d, want %d", got, InitialValue)
	}
	s.Set(41)
	if got := s.Get(); got != 41 {
		t.Fatalf("Get() = %d, want 41", got)
	}
}

func TestSequenceIncrementAndGet(t *testing.T) {
	s := NewSequence(0)
	if got := s.IncrementAndGet(5); got != 5 {
		t.Fatalf("IncrementAndGet(5) = %d, want 5", got)
	}
	if got := s.IncrementAndGet(1); got != 6 {
		t.Fatalf("IncrementAndGet(1) = %d, want 6", got)
	}
}

func TestSequenceCompareAndSwap(t *testing.T) {
	s := NewSequence(10)
	if !s.CompareAndSwap(10, 20) {
		t.Fatalf("CompareAndSwap(10, 20) = false, want true")
	}
	if got := s.Get(); got != 20 {
		t.Fatalf("Get() = %d, want 20", got)
	}
	if s.CompareAndSwap(10, 30) {
		t.Fatalf("CompareAndSwap(10, 30) = true, want false (stale expected)")
	}
}

func TestMinimumSequence(t *testing.T) {
	testCases := []struct {
		name string
		seqs []Reader
		want int64
	}{
		{name: "empty returns max", seqs: nil, want: maxInt64},
		{name: "single", seqs: []Reader{NewSequence(5)}, want: 5},
		{
			name: "multiple",
			seqs: []Reader{NewSequence(5), NewSequence(2), NewSequence(9)},
			want: 2,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MinimumSequence(tc.seqs); got != tc.want {
				t.Errorf("MinimumSequence() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestPaddedLong(t *testing.T) {
	p := NewPaddedLong(7)
	if got := p.Get(); got != 7 {
		t.Fatalf("Get() = %d, want 7", got)
	}
	if got := p.IncrementAndGet(3); got != 10 {
		t.Fatalf("IncrementAndGet(3) = %d, want 10", got)
	}
}
