package disruptor

import "testing"

func TestNewRingBuffer_RoundsUpToPowerOfTwo(t *testing.T) {
	testCases := []struct {
		name     string
		capacity int64
		want     int64
		wantErr  bool
	}{
		{name: "already power of two", capacity: 8, want: 8},
		{name: "rounds up", capacity: 5, want: 8},
		{name: "one", capacity: 1, want: 1},
		{name: "zero is invalid", capacity: 0, wantErr: true},
		{name: "negative is invalid", capacity: -4, wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := NewRingBuffer[int](tc.capacity)
			if (err != nil) != tc.wantErr {
				t.Fatalf("NewRingBuffer() error = %v, wantErr %v", err, tc.wantErr)
			}
			if tc.wantErr {
				return
			}
			if got := r.Capacity(); got != tc.want {
				t.Errorf("Capacity() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestRingBuffer_GetWrapsByMask(t *testing.T) {
	r, err := NewRingBuffer[int](4)
	if err != nil {
		t.Fatal(err)
	}
	*r.Get(0) = 10
	*r.Get(4) = 99
	if got := *r.Get(0); got != 99 {
		t.Errorf("Get(0) after writing Get(4) = %d, want 99 (same slot mod capacity)", got)
	}
}
