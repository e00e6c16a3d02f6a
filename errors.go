package disruptor

import "fmt"

var (
	// ErrCapacity is returned when a requested buffer capacity is not a
	// positive integer.
	ErrCapacity = fmt.Errorf("disruptor: capacity must be positive")

	// ErrAlreadyRunning is returned by BatchEventProcessor.Run if the
	// processor's state is not new/halted when Run is called.
	ErrAlreadyRunning = fmt.Errorf("disruptor: processor is already running")
)
