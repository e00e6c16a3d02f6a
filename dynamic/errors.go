package dynamic

import "fmt"

// ErrAlreadyRunning is returned by Processor.Run if called while the
// processor is already running.
var ErrAlreadyRunning = fmt.Errorf("dynamic: processor is already running")
