package hardware

import (
	"time"

	"golang.org/x/sys/unix"
)

// MonotonicClock supplies millisecond timestamps from CLOCK_MONOTONIC, so
// the scheduler is immune to wall-clock steps.
type MonotonicClock struct{}

// NowMs returns the monotonic time in milliseconds.
func (MonotonicClock) NowMs() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		// Fallback keeps the scheduler running if the syscall is denied.
		return time.Now().UnixMilli()
	}
	return ts.Sec*1000 + ts.Nsec/1_000_000
}
