//go:build tinygo

package core

import (
	"time"

	"tinygo.org/x/drivers/delay"
)

// busyThreshold is the longest delay that is spun instead of slept.
const busyThreshold = 500 * time.Microsecond

// BusyDelay burns CPU cycles for the requested time using the cycle
// counted loop from tinygo.org/x/drivers/delay.
var BusyDelay Delayer = DelayFunc(func(d time.Duration) {
	delay.Sleep(d)
})

// DefaultDelayer spins for sub-millisecond bit and turnaround delays and
// sleeps for longer settle times.
func DefaultDelayer() Delayer {
	return DelayFunc(func(d time.Duration) {
		if d < busyThreshold {
			delay.Sleep(d)
			return
		}
		time.Sleep(d)
	})
}
