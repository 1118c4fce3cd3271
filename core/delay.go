package core

import "time"

// Delayer blocks for at least the requested duration. It replaces the
// spin loops of C firmware with an explicit minimum-dwell primitive.
type Delayer interface {
	Delay(d time.Duration)
}

// DelayFunc adapts a plain function to the Delayer interface.
type DelayFunc func(d time.Duration)

// Delay calls f(d).
func (f DelayFunc) Delay(d time.Duration) {
	if d <= 0 {
		return
	}
	f(d)
}

// SleepDelay yields to the scheduler for the requested time. It is the right
// choice for millisecond settle times but too coarse for bit clocks.
var SleepDelay Delayer = DelayFunc(time.Sleep)
