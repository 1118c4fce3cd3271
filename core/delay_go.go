//go:build !tinygo

package core

// DefaultDelayer returns the delay primitive for the current platform.
// Hosted Go has no cycle counter, so every delay sleeps.
func DefaultDelayer() Delayer {
	return SleepDelay
}
