// Package serial opens the USB CDC port the sensor firmware enumerates as.
package serial

import (
	"errors"
	"io"
	"time"
)

// Port represents a serial port interface. It is satisfied by the native
// port and by in-memory pipes in tests.
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate. USB CDC ignores it but tarm/serial requires one.
	Baud int

	// Read timeout (0 = blocking)
	ReadTimeout time.Duration
}

var ErrNoDevice = errors.New("serial device not set")

// DefaultConfig returns the configuration used for the firmware's USB port
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100 * time.Millisecond,
	}
}
