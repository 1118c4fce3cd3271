//go:build rp2040 || rp2350

package main

import (
	"errors"
	"machine"
)

var errUSBStalled = errors.New("usb write made no progress")

// InitUSB initializes USB serial communication.
// On RP2040 machine.Serial is USB CDC, not a UART.
func InitUSB() {
	_ = machine.Serial.Configure(machine.UARTConfig{})
}

// readUSB drains buffered USB bytes into buf and returns the count.
func readUSB(buf []byte) int {
	n := 0
	for n < len(buf) && machine.Serial.Buffered() > 0 {
		b, err := machine.Serial.ReadByte()
		if err != nil {
			msgerrors++
			break
		}
		buf[n] = b
		n++
	}
	return n
}

// usbPort writes response frames to the host. After repeated failures it
// assumes the host went away and drops the frame.
type usbPort struct {
	consecutiveFailures uint32
}

func (p *usbPort) Write(data []byte) (int, error) {
	written := 0
	for written < len(data) {
		n, err := machine.Serial.Write(data[written:])
		if err == nil && n == 0 {
			err = errUSBStalled
		}
		if err != nil {
			p.consecutiveFailures++
			if p.consecutiveFailures > 10 {
				p.consecutiveFailures = 0
				// Pretend success so stale frames are not retried
				return len(data), nil
			}
			return written, err
		}
		written += n
	}
	p.consecutiveFailures = 0
	return written, nil
}
