//go:build rp2040 || rp2350

package main

import (
	"machine"
	"time"

	"tlesense/core"
	"tlesense/firmware"
	"tlesense/tle5012b"
)

// Sensor wiring. SCK, MOSI and MISO are the SPI0 pins of Klipper's "spi0c"
// bus; the TLE5012B DATA line sits on MISO and reaches MOSI through a
// series resistor.
const (
	pinSCK  = machine.GPIO18
	pinMOSI = machine.GPIO19
	pinMISO = machine.GPIO16
	pinCS   = machine.GPIO17
)

var (
	// Debug counters
	framesHandled uint32
	msgerrors     uint32
)

func main() {
	// Disable a watchdog left running by a previous image
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	InitUSB()
	InitDebugUART()
	core.SetDebugWriter(DebugPrintln)
	core.SetDebugEnabled(debugEnabled)
	core.InitAsyncDebug()

	gpio := NewRPGPIODriver()
	bus, err := newSensorBus(gpio)
	if err != nil {
		halt("sensor bus: " + err.Error())
	}

	dev := tle5012b.New(bus, gpio, tle5012b.DefaultConfig(core.GPIOPin(pinCS)))
	if err := dev.Configure(); err != nil {
		halt("sensor configure: " + err.Error())
	}
	core.DebugPrintln("[MAIN] TLE5012B on " + busName)

	if status, err := dev.ReadStatus(); err == nil {
		core.DebugPrintln("[MAIN] status " + tle5012b.Status(status).String())
	}

	port := &usbPort{}
	svc := firmware.NewService(dev, port,
		firmware.WithConstant("BUS", busName),
		firmware.WithConstant("CS_PIN", "gpio"+core.Itoa(int(pinCS))))

	// Build the dictionary now rather than inside the first request
	core.DebugPrintln("[MAIN] dictionary " + core.Itoa(svc.Dictionary().Size()) + " bytes")

	var rx [64]byte
	for {
		// Recover from panics in the main loop to prevent a firmware crash
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgerrors++
					core.DumpTransactions()
				}
			}()

			n := readUSB(rx[:])
			if n > 0 {
				if err := svc.HandleInput(rx[:n]); err != nil {
					msgerrors++
				}
				framesHandled++
			}

			if err := svc.Poll(); err != nil {
				msgerrors++
			}
		}()

		// Yield to other goroutines
		time.Sleep(100 * time.Microsecond)
	}
}

// halt reports a fatal start-up error and blinks the LED forever.
func halt(msg string) {
	core.DebugPrintln("[MAIN] " + msg)
	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	for {
		led.High()
		time.Sleep(100 * time.Millisecond)
		led.Low()
		time.Sleep(900 * time.Millisecond)
	}
}
