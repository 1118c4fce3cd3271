//go:build (rp2040 || rp2350) && tle_pio

package main

import (
	"machine"

	pio "github.com/tinygo-org/pio/rp2-pio"
	"github.com/tinygo-org/pio/rp2-pio/piolib"

	"tlesense/core"
)

const busName = "pio0 (state machine SPI)"

const sensorSPIRate = 1000000

// newSensorBus runs an SPI program on a PIO0 state machine, leaving both
// hardware SPI controllers free.
func newSensorBus(gpio core.GPIODriver) (core.RegisterTransport, error) {
	sm, err := pio.PIO0.ClaimStateMachine()
	if err != nil {
		return nil, err
	}
	spi, err := piolib.NewSPI(sm, machine.SPIConfig{
		Frequency: sensorSPIRate,
		SCK:       pinSCK,
		SDO:       pinMOSI,
		SDI:       pinMISO,
		Mode:      uint8(core.SPIMode1),
	})
	if err != nil {
		return nil, err
	}
	return core.NewBusSPI(spi), nil
}
