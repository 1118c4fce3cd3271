//go:build (rp2040 || rp2350) && !tle_soft && !tle_pio

package main

import (
	"machine"

	"tlesense/core"
)

const busName = "spi0 (hardware)"

// sensorSPIRate is well below the 8 MHz SSC limit so the series resistor on
// the shared data line does not matter.
const sensorSPIRate = 1000000

// newSensorBus runs the sensor on the SPI0 controller in mode 1.
func newSensorBus(gpio core.GPIODriver) (core.RegisterTransport, error) {
	err := machine.SPI0.Configure(machine.SPIConfig{
		Frequency: sensorSPIRate,
		SCK:       pinSCK,
		SDO:       pinMOSI,
		SDI:       pinMISO,
		Mode:      uint8(core.SPIMode1),
	})
	if err != nil {
		return nil, err
	}
	return core.NewBusSPI(machine.SPI0), nil
}
