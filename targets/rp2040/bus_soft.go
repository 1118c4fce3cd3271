//go:build (rp2040 || rp2350) && tle_soft

package main

import "tlesense/core"

const busName = "gpio (software)"

// newSensorBus bit-bangs the SSC interface on the single DATA line. MOSI is
// left unconfigured so it does not fight the sensor through the resistor.
func newSensorBus(gpio core.GPIODriver) (core.RegisterTransport, error) {
	pins := core.SoftwareSPIPins{
		SCK: core.GPIOPin(pinSCK),
		SDO: core.GPIOPin(pinMISO),
		SDI: core.GPIOPin(pinMISO),
	}
	return core.NewSoftwareSPI(gpio, pins, core.SPIMode1, core.DefaultSoftwareRate, core.BusyDelay)
}
