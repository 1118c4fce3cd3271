// Package rpigpio drives Raspberry Pi header pins through
// github.com/warthog618/gpio (direct /dev/gpiomem access). It backs the
// bit-banged sensor transport on the host.
package rpigpio

import (
	"sync"

	"github.com/warthog618/gpio"

	"tlesense/core"
)

// Pin is the subset of *gpio.Pin the driver uses.
type Pin interface {
	Input()
	Output()
	Write(level gpio.Level)
	Read() gpio.Level
}

// Driver implements core.GPIODriver with BCM pin numbers.
type Driver struct {
	mu     sync.Mutex
	pins   map[core.GPIOPin]Pin
	newPin func(core.GPIOPin) Pin
	closer func() error
}

// Open maps the GPIO registers. Close releases them.
func Open() (*Driver, error) {
	if err := gpio.Open(); err != nil {
		return nil, err
	}
	return newDriver(func(pin core.GPIOPin) Pin {
		return gpio.NewPin(int(pin))
	}, gpio.Close), nil
}

func newDriver(newPin func(core.GPIOPin) Pin, closer func() error) *Driver {
	return &Driver{
		pins:   make(map[core.GPIOPin]Pin),
		newPin: newPin,
		closer: closer,
	}
}

func (d *Driver) get(pin core.GPIOPin) Pin {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pins[pin]
	if !ok {
		p = d.newPin(pin)
		d.pins[pin] = p
	}
	return p
}

// ConfigureOutput implements core.GPIODriver.
func (d *Driver) ConfigureOutput(pin core.GPIOPin) error {
	d.get(pin).Output()
	return nil
}

// ConfigureInput implements core.GPIODriver.
func (d *Driver) ConfigureInput(pin core.GPIOPin) error {
	d.get(pin).Input()
	return nil
}

// SetPin implements core.GPIODriver.
func (d *Driver) SetPin(pin core.GPIOPin, value bool) error {
	d.get(pin).Write(gpio.Level(value))
	return nil
}

// GetPin implements core.GPIODriver.
func (d *Driver) GetPin(pin core.GPIOPin) (bool, error) {
	return bool(d.get(pin).Read()), nil
}

// Close returns every used pin to input and unmaps the registers.
func (d *Driver) Close() error {
	d.mu.Lock()
	for _, p := range d.pins {
		p.Input()
	}
	d.pins = make(map[core.GPIOPin]Pin)
	d.mu.Unlock()

	if d.closer != nil {
		return d.closer()
	}
	return nil
}
