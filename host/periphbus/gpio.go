package periphbus

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"

	"tlesense/core"
)

// GPIO implements core.GPIODriver over periph pins. Pins must be added
// before use; the core.GPIOPin number is the periph pin number.
type GPIO struct {
	mu   sync.Mutex
	pins map[core.GPIOPin]gpio.PinIO
}

// NewGPIO creates an empty pin set.
func NewGPIO() *GPIO {
	return &GPIO{pins: make(map[core.GPIOPin]gpio.PinIO)}
}

// Add registers p and returns the number it is addressed by.
func (g *GPIO) Add(p gpio.PinIO) core.GPIOPin {
	g.mu.Lock()
	defer g.mu.Unlock()
	pin := core.GPIOPin(p.Number())
	g.pins[pin] = p
	return pin
}

// AddByName looks name up in the periph registry and registers it.
func (g *GPIO) AddByName(name string) (core.GPIOPin, error) {
	if err := Init(); err != nil {
		return 0, err
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return 0, fmt.Errorf("%w: %s", ErrUnknownPin, name)
	}
	return g.Add(p), nil
}

func (g *GPIO) pin(pin core.GPIOPin) (gpio.PinIO, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.pins[pin]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPin, pin)
	}
	return p, nil
}

// ConfigureOutput switches the pin to output at its current level, so a
// chip select that idles high does not glitch.
func (g *GPIO) ConfigureOutput(pin core.GPIOPin) error {
	p, err := g.pin(pin)
	if err != nil {
		return err
	}
	return p.Out(p.Read())
}

// ConfigureInput switches the pin to a floating input.
func (g *GPIO) ConfigureInput(pin core.GPIOPin) error {
	p, err := g.pin(pin)
	if err != nil {
		return err
	}
	return p.In(gpio.PullNoChange, gpio.NoEdge)
}

// SetPin drives the pin.
func (g *GPIO) SetPin(pin core.GPIOPin, value bool) error {
	p, err := g.pin(pin)
	if err != nil {
		return err
	}
	return p.Out(gpio.Level(value))
}

// GetPin reads the pin level.
func (g *GPIO) GetPin(pin core.GPIOPin) (bool, error) {
	p, err := g.pin(pin)
	if err != nil {
		return false, err
	}
	return p.Read() == gpio.High, nil
}
