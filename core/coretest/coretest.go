// Package coretest provides in-memory implementations of the core hardware
// interfaces for tests: a GPIO bank with edge hooks, a delay recorder and a
// scripted SPI bus.
package coretest

import (
	"errors"
	"sync"
	"time"

	"tlesense/core"
)

// ErrInjected is a convenient failure for tests that exercise error paths.
var ErrInjected = errors.New("coretest: injected failure")

// PinWrite is one SetPin call made by the code under test.
type PinWrite struct {
	Pin   core.GPIOPin
	Value bool
}

// GPIO is a core.GPIODriver backed by maps. It records every SetPin call in
// order and lets a simulated device react to pin changes through OnSet.
type GPIO struct {
	mu      sync.Mutex
	levels  map[core.GPIOPin]bool
	outputs map[core.GPIOPin]bool
	writes  []PinWrite

	// OnSet runs after a pin has been set by the code under test. It may
	// call Drive to change other pins.
	OnSet func(pin core.GPIOPin, value bool)

	// Err, when non-nil, is returned by every operation.
	Err error

	// FailPin limits Err to operations on this pin when FailOnly is set.
	FailPin  core.GPIOPin
	FailOnly bool
}

// NewGPIO returns an empty GPIO bank with every pin low.
func NewGPIO() *GPIO {
	return &GPIO{
		levels:  make(map[core.GPIOPin]bool),
		outputs: make(map[core.GPIOPin]bool),
	}
}

func (g *GPIO) fail(pin core.GPIOPin) error {
	if g.Err == nil {
		return nil
	}
	if g.FailOnly && pin != g.FailPin {
		return nil
	}
	return g.Err
}

// ConfigureOutput implements core.GPIODriver.
func (g *GPIO) ConfigureOutput(pin core.GPIOPin) error {
	if err := g.fail(pin); err != nil {
		return err
	}
	g.mu.Lock()
	g.outputs[pin] = true
	g.mu.Unlock()
	return nil
}

// ConfigureInput implements core.GPIODriver.
func (g *GPIO) ConfigureInput(pin core.GPIOPin) error {
	if err := g.fail(pin); err != nil {
		return err
	}
	g.mu.Lock()
	g.outputs[pin] = false
	g.mu.Unlock()
	return nil
}

// SetPin implements core.GPIODriver.
func (g *GPIO) SetPin(pin core.GPIOPin, value bool) error {
	if err := g.fail(pin); err != nil {
		return err
	}
	g.mu.Lock()
	g.levels[pin] = value
	g.writes = append(g.writes, PinWrite{Pin: pin, Value: value})
	hook := g.OnSet
	g.mu.Unlock()

	if hook != nil {
		hook(pin, value)
	}
	return nil
}

// GetPin implements core.GPIODriver.
func (g *GPIO) GetPin(pin core.GPIOPin) (bool, error) {
	if err := g.fail(pin); err != nil {
		return false, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.levels[pin], nil
}

// Drive sets a pin level from the device side without recording a write.
func (g *GPIO) Drive(pin core.GPIOPin, value bool) {
	g.mu.Lock()
	g.levels[pin] = value
	g.mu.Unlock()
}

// Level returns the current level of pin.
func (g *GPIO) Level(pin core.GPIOPin) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.levels[pin]
}

// IsOutput reports whether pin was last configured as an output.
func (g *GPIO) IsOutput(pin core.GPIOPin) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.outputs[pin]
}

// Writes returns the values written to pin, in order.
func (g *GPIO) Writes(pin core.GPIOPin) []bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []bool
	for _, w := range g.writes {
		if w.Pin == pin {
			out = append(out, w.Value)
		}
	}
	return out
}

// AllWrites returns every recorded write.
func (g *GPIO) AllWrites() []PinWrite {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]PinWrite(nil), g.writes...)
}

// ResetWrites forgets the write history but keeps pin levels.
func (g *GPIO) ResetWrites() {
	g.mu.Lock()
	g.writes = nil
	g.mu.Unlock()
}

// Delays is a core.Delayer that records requested durations instead of
// waiting.
type Delays struct {
	mu    sync.Mutex
	calls []time.Duration
}

// Delay implements core.Delayer.
func (d *Delays) Delay(v time.Duration) {
	d.mu.Lock()
	d.calls = append(d.calls, v)
	d.mu.Unlock()
}

// Calls returns every recorded duration.
func (d *Delays) Calls() []time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]time.Duration(nil), d.calls...)
}

// Total returns the sum of all recorded durations.
func (d *Delays) Total() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	var total time.Duration
	for _, v := range d.calls {
		total += v
	}
	return total
}

// Bus is a scripted tinygo.org/x/drivers.SPI. Every Tx records the bytes
// written and fills r from the Replies queue (zeros once it runs dry).
type Bus struct {
	Written [][]byte
	Replies []byte
	Err     error
}

// Tx implements drivers.SPI.
func (b *Bus) Tx(w, r []byte) error {
	if b.Err != nil {
		return b.Err
	}
	if len(w) != len(r) {
		return errors.New("coretest: expect lengths to be equal")
	}
	b.Written = append(b.Written, append([]byte(nil), w...))
	for i := range r {
		if len(b.Replies) == 0 {
			r[i] = 0
			continue
		}
		r[i] = b.Replies[0]
		b.Replies = b.Replies[1:]
	}
	return nil
}

// Transfer implements drivers.SPI.
func (b *Bus) Transfer(c byte) (byte, error) {
	r := []byte{0}
	if err := b.Tx([]byte{c}, r); err != nil {
		return 0, err
	}
	return r[0], nil
}
