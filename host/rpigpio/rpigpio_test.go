package rpigpio

import (
	"testing"

	"github.com/warthog618/gpio"

	"tlesense/core"
	"tlesense/core/coretest"
)

// fakePin loops the level back when configured as output.
type fakePin struct {
	output bool
	level  gpio.Level
	writes int
}

func (p *fakePin) Input()                 { p.output = false }
func (p *fakePin) Output()                { p.output = true }
func (p *fakePin) Write(level gpio.Level) { p.level = level; p.writes++ }
func (p *fakePin) Read() gpio.Level       { return p.level }

func newFakeDriver() (*Driver, map[core.GPIOPin]*fakePin) {
	pins := make(map[core.GPIOPin]*fakePin)
	d := newDriver(func(pin core.GPIOPin) Pin {
		p := &fakePin{}
		pins[pin] = p
		return p
	}, nil)
	return d, pins
}

func TestDriverPins(t *testing.T) {
	d, pins := newFakeDriver()

	if err := d.ConfigureOutput(11); err != nil {
		t.Fatalf("ConfigureOutput: %v", err)
	}
	if !pins[11].output {
		t.Error("Pin 11 not an output")
	}

	d.SetPin(11, true)
	if v, _ := d.GetPin(11); !v {
		t.Error("Pin 11 should read high")
	}

	d.ConfigureInput(10)
	if pins[10].output {
		t.Error("Pin 10 should be an input")
	}

	// The same pin object is reused
	d.SetPin(11, false)
	if pins[11].writes != 2 {
		t.Errorf("Expected 2 writes on pin 11, got %d", pins[11].writes)
	}
}

func TestDriverClose(t *testing.T) {
	closed := false
	d := newDriver(func(core.GPIOPin) Pin { return &fakePin{} }, func() error {
		closed = true
		return nil
	})

	d.ConfigureOutput(8)
	p := d.get(8).(*fakePin)

	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if p.output {
		t.Error("Pin left as output after Close")
	}
	if !closed {
		t.Error("Register mapping not released")
	}
}

func TestDriverRunsSoftwareSPI(t *testing.T) {
	d, pins := newFakeDriver()

	pinsCfg := core.SoftwareSPIPins{SCK: 11, SDO: 10, SDI: 10}
	spi, err := core.NewSoftwareSPI(d, pinsCfg, core.SPIMode1, 0, &coretest.Delays{})
	if err != nil {
		t.Fatalf("NewSoftwareSPI: %v", err)
	}

	if err := spi.SendByte(0xFF); err != nil {
		t.Fatalf("SendByte: %v", err)
	}
	if !pins[10].output {
		t.Error("Data pin should be an output while sending")
	}
	if pins[11].level != gpio.Low {
		t.Error("Clock should idle low in mode 1")
	}

	pins[10].level = gpio.High
	b, err := spi.ReceiveByte()
	if err != nil {
		t.Fatalf("ReceiveByte: %v", err)
	}
	if pins[10].output {
		t.Error("Data pin should be released while receiving")
	}
	if b != 0xFF {
		t.Errorf("Received 0x%02X, expected 0xFF", b)
	}
}
