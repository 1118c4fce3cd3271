// Package tle5012b implements a driver for the Infineon TLE5012B GMR angle
// sensor on its SSC (SPI compatible) interface.
//
// The driver is transport agnostic: it takes a core.RegisterTransport (a
// hardware SPI bus through core.BusSPI or a bit-banged core.SoftwareSPI) and
// a core.GPIODriver for the chip select line.
package tle5012b

import (
	"time"

	"tinygo.org/x/drivers"

	"tlesense/core"
)

// Config holds the pin and timing parameters of a sensor.
type Config struct {
	CS core.GPIOPin // Chip select, active low

	StartupDelay    time.Duration // Settle time after Configure
	SelectDelay     time.Duration // CS low to first clock
	TurnaroundDelay time.Duration // Command sent to reply clocked
	UpdatePeriod    time.Duration // t_upd used for speed conversion

	Delay core.Delayer // nil selects core.DefaultDelayer
}

// DefaultConfig returns the timing the reference firmware uses.
func DefaultConfig(cs core.GPIOPin) Config {
	return Config{
		CS:              cs,
		StartupDelay:    10 * time.Millisecond,
		SelectDelay:     time.Millisecond,
		TurnaroundDelay: 10 * time.Microsecond,
		UpdatePeriod:    DefaultUpdatePeriod,
	}
}

// Device is a TLE5012B connection. It is not safe for concurrent use.
type Device struct {
	bus  core.RegisterTransport
	gpio core.GPIODriver
	cfg  Config

	tx [2]byte
	rx [2]byte

	angle       float32
	speed       int16
	revolutions int16
	temperature int32
}

// New creates a device. Zero timing fields in cfg take their defaults.
// Call Configure before the first read.
func New(bus core.RegisterTransport, gpio core.GPIODriver, cfg Config) *Device {
	def := DefaultConfig(cfg.CS)
	if cfg.StartupDelay == 0 {
		cfg.StartupDelay = def.StartupDelay
	}
	if cfg.SelectDelay == 0 {
		cfg.SelectDelay = def.SelectDelay
	}
	if cfg.TurnaroundDelay == 0 {
		cfg.TurnaroundDelay = def.TurnaroundDelay
	}
	if cfg.UpdatePeriod == 0 {
		cfg.UpdatePeriod = def.UpdatePeriod
	}
	if cfg.Delay == nil {
		cfg.Delay = core.DefaultDelayer()
	}
	return &Device{bus: bus, gpio: gpio, cfg: cfg, angle: AngleInvalid}
}

// Config returns the effective configuration.
func (d *Device) Config() Config {
	return d.cfg
}

// Configure drives CS high (idle) and waits for the sensor to settle.
func (d *Device) Configure() error {
	if err := d.gpio.ConfigureOutput(d.cfg.CS); err != nil {
		return err
	}
	if err := d.gpio.SetPin(d.cfg.CS, true); err != nil {
		return err
	}
	d.cfg.Delay.Delay(d.cfg.StartupDelay)
	return nil
}

// ReadRegister sends a command word and returns the data word the sensor
// answers with. CS is asserted once and always released before returning.
func (d *Device) ReadRegister(addr uint16) (uint16, error) {
	if err := d.gpio.SetPin(d.cfg.CS, false); err != nil {
		core.RecordTransaction(core.EvtError, addr, 0)
		return 0, err
	}
	d.cfg.Delay.Delay(d.cfg.SelectDelay)

	err := d.transact(addr)

	if csErr := d.gpio.SetPin(d.cfg.CS, true); err == nil {
		err = csErr
	}
	if err != nil {
		core.RecordTransaction(core.EvtError, addr, 0)
		return 0, err
	}

	value := uint16(d.rx[0])<<8 | uint16(d.rx[1])
	if value == Sentinel {
		core.RecordTransaction(core.EvtSentinel, addr, value)
	} else {
		core.RecordTransaction(core.EvtRead, addr, value)
	}
	return value, nil
}

func (d *Device) transact(addr uint16) error {
	d.tx[0] = byte(addr >> 8)
	d.tx[1] = byte(addr)
	if err := d.bus.Send(d.tx[:]); err != nil {
		return err
	}
	d.cfg.Delay.Delay(d.cfg.TurnaroundDelay)
	return d.bus.Receive(d.rx[:])
}

// ReadAngle returns the magnet angle in degrees, [0, 360). A sentinel read
// returns AngleInvalid and ErrNoReading.
func (d *Device) ReadAngle() (float32, error) {
	raw, err := d.ReadRegister(RegAngle)
	if err != nil {
		return AngleInvalid, err
	}
	return DecodeAngle(raw)
}

// ReadSpeed returns the signed raw angle speed code. It is not scaled; use
// ReadAngleSpeed or ReadRPM for physical units.
func (d *Device) ReadSpeed() (int16, error) {
	raw, err := d.ReadRegister(RegSpeed)
	if err != nil {
		return 0, err
	}
	return DecodeSpeed(raw), nil
}

// ReadAngleSpeed returns the angle speed in degrees per second.
func (d *Device) ReadAngleSpeed() (float32, error) {
	raw, err := d.ReadRegister(RegSpeed)
	if err != nil {
		return 0, err
	}
	return AngleSpeed(raw, d.cfg.UpdatePeriod), nil
}

// ReadRPM returns the rotation speed in revolutions per minute.
func (d *Device) ReadRPM() (float32, error) {
	raw, err := d.ReadRegister(RegSpeed)
	if err != nil {
		return 0, err
	}
	return RPM(raw, d.cfg.UpdatePeriod), nil
}

// ReadStatus returns the STAT register unmodified.
func (d *Device) ReadStatus() (uint16, error) {
	return d.ReadRegister(RegStatus)
}

// ReadRevolutions returns the signed revolution counter.
func (d *Device) ReadRevolutions() (int16, error) {
	raw, err := d.ReadRegister(RegRevolution)
	if err != nil {
		return 0, err
	}
	return DecodeRevolutions(raw), nil
}

// ReadTemperature returns the die temperature in degrees Celsius.
func (d *Device) ReadTemperature() (float32, error) {
	raw, err := d.ReadRegister(RegTemperature)
	if err != nil {
		return 0, err
	}
	return DecodeTemperature(raw), nil
}

// Update refreshes the cached measurements selected by which. It implements
// drivers.Sensor: MagneticField covers angle and revolutions,
// AngularVelocity the speed and Temperature the die temperature.
func (d *Device) Update(which drivers.Measurement) error {
	if which&drivers.MagneticField != 0 {
		angle, err := d.ReadAngle()
		if err != nil {
			return err
		}
		revs, err := d.ReadRevolutions()
		if err != nil {
			return err
		}
		d.angle = angle
		d.revolutions = revs
	}
	if which&drivers.AngularVelocity != 0 {
		speed, err := d.ReadSpeed()
		if err != nil {
			return err
		}
		d.speed = speed
	}
	if which&drivers.Temperature != 0 {
		temp, err := d.ReadTemperature()
		if err != nil {
			return err
		}
		d.temperature = int32(temp * 1000)
	}
	return nil
}

// Angle returns the angle from the last Update, in degrees.
func (d *Device) Angle() float32 {
	return d.angle
}

// Speed returns the raw speed code from the last Update.
func (d *Device) Speed() int16 {
	return d.speed
}

// Revolutions returns the revolution counter from the last Update.
func (d *Device) Revolutions() int16 {
	return d.revolutions
}

// Temperature returns the temperature from the last Update in milli-degrees
// Celsius.
func (d *Device) Temperature() int32 {
	return d.temperature
}

var _ drivers.Sensor = (*Device)(nil)
