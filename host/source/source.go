// Package source opens the sensor the way the configuration says: through
// the firmware over serial, or directly on a Linux board via spidev or GPIO
// bit-banging.
package source

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"tlesense/core"
	"tlesense/host/config"
	"tlesense/host/mcu"
	"tlesense/host/periphbus"
	"tlesense/host/rpigpio"
	"tlesense/host/serial"
	"tlesense/tle5012b"
)

// Sensor is the set of operations the command line tool needs.
type Sensor interface {
	Angle(ctx context.Context) (float32, error)
	Speed(ctx context.Context) (int16, error)
	Status(ctx context.Context) (tle5012b.Status, error)
	ReadRegister(ctx context.Context, addr uint16) (uint16, error)

	StartStream(ctx context.Context, interval time.Duration) error
	StopStream(ctx context.Context) error
	Samples() <-chan mcu.Sample

	// Describe names the connection for logs.
	Describe() string
	Close() error
}

// Open connects to the sensor selected by cfg.Source.
func Open(cfg *config.Config, logger *zap.SugaredLogger) (Sensor, error) {
	switch cfg.Source {
	case config.SourceSerial:
		return openSerial(cfg, logger)
	case config.SourceSPIDev:
		return openSPIDev(cfg, logger)
	case config.SourceBitbang:
		return openBitbang(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Source)
	}
}

func openSerial(cfg *config.Config, logger *zap.SugaredLogger) (Sensor, error) {
	scfg := serial.DefaultConfig(cfg.Serial.Device)
	scfg.Baud = cfg.Serial.Baud

	port, err := serial.Open(scfg)
	if err != nil {
		return nil, err
	}
	logger.Debugw("serial port open", "device", scfg.Device, "baud", scfg.Baud)

	client := mcu.NewClient(port,
		mcu.WithLogger(logger.Named("mcu")),
		mcu.WithTimeout(cfg.Serial.RequestTimeout()))
	return &Remote{Client: client, name: "serial " + scfg.Device}, nil
}

func openSPIDev(cfg *config.Config, logger *zap.SugaredLogger) (Sensor, error) {
	bus, port, err := periphbus.Open(cfg.SPIDev.Port, cfg.SPIDev.Hz)
	if err != nil {
		return nil, err
	}

	pins := periphbus.NewGPIO()
	cs, err := pins.AddByName(cfg.SPIDev.CSPin)
	if err != nil {
		return nil, multierr.Combine(err, port.Close())
	}

	dev := tle5012b.New(core.NewBusSPI(bus), pins, cfg.Sensor.DeviceConfig(cs))
	if err := dev.Configure(); err != nil {
		return nil, multierr.Combine(fmt.Errorf("configure sensor: %w", err), port.Close())
	}
	name := fmt.Sprintf("spidev %s cs=%s", cfg.SPIDev.Port, cfg.SPIDev.CSPin)
	logger.Debugw("sensor configured", "bus", name, "hz", cfg.SPIDev.Hz)
	return NewLocal(dev, name, port), nil
}

func openBitbang(cfg *config.Config, logger *zap.SugaredLogger) (Sensor, error) {
	drv, err := rpigpio.Open()
	if err != nil {
		return nil, fmt.Errorf("open gpio: %w", err)
	}

	b := cfg.Bitbang
	pins := core.SoftwareSPIPins{
		SCK: core.GPIOPin(b.SCK),
		SDO: core.GPIOPin(b.SDO),
		SDI: core.GPIOPin(b.SDI),
	}
	bus, err := core.NewSoftwareSPI(drv, pins, core.SPIMode1, b.Rate, nil)
	if err != nil {
		return nil, multierr.Combine(err, drv.Close())
	}

	dev := tle5012b.New(bus, drv, cfg.Sensor.DeviceConfig(core.GPIOPin(b.CS)))
	if err := dev.Configure(); err != nil {
		return nil, multierr.Combine(fmt.Errorf("configure sensor: %w", err), drv.Close())
	}
	name := fmt.Sprintf("bitbang sck=%d data=%d/%d cs=%d", b.SCK, b.SDO, b.SDI, b.CS)
	logger.Debugw("sensor configured", "bus", name, "half_period", bus.HalfPeriod())
	return NewLocal(dev, name, drv), nil
}

// Remote is a sensor behind the firmware.
type Remote struct {
	*mcu.Client
	name string
}

// Describe implements Sensor.
func (r *Remote) Describe() string {
	return r.name
}

// closeAll closes every closer and combines the errors.
func closeAll(closers []io.Closer) error {
	var err error
	for _, c := range closers {
		err = multierr.Append(err, c.Close())
	}
	return err
}
