package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"tlesense/host/config"
	"tlesense/host/mcu"
	"tlesense/host/source"
	"tlesense/tle5012b"
)

// AngleAction prints one angle reading.
func AngleAction(c *cli.Context) error {
	return withSensor(c, func(sensor source.Sensor, _ *config.Config, _ *zap.SugaredLogger) error {
		return printAngle(c.Context, c.App.Writer, sensor)
	})
}

// SpeedAction prints one speed reading in raw and physical units.
func SpeedAction(c *cli.Context) error {
	return withSensor(c, func(sensor source.Sensor, cfg *config.Config, _ *zap.SugaredLogger) error {
		return printSpeed(c.Context, c.App.Writer, sensor, updatePeriod(cfg))
	})
}

// StatusAction prints the status register and its flags.
func StatusAction(c *cli.Context) error {
	return withSensor(c, func(sensor source.Sensor, _ *config.Config, _ *zap.SugaredLogger) error {
		return printStatus(c.Context, c.App.Writer, sensor)
	})
}

// RegisterAction reads the register named by the first argument.
func RegisterAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("register: expected exactly one command word or name")
	}
	cmd, err := parseRegister(c.Args().First())
	if err != nil {
		return err
	}
	return withSensor(c, func(sensor source.Sensor, _ *config.Config, _ *zap.SugaredLogger) error {
		return printRegister(c.Context, c.App.Writer, sensor, cmd)
	})
}

// WatchAction streams samples until interrupted or until --count samples
// have been printed.
func WatchAction(c *cli.Context) error {
	return withSensor(c, func(sensor source.Sensor, cfg *config.Config, logger *zap.SugaredLogger) error {
		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
		defer stop()
		return watch(ctx, c.App.Writer, sensor, c.Duration(flagInterval), c.Uint(flagCount), updatePeriod(cfg), logger)
	})
}

// InfoAction describes the connection and, for the firmware, its version.
func InfoAction(c *cli.Context) error {
	return withSensor(c, func(sensor source.Sensor, _ *config.Config, _ *zap.SugaredLogger) error {
		return printInfo(c.Context, c.App.Writer, sensor)
	})
}

func updatePeriod(cfg *config.Config) time.Duration {
	return cfg.Sensor.DeviceConfig(0).UpdatePeriod
}

// parseRegister accepts a register name (aval, stat, ...) or a read
// command word in hex or decimal.
func parseRegister(s string) (uint16, error) {
	if cmd, ok := tle5012b.RegisterNames[strings.ToLower(s)]; ok {
		return cmd, nil
	}
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("register %q: not a name or 16-bit command word", s)
	}
	cmd := uint16(v)
	if !tle5012b.IsSingleRead(cmd) {
		return 0, fmt.Errorf("register 0x%04X: not a single word read command", cmd)
	}
	return cmd, nil
}

func printAngle(ctx context.Context, w io.Writer, sensor source.Sensor) error {
	angle, err := sensor.Angle(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "angle: %.3f deg\n", angle)
	return nil
}

func printSpeed(ctx context.Context, w io.Writer, sensor source.Sensor, period time.Duration) error {
	speed, err := sensor.Speed(ctx)
	if err != nil {
		return err
	}
	raw := uint16(speed)
	fmt.Fprintf(w, "speed: %d raw, %.2f deg/s, %.2f rpm\n",
		speed, tle5012b.AngleSpeed(raw, period), tle5012b.RPM(raw, period))
	return nil
}

func printStatus(ctx context.Context, w io.Writer, sensor source.Sensor) error {
	status, err := sensor.Status(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "status: 0x%04X %s\n", uint16(status), status)
	if faults := status.Faults(); faults != 0 {
		fmt.Fprintf(w, "faults: %s\n", faults)
	}
	return nil
}

func printRegister(ctx context.Context, w io.Writer, sensor source.Sensor, cmd uint16) error {
	v, err := sensor.ReadRegister(ctx, cmd)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "0x%04X (addr 0x%02X): 0x%04X\n", cmd, tle5012b.CommandAddress(cmd), v)
	return nil
}

func printInfo(ctx context.Context, w io.Writer, sensor source.Sensor) error {
	fmt.Fprintf(w, "connection: %s\n", sensor.Describe())
	if remote, ok := sensor.(*source.Remote); ok {
		version, err := remote.Identify(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "firmware: %s\n", version)

		dict, err := remote.Dictionary(ctx)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(dict.Config))
		for name := range dict.Config {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %s = %s\n", name, dict.Config[name])
		}
		fmt.Fprintf(w, "commands: %d, responses: %d\n", len(dict.Commands), len(dict.Responses))
		if err := dict.Check(); err != nil {
			fmt.Fprintf(w, "protocol mismatch: %v\n", err)
		}
	}
	return nil
}

func watch(
	ctx context.Context,
	w io.Writer,
	sensor source.Sensor,
	interval time.Duration,
	count uint,
	period time.Duration,
	logger *zap.SugaredLogger,
) error {
	if err := sensor.StartStream(ctx, interval); err != nil {
		return err
	}
	defer func() {
		// ctx may already be cancelled by the interrupt.
		stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := sensor.StopStream(stopCtx); err != nil {
			logger.Warnw("stop stream", "error", err)
		}
	}()

	var printed uint
	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-sensor.Samples():
			if !ok {
				return nil
			}
			if err := printSample(w, s, period); err != nil {
				return err
			}
			printed++
			if count > 0 && printed >= count {
				return nil
			}
		}
	}
}

// printSample writes one sample line. An invalid angle is reported and
// skipped; any other error ends the watch.
func printSample(w io.Writer, s mcu.Sample, period time.Duration) error {
	if errors.Is(s.Err, tle5012b.ErrNoReading) {
		fmt.Fprintf(w, "%6d  angle: invalid\n", s.Seq)
		return nil
	}
	if s.Err != nil {
		return fmt.Errorf("stream: %w", s.Err)
	}
	fmt.Fprintf(w, "%6d  angle: %8.3f deg  speed: %6d raw %9.2f rpm\n",
		s.Seq, s.Angle, s.Speed, tle5012b.RPM(s.RawSpeed, period))
	return nil
}
