// Command tle-host reads a TLE5012B angle sensor through the firmware or
// directly from a Linux board.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"tlesense/host/config"
	"tlesense/host/source"
)

const (
	flagConfig   = "config"
	flagSource   = "source"
	flagDevice   = "device"
	flagVerbose  = "verbose"
	flagInterval = "interval"
	flagCount    = "count"
)

var app = &cli.App{
	Name:  "tle-host",
	Usage: "read a TLE5012B magnetic angle sensor",
	Flags: []cli.Flag{
		&cli.PathFlag{
			Name:    flagConfig,
			Aliases: []string{"c"},
			Usage:   "load configuration from `FILE`",
		},
		&cli.StringFlag{
			Name:  flagSource,
			Usage: "sensor connection: serial, spidev or bitbang",
		},
		&cli.StringFlag{
			Name:  flagDevice,
			Usage: "serial device of the firmware",
		},
		&cli.BoolFlag{
			Name:    flagVerbose,
			Aliases: []string{"v"},
			Usage:   "enable debug logging",
		},
	},
	Commands: []*cli.Command{
		{
			Name:   "angle",
			Usage:  "print the absolute angle in degrees",
			Action: AngleAction,
		},
		{
			Name:   "speed",
			Usage:  "print the angular speed",
			Action: SpeedAction,
		},
		{
			Name:   "status",
			Usage:  "print the status register",
			Action: StatusAction,
		},
		{
			Name:      "register",
			Usage:     "read one register",
			ArgsUsage: "<command word or name>",
			Action:    RegisterAction,
		},
		{
			Name:  "watch",
			Usage: "stream samples until interrupted",
			Flags: []cli.Flag{
				&cli.DurationFlag{
					Name:  flagInterval,
					Usage: "time between samples",
					Value: 100 * time.Millisecond,
				},
				&cli.UintFlag{
					Name:  flagCount,
					Usage: "stop after `N` samples (0 runs until interrupted)",
				},
			},
			Action: WatchAction,
		},
		{
			Name:   "info",
			Usage:  "describe the connection",
			Action: InfoAction,
		},
		{
			Name:   "shell",
			Usage:  "run commands interactively",
			Action: ShellAction,
		},
	},
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(c *cli.Context) (*zap.SugaredLogger, error) {
	var zcfg zap.Config
	if c.Bool(flagVerbose) {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
		zcfg.Encoding = "console"
		zcfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// loadConfig reads the configuration file when one is given and applies the
// command line overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.Path(flagConfig); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if s := c.String(flagSource); s != "" {
		cfg.Source = s
	}
	if d := c.String(flagDevice); d != "" {
		cfg.Serial.Device = d
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withSensor opens the configured sensor, runs fn and closes the sensor.
func withSensor(c *cli.Context, fn func(sensor source.Sensor, cfg *config.Config, logger *zap.SugaredLogger) error) (err error) {
	logger, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() {
		//nolint:errcheck
		logger.Sync()
	}()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	sensor, err := source.Open(cfg, logger)
	if err != nil {
		return err
	}
	logger.Debugw("sensor open", "source", sensor.Describe())
	defer func() {
		if cerr := sensor.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return fn(sensor, cfg, logger)
}
