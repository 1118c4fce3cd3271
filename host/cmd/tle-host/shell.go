package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/shlex"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"tlesense/host/config"
	"tlesense/host/source"
)

// ShellAction keeps the sensor open and reads commands from stdin.
func ShellAction(c *cli.Context) error {
	return withSensor(c, func(sensor source.Sensor, cfg *config.Config, logger *zap.SugaredLogger) error {
		fmt.Fprintf(c.App.Writer, "Connected to %s\n", sensor.Describe())
		fmt.Fprintln(c.App.Writer, "Enter commands (type 'help' for available commands, 'quit' to exit):")
		return runShell(c.Context, c.App.Reader, c.App.Writer, sensor, updatePeriod(cfg), logger)
	})
}

func runShell(ctx context.Context, in io.Reader, out io.Writer, sensor source.Sensor, period time.Duration, logger *zap.SugaredLogger) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}

		parts, err := shlex.Split(scanner.Text())
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		if len(parts) == 0 {
			continue
		}

		quit, err := runShellCommand(ctx, out, sensor, period, logger, parts)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
	return scanner.Err()
}

// runShellCommand executes one tokenised line and reports whether the shell
// should exit.
func runShellCommand(
	ctx context.Context,
	out io.Writer,
	sensor source.Sensor,
	period time.Duration,
	logger *zap.SugaredLogger,
	parts []string,
) (bool, error) {
	cmd, args := parts[0], parts[1:]
	switch cmd {
	case "quit", "exit", "q":
		fmt.Fprintln(out, "Goodbye!")
		return true, nil

	case "help", "?":
		printShellHelp(out)
		return false, nil

	case "angle":
		return false, printAngle(ctx, out, sensor)

	case "speed":
		return false, printSpeed(ctx, out, sensor, period)

	case "status":
		return false, printStatus(ctx, out, sensor)

	case "info":
		return false, printInfo(ctx, out, sensor)

	case "register", "reg":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: register <command word or name>")
		}
		addr, err := parseRegister(args[0])
		if err != nil {
			return false, err
		}
		return false, printRegister(ctx, out, sensor, addr)

	case "watch":
		interval, count, err := parseWatchArgs(args)
		if err != nil {
			return false, err
		}
		return false, watch(ctx, out, sensor, interval, count, period, logger)

	default:
		return false, fmt.Errorf("unknown command: %s (type 'help' for available commands)", cmd)
	}
}

// parseWatchArgs reads the optional "watch [count] [interval]" arguments.
func parseWatchArgs(args []string) (time.Duration, uint, error) {
	interval := 100 * time.Millisecond
	count := uint(10)
	if len(args) > 2 {
		return 0, 0, fmt.Errorf("usage: watch [count] [interval]")
	}
	if len(args) >= 1 {
		n, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil || n == 0 {
			return 0, 0, fmt.Errorf("watch: bad count %q", args[0])
		}
		count = uint(n)
	}
	if len(args) == 2 {
		d, err := time.ParseDuration(args[1])
		if err != nil {
			return 0, 0, fmt.Errorf("watch: %w", err)
		}
		interval = d
	}
	return interval, count, nil
}

func printShellHelp(out io.Writer) {
	fmt.Fprintln(out, "\nAvailable commands:")
	fmt.Fprintln(out, "  help                     - Show this help message")
	fmt.Fprintln(out, "  angle                    - Read the angle")
	fmt.Fprintln(out, "  speed                    - Read the angular speed")
	fmt.Fprintln(out, "  status                   - Read the status register")
	fmt.Fprintln(out, "  register <word|name>     - Read one register")
	fmt.Fprintln(out, "  watch [count] [interval] - Stream samples (default 10 every 100ms)")
	fmt.Fprintln(out, "  info                     - Describe the connection")
	fmt.Fprintln(out, "  quit/exit/q              - Exit the shell")
	fmt.Fprintln(out)
}
