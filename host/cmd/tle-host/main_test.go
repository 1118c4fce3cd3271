package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"tlesense/core/coretest"
	"tlesense/host/mcu"
	"tlesense/tle5012b"
)

type fakeSensor struct {
	angle   float32
	speed   int16
	status  tle5012b.Status
	regs    map[uint16]uint16
	err     error
	samples chan mcu.Sample

	streaming bool
	interval  time.Duration
}

func (f *fakeSensor) Angle(context.Context) (float32, error) { return f.angle, f.err }
func (f *fakeSensor) Speed(context.Context) (int16, error)   { return f.speed, f.err }
func (f *fakeSensor) Status(context.Context) (tle5012b.Status, error) {
	return f.status, f.err
}

func (f *fakeSensor) ReadRegister(_ context.Context, addr uint16) (uint16, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.regs[addr], nil
}

func (f *fakeSensor) StartStream(_ context.Context, interval time.Duration) error {
	f.streaming = true
	f.interval = interval
	return nil
}

func (f *fakeSensor) StopStream(context.Context) error {
	f.streaming = false
	return nil
}

func (f *fakeSensor) Samples() <-chan mcu.Sample { return f.samples }
func (f *fakeSensor) Describe() string           { return "fake" }
func (f *fakeSensor) Close() error               { return nil }

func TestParseRegister(t *testing.T) {
	tests := []struct {
		in   string
		want uint16
		err  bool
	}{
		{in: "aval", want: tle5012b.RegAngle},
		{in: "STAT", want: tle5012b.RegStatus},
		{in: "0x8031", want: tle5012b.RegSpeed},
		{in: "32833", want: tle5012b.RegRevolution},
		{in: "0x0021", err: true}, // write command
		{in: "0x8022", err: true}, // two words
		{in: "0x18021", err: true},
		{in: "bogus", err: true},
	}

	for _, tt := range tests {
		got, err := parseRegister(tt.in)
		if tt.err {
			if err == nil {
				t.Errorf("parseRegister(%q) = 0x%04X, expected error", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseRegister(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseRegister(%q) = 0x%04X, expected 0x%04X", tt.in, got, tt.want)
		}
	}
}

func TestParseWatchArgs(t *testing.T) {
	interval, count, err := parseWatchArgs(nil)
	if err != nil || interval != 100*time.Millisecond || count != 10 {
		t.Errorf("defaults = %v, %d, %v", interval, count, err)
	}

	interval, count, err = parseWatchArgs([]string{"3", "5ms"})
	if err != nil || interval != 5*time.Millisecond || count != 3 {
		t.Errorf("parsed = %v, %d, %v", interval, count, err)
	}

	for _, args := range [][]string{{"0"}, {"x"}, {"1", "fast"}, {"1", "2ms", "3"}} {
		if _, _, err := parseWatchArgs(args); err == nil {
			t.Errorf("parseWatchArgs(%q) expected error", args)
		}
	}
}

func TestPrintSample(t *testing.T) {
	var out bytes.Buffer

	if err := printSample(&out, mcu.Sample{Seq: 1, Angle: 90, Speed: 2, RawSpeed: 2}, tle5012b.DefaultUpdatePeriod); err != nil {
		t.Fatalf("printSample: %v", err)
	}
	if !strings.Contains(out.String(), "90.000 deg") {
		t.Errorf("output %q missing angle", out.String())
	}

	out.Reset()
	if err := printSample(&out, mcu.Sample{Seq: 2, Err: tle5012b.ErrNoReading}, 0); err != nil {
		t.Fatalf("invalid angle ended the watch: %v", err)
	}
	if !strings.Contains(out.String(), "invalid") {
		t.Errorf("output %q does not report the invalid angle", out.String())
	}

	err := printSample(&out, mcu.Sample{Err: &mcu.DeviceError{Code: 2}}, 0)
	if !errors.Is(err, mcu.ErrTransport) {
		t.Errorf("device error = %v, expected ErrTransport", err)
	}
}

func TestWatchStopsAfterCount(t *testing.T) {
	sensor := &fakeSensor{samples: make(chan mcu.Sample, 4)}
	for i := uint32(1); i <= 3; i++ {
		sensor.samples <- mcu.Sample{Seq: i, Angle: 1}
	}

	var out bytes.Buffer
	err := watch(context.Background(), &out, sensor, 5*time.Millisecond, 2, 0, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if sensor.streaming {
		t.Error("stream still running after watch returned")
	}
	if sensor.interval != 5*time.Millisecond {
		t.Errorf("interval = %v", sensor.interval)
	}
	if lines := strings.Count(out.String(), "\n"); lines != 2 {
		t.Errorf("printed %d lines, expected 2", lines)
	}
}

func TestShell(t *testing.T) {
	sensor := &fakeSensor{
		angle:  180,
		speed:  -4,
		status: tle5012b.StatusReset,
		regs:   map[uint16]uint16{tle5012b.RegRevolution: 0x0003},
	}

	in := strings.NewReader("angle\n\nspeed\nstatus\nregister \"arev\"\nnope\nquit\nangle\n")
	var out bytes.Buffer
	if err := runShell(context.Background(), in, &out, sensor, tle5012b.DefaultUpdatePeriod, zap.NewNop().Sugar()); err != nil {
		t.Fatalf("runShell: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"angle: 180.000 deg",
		"speed: -4 raw",
		"status: 0x",
		"(addr 0x04): 0x0003",
		"unknown command: nope",
		"Goodbye!",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("shell output missing %q:\n%s", want, got)
		}
	}
	if strings.Count(got, "angle: 180.000 deg") != 1 {
		t.Error("shell kept reading after quit")
	}
}

func TestShellReportsErrors(t *testing.T) {
	sensor := &fakeSensor{err: coretest.ErrInjected}

	var out bytes.Buffer
	if err := runShell(context.Background(), strings.NewReader("angle\n"), &out, sensor, 0, zap.NewNop().Sugar()); err != nil {
		t.Fatalf("runShell: %v", err)
	}
	if !strings.Contains(out.String(), "Error: "+coretest.ErrInjected.Error()) {
		t.Errorf("output %q missing error", out.String())
	}
}
