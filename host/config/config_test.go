package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tlesense/tle5012b"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Source != SourceSerial {
		t.Errorf("Source = %q", cfg.Source)
	}
	if cfg.Serial.Device != "/dev/ttyACM0" || cfg.Serial.Baud != 115200 {
		t.Errorf("Serial = %+v", cfg.Serial)
	}
	if cfg.Serial.RequestTimeout() != time.Second {
		t.Errorf("RequestTimeout = %v", cfg.Serial.RequestTimeout())
	}
	if cfg.Bitbang.SDO != cfg.Bitbang.SDI {
		t.Errorf("Default bitbang should share the data line: %+v", cfg.Bitbang)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Default config invalid: %v", err)
	}
}

func TestDeviceConfigMatchesDriverDefaults(t *testing.T) {
	got := Default().Sensor.DeviceConfig(8)
	want := tle5012b.DefaultConfig(8)

	if got.StartupDelay != want.StartupDelay {
		t.Errorf("StartupDelay = %v, expected %v", got.StartupDelay, want.StartupDelay)
	}
	if got.SelectDelay != want.SelectDelay {
		t.Errorf("SelectDelay = %v, expected %v", got.SelectDelay, want.SelectDelay)
	}
	if got.TurnaroundDelay != want.TurnaroundDelay {
		t.Errorf("TurnaroundDelay = %v, expected %v", got.TurnaroundDelay, want.TurnaroundDelay)
	}
	if got.UpdatePeriod != want.UpdatePeriod {
		t.Errorf("UpdatePeriod = %v, expected %v", got.UpdatePeriod, want.UpdatePeriod)
	}
	if got.CS != 8 {
		t.Errorf("CS = %d", got.CS)
	}
}

func TestLoadConfigYAML(t *testing.T) {
	data := []byte(`
source: bitbang
bitbang:
  sck: 21
  sdo: 20
  sdi: 20
  cs: 16
  rate: 50000
sensor:
  select_delay_us: 50
  update_period_us: 21.3
`)

	cfg, err := LoadConfig(data)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Source != SourceBitbang {
		t.Errorf("Source = %q", cfg.Source)
	}
	if cfg.Bitbang != (BitbangConfig{SCK: 21, SDO: 20, SDI: 20, CS: 16, Rate: 50000}) {
		t.Errorf("Bitbang = %+v", cfg.Bitbang)
	}

	dev := cfg.Sensor.DeviceConfig(16)
	if dev.SelectDelay != 50*time.Microsecond {
		t.Errorf("SelectDelay = %v", dev.SelectDelay)
	}
	if dev.UpdatePeriod != 21300*time.Nanosecond {
		t.Errorf("UpdatePeriod = %v", dev.UpdatePeriod)
	}
	// Unset values keep their defaults
	if dev.TurnaroundDelay != 10*time.Microsecond {
		t.Errorf("TurnaroundDelay = %v", dev.TurnaroundDelay)
	}
}

func TestBitbangPinDefaults(t *testing.T) {
	testCases := []struct {
		name string
		yaml string
		want BitbangConfig
	}{
		{"none", "source: bitbang", BitbangConfig{SCK: 11, SDO: 10, SDI: 10, CS: 8}},
		{"cs only", "source: bitbang\nbitbang:\n  cs: 7", BitbangConfig{SCK: 11, SDO: 10, SDI: 10, CS: 7}},
		{"sdo only", "source: bitbang\nbitbang:\n  sdo: 20", BitbangConfig{SCK: 11, SDO: 20, SDI: 20, CS: 8}},
		{"sdi only", "source: bitbang\nbitbang:\n  sdi: 9", BitbangConfig{SCK: 11, SDO: 9, SDI: 9, CS: 8}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := LoadConfig([]byte(tc.yaml))
			if err != nil {
				t.Fatalf("LoadConfig: %v", err)
			}
			got := cfg.Bitbang
			got.Rate = 0
			if got != tc.want {
				t.Errorf("Bitbang = %+v, expected %+v", got, tc.want)
			}
		})
	}
}

func TestLoadConfigErrors(t *testing.T) {
	testCases := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown source", "source: can", "unknown source"},
		{"bad yaml", "source: [", ""},
		{"negative baud", "serial:\n  baud: -1", "baud"},
		{"fast spidev", "source: spidev\nspidev:\n  hz: 20000000", "hz"},
		{"pin clash", "source: bitbang\nbitbang:\n  sck: 8\n  sdo: 10\n  sdi: 10\n  cs: 8", "must differ"},
		{"pin range", "source: bitbang\nbitbang:\n  sck: 40\n  sdo: 10\n  sdi: 10\n  cs: 8", "BCM"},
		{"negative delay", "sensor:\n  select_delay_us: -5", "negative"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig([]byte(tc.yaml))
			if err == nil {
				t.Fatal("Expected an error")
			}
			if tc.want != "" && !strings.Contains(err.Error(), tc.want) {
				t.Errorf("Error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tle.yaml")
	if err := os.WriteFile(path, []byte("source: spidev\nspidev:\n  port: SPI1.0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SPIDev.Port != "SPI1.0" || cfg.SPIDev.CSPin != "GPIO8" {
		t.Errorf("SPIDev = %+v", cfg.SPIDev)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}
