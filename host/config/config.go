// Package config loads the host tool's YAML configuration.
package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"tlesense/core"
	"tlesense/tle5012b"
)

// Sources
const (
	SourceSerial  = "serial"  // firmware over USB CDC
	SourceSPIDev  = "spidev"  // Linux spidev with a GPIO chip select
	SourceBitbang = "bitbang" // Raspberry Pi GPIO bit-bang
)

type Config struct {
	Source  string        `yaml:"source"`
	Serial  SerialConfig  `yaml:"serial"`
	SPIDev  SPIDevConfig  `yaml:"spidev"`
	Bitbang BitbangConfig `yaml:"bitbang"`
	Sensor  SensorConfig  `yaml:"sensor"`
}

// ---- SERIAL ----

type SerialConfig struct {
	Device    string `yaml:"device"`
	Baud      int    `yaml:"baud"`
	TimeoutMs int    `yaml:"timeout_ms"` // per request
}

// ---- SPIDEV ----

type SPIDevConfig struct {
	Port  string `yaml:"port"`   // periph port name, e.g. "SPI0.0" or "/dev/spidev0.0"
	CSPin string `yaml:"cs_pin"` // periph pin name, e.g. "GPIO8"
	Hz    int64  `yaml:"hz"`
}

// ---- BITBANG ----

// BitbangConfig uses BCM pin numbers. SDO and SDI may be equal for the
// sensor's single DATA line. Each pin left at zero takes its default, so
// BCM 0 cannot be used.
type BitbangConfig struct {
	SCK  int    `yaml:"sck"`
	SDO  int    `yaml:"sdo"`
	SDI  int    `yaml:"sdi"`
	CS   int    `yaml:"cs"`
	Rate uint32 `yaml:"rate"`
}

// ---- SENSOR ----

type SensorConfig struct {
	StartupDelayMs    int     `yaml:"startup_delay_ms"`
	SelectDelayUs     int     `yaml:"select_delay_us"`
	TurnaroundDelayUs int     `yaml:"turnaround_delay_us"`
	UpdatePeriodUs    float64 `yaml:"update_period_us"`
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := LoadConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadConfig parses YAML, fills in defaults and validates the result.
func LoadConfig(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	applyDefaults(&config)

	if err := Validate(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// Default returns the configuration used without a file.
func Default() *Config {
	config := &Config{}
	applyDefaults(config)
	return config
}

// applyDefaults fills in missing configuration values
func applyDefaults(config *Config) {
	if config.Source == "" {
		config.Source = SourceSerial
	}

	if config.Serial.Device == "" {
		config.Serial.Device = "/dev/ttyACM0"
	}
	if config.Serial.Baud == 0 {
		config.Serial.Baud = 115200
	}
	if config.Serial.TimeoutMs == 0 {
		config.Serial.TimeoutMs = 1000
	}

	if config.SPIDev.Port == "" {
		config.SPIDev.Port = "SPI0.0"
	}
	if config.SPIDev.CSPin == "" {
		config.SPIDev.CSPin = "GPIO8"
	}
	if config.SPIDev.Hz == 0 {
		config.SPIDev.Hz = 1000000
	}

	// Raspberry Pi SPI0 header pins. A lone data pin is shared.
	b := &config.Bitbang
	if b.SCK == 0 {
		b.SCK = 11
	}
	if b.CS == 0 {
		b.CS = 8
	}
	switch {
	case b.SDO == 0 && b.SDI == 0:
		b.SDO, b.SDI = 10, 10
	case b.SDO == 0:
		b.SDO = b.SDI
	case b.SDI == 0:
		b.SDI = b.SDO
	}
	if config.Bitbang.Rate == 0 {
		config.Bitbang.Rate = core.DefaultSoftwareRate
	}

	def := tle5012b.DefaultConfig(0)
	if config.Sensor.StartupDelayMs == 0 {
		config.Sensor.StartupDelayMs = int(def.StartupDelay / time.Millisecond)
	}
	if config.Sensor.SelectDelayUs == 0 {
		config.Sensor.SelectDelayUs = int(def.SelectDelay / time.Microsecond)
	}
	if config.Sensor.TurnaroundDelayUs == 0 {
		config.Sensor.TurnaroundDelayUs = int(def.TurnaroundDelay / time.Microsecond)
	}
	if config.Sensor.UpdatePeriodUs == 0 {
		config.Sensor.UpdatePeriodUs = float64(def.UpdatePeriod) / float64(time.Microsecond)
	}
}

// Validate checks configuration correctness without mutating it.
func Validate(cfg *Config) error {
	switch cfg.Source {
	case SourceSerial:
		if cfg.Serial.Device == "" {
			return fmt.Errorf("serial: device is required")
		}
		if cfg.Serial.Baud <= 0 {
			return fmt.Errorf("serial: baud must be positive, got %d", cfg.Serial.Baud)
		}
		if cfg.Serial.TimeoutMs <= 0 {
			return fmt.Errorf("serial: timeout_ms must be positive, got %d", cfg.Serial.TimeoutMs)
		}

	case SourceSPIDev:
		if cfg.SPIDev.Port == "" || cfg.SPIDev.CSPin == "" {
			return fmt.Errorf("spidev: port and cs_pin are required")
		}
		if cfg.SPIDev.Hz <= 0 || cfg.SPIDev.Hz > 8000000 {
			return fmt.Errorf("spidev: hz must be in (0, 8000000], got %d", cfg.SPIDev.Hz)
		}

	case SourceBitbang:
		b := cfg.Bitbang
		for name, pin := range map[string]int{"sck": b.SCK, "sdo": b.SDO, "sdi": b.SDI, "cs": b.CS} {
			if pin < 0 || pin > 27 {
				return fmt.Errorf("bitbang: %s pin %d is not a BCM GPIO", name, pin)
			}
		}
		if b.SCK == b.CS || b.SCK == b.SDO || b.SCK == b.SDI || b.CS == b.SDO || b.CS == b.SDI {
			return fmt.Errorf("bitbang: sck, cs and data pins must differ")
		}
		if b.Rate == 0 {
			return fmt.Errorf("bitbang: rate must be positive")
		}

	default:
		return fmt.Errorf("unknown source %q (want %s, %s or %s)", cfg.Source, SourceSerial, SourceSPIDev, SourceBitbang)
	}

	s := cfg.Sensor
	if s.StartupDelayMs < 0 || s.SelectDelayUs < 0 || s.TurnaroundDelayUs < 0 {
		return fmt.Errorf("sensor: delays must not be negative")
	}
	if s.UpdatePeriodUs <= 0 {
		return fmt.Errorf("sensor: update_period_us must be positive")
	}
	return nil
}

// RequestTimeout returns the serial request deadline.
func (s SerialConfig) RequestTimeout() time.Duration {
	return time.Duration(s.TimeoutMs) * time.Millisecond
}

// DeviceConfig converts the sensor timing to a driver configuration.
func (s SensorConfig) DeviceConfig(cs core.GPIOPin) tle5012b.Config {
	cfg := tle5012b.DefaultConfig(cs)
	cfg.StartupDelay = time.Duration(s.StartupDelayMs) * time.Millisecond
	cfg.SelectDelay = time.Duration(s.SelectDelayUs) * time.Microsecond
	cfg.TurnaroundDelay = time.Duration(s.TurnaroundDelayUs) * time.Microsecond
	cfg.UpdatePeriod = time.Duration(math.Round(s.UpdatePeriodUs * float64(time.Microsecond)))
	return cfg
}
