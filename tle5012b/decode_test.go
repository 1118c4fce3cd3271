package tle5012b

import (
	"math"
	"testing"
	"time"
)

func TestDecodeAngle(t *testing.T) {
	tests := []struct {
		raw      uint16
		expected float32
	}{
		{0x0000, 0},
		{0x4000, 180},
		{0x2000, 90},
		{0x6000, 270},
		{0x8000, 0},   // status bit 15 is masked off
		{0xC000, 180}, // bit 15 plus half turn
		{0x0001, 360.0 / 32768.0},
		{0x7FFF, 32767 * 360.0 / 32768.0},
	}

	for _, tt := range tests {
		got, err := DecodeAngle(tt.raw)
		if err != nil {
			t.Errorf("DecodeAngle(%#04x) returned error: %v", tt.raw, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("DecodeAngle(%#04x) = %v, expected %v", tt.raw, got, tt.expected)
		}
	}
}

func TestDecodeAngleRange(t *testing.T) {
	for raw := 0; raw < 0xFFFF; raw++ {
		got, err := DecodeAngle(uint16(raw))
		if err != nil {
			t.Fatalf("DecodeAngle(%#04x) returned error: %v", raw, err)
		}
		if got < 0 || got >= 360 {
			t.Fatalf("DecodeAngle(%#04x) = %v, outside [0, 360)", raw, got)
		}
		expected := float32(raw&0x7FFF) * 360 / 32768
		if got != expected {
			t.Fatalf("DecodeAngle(%#04x) = %v, expected %v", raw, got, expected)
		}
	}
}

func TestDecodeAngleSentinel(t *testing.T) {
	got, err := DecodeAngle(0xFFFF)
	if err != ErrNoReading {
		t.Errorf("Expected ErrNoReading, got %v", err)
	}
	if got != AngleInvalid {
		t.Errorf("Expected AngleInvalid (-1), got %v", got)
	}
}

func TestDecodeSpeed(t *testing.T) {
	tests := []struct {
		raw      uint16
		expected int16
	}{
		{0x0000, 0},
		{0x0001, 1},
		{0x3FFF, 16383},
		{0x4000, -16384},
		{0x7FFF, -1},
		{0x7FFE, -2},
		{0x8005, 5},  // bit 15 ignored
		{0xFFFF, -1}, // sentinel is not special for speed
	}

	for _, tt := range tests {
		if got := DecodeSpeed(tt.raw); got != tt.expected {
			t.Errorf("DecodeSpeed(%#04x) = %d, expected %d", tt.raw, got, tt.expected)
		}
	}
}

func TestDecodeSpeedSignExtensionLaw(t *testing.T) {
	for raw := 0; raw <= 0xFFFF; raw++ {
		v := raw & 0x7FFF
		var expected int
		if v&0x4000 != 0 {
			expected = -(0x8000 - v)
		} else {
			expected = v
		}
		if got := DecodeSpeed(uint16(raw)); int(got) != expected {
			t.Fatalf("DecodeSpeed(%#04x) = %d, expected %d", raw, got, expected)
		}
	}
}

func TestAngleSpeed(t *testing.T) {
	// 1 LSB over two 42.7us periods
	lsb := 360.0 / 32768.0 / (2 * 42.7e-6)

	tests := []struct {
		raw      uint16
		expected float64
	}{
		{0x0000, 0},
		{0x0001, lsb},
		{0x7FFF, -lsb},
		{0x0100, 256 * lsb},
	}

	for _, tt := range tests {
		got := AngleSpeed(tt.raw, DefaultUpdatePeriod)
		if math.Abs(float64(got)-tt.expected) > 1e-3*math.Max(1, math.Abs(tt.expected)) {
			t.Errorf("AngleSpeed(%#04x) = %v, expected %v", tt.raw, got, tt.expected)
		}
	}
}

func TestAngleSpeedDefaultsUpdatePeriod(t *testing.T) {
	if AngleSpeed(0x10, 0) != AngleSpeed(0x10, DefaultUpdatePeriod) {
		t.Error("Zero update period should fall back to the default")
	}
}

func TestRPM(t *testing.T) {
	raw := uint16(0x0200)
	period := 85300 * time.Nanosecond
	dps := AngleSpeed(raw, period)
	if got := RPM(raw, period); math.Abs(float64(got-dps/6)) > 1e-3 {
		t.Errorf("RPM = %v, expected %v", got, dps/6)
	}
}

func TestDecodeRevolutions(t *testing.T) {
	tests := []struct {
		raw      uint16
		expected int16
	}{
		{0x0000, 0},
		{0x0005, 5},
		{0x00FF, 255},
		{0x0100, -256},
		{0x01FF, -1},
		{0xFE03, 3}, // upper bits carry FCNT, not the counter
	}
	for _, tt := range tests {
		if got := DecodeRevolutions(tt.raw); got != tt.expected {
			t.Errorf("DecodeRevolutions(%#04x) = %d, expected %d", tt.raw, got, tt.expected)
		}
	}
}

func TestDecodeTemperature(t *testing.T) {
	tests := []struct {
		raw      uint16
		expected float32
	}{
		{0x0000, 152 / 2.776},
		{0x01FF, 151 / 2.776},   // -1
		{uint16(0x1FF & -152), 0}, // -152 is zero degrees
	}
	for _, tt := range tests {
		got := DecodeTemperature(tt.raw)
		if math.Abs(float64(got-tt.expected)) > 1e-4 {
			t.Errorf("DecodeTemperature(%#04x) = %v, expected %v", tt.raw, got, tt.expected)
		}
	}
}

func TestReadCommand(t *testing.T) {
	tests := []struct {
		addr, words uint8
		expected    uint16
	}{
		{0x00, 1, RegStatus},
		{0x02, 1, RegAngle},
		{0x03, 1, RegSpeed},
		{0x04, 1, RegRevolution},
		{0x05, 1, RegTemperature},
	}
	for _, tt := range tests {
		if got := ReadCommand(tt.addr, tt.words); got != tt.expected {
			t.Errorf("ReadCommand(%#x, %d) = %#04x, expected %#04x", tt.addr, tt.words, got, tt.expected)
		}
		if got := CommandAddress(tt.expected); got != tt.addr {
			t.Errorf("CommandAddress(%#04x) = %#x, expected %#x", tt.expected, got, tt.addr)
		}
	}
}

func TestStatus(t *testing.T) {
	s := StatusReset | StatusMagnitudeLimit | StatusReadStatus | Status(2<<13)

	if !s.Has(StatusMagnitudeLimit) {
		t.Error("Expected MAGOL set")
	}
	if s.Has(StatusWatchdog) {
		t.Error("Expected WD clear")
	}
	if s.Faults() != StatusMagnitudeLimit {
		t.Errorf("Faults() = %#04x, expected only MAGOL", uint16(s.Faults()))
	}
	if s.SlaveNumber() != 2 {
		t.Errorf("SlaveNumber() = %d, expected 2", s.SlaveNumber())
	}
	if got := s.String(); got != "RST|MAGOL|RD_ST" {
		t.Errorf("String() = %q", got)
	}
	if got := Status(0).String(); got != "OK" {
		t.Errorf("String() of zero status = %q, expected OK", got)
	}
}
