package tle5012b

import (
	"errors"
	"time"
)

const (
	// Sentinel is returned by the bus when nothing drove the data line.
	Sentinel uint16 = 0xFFFF

	// AngleInvalid is the angle reported alongside ErrNoReading.
	AngleInvalid float32 = -1.0

	// DefaultUpdatePeriod is t_upd for FIR_MD=1.
	DefaultUpdatePeriod = 42700 * time.Nanosecond

	valueMask     = 0x7FFF // 15-bit angle and speed fields
	speedSignBit  = 0x4000
	nineBitMask   = 0x01FF // revolution and temperature fields
	nineBitSign   = 0x0100
	angleFullTurn = 32768.0

	tempOffset = 152
	tempSlope  = 2.776
)

// ErrNoReading reports the all-ones sentinel on an angle read.
var ErrNoReading = errors.New("tle5012b: no valid angle reading")

// DecodeAngle converts an AVAL word to degrees in [0, 360). The sentinel
// yields AngleInvalid and ErrNoReading.
func DecodeAngle(raw uint16) (float32, error) {
	if raw == Sentinel {
		return AngleInvalid, ErrNoReading
	}
	return float32(raw&valueMask) * 360.0 / angleFullTurn, nil
}

// DecodeSpeed sign-extends the 15-bit ASPD field. Bit 14 is the sign.
func DecodeSpeed(raw uint16) int16 {
	v := raw & valueMask
	if v&speedSignBit != 0 {
		v |= 0x8000
	}
	return int16(v)
}

// AngleSpeed converts a raw ASPD word to degrees per second. The sensor
// reports the angle difference over two update periods.
func AngleSpeed(raw uint16, updatePeriod time.Duration) float32 {
	if updatePeriod <= 0 {
		updatePeriod = DefaultUpdatePeriod
	}
	delta := float64(DecodeSpeed(raw)) * 360.0 / angleFullTurn
	return float32(delta / (2 * updatePeriod.Seconds()))
}

// RPM converts a raw ASPD word to revolutions per minute.
func RPM(raw uint16, updatePeriod time.Duration) float32 {
	return AngleSpeed(raw, updatePeriod) / 6
}

// DecodeRevolutions sign-extends the 9-bit AREV revolution counter.
func DecodeRevolutions(raw uint16) int16 {
	return signExtend9(raw)
}

// DecodeTemperature converts the FSYNC temperature field to degrees Celsius.
func DecodeTemperature(raw uint16) float32 {
	return (float32(signExtend9(raw)) + tempOffset) / tempSlope
}

func signExtend9(raw uint16) int16 {
	v := raw & nineBitMask
	if v&nineBitSign != 0 {
		v |= ^uint16(nineBitMask)
	}
	return int16(v)
}
