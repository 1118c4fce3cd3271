package tle5012b

import "strings"

// Status is the content of the STAT register.
type Status uint16

const (
	StatusReset          Status = 1 << 0  // S_RST: reset occurred
	StatusWatchdog       Status = 1 << 1  // S_WD: watchdog counter expired
	StatusVoltage        Status = 1 << 2  // S_VR: supply voltage out of range
	StatusFuse           Status = 1 << 3  // S_FUSE: fuse CRC error
	StatusDSPU           Status = 1 << 4  // S_DSPU: DSPU self test failed
	StatusOverflow       Status = 1 << 5  // S_OV: DSPU overflow
	StatusXYOutOfLimit   Status = 1 << 6  // S_XYOL: X/Y data out of limit
	StatusMagnitudeLimit Status = 1 << 7  // S_MAGOL: GMR magnitude out of limit
	StatusADCTest        Status = 1 << 9  // S_ADCT: ADC test vector failed
	StatusROM            Status = 1 << 10 // S_ROM: ROM CRC failed
	StatusNoGMRXY        Status = 1 << 11 // NO_GMR_XY: no valid GMR X/Y values
	StatusNoGMRAngle     Status = 1 << 12 // NO_GMR_A: no valid GMR angle
	StatusReadStatus     Status = 1 << 15 // RD_ST: status was read since last update
)

const statusSlaveNumberShift = 13

// faultMask covers the bits that signal a sensor problem. S_RST is set once
// after power-up and RD_ST is bookkeeping, so neither counts.
const faultMask = StatusWatchdog | StatusVoltage | StatusFuse | StatusDSPU |
	StatusOverflow | StatusXYOutOfLimit | StatusMagnitudeLimit | StatusADCTest |
	StatusROM | StatusNoGMRXY | StatusNoGMRAngle

var statusNames = []struct {
	bit  Status
	name string
}{
	{StatusReset, "RST"},
	{StatusWatchdog, "WD"},
	{StatusVoltage, "VR"},
	{StatusFuse, "FUSE"},
	{StatusDSPU, "DSPU"},
	{StatusOverflow, "OV"},
	{StatusXYOutOfLimit, "XYOL"},
	{StatusMagnitudeLimit, "MAGOL"},
	{StatusADCTest, "ADCT"},
	{StatusROM, "ROM"},
	{StatusNoGMRXY, "NO_GMR_XY"},
	{StatusNoGMRAngle, "NO_GMR_A"},
	{StatusReadStatus, "RD_ST"},
}

// Has reports whether every bit of flag is set.
func (s Status) Has(flag Status) bool {
	return s&flag == flag
}

// Faults returns only the error bits.
func (s Status) Faults() Status {
	return s & faultMask
}

// SlaveNumber returns the S_NR field.
func (s Status) SlaveNumber() uint8 {
	return uint8(s>>statusSlaveNumberShift) & 0x3
}

// String lists the set flags, e.g. "RST|MAGOL".
func (s Status) String() string {
	var parts []string
	for _, f := range statusNames {
		if s.Has(f.bit) {
			parts = append(parts, f.name)
		}
	}
	if len(parts) == 0 {
		return "OK"
	}
	return strings.Join(parts, "|")
}
