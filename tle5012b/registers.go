package tle5012b

// Read command words. Bit 15 selects a read, bits 9:4 hold the register
// address and bits 3:0 the number of data words that follow.
const (
	RegStatus      uint16 = 0x8001 // STAT
	RegAngle       uint16 = 0x8021 // AVAL
	RegSpeed       uint16 = 0x8031 // ASPD
	RegRevolution  uint16 = 0x8041 // AREV
	RegTemperature uint16 = 0x8051 // FSYNC
)

const (
	cmdRead      = 0x8000
	cmdAddrShift = 4
	cmdAddrMask  = 0x3F
	cmdWordsMask = 0x0F
)

// ReadCommand builds the command word that reads words registers starting at
// addr.
func ReadCommand(addr uint8, words uint8) uint16 {
	return cmdRead | uint16(addr&cmdAddrMask)<<cmdAddrShift | uint16(words&cmdWordsMask)
}

// CommandAddress extracts the register address from a command word.
func CommandAddress(cmd uint16) uint8 {
	return uint8(cmd>>cmdAddrShift) & cmdAddrMask
}

// RegisterNames maps the short names used by tools to read command words.
var RegisterNames = map[string]uint16{
	"stat":  RegStatus,
	"aval":  RegAngle,
	"aspd":  RegSpeed,
	"arev":  RegRevolution,
	"fsync": RegTemperature,
}

// IsSingleRead reports whether cmd is a read of exactly one data word, the
// only command shape ReadRegister can complete.
func IsSingleRead(cmd uint16) bool {
	return cmd&cmdRead != 0 && cmd&cmdWordsMask == 1
}
