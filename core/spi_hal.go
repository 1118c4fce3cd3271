package core

import "errors"

// SPIMode represents SPI clock polarity and phase (0-3)
// Mode 0: CPOL=0, CPHA=0 (clock idle low, sample on rising edge)
// Mode 1: CPOL=0, CPHA=1 (clock idle low, data valid on the trailing edge)
// Mode 2: CPOL=1, CPHA=0 (clock idle high, sample on falling edge)
// Mode 3: CPOL=1, CPHA=1 (clock idle high, sample on rising edge)
//
// The TLE5012B SSC interface runs in mode 1.
type SPIMode uint8

const (
	SPIMode0 SPIMode = iota
	SPIMode1
	SPIMode2
	SPIMode3
)

// DefaultSoftwareRate is the bit rate used when a software bus is
// configured with a zero rate.
const DefaultSoftwareRate = 100000

var (
	ErrInvalidMode   = errors.New("invalid SPI mode")
	ErrNoBus         = errors.New("SPI bus not configured")
	ErrShortTransfer = errors.New("SPI transfer length mismatch")
)

// RegisterTransport moves raw bytes to and from a register-oriented
// peripheral. Chip select is not part of the transport: the caller brackets
// a Send/Receive pair with its own CS handling.
type RegisterTransport interface {
	// Send clocks all bytes of data out to the device, discarding
	// whatever the device drives back.
	Send(data []byte) error

	// Receive clocks len(buf) bytes in from the device.
	Receive(buf []byte) error
}

// ByteTransport is the byte-granular view of a bit-banged bus.
type ByteTransport interface {
	SendByte(b byte) error
	ReceiveByte() (byte, error)
}

// sendBytes clocks data out one byte at a time.
func sendBytes(t ByteTransport, data []byte) error {
	for _, b := range data {
		if err := t.SendByte(b); err != nil {
			return err
		}
	}
	return nil
}

// receiveBytes fills buf one byte at a time.
func receiveBytes(t ByteTransport, buf []byte) error {
	for i := range buf {
		b, err := t.ReceiveByte()
		if err != nil {
			return err
		}
		buf[i] = b
	}
	return nil
}

// CPOL reports whether the clock idles high for this mode.
func (m SPIMode) CPOL() bool {
	return m&0b10 != 0
}

// CPHA reports whether data is sampled on the second clock edge.
func (m SPIMode) CPHA() bool {
	return m&0b01 != 0
}

// Valid reports whether m is one of the four SPI modes.
func (m SPIMode) Valid() bool {
	return m <= SPIMode3
}
