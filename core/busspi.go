package core

import "tinygo.org/x/drivers"

// BusSPI adapts a full-duplex SPI bus (machine.SPI, a PIO state machine
// running an SPI program, or a Linux spidev connection) to the half-duplex
// RegisterTransport used by register devices.
//
// Both directions go through Tx with equal-length buffers, since not every
// bus accepts nil for one side (the PIO SPI does not).
type BusSPI struct {
	bus     drivers.SPI
	scratch []byte
	fill    byte
}

// NewBusSPI wraps bus. Bytes clocked out while receiving are zero.
func NewBusSPI(bus drivers.SPI) *BusSPI {
	return &BusSPI{bus: bus, scratch: make([]byte, 0, 4)}
}

// SetFill changes the byte clocked out during Receive.
func (b *BusSPI) SetFill(fill byte) {
	b.fill = fill
}

// Send implements RegisterTransport.
func (b *BusSPI) Send(data []byte) error {
	if b.bus == nil {
		return ErrNoBus
	}
	if len(data) == 0 {
		return nil
	}
	return b.bus.Tx(data, b.buffer(len(data), 0))
}

// Receive implements RegisterTransport.
func (b *BusSPI) Receive(buf []byte) error {
	if b.bus == nil {
		return ErrNoBus
	}
	if len(buf) == 0 {
		return nil
	}
	return b.bus.Tx(b.buffer(len(buf), b.fill), buf)
}

// buffer returns a reusable n-byte slice filled with v.
func (b *BusSPI) buffer(n int, v byte) []byte {
	if cap(b.scratch) < n {
		b.scratch = make([]byte, n)
	}
	buf := b.scratch[:n]
	for i := range buf {
		buf[i] = v
	}
	return buf
}
