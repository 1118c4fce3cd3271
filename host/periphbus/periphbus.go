// Package periphbus runs the sensor driver on a Linux board through
// periph.io: a spidev port carries the SSC traffic and a separately driven
// GPIO serves as chip select, since the kernel would otherwise toggle CS
// between the command and data words.
package periphbus

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"tlesense/core"
)

var ErrUnknownPin = errors.New("unknown GPIO pin")

var (
	initOnce sync.Once
	initErr  error
)

// Init loads the periph host drivers. It is safe to call more than once.
func Init() error {
	initOnce.Do(func() {
		_, initErr = host.Init()
	})
	return initErr
}

// SPI adapts a periph spi.Conn to tinygo.org/x/drivers.SPI so it can back
// a core.BusSPI.
type SPI struct {
	conn spi.Conn
	one  [2][1]byte
}

// NewSPI wraps conn.
func NewSPI(conn spi.Conn) *SPI {
	return &SPI{conn: conn}
}

// Tx implements drivers.SPI. spidev moves equal lengths in both
// directions, so a w and r of different sizes are refused.
func (s *SPI) Tx(w, r []byte) error {
	if w != nil && r != nil && len(w) != len(r) {
		return fmt.Errorf("tx %d bytes out, %d in: %w", len(w), len(r), core.ErrShortTransfer)
	}
	return s.conn.Tx(w, r)
}

// Transfer implements drivers.SPI.
func (s *SPI) Transfer(b byte) (byte, error) {
	s.one[0][0] = b
	if err := s.conn.Tx(s.one[0][:], s.one[1][:]); err != nil {
		return 0, err
	}
	return s.one[1][0], nil
}

// Connect configures port for the sensor: SPI mode 1, 8 bit words, CS not
// driven by the controller.
func Connect(port spi.Port, hz int64) (*SPI, error) {
	conn, err := port.Connect(physic.Frequency(hz)*physic.Hertz, spi.Mode1|spi.NoCS, 8)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", port, err)
	}
	return NewSPI(conn), nil
}

// Open opens the spidev port called name and connects it with Connect.
// The returned closer releases the port.
func Open(name string, hz int64) (*SPI, spi.PortCloser, error) {
	if err := Init(); err != nil {
		return nil, nil, err
	}
	port, err := spireg.Open(name)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", name, err)
	}
	bus, err := Connect(port, hz)
	if err != nil {
		port.Close()
		return nil, nil, err
	}
	return bus, port, nil
}
