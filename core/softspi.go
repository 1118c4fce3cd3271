package core

import "time"

// SoftwareSPIPins names the lines of a bit-banged bus. SDO and SDI may be
// the same pin for devices with a single bidirectional data line (the
// TLE5012B SSC interface); the pin is then turned around between the send
// and receive phases.
type SoftwareSPIPins struct {
	SCK GPIOPin // clock, driven by us
	SDO GPIOPin // data out (MOSI)
	SDI GPIOPin // data in (MISO)
}

// SoftwareSPI is a bit-banged half-duplex SPI master built on a GPIODriver.
// Bytes go out MSB first. Each half clock period is held with the injected
// Delayer.
type SoftwareSPI struct {
	gpio GPIODriver
	pins SoftwareSPIPins

	mode       SPIMode
	halfPeriod time.Duration
	delay      Delayer

	// Only meaningful when SDO == SDI
	shared   bool
	sdiInput bool
}

var _ ByteTransport = (*SoftwareSPI)(nil)

// NewSoftwareSPI configures the bus pins and leaves the bus idle: clock at
// its CPOL level, data low. rate is the bit clock in Hz; zero selects
// DefaultSoftwareRate.
func NewSoftwareSPI(gpio GPIODriver, pins SoftwareSPIPins, mode SPIMode, rate uint32, d Delayer) (*SoftwareSPI, error) {
	if !mode.Valid() {
		return nil, ErrInvalidMode
	}
	if d == nil {
		d = DefaultDelayer()
	}
	if rate == 0 {
		rate = DefaultSoftwareRate
	}

	s := &SoftwareSPI{
		gpio:       gpio,
		pins:       pins,
		mode:       mode,
		halfPeriod: time.Duration(500000000/rate) * time.Nanosecond,
		delay:      d,
		shared:     pins.SDO == pins.SDI,
	}

	if err := gpio.ConfigureOutput(pins.SCK); err != nil {
		return nil, err
	}
	if err := gpio.ConfigureOutput(pins.SDO); err != nil {
		return nil, err
	}
	if !s.shared {
		if err := gpio.ConfigureInput(pins.SDI); err != nil {
			return nil, err
		}
	}

	if err := gpio.SetPin(pins.SCK, s.idle()); err != nil {
		return nil, err
	}
	if err := gpio.SetPin(pins.SDO, false); err != nil {
		return nil, err
	}
	return s, nil
}

// HalfPeriod returns the dwell time between clock edges.
func (s *SoftwareSPI) HalfPeriod() time.Duration {
	return s.halfPeriod
}

// SendByte clocks one byte out, MSB first. The data line is set before the
// active clock edge.
func (s *SoftwareSPI) SendByte(b byte) error {
	if err := s.driveData(); err != nil {
		return err
	}
	for bit := 7; bit >= 0; bit-- {
		if err := s.gpio.SetPin(s.pins.SDO, b&(1<<bit) != 0); err != nil {
			return err
		}
		if !s.mode.CPHA() {
			s.delay.Delay(s.halfPeriod)
		}
		if err := s.clock(); err != nil {
			return err
		}
	}
	return nil
}

// ReceiveByte clocks one byte in, MSB first. With CPHA=1 the data line is
// sampled after the active edge, with CPHA=0 before it.
func (s *SoftwareSPI) ReceiveByte() (byte, error) {
	if err := s.releaseData(); err != nil {
		return 0, err
	}
	var rx byte
	for bit := 7; bit >= 0; bit-- {
		if !s.mode.CPHA() {
			s.delay.Delay(s.halfPeriod)
			v, err := s.gpio.GetPin(s.pins.SDI)
			if err != nil {
				return 0, err
			}
			if v {
				rx |= 1 << bit
			}
			if err := s.clock(); err != nil {
				return 0, err
			}
			continue
		}

		if err := s.gpio.SetPin(s.pins.SCK, !s.idle()); err != nil {
			return 0, err
		}
		s.delay.Delay(s.halfPeriod)
		v, err := s.gpio.GetPin(s.pins.SDI)
		if err != nil {
			return 0, err
		}
		if v {
			rx |= 1 << bit
		}
		if err := s.gpio.SetPin(s.pins.SCK, s.idle()); err != nil {
			return 0, err
		}
		s.delay.Delay(s.halfPeriod)
	}
	return rx, nil
}

// Send implements RegisterTransport.
func (s *SoftwareSPI) Send(data []byte) error {
	return sendBytes(s, data)
}

// Receive implements RegisterTransport. A shared data pin is driven low
// again once the last byte is in.
func (s *SoftwareSPI) Receive(buf []byte) error {
	if err := receiveBytes(s, buf); err != nil {
		return err
	}
	if !s.shared || !s.sdiInput {
		return nil
	}
	if err := s.driveData(); err != nil {
		return err
	}
	return s.gpio.SetPin(s.pins.SDO, false)
}

// clock emits one full pulse: active edge, dwell, idle edge, dwell.
func (s *SoftwareSPI) clock() error {
	if err := s.gpio.SetPin(s.pins.SCK, !s.idle()); err != nil {
		return err
	}
	s.delay.Delay(s.halfPeriod)
	if err := s.gpio.SetPin(s.pins.SCK, s.idle()); err != nil {
		return err
	}
	s.delay.Delay(s.halfPeriod)
	return nil
}

func (s *SoftwareSPI) idle() bool {
	return s.mode.CPOL()
}

// driveData turns a shared data pin back into an output.
func (s *SoftwareSPI) driveData() error {
	if !s.shared || !s.sdiInput {
		return nil
	}
	if err := s.gpio.ConfigureOutput(s.pins.SDO); err != nil {
		return err
	}
	s.sdiInput = false
	return nil
}

// releaseData hands a shared data pin to the device.
func (s *SoftwareSPI) releaseData() error {
	if !s.shared || s.sdiInput {
		return nil
	}
	if err := s.gpio.ConfigureInput(s.pins.SDI); err != nil {
		return err
	}
	s.sdiInput = true
	return nil
}
