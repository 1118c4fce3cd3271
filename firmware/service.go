// Package firmware exposes a TLE5012B over the framed serial protocol. It is
// shared by the TinyGo targets and by host-side tests, so it stays free of
// machine-specific code.
package firmware

import (
	"errors"
	"io"
	"time"

	"github.com/benbjohnson/clock"

	"tlesense/core"
	"tlesense/protocol"
	"tlesense/tle5012b"
)

var (
	ErrBadArgs = errors.New("bad command arguments")
	ErrNotRead = errors.New("not a single word read command")
)

// Sensor is the register channel of the sensor being served.
// *tle5012b.Device implements it.
type Sensor interface {
	ReadRegister(addr uint16) (uint16, error)
}

// Service decodes command frames, runs them against a Sensor and writes
// response frames to an output stream. Everything runs on the caller's
// goroutine: feed input with HandleInput and call Poll from the main loop.
type Service struct {
	sensor   Sensor
	out      io.Writer
	clk      clock.Clock
	registry *core.CommandRegistry
	dict     *core.Dictionary
	decoder  *protocol.Decoder

	seq     uint8 // sequence of the frame being answered
	payload []byte
	frame   []byte

	streaming   bool
	interval    time.Duration
	nextSample  time.Time
	sampleCount uint32
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the wall clock used to schedule stream samples.
func WithClock(clk clock.Clock) Option {
	return func(s *Service) {
		s.clk = clk
	}
}

// WithConstant publishes a named value in the data dictionary.
func WithConstant(name, value string) Option {
	return func(s *Service) {
		s.dict.AddConstant(name, value)
	}
}

// NewService creates a service answering on out.
func NewService(sensor Sensor, out io.Writer, opts ...Option) *Service {
	registry := core.NewCommandRegistry()
	s := &Service{
		sensor:   sensor,
		registry: registry,
		dict:     core.NewDictionary(protocol.Version, registry),
		out:      out,
		clk:      clock.New(),
		decoder:  protocol.NewDecoder(protocol.SeqDest),
		payload:  make([]byte, 0, protocol.FramePayloadMax),
		frame:    make([]byte, 0, protocol.FrameLengthMax),
	}
	s.registerCommands()
	s.dict.AddConstant("SENSOR", "tle5012b")
	s.dict.AddConstant("STREAM_INTERVAL_MAX_MS", core.Utoa(uint32(MaxStreamInterval/time.Millisecond)))
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the command table.
func (s *Service) Registry() *core.CommandRegistry {
	return s.registry
}

// Dictionary returns the data dictionary served by get_dictionary.
func (s *Service) Dictionary() *core.Dictionary {
	return s.dict
}

// Streaming reports whether periodic samples are enabled.
func (s *Service) Streaming() bool {
	return s.streaming
}

// Dropped returns the number of input bytes discarded by the frame decoder.
func (s *Service) Dropped() int {
	return s.decoder.Dropped()
}

// HandleInput feeds received bytes to the decoder and runs every complete
// command. Only failures to write a response are returned; command failures
// are answered with an error message.
func (s *Service) HandleInput(data []byte) error {
	s.decoder.Write(data)
	for {
		frame, ok := s.decoder.Next()
		if !ok {
			return nil
		}
		s.seq = frame.Seq
		if err := s.runFrame(frame.Payload); err != nil {
			return err
		}
	}
}

// runFrame dispatches each message in a frame. Decoding stops at the first
// unknown command since its argument layout is unknown.
func (s *Service) runFrame(payload []byte) error {
	for len(payload) > 0 {
		id, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			core.DebugPrintln("[FW] malformed frame")
			return nil
		}

		cmdID := uint16(id)
		err = s.registry.Dispatch(cmdID, &payload)
		if err == nil {
			continue
		}

		code := errorCode(err)
		core.DebugPrintln("[FW] " + protocol.Name(cmdID) + " failed: " + err.Error())
		if werr := s.send(protocol.AppendMessage(s.payload[:0], protocol.MsgError, uint32(cmdID), code)); werr != nil {
			return werr
		}
		if code == protocol.ErrCodeUnknownCommand || code == protocol.ErrCodeBadArgs {
			return nil
		}
	}
	return nil
}

// Poll emits a stream sample when one is due.
func (s *Service) Poll() error {
	if !s.streaming {
		return nil
	}
	now := s.clk.Now()
	if now.Before(s.nextSample) {
		return nil
	}

	s.nextSample = s.nextSample.Add(s.interval)
	if !s.nextSample.After(now) {
		// Fell behind; skip the missed slots.
		s.nextSample = now.Add(s.interval)
	}

	angle, err := s.sensor.ReadRegister(tle5012b.RegAngle)
	if err == nil {
		var speed uint16
		speed, err = s.sensor.ReadRegister(tle5012b.RegSpeed)
		if err == nil {
			s.sampleCount++
			return s.send(protocol.AppendMessage(s.payload[:0], protocol.MsgStreamSample,
				s.sampleCount, uint32(angle), uint32(speed)))
		}
	}

	s.streaming = false
	core.DebugAsync("[FW] stream stopped: " + err.Error())
	return s.send(protocol.AppendMessage(s.payload[:0], protocol.MsgError,
		uint32(protocol.MsgStartStream), protocol.ErrCodeTransport))
}

// send frames payload and writes it out.
func (s *Service) send(payload []byte) error {
	frame, err := protocol.AppendFrame(s.frame[:0], s.seq, payload)
	if err != nil {
		return err
	}
	s.frame = frame
	_, err = s.out.Write(frame)
	return err
}

func errorCode(err error) uint32 {
	switch {
	case errors.Is(err, core.ErrUnknownCommand):
		return protocol.ErrCodeUnknownCommand
	case errors.Is(err, ErrBadArgs), errors.Is(err, ErrNotRead),
		errors.Is(err, protocol.ErrBufferTooSmall), errors.Is(err, protocol.ErrInvalidVLQ):
		return protocol.ErrCodeBadArgs
	default:
		return protocol.ErrCodeTransport
	}
}
