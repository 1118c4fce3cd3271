package firmware

import (
	"time"

	"tlesense/core"
	"tlesense/protocol"
	"tlesense/tle5012b"
)

// MaxStreamInterval bounds start_stream.
const MaxStreamInterval = 60 * time.Second

// registerCommands fills the command table. IDs come from the protocol
// package; registration order does not matter.
func (s *Service) registerCommands() {
	cmds := []struct {
		id      uint16
		handler core.CommandHandler
	}{
		{protocol.MsgReadRegister, s.handleReadRegister},
		{protocol.MsgQueryAngle, s.queryHandler(tle5012b.RegAngle, protocol.MsgAngleValue)},
		{protocol.MsgQuerySpeed, s.queryHandler(tle5012b.RegSpeed, protocol.MsgSpeedValue)},
		{protocol.MsgQueryStatus, s.queryHandler(tle5012b.RegStatus, protocol.MsgStatusValue)},
		{protocol.MsgStartStream, s.handleStartStream},
		{protocol.MsgStopStream, s.handleStopStream},
		{protocol.MsgIdentify, s.handleIdentify},
		{protocol.MsgGetDictionary, s.handleGetDictionary},
	}
	for _, c := range cmds {
		format := protocol.Formats[c.id]
		name := protocol.Name(c.id)
		args := ""
		if len(format) > len(name) {
			args = format[len(name)+1:]
		}
		// IDs are unique constants; a duplicate is a programming error.
		if err := s.registry.Register(c.id, name, args, c.handler); err != nil {
			panic("firmware: " + name + ": " + err.Error())
		}
	}

	for id, format := range protocol.Formats {
		if protocol.IsResponse(id) {
			s.dict.AddResponse(id, format)
		}
	}
}

// handleReadRegister reads any single word register and echoes the command.
func (s *Service) handleReadRegister(data *[]byte) error {
	addr32, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	if addr32 > 0xFFFF {
		return ErrBadArgs
	}
	addr := uint16(addr32)
	if !tle5012b.IsSingleRead(addr) {
		return ErrNotRead
	}

	value, err := s.sensor.ReadRegister(addr)
	if err != nil {
		return err
	}
	if core.IsDebugEnabled() {
		core.DebugAsync("[FW] read " + core.Hex16(addr) + " = " + core.Hex16(value))
	}
	return s.send(protocol.AppendMessage(s.payload[:0], protocol.MsgRegisterValue, uint32(addr), uint32(value)))
}

// queryHandler answers with the raw register word. Decoding, including the
// sentinel check on the angle, happens on the receiving side.
func (s *Service) queryHandler(reg uint16, response uint16) core.CommandHandler {
	return func(data *[]byte) error {
		value, err := s.sensor.ReadRegister(reg)
		if err != nil {
			return err
		}
		return s.send(protocol.AppendMessage(s.payload[:0], response, uint32(value)))
	}
}

func (s *Service) handleStartStream(data *[]byte) error {
	ms, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	interval := time.Duration(ms) * time.Millisecond
	if ms == 0 || interval > MaxStreamInterval {
		return ErrBadArgs
	}

	s.streaming = true
	s.interval = interval
	s.nextSample = s.clk.Now()
	s.sampleCount = 0
	core.DebugPrintln("[FW] stream every " + core.Utoa(ms) + "ms")
	return nil
}

func (s *Service) handleStopStream(data *[]byte) error {
	s.streaming = false
	return nil
}

func (s *Service) handleIdentify(data *[]byte) error {
	return s.send(protocol.AppendIdentifyResponse(s.payload[:0], protocol.Version))
}

// handleGetDictionary sends one chunk of the compressed dictionary. The host
// keeps asking until it receives an empty chunk.
func (s *Service) handleGetDictionary(data *[]byte) error {
	offset, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	count, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrBadArgs
	}
	if count > protocol.DictionaryChunkMax {
		count = protocol.DictionaryChunkMax
	}
	chunk := s.dict.Chunk(offset, int(count))
	return s.send(protocol.AppendDictionaryChunk(s.payload[:0], offset, chunk))
}
