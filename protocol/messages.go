package protocol

import (
	"errors"
	"strings"
)

// Host to firmware commands
const (
	MsgReadRegister  uint16 = 1
	MsgQueryAngle    uint16 = 2
	MsgQuerySpeed    uint16 = 3
	MsgQueryStatus   uint16 = 4
	MsgStartStream   uint16 = 5
	MsgStopStream    uint16 = 6
	MsgIdentify      uint16 = 7
	MsgGetDictionary uint16 = 8
)

// Firmware to host responses
const (
	MsgRegisterValue    uint16 = 64
	MsgAngleValue       uint16 = 65
	MsgSpeedValue       uint16 = 66
	MsgStatusValue      uint16 = 67
	MsgStreamSample     uint16 = 68
	MsgError            uint16 = 69
	MsgIdentifyResponse uint16 = 70
	MsgDictionaryChunk  uint16 = 71
)

// DictionaryChunkMax is the most dictionary bytes one dictionary_chunk
// carries, leaving room for the ID and offset in a frame.
const DictionaryChunkMax = 40

// Error codes carried by MsgError
const (
	ErrCodeUnknownCommand uint32 = 1
	ErrCodeTransport      uint32 = 2
	ErrCodeBadArgs        uint32 = 3
)

var ErrUnknownMessage = errors.New("unknown message id")

// Formats describes every message in Klipper dictionary notation: the
// message name followed by name=%u (unsigned), name=%i (signed) or
// name=%*s (byte string) arguments.
var Formats = map[uint16]string{
	MsgReadRegister:  "read_register addr=%u",
	MsgQueryAngle:    "query_angle",
	MsgQuerySpeed:    "query_speed",
	MsgQueryStatus:   "query_status",
	MsgStartStream:   "start_stream interval_ms=%u",
	MsgStopStream:    "stop_stream",
	MsgIdentify:      "identify",
	MsgGetDictionary: "get_dictionary offset=%u count=%u",

	MsgRegisterValue:    "register_value addr=%u value=%u",
	MsgAngleValue:       "angle_value raw=%u",
	MsgSpeedValue:       "speed_value raw=%u",
	MsgStatusValue:      "status_value raw=%u",
	MsgStreamSample:     "stream_sample seq=%u angle_raw=%u speed_raw=%u",
	MsgError:            "error cmd=%u code=%u",
	MsgIdentifyResponse: "identify_response version=%*s",
	MsgDictionaryChunk:  "dictionary_chunk offset=%u data=%*s",
}

// Message is one decoded message. Integer arguments are kept in the order
// of the format; a %*s argument lands in Data.
type Message struct {
	ID   uint16
	Name string
	Args []uint32
	Data []byte
}

// Arg returns the integer argument called name.
func (m Message) Arg(name string) (uint32, bool) {
	i := 0
	for _, f := range formatArgs(Formats[m.ID]) {
		if f.kind == argBytes {
			continue
		}
		if f.name == name {
			if i < len(m.Args) {
				return m.Args[i], true
			}
			return 0, false
		}
		i++
	}
	return 0, false
}

// Name returns the message name for id, or "" if id is unknown.
func Name(id uint16) string {
	format, ok := Formats[id]
	if !ok {
		return ""
	}
	name, _, _ := strings.Cut(format, " ")
	return name
}

// IsResponse reports whether id is sent by the firmware.
func IsResponse(id uint16) bool {
	return id >= MsgRegisterValue
}

// AppendMessage appends message id with integer arguments to dst.
func AppendMessage(dst []byte, id uint16, args ...uint32) []byte {
	dst = AppendVLQUint(dst, uint32(id))
	for _, a := range args {
		dst = AppendVLQUint(dst, a)
	}
	return dst
}

// AppendIdentifyResponse appends an identify_response carrying version.
func AppendIdentifyResponse(dst []byte, version string) []byte {
	dst = AppendVLQUint(dst, uint32(MsgIdentifyResponse))
	return AppendVLQBytes(dst, []byte(version))
}

// AppendDictionaryChunk appends a dictionary_chunk carrying data read at
// offset.
func AppendDictionaryChunk(dst []byte, offset uint32, data []byte) []byte {
	dst = AppendVLQUint(dst, uint32(MsgDictionaryChunk))
	dst = AppendVLQUint(dst, offset)
	return AppendVLQBytes(dst, data)
}

// DecodeMessage decodes one message from data and advances it.
func DecodeMessage(data *[]byte) (Message, error) {
	id, err := DecodeVLQUint(data)
	if err != nil {
		return Message{}, err
	}

	format, ok := Formats[uint16(id)]
	if !ok {
		return Message{ID: uint16(id)}, ErrUnknownMessage
	}

	msg := Message{ID: uint16(id), Name: Name(uint16(id))}
	for _, f := range formatArgs(format) {
		switch f.kind {
		case argBytes:
			b, err := DecodeVLQBytes(data)
			if err != nil {
				return msg, err
			}
			msg.Data = append([]byte(nil), b...)
		case argInt:
			v, err := DecodeVLQInt(data)
			if err != nil {
				return msg, err
			}
			msg.Args = append(msg.Args, uint32(v))
		default:
			v, err := DecodeVLQUint(data)
			if err != nil {
				return msg, err
			}
			msg.Args = append(msg.Args, v)
		}
	}
	return msg, nil
}

// DecodeMessages decodes every message in a frame payload.
func DecodeMessages(payload []byte) ([]Message, error) {
	var out []Message
	for len(payload) > 0 {
		msg, err := DecodeMessage(&payload)
		if err != nil {
			return out, err
		}
		out = append(out, msg)
	}
	return out, nil
}

type argKind uint8

const (
	argUint argKind = iota
	argInt
	argBytes
)

type formatArg struct {
	name string
	kind argKind
}

func formatArgs(format string) []formatArg {
	fields := strings.Fields(format)
	if len(fields) < 2 {
		return nil
	}
	args := make([]formatArg, 0, len(fields)-1)
	for _, field := range fields[1:] {
		name, conv, _ := strings.Cut(field, "=")
		kind := argUint
		switch conv {
		case "%i":
			kind = argInt
		case "%*s":
			kind = argBytes
		}
		args = append(args, formatArg{name: name, kind: kind})
	}
	return args
}
