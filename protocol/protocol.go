// Package protocol implements the framed serial protocol between the sensor
// firmware and the host tool.
//
// A frame is laid out as
//
//	len | seq | payload... | crc16 hi | crc16 lo | 0x7E
//
// where len counts the whole frame and the payload is a VLQ message ID
// followed by VLQ arguments. This is the Klipper message block format, so
// the same framing code serves both ends of the link.
package protocol

// Version is reported by the identify command
const Version = "tlesense-0.1.0"

// Frame layout constants
const (
	FrameHeaderSize  = 2
	FrameTrailerSize = 3
	FrameLengthMin   = FrameHeaderSize + FrameTrailerSize
	FrameLengthMax   = 64
	FramePayloadMax  = FrameLengthMax - FrameLengthMin

	FramePositionLen = 0
	FramePositionSeq = 1
	FrameTrailerCRC  = 3
	FrameTrailerSync = 1

	SyncByte = 0x7E

	// Sequence byte: high nibble is the destination flag, low nibble the
	// sequence number.
	SeqMask = 0x0F
	SeqDest = 0x10
)
