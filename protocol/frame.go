package protocol

import "errors"

var (
	ErrPayloadTooLarge = errors.New("payload exceeds frame size")
)

// Frame is one decoded message block.
type Frame struct {
	Seq     uint8
	Payload []byte
}

// AppendFrame appends a complete frame carrying payload to dst.
func AppendFrame(dst []byte, seq uint8, payload []byte) ([]byte, error) {
	if len(payload) > FramePayloadMax {
		return dst, ErrPayloadTooLarge
	}

	start := len(dst)
	dst = append(dst, byte(len(payload)+FrameLengthMin), seq)
	dst = append(dst, payload...)

	crc := CRC16(dst[start:])
	return append(dst, byte(crc>>8), byte(crc), SyncByte), nil
}

// Decoder reassembles frames from a byte stream. Bytes are fed with Write
// and complete frames pulled with Next. A frame with a bad length, sequence
// flag, CRC or trailer drops the decoder out of sync; everything up to the
// next sync byte is then discarded.
type Decoder struct {
	dest    uint8
	buf     []byte
	synced  bool
	dropped int
}

// NewDecoder returns a decoder accepting frames whose sequence byte carries
// the destination flag dest (SeqDest for frames sent by the host, 0 for
// frames sent by the firmware).
func NewDecoder(dest uint8) *Decoder {
	return &Decoder{
		dest:   dest &^ SeqMask,
		buf:    make([]byte, 0, 2*FrameLengthMax),
		synced: true,
	}
}

// Write buffers p. It never fails.
func (d *Decoder) Write(p []byte) (int, error) {
	d.buf = append(d.buf, p...)
	return len(p), nil
}

// Next returns the next complete frame. The returned payload is a copy and
// stays valid after further writes.
func (d *Decoder) Next() (Frame, bool) {
	for len(d.buf) > 0 {
		if !d.synced {
			i := indexSync(d.buf)
			if i < 0 {
				d.dropped += len(d.buf)
				d.buf = d.buf[:0]
				return Frame{}, false
			}
			d.dropped += i
			d.consume(i + 1)
			d.synced = true
			continue
		}

		if d.buf[0] == SyncByte {
			d.consume(1)
			continue
		}

		if len(d.buf) < FrameLengthMin {
			return Frame{}, false
		}

		n := int(d.buf[FramePositionLen])
		if n < FrameLengthMin || n > FrameLengthMax {
			d.desync()
			continue
		}

		seq := d.buf[FramePositionSeq]
		if seq&^SeqMask != d.dest {
			d.desync()
			continue
		}

		if len(d.buf) < n {
			return Frame{}, false
		}

		if d.buf[n-FrameTrailerSync] != SyncByte {
			d.desync()
			continue
		}

		crc := uint16(d.buf[n-FrameTrailerCRC])<<8 | uint16(d.buf[n-FrameTrailerCRC+1])
		if crc != CRC16(d.buf[:n-FrameTrailerSize]) {
			d.desync()
			continue
		}

		payload := make([]byte, n-FrameLengthMin)
		copy(payload, d.buf[FrameHeaderSize:n-FrameTrailerSize])
		d.consume(n)
		return Frame{Seq: seq & SeqMask, Payload: payload}, true
	}
	return Frame{}, false
}

// Dropped returns the number of bytes discarded while resynchronising.
func (d *Decoder) Dropped() int {
	return d.dropped
}

// Synchronized reports whether the decoder is aligned to a frame boundary.
func (d *Decoder) Synchronized() bool {
	return d.synced
}

// Reset discards buffered input and resynchronises.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
	d.synced = true
}

func (d *Decoder) desync() {
	d.synced = false
	d.dropped++
	d.consume(1)
}

func (d *Decoder) consume(n int) {
	m := copy(d.buf, d.buf[n:])
	d.buf = d.buf[:m]
}

func indexSync(data []byte) int {
	for i, b := range data {
		if b == SyncByte {
			return i
		}
	}
	return -1
}
