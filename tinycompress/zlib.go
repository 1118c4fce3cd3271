// Package tinycompress writes zlib streams made of stored (uncompressed)
// DEFLATE blocks. The output is readable by any zlib decoder, and the
// encoder needs no tables, which keeps it small enough for TinyGo targets.
package tinycompress

import (
	"errors"
	"hash/adler32"
	"io"
)

// MaxBlockSize is the largest payload of one stored block.
const MaxBlockSize = 0xFFFF

const (
	zlibCMF = 0x78 // deflate, 32K window
	zlibFLG = 0x01 // no dictionary, fastest level; (CMF<<8|FLG) % 31 == 0

	blockFinal  = 0x01
	blockStored = 0x00
)

var ErrClosed = errors.New("tinycompress: write after close")

// Writer buffers everything written to it and emits the zlib stream on
// Close. It implements io.WriteCloser.
type Writer struct {
	output   io.Writer
	inputBuf []byte
	closed   bool
}

// NewWriter creates a Writer that emits to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		output:   w,
		inputBuf: make([]byte, 0, 512),
	}
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, ErrClosed
	}
	w.inputBuf = append(w.inputBuf, p...)
	return len(p), nil
}

// Close writes the header, the stored blocks and the Adler-32 trailer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	_, err := w.output.Write(Compress(nil, w.inputBuf))
	return err
}

// Compress appends the zlib encoding of input to dst. Empty input produces
// a single empty final block.
func Compress(dst, input []byte) []byte {
	dst = append(dst, zlibCMF, zlibFLG)

	rest := input
	for {
		n := len(rest)
		if n > MaxBlockSize {
			n = MaxBlockSize
		}
		header := byte(blockStored)
		if n == len(rest) {
			header |= blockFinal
		}

		// LEN and NLEN, little endian
		length := uint16(n)
		nlength := ^length
		dst = append(dst, header,
			byte(length), byte(length>>8),
			byte(nlength), byte(nlength>>8))
		dst = append(dst, rest[:n]...)

		rest = rest[n:]
		if header&blockFinal != 0 {
			break
		}
	}

	// Adler-32 of the uncompressed data, big endian
	checksum := adler32.Checksum(input)
	return append(dst,
		byte(checksum>>24),
		byte(checksum>>16),
		byte(checksum>>8),
		byte(checksum))
}
