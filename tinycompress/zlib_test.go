package tinycompress

import (
	"bytes"
	"compress/zlib"
	"errors"
	"io"
	"testing"
)

func inflate(t *testing.T, data []byte) []byte {
	t.Helper()
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("zlib.NewReader: %v", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("inflate: %v", err)
	}
	return out
}

func TestCompressReadableByZlib(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"empty", nil},
		{"short", []byte(`{"version":"tlesense"}`)},
		{"one full block", bytes.Repeat([]byte{0xA5}, MaxBlockSize)},
		{"several blocks", bytes.Repeat([]byte("abc"), MaxBlockSize)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := inflate(t, Compress(nil, tt.input))
			if !bytes.Equal(got, tt.input) {
				t.Errorf("round trip lost data: got %d bytes, expected %d", len(got), len(tt.input))
			}
		})
	}
}

func TestCompressHeader(t *testing.T) {
	out := Compress(nil, []byte("hi"))
	if (uint16(out[0])<<8|uint16(out[1]))%31 != 0 {
		t.Errorf("header %02X %02X fails the FCHECK test", out[0], out[1])
	}
	// header(2) + block header(1) + len/nlen(4) + data(2) + adler(4)
	if len(out) != 13 {
		t.Errorf("len = %d, expected 13", len(out))
	}
	if out[2] != blockFinal {
		t.Errorf("block header = %02X, expected final stored block", out[2])
	}
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Write([]byte("hello, "))
	w.Write([]byte("sensor"))
	if buf.Len() != 0 {
		t.Fatal("Writer emitted output before Close")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if got := inflate(t, buf.Bytes()); string(got) != "hello, sensor" {
		t.Errorf("inflated %q", got)
	}

	if _, err := w.Write([]byte("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("Write after Close error = %v, expected ErrClosed", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
