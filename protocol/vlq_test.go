package protocol

import (
	"bytes"
	"testing"
)

func TestVLQKnownEncodings(t *testing.T) {
	testCases := []struct {
		value    int32
		expected []byte
	}{
		{0, []byte{0x00}},
		{95, []byte{0x5F}},
		{96, []byte{0x80, 0x60}},
		{-1, []byte{0x7F}},
		{-32, []byte{0x60}},
		{-33, []byte{0xFF, 0x5F}},
		{0x8021, []byte{0x82, 0x80, 0x21}},
	}

	for _, tc := range testCases {
		encoded := AppendVLQ(nil, tc.value)
		if !bytes.Equal(encoded, tc.expected) {
			t.Errorf("AppendVLQ(%d) = % x, expected % x", tc.value, encoded, tc.expected)
		}

		data := encoded
		decoded, err := DecodeVLQInt(&data)
		if err != nil {
			t.Errorf("DecodeVLQInt(% x) failed: %v", encoded, err)
			continue
		}
		if decoded != tc.value {
			t.Errorf("DecodeVLQInt(% x) = %d, expected %d", encoded, decoded, tc.value)
		}
		if len(data) != 0 {
			t.Errorf("DecodeVLQInt(% x) left %d bytes", encoded, len(data))
		}
	}
}

func TestVLQUintRegisterWords(t *testing.T) {
	// Every 16-bit register value must survive the link.
	for _, v := range []uint32{0, 0x7FFF, 0x8000, 0x8021, 0xFFFF, 1000000} {
		data := AppendVLQUint(nil, v)
		decoded, err := DecodeVLQUint(&data)
		if err != nil {
			t.Errorf("DecodeVLQUint failed for %d: %v", v, err)
			continue
		}
		if decoded != v {
			t.Errorf("VLQ mismatch: expected %d, got %d", v, decoded)
		}
	}
}

func TestVLQAppendsInPlace(t *testing.T) {
	buf := []byte{0xAA}
	buf = AppendVLQUint(buf, 1)
	buf = AppendVLQUint(buf, 2)
	if !bytes.Equal(buf, []byte{0xAA, 0x01, 0x02}) {
		t.Errorf("Expected [aa 01 02], got % x", buf)
	}
}

func TestVLQBytes(t *testing.T) {
	testCases := [][]byte{
		{},
		{0x01, 0x02, 0x03},
		[]byte(Version),
	}

	for i, expected := range testCases {
		data := AppendVLQBytes(nil, expected)
		decoded, err := DecodeVLQBytes(&data)
		if err != nil {
			t.Errorf("Test case %d: Failed to decode bytes: %v", i, err)
			continue
		}
		if !bytes.Equal(decoded, expected) {
			t.Errorf("Test case %d: expected % x, got % x", i, expected, decoded)
		}
	}
}

func TestVLQBufferTooSmall(t *testing.T) {
	data := []byte{0x80}
	if _, err := DecodeVLQInt(&data); err != ErrBufferTooSmall {
		t.Errorf("Expected ErrBufferTooSmall, got %v", err)
	}

	data = nil
	if _, err := DecodeVLQInt(&data); err != ErrBufferTooSmall {
		t.Errorf("Expected ErrBufferTooSmall on empty input, got %v", err)
	}

	data = []byte{0x05, 0x01}
	if _, err := DecodeVLQBytes(&data); err != ErrBufferTooSmall {
		t.Errorf("Expected ErrBufferTooSmall for short byte string, got %v", err)
	}
}

func TestVLQTooLong(t *testing.T) {
	data := []byte{0x81, 0x81, 0x81, 0x81, 0x81, 0x01}
	if _, err := DecodeVLQInt(&data); err != ErrInvalidVLQ {
		t.Errorf("Expected ErrInvalidVLQ, got %v", err)
	}
}
