package mcu

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/multierr"

	"tlesense/protocol"
)

// maxDictionarySize stops a firmware that never sends the empty final chunk.
const maxDictionarySize = 64 * 1024

// Dictionary is the firmware's description of itself.
type Dictionary struct {
	Version   string            `json:"version"`
	Config    map[string]string `json:"config"`
	Commands  map[string]uint16 `json:"commands"`
	Responses map[string]uint16 `json:"responses"`
}

// Dictionary downloads and parses the firmware data dictionary.
func (c *Client) Dictionary(ctx context.Context) (*Dictionary, error) {
	var compressed []byte
	for {
		offset := uint32(len(compressed))
		msg, err := c.request(ctx, protocol.MsgDictionaryChunk, protocol.MsgGetDictionary,
			offset, protocol.DictionaryChunkMax)
		if err != nil {
			return nil, err
		}
		if got, _ := msg.Arg("offset"); got != offset {
			return nil, fmt.Errorf("dictionary chunk at %d, expected %d", got, offset)
		}
		if len(msg.Data) == 0 {
			break
		}
		compressed = append(compressed, msg.Data...)
		if len(compressed) > maxDictionarySize {
			return nil, fmt.Errorf("dictionary larger than %d bytes", maxDictionarySize)
		}
	}
	c.logger.Debugw("dictionary downloaded", "bytes", len(compressed))
	return ParseDictionary(compressed)
}

// ParseDictionary inflates and decodes a compressed dictionary.
func ParseDictionary(compressed []byte) (*Dictionary, error) {
	r, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("dictionary: %w", err)
	}
	defer r.Close()

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("dictionary: %w", err)
	}

	var dict Dictionary
	if err := json.Unmarshal(raw, &dict); err != nil {
		return nil, fmt.Errorf("dictionary: %w", err)
	}
	return &dict, nil
}

// Check reports every message whose format or ID differs from the ones this
// host was built with.
func (d *Dictionary) Check() error {
	var err error
	for id, format := range protocol.Formats {
		table := d.Commands
		if protocol.IsResponse(id) {
			table = d.Responses
		}
		got, ok := table[format]
		switch {
		case !ok:
			err = multierr.Append(err, fmt.Errorf("firmware lacks %q", format))
		case got != id:
			err = multierr.Append(err, fmt.Errorf("%q has id %d, expected %d", format, got, id))
		}
	}
	return err
}
