package core

import (
	"bytes"
	"sort"
	"sync"

	"tlesense/tinycompress"
)

// Dictionary describes the firmware to the host: its version, the format of
// every command and response, and named constants. It is serialised as JSON
// in Klipper's data dictionary layout and compressed as a zlib stream.
type Dictionary struct {
	mu         sync.RWMutex
	version    string
	constants  map[string]string
	responses  map[string]uint16
	commandReg *CommandRegistry
	cachedDict []byte // Cached compressed dictionary
}

// NewDictionary creates a dictionary that lists the commands of cmdReg.
func NewDictionary(version string, cmdReg *CommandRegistry) *Dictionary {
	return &Dictionary{
		version:    version,
		constants:  make(map[string]string),
		responses:  make(map[string]uint16),
		commandReg: cmdReg,
	}
}

// AddConstant adds a constant to the dictionary.
func (d *Dictionary) AddConstant(name, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.constants[name] = value
	d.cachedDict = nil
}

// AddResponse lists a message the firmware sends. format is the full
// message format including the name.
func (d *Dictionary) AddResponse(id uint16, format string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.responses[format] = id
	d.cachedDict = nil
}

// Generate returns the compressed dictionary, building it on first use.
func (d *Dictionary) Generate() []byte {
	d.mu.RLock()
	cached := d.cachedDict
	d.mu.RUnlock()
	if cached != nil {
		return cached
	}

	// Read the registry before taking the dictionary lock.
	commands := d.commandReg.Commands()

	d.mu.Lock()
	defer d.mu.Unlock()
	jsonData := d.buildJSONLocked(commands)
	var buf bytes.Buffer
	buf.Grow(len(jsonData) + 16)
	zw := tinycompress.NewWriter(&buf)
	// Neither call can fail when writing to a bytes.Buffer.
	zw.Write(jsonData)
	zw.Close()
	d.cachedDict = buf.Bytes()
	DebugPrintln("[DICT] " + Itoa(len(jsonData)) + " bytes of JSON, " + Itoa(len(d.cachedDict)) + " compressed")
	return d.cachedDict
}

// JSON returns the uncompressed dictionary.
func (d *Dictionary) JSON() []byte {
	commands := d.commandReg.Commands()
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.buildJSONLocked(commands)
}

// buildJSONLocked builds the JSON document (caller must hold the lock)
func (d *Dictionary) buildJSONLocked(commands []Command) []byte {
	result := make([]byte, 0, 1024)

	result = append(result, `{"version":`...)
	result = appendJSONString(result, d.version)

	result = append(result, `,"config":{`...)
	names := make([]string, 0, len(d.constants))
	for name := range d.constants {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		if i > 0 {
			result = append(result, ',')
		}
		result = appendJSONString(result, name)
		result = append(result, ':')
		result = appendJSONString(result, d.constants[name])
	}

	// Commands come back from the registry ordered by ID
	result = append(result, `},"commands":{`...)
	for i, cmd := range commands {
		if i > 0 {
			result = append(result, ',')
		}
		format := cmd.Name
		if cmd.Format != "" {
			format += " " + cmd.Format
		}
		result = appendJSONString(result, format)
		result = append(result, ':')
		result = append(result, Utoa(uint32(cmd.ID))...)
	}

	result = append(result, `},"responses":{`...)
	formats := make([]string, 0, len(d.responses))
	for format := range d.responses {
		formats = append(formats, format)
	}
	sort.Slice(formats, func(i, j int) bool { return d.responses[formats[i]] < d.responses[formats[j]] })
	for i, format := range formats {
		if i > 0 {
			result = append(result, ',')
		}
		result = appendJSONString(result, format)
		result = append(result, ':')
		result = append(result, Utoa(uint32(d.responses[format]))...)
	}

	return append(result, `}}`...)
}

// Chunk returns up to count bytes of the compressed dictionary starting at
// offset. An offset at or past the end yields an empty chunk.
func (d *Dictionary) Chunk(offset uint32, count int) []byte {
	data := d.Generate()
	if offset >= uint32(len(data)) || count <= 0 {
		return nil
	}
	end := int(offset) + count
	if end > len(data) {
		end = len(data)
	}
	return data[offset:end]
}

// Size returns the length of the compressed dictionary.
func (d *Dictionary) Size() int {
	return len(d.Generate())
}

// appendJSONString appends s as a quoted JSON string.
func appendJSONString(dst []byte, s string) []byte {
	const hex = "0123456789abcdef"
	dst = append(dst, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\\':
			dst = append(dst, '\\', c)
		case c < 0x20:
			dst = append(dst, '\\', 'u', '0', '0', hex[c>>4], hex[c&0xF])
		default:
			dst = append(dst, c)
		}
	}
	return append(dst, '"')
}
