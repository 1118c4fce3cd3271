package core

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"io"
	"testing"
)

type dictionaryDoc struct {
	Version   string            `json:"version"`
	Config    map[string]string `json:"config"`
	Commands  map[string]int    `json:"commands"`
	Responses map[string]int    `json:"responses"`
}

func newTestDictionary(t *testing.T) *Dictionary {
	t.Helper()
	reg := NewCommandRegistry()
	noop := func(data *[]byte) error { return nil }
	if err := reg.Register(1, "read_register", "addr=%u", noop); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(2, "query_angle", "", noop); err != nil {
		t.Fatal(err)
	}

	dict := NewDictionary("tlesense-test", reg)
	dict.AddConstant("BUS", "spi0")
	dict.AddConstant("QUOTE", `say "hi"`)
	dict.AddResponse(64, "register_value addr=%u value=%u")
	return dict
}

func TestDictionaryJSON(t *testing.T) {
	dict := newTestDictionary(t)

	var doc dictionaryDoc
	if err := json.Unmarshal(dict.JSON(), &doc); err != nil {
		t.Fatalf("dictionary is not valid JSON: %v\n%s", err, dict.JSON())
	}

	if doc.Version != "tlesense-test" {
		t.Errorf("version = %q", doc.Version)
	}
	if doc.Config["BUS"] != "spi0" || doc.Config["QUOTE"] != `say "hi"` {
		t.Errorf("config = %v", doc.Config)
	}
	if doc.Commands["read_register addr=%u"] != 1 || doc.Commands["query_angle"] != 2 {
		t.Errorf("commands = %v", doc.Commands)
	}
	if doc.Responses["register_value addr=%u value=%u"] != 64 {
		t.Errorf("responses = %v", doc.Responses)
	}
}

func TestDictionaryCompressed(t *testing.T) {
	dict := newTestDictionary(t)

	r, err := zlib.NewReader(bytes.NewReader(dict.Generate()))
	if err != nil {
		t.Fatalf("zlib.NewReader: %v", err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("inflate: %v", err)
	}
	if !bytes.Equal(got, dict.JSON()) {
		t.Errorf("inflated dictionary differs from JSON()")
	}
}

func TestDictionaryRebuildsAfterChange(t *testing.T) {
	dict := newTestDictionary(t)
	before := dict.Size()

	dict.AddConstant("EXTRA", "value")
	if dict.Size() <= before {
		t.Errorf("size %d did not grow after AddConstant (was %d)", dict.Size(), before)
	}
}

func TestDictionaryChunks(t *testing.T) {
	dict := newTestDictionary(t)
	full := dict.Generate()

	var joined []byte
	for offset := 0; ; offset += 10 {
		chunk := dict.Chunk(uint32(offset), 10)
		if len(chunk) == 0 {
			break
		}
		if len(chunk) > 10 {
			t.Fatalf("chunk at %d is %d bytes", offset, len(chunk))
		}
		joined = append(joined, chunk...)
	}
	if !bytes.Equal(joined, full) {
		t.Error("chunks do not reassemble the dictionary")
	}

	if chunk := dict.Chunk(uint32(len(full)+100), 10); len(chunk) != 0 {
		t.Error("chunk beyond end should be empty")
	}
	if chunk := dict.Chunk(0, 0); len(chunk) != 0 {
		t.Error("zero count should yield an empty chunk")
	}
}

func TestAppendJSONString(t *testing.T) {
	got := string(appendJSONString(nil, "a\"b\\c\n"))
	if got != `"a\"b\\c\u000a"` {
		t.Errorf("appendJSONString = %s", got)
	}
}
