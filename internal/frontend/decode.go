package frontend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

type Format uint8

const (
	FormatUnknown Format = iota
	FormatJSON
	FormatMsgpack
	// FormatSource is a C++ file that goes through the front-end command.
	FormatSource
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatMsgpack:
		return "msgpack"
	case FormatSource:
		return "source"
	}
	return "unknown"
}

// FormatOf picks the input format from a file extension.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".astpack", ".msgpack":
		return FormatMsgpack
	case ".cpp", ".cc", ".cxx", ".c++":
		return FormatSource
	}
	return FormatUnknown
}

var ErrVersion = errors.New("unsupported interchange version")

// Decode parses a document in the given encoding and checks its version.
func Decode(data []byte, f Format) (*Doc, error) {
	doc := &Doc{}
	switch f {
	case FormatJSON, FormatSource:
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(doc); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	case FormatMsgpack:
		dec := msgpack.NewDecoder(bytes.NewReader(data))
		dec.SetCustomStructTag("json")
		if err := dec.Decode(doc); err != nil {
			return nil, fmt.Errorf("decode msgpack: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown input format %q", f)
	}
	if doc.Version != WireVersion {
		return nil, fmt.Errorf("%w %d (want %d)", ErrVersion, doc.Version, WireVersion)
	}
	return doc, nil
}

// Encode writes doc in the given encoding; `cxxlower pack` uses it to turn
// JSON dumps into the smaller MessagePack form.
func Encode(doc *Doc, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		return json.Marshal(doc)
	case FormatMsgpack:
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.SetCustomStructTag("json")
		enc.SetOmitEmpty(true)
		if err := enc.Encode(doc); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("cannot encode %s", f)
}
