package proto

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Encoding is the outbound wire format chosen once per connection.
type Encoding uint8

const (
	// EncodingCBOR is the compact binary encoding and the default.
	EncodingCBOR Encoding = iota
	// EncodingJSON is the human-readable text encoding.
	EncodingJSON
)

// ParseEncoding maps the recv_type query value to an encoding.
// Only an explicit "json" selects text; anything else is binary.
func ParseEncoding(v string) Encoding {
	if v == "json" {
		return EncodingJSON
	}
	return EncodingCBOR
}

func (e Encoding) String() string {
	if e == EncodingJSON {
		return "json"
	}
	return "cbor"
}

// Binary reports whether frames in this encoding go out as binary frames.
func (e Encoding) Binary() bool { return e != EncodingJSON }

// Marshal encodes v. CBOR reuses the json struct tags, so field names match.
func (e Encoding) Marshal(v any) ([]byte, error) {
	if e == EncodingJSON {
		return json.Marshal(v)
	}
	return cbor.Marshal(v)
}

// Unmarshal decodes data into v.
func (e Encoding) Unmarshal(data []byte, v any) error {
	if e == EncodingJSON {
		return json.Unmarshal(data, v)
	}
	return cbor.Unmarshal(data, v)
}

type jsonEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type cborEnvelope struct {
	Type string          `cbor:"type"`
	Data cbor.RawMessage `cbor:"data"`
}

// DecodeInbound parses a client frame envelope. Text frames are JSON and
// binary frames are CBOR regardless of the connection's outbound choice.
func DecodeInbound(binary bool, frame []byte) (Inbound, error) {
	if !binary {
		var env jsonEnvelope
		if err := json.Unmarshal(bytes.TrimSpace(frame), &env); err != nil {
			return Inbound{}, fmt.Errorf("decode json envelope: %w", err)
		}
		if env.Type == "" {
			return Inbound{}, ErrMissingType
		}
		return Inbound{Type: env.Type, Data: env.Data, enc: EncodingJSON}, nil
	}

	var env cborEnvelope
	if err := cbor.Unmarshal(frame, &env); err != nil {
		return Inbound{}, fmt.Errorf("decode cbor envelope: %w", err)
	}
	if env.Type == "" {
		return Inbound{}, ErrMissingType
	}
	return Inbound{Type: env.Type, Data: env.Data, enc: EncodingCBOR}, nil
}
