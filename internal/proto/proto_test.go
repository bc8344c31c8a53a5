package proto

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
)

func TestParseEncoding(t *testing.T) {
	cases := map[string]Encoding{
		"json":   EncodingJSON,
		"":       EncodingCBOR,
		"cbor":   EncodingCBOR,
		"JSON":   EncodingCBOR,
		"msgpck": EncodingCBOR,
	}
	for in, want := range cases {
		if got := ParseEncoding(in); got != want {
			t.Fatalf("ParseEncoding(%q) = %v, want %v", in, got, want)
		}
	}
	if EncodingJSON.Binary() || !EncodingCBOR.Binary() {
		t.Fatal("unexpected frame type for encoding")
	}
}

func TestDecodeInboundJSON(t *testing.T) {
	frame := []byte("  {\"type\":\"MessageCreate\",\"data\":{\"content\":\"hi\",\"channel_id\":\"c1\",\"nonce\":\"n1\"}}\n")
	in, err := DecodeInbound(false, frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if in.Type != KindMessageCreate {
		t.Fatalf("unexpected type %q", in.Type)
	}
	var data MessageCreateData
	if err := in.Bind(&data); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if data.Content != "hi" || data.ChannelID != "c1" || data.Nonce != "n1" {
		t.Fatalf("unexpected data %+v", data)
	}
}

func TestDecodeInboundCBOR(t *testing.T) {
	frame, err := cbor.Marshal(map[string]any{
		"type": KindUserFetch,
		"data": map[string]any{"id": 42},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	in, err := DecodeInbound(true, frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	var data UserFetchData
	if err := in.Bind(&data); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if data.ID != 42 {
		t.Fatalf("unexpected id %d", data.ID)
	}
}

func TestDecodeInboundErrors(t *testing.T) {
	if _, err := DecodeInbound(false, []byte(`{"data":{}}`)); !errors.Is(err, ErrMissingType) {
		t.Fatalf("expected ErrMissingType, got %v", err)
	}
	if _, err := DecodeInbound(false, []byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed frame")
	}

	in, err := DecodeInbound(false, []byte(`{"type":"MessageFetch","data":null}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	var data MessageFetchData
	if err := in.Bind(&data); !errors.Is(err, ErrMissingData) {
		t.Fatalf("expected ErrMissingData, got %v", err)
	}

	in, err = DecodeInbound(false, []byte(`{"type":"MessageFetch"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := in.Bind(&data); !errors.Is(err, ErrMissingData) {
		t.Fatalf("expected ErrMissingData for absent data, got %v", err)
	}
}

func TestTimestampWireFormat(t *testing.T) {
	ts := Timestamp(time.Date(2024, 3, 1, 12, 30, 45, 999, time.UTC))

	raw, err := json.Marshal(ts)
	if err != nil {
		t.Fatalf("marshal json: %v", err)
	}
	if string(raw) != `"2024-03-01 12:30:45"` {
		t.Fatalf("unexpected json %s", raw)
	}

	var back Timestamp
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal json: %v", err)
	}
	if !back.Time().Equal(time.Date(2024, 3, 1, 12, 30, 45, 0, time.UTC)) {
		t.Fatalf("unexpected time %v", back.Time())
	}

	raw, err = cbor.Marshal(ts)
	if err != nil {
		t.Fatalf("marshal cbor: %v", err)
	}
	var s string
	if err := cbor.Unmarshal(raw, &s); err != nil {
		t.Fatalf("cbor string: %v", err)
	}
	if s != "2024-03-01 12:30:45" {
		t.Fatalf("unexpected cbor text %q", s)
	}
}

func TestOutboundFieldNamesMatchAcrossEncodings(t *testing.T) {
	ev := New(OutboundMessageCreate, SystemMessage("hello", PlaceholderGuildID))

	for _, enc := range []Encoding{EncodingJSON, EncodingCBOR} {
		raw, err := enc.Marshal(ev)
		if err != nil {
			t.Fatalf("%s marshal: %v", enc, err)
		}
		var generic map[string]any
		if err := enc.Unmarshal(raw, &generic); err != nil {
			t.Fatalf("%s unmarshal: %v", enc, err)
		}
		if generic["type"] != OutboundMessageCreate {
			t.Fatalf("%s: unexpected type %v", enc, generic["type"])
		}
		data, ok := generic["data"].(map[string]any)
		if !ok {
			// cbor decodes nested maps as map[any]any
			if m, ok := generic["data"].(map[any]any); ok {
				data = make(map[string]any, len(m))
				for k, v := range m {
					data[k.(string)] = v
				}
			}
		}
		if data["content"] != "hello" || data["channel_id"] != PlaceholderGuildID {
			t.Fatalf("%s: unexpected data %v", enc, data)
		}
	}
}

func TestSystemAuthor(t *testing.T) {
	a := SystemAuthor()
	if a.ID != 0 || a.Username != "System" || !a.IsStaff || !a.IsSuperuser {
		t.Fatalf("unexpected system author %+v", a)
	}
	if a.CreatedAt.String() != "2016-07-08 09:10:11" {
		t.Fatalf("unexpected created_at %s", a.CreatedAt)
	}

	m1 := SystemMessage("x", "c")
	m2 := SystemMessage("x", "c")
	if m1.ID == m2.ID || m1.Nonce == m2.Nonce {
		t.Fatal("system messages should get fresh ids")
	}
}
