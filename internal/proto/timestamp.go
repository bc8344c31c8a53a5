package proto

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// TimestampLayout is the wire format of every timestamp, always UTC.
const TimestampLayout = "2006-01-02 15:04:05"

// Timestamp renders as the same string in both encodings.
type Timestamp time.Time

// Time returns the underlying time.
func (t Timestamp) Time() time.Time { return time.Time(t) }

func (t Timestamp) String() string {
	return time.Time(t).UTC().Format(TimestampLayout)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return t.parse(s)
}

func (t Timestamp) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(t.String())
}

func (t *Timestamp) UnmarshalCBOR(data []byte) error {
	var s string
	if err := cbor.Unmarshal(data, &s); err != nil {
		return err
	}
	return t.parse(s)
}

func (t *Timestamp) parse(s string) error {
	parsed, err := time.ParseInLocation(TimestampLayout, s, time.UTC)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	*t = Timestamp(parsed)
	return nil
}
