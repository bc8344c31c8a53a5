package proto

import "errors"

// PlaceholderGuildID is the implicit global guild every user belongs to.
// It has no storage rows; messages sent to it are never persisted.
const PlaceholderGuildID = "5fe9d2ab-2174-4a30-8245-cc5de2563dce"

// Inbound event kinds, as carried in the envelope "type" field.
const (
	KindUserFetch       = "UserFetch"
	KindMessageFetch    = "MessageFetch"
	KindMemberFetch     = "MemberFetch"
	KindMessageCreate   = "MessageCreate"
	KindMessageUpdate   = "MessageUpdate"
	KindMessageDelete   = "MessageDelete"
	KindGuildCreate     = "GuildCreate"
	KindChannelCreate   = "ChannelCreate"
	KindDMChannelCreate = "DMChannelCreate"
	KindChannelUpdate   = "ChannelUpdate"
	KindChannelDelete   = "ChannelDelete"
	KindMemberCreate    = "MemberCreate"
	KindMemberUpdate    = "MemberUpdate"
	KindMemberDelete    = "MemberDelete"
)

// Outbound event kinds pushed by the server.
const (
	OutboundReady         = "ReadyEvent"
	OutboundMessages      = "Messages"
	OutboundMembers       = "Members"
	OutboundMessageCreate = "MessageCreate"
	OutboundMessageUpdate = "MessageUpdate"
	OutboundMessageDelete = "MessageDelete"
	OutboundGuildCreate   = "GuildCreate"
	OutboundChannelCreate = "ChannelCreate"
	OutboundChannelUpdate = "ChannelUpdate"
	OutboundChannelDelete = "ChannelDelete"
	OutboundMemberCreate  = "MemberCreate"
	OutboundMemberUpdate  = "MemberUpdate"
	OutboundMemberRemove  = "MemberRemove"
	OutboundUserFetch     = "UserFetch"
)

var (
	// ErrMissingType is returned for envelopes without a "type" field.
	ErrMissingType = errors.New("missing event type")
	// ErrUnknownKind is returned for envelope types with no handler.
	ErrUnknownKind = errors.New("unknown event kind")
	// ErrMissingData is returned when a kind's payload is absent or null.
	ErrMissingData = errors.New("missing event data")
)

// cborNull is the single-byte CBOR encoding of null.
const cborNull = 0xf6

// Inbound is a decoded client envelope. Data stays in its wire encoding
// until Bind is called with the kind-specific target.
type Inbound struct {
	Type string
	Data []byte

	enc Encoding
}

// Bind decodes the envelope payload into v using the frame's encoding.
func (in Inbound) Bind(v any) error {
	if len(in.Data) == 0 || string(in.Data) == "null" || (len(in.Data) == 1 && in.Data[0] == cborNull) {
		return ErrMissingData
	}
	return in.enc.Unmarshal(in.Data, v)
}

// Outbound is the envelope for every server-pushed event.
type Outbound struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
