package core

import (
	"context"
	"fmt"

	"github.com/vovakirdan/guildchat-server/internal/proto"
)

// Handler is implemented by every inbound event kind. The value is filled
// from the envelope payload before Handle is called.
type Handler interface {
	Handle(ctx context.Context, c *Client) error
}

// handlers maps wire kinds to payload constructors. Adding a kind here is
// all the session needs.
var handlers = map[string]func() Handler{
	proto.KindUserFetch:       func() Handler { return new(userFetch) },
	proto.KindMessageFetch:    func() Handler { return new(messageFetch) },
	proto.KindMemberFetch:     func() Handler { return new(memberFetch) },
	proto.KindMessageCreate:   func() Handler { return new(messageCreate) },
	proto.KindMessageUpdate:   func() Handler { return new(messageUpdate) },
	proto.KindMessageDelete:   func() Handler { return new(messageDelete) },
	proto.KindGuildCreate:     func() Handler { return new(guildCreate) },
	proto.KindChannelCreate:   func() Handler { return new(channelCreate) },
	proto.KindDMChannelCreate: func() Handler { return new(dmChannelCreate) },
	proto.KindChannelUpdate:   func() Handler { return new(channelUpdate) },
	proto.KindChannelDelete:   func() Handler { return new(channelDelete) },
	proto.KindMemberCreate:    func() Handler { return new(memberCreate) },
	proto.KindMemberUpdate:    func() Handler { return new(memberUpdate) },
	proto.KindMemberDelete:    func() Handler { return new(memberDelete) },
}

// dispatch decodes, rate-limits and runs one inbound event.
func (c *Client) dispatch(ctx context.Context, in proto.Inbound) error {
	newHandler, ok := handlers[in.Type]
	if !ok {
		return fmt.Errorf("%w: %q", proto.ErrUnknownKind, in.Type)
	}

	// Only well-formed events count against the rate limit.
	h := newHandler()
	if err := in.Bind(h); err != nil {
		return fmt.Errorf("bind %s: %w", in.Type, err)
	}
	if !c.limiter.Allow(in.Type) {
		c.log.Debug().Str("event", in.Type).Msg("rate limited, dropping")
		return nil
	}
	c.log.Debug().Str("event", in.Type).Msg("dispatching")
	return h.Handle(ctx, c)
}
