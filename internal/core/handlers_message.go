package core

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/vovakirdan/guildchat-server/internal/proto"
	"github.com/vovakirdan/guildchat-server/internal/store"
)

type messageCreate struct{ proto.MessageCreateData }

func (h *messageCreate) Handle(ctx context.Context, c *Client) error {
	if strings.TrimSpace(h.Content) == "" {
		return fmt.Errorf("%w: empty message", ErrBadRequest)
	}

	// The placeholder room is ephemeral: messages are relayed, not stored.
	if h.ChannelID == proto.PlaceholderGuildID {
		now := c.now().UTC()
		m := &store.Message{
			ID:        uuid.NewString(),
			Content:   h.Content,
			CreatedAt: now,
			EditedAt:  now,
			AuthorID:  c.user.ID,
			ChannelID: proto.PlaceholderGuildID,
		}
		ev := proto.New(proto.OutboundMessageCreate, messageOut(m, c.user, h.Nonce))
		c.hub.SendGuildMessage(ctx, proto.PlaceholderGuildID, ev)
		return nil
	}

	ch, err := c.store.GetChannel(ctx, h.ChannelID)
	if err != nil {
		return err
	}
	if !c.canAccess(ch) {
		return ErrForbidden
	}

	m, err := c.store.CreateMessage(ctx, c.user.ID, ch.ID, h.Content)
	if err != nil {
		return err
	}
	c.route(ctx, store.RouteOf(ch), proto.New(proto.OutboundMessageCreate, messageOut(m, c.user, h.Nonce)))
	return nil
}

type messageUpdate struct{ proto.MessageUpdateData }

func (h *messageUpdate) Handle(ctx context.Context, c *Client) error {
	if strings.TrimSpace(h.Content) == "" {
		return fmt.Errorf("%w: empty message", ErrBadRequest)
	}
	m, route, err := c.store.UpdateMessage(ctx, c.user.ID, h.ID, h.Content)
	if err != nil {
		return err
	}
	c.route(ctx, route, proto.New(proto.OutboundMessageUpdate, messageOut(m, c.user, h.Nonce)))
	return nil
}

type messageDelete struct{ proto.MessageDeleteData }

func (h *messageDelete) Handle(ctx context.Context, c *Client) error {
	route, err := c.store.DeleteMessage(ctx, c.user.ID, h.ID)
	if err != nil {
		return err
	}
	c.route(ctx, route, proto.New(proto.OutboundMessageDelete, proto.MessageDeleteEvent{
		ID:        h.ID,
		ChannelID: route.ChannelID,
		GuildID:   route.GuildID,
	}))
	return nil
}

type messageFetch struct{ proto.MessageFetchData }

func (h *messageFetch) Handle(ctx context.Context, c *Client) error {
	out := proto.MessagesEvent{ChannelID: h.ChannelID, Messages: []proto.StoredMessage{}}

	if h.ChannelID != proto.PlaceholderGuildID {
		ch, err := c.store.GetChannel(ctx, h.ChannelID)
		if err != nil {
			return err
		}
		if !c.canAccess(ch) {
			return ErrForbidden
		}

		messages, err := c.store.ListMessages(ctx, ch.ID, c.opts.MessageFetchLimit)
		if err != nil {
			return err
		}
		// Storage returns newest first; clients want chronological order.
		slices.Reverse(messages)
		for _, m := range messages {
			out.Messages = append(out.Messages, storedMessage(m))
		}
	}

	return c.Send(ctx, proto.New(proto.OutboundMessages, out))
}

