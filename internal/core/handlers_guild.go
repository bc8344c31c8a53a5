package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/vovakirdan/guildchat-server/internal/proto"
	"github.com/vovakirdan/guildchat-server/internal/store"
)

type guildCreate struct{ proto.GuildCreateData }

func (h *guildCreate) Handle(ctx context.Context, c *Client) error {
	if strings.TrimSpace(h.Name) == "" {
		return fmt.Errorf("%w: empty guild name", ErrBadRequest)
	}
	g, err := c.store.CreateGuild(ctx, c.user.ID, h.Name, h.Desc, h.Icon)
	if err != nil {
		return err
	}

	c.addRoom(g.ID)
	c.hub.JoinGuild(ctx, g.ID, c.user.ID)
	return c.Send(ctx, proto.New(proto.OutboundGuildCreate, proto.GuildCreateEvent{Guild: guildChannels(g, nil)}))
}

type channelCreate struct{ proto.ChannelCreateData }

func (h *channelCreate) Handle(ctx context.Context, c *Client) error {
	if h.GuildID == proto.PlaceholderGuildID {
		return ErrPlaceholderGuild
	}
	if !c.hasRoom(h.GuildID) {
		return ErrForbidden
	}
	if strings.TrimSpace(h.Name) == "" {
		return fmt.Errorf("%w: empty channel name", ErrBadRequest)
	}

	ch, err := c.store.CreateChannel(ctx, h.GuildID, store.ChannelParams{
		Name:        h.Name,
		Description: h.Desc,
		Position:    h.Position,
		ChannelType: store.ChannelType(h.ChannelType),
	})
	if err != nil {
		return err
	}
	return c.Send(ctx, proto.New(proto.OutboundChannelCreate, proto.ChannelEvent{Channel: channelOut(ch)}))
}

type dmChannelCreate struct{ proto.DMChannelCreateData }

func (h *dmChannelCreate) Handle(ctx context.Context, c *Client) error {
	if h.UserID == c.user.ID {
		return fmt.Errorf("%w: cannot open a DM with yourself", ErrBadRequest)
	}
	if _, err := c.store.GetUserByID(ctx, h.UserID); err != nil {
		return err
	}

	ch, err := c.store.FindOrCreateDMChannel(ctx, c.user.ID, h.UserID)
	if err != nil {
		return err
	}
	c.hub.SendDM(ctx, c.user.ID, h.UserID, proto.New(proto.OutboundChannelCreate, proto.ChannelEvent{Channel: channelOut(ch)}))
	return nil
}

// guildChannel loads a channel and checks it is a guild channel the caller
// can manage.
func (c *Client) guildChannel(ctx context.Context, id string) (*store.Channel, error) {
	ch, err := c.store.GetChannel(ctx, id)
	if err != nil {
		return nil, err
	}
	if ch.GuildID == nil {
		return nil, fmt.Errorf("%w: not a guild channel", ErrBadRequest)
	}
	if !c.hasRoom(*ch.GuildID) {
		return nil, ErrForbidden
	}
	return ch, nil
}

type channelUpdate struct{ proto.ChannelUpdateData }

func (h *channelUpdate) Handle(ctx context.Context, c *Client) error {
	ch, err := c.guildChannel(ctx, h.ID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(h.Name) == "" {
		return fmt.Errorf("%w: empty channel name", ErrBadRequest)
	}

	updated, err := c.store.UpdateChannel(ctx, ch.ID, store.ChannelParams{
		Name:        h.Name,
		Description: h.Desc,
		Position:    h.Position,
		ChannelType: store.ChannelType(h.ChannelType),
	})
	if err != nil {
		return err
	}
	c.hub.SendGuildMessage(ctx, *ch.GuildID, proto.New(proto.OutboundChannelUpdate, proto.ChannelEvent{Channel: channelOut(updated)}))
	return nil
}

type channelDelete struct{ proto.ChannelDeleteData }

func (h *channelDelete) Handle(ctx context.Context, c *Client) error {
	ch, err := c.guildChannel(ctx, h.ID)
	if err != nil {
		return err
	}
	deleted, err := c.store.DeleteChannel(ctx, ch.ID)
	if err != nil {
		return err
	}
	c.hub.SendGuildMessage(ctx, *ch.GuildID, proto.New(proto.OutboundChannelDelete, proto.ChannelDeleteEvent{
		ID:      deleted.ID,
		GuildID: deleted.GuildID,
	}))
	return nil
}

type userFetch struct{ proto.UserFetchData }

func (h *userFetch) Handle(ctx context.Context, c *Client) error {
	u, ok := c.hub.FindUserByID(h.ID)
	if !ok {
		stored, err := c.store.GetUserByID(ctx, h.ID)
		if err != nil {
			return fmt.Errorf("fetch user %d: %w", h.ID, err)
		}
		u = *stored
	}
	return c.Send(ctx, proto.New(proto.OutboundUserFetch, publicProfile(u)))
}
