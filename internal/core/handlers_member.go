package core

import (
	"context"
	"fmt"

	"github.com/vovakirdan/guildchat-server/internal/proto"
)

type memberFetch struct{ proto.MemberFetchData }

func (h *memberFetch) Handle(ctx context.Context, c *Client) error {
	if h.GuildID == proto.PlaceholderGuildID {
		return ErrPlaceholderGuild
	}
	if !c.hasRoom(h.GuildID) {
		return ErrForbidden
	}

	members, err := c.store.ListMembers(ctx, h.GuildID, c.opts.MemberFetchLimit)
	if err != nil {
		return err
	}
	out := proto.MembersEvent{GuildID: h.GuildID, Members: make([]proto.Member, 0, len(members))}
	for _, m := range members {
		out.Members = append(out.Members, memberOut(m))
	}
	return c.Send(ctx, proto.New(proto.OutboundMembers, out))
}

// memberCreate joins the caller to a guild.
type memberCreate struct{ proto.MemberCreateData }

func (h *memberCreate) Handle(ctx context.Context, c *Client) error {
	if h.GuildID == proto.PlaceholderGuildID {
		return ErrPlaceholderGuild
	}
	if c.hasRoom(h.GuildID) {
		return fmt.Errorf("%w: already a member", ErrBadRequest)
	}

	g, err := c.store.GetGuild(ctx, h.GuildID)
	if err != nil {
		return err
	}
	channels, err := c.store.JoinGuild(ctx, c.user.ID, g.ID)
	if err != nil {
		return err
	}

	c.addRoom(g.ID)
	c.hub.JoinGuild(ctx, g.ID, c.user.ID)

	if err := c.Send(ctx, proto.New(proto.OutboundGuildCreate, proto.GuildCreateEvent{Guild: guildChannels(g, channels)})); err != nil {
		return err
	}
	c.hub.SendGuildMessage(ctx, g.ID, proto.New(proto.OutboundMemberCreate, proto.MemberCreateEvent{
		ID:    c.user.ID,
		Guild: guildOut(g),
	}))
	return nil
}

type memberUpdate struct{ proto.MemberUpdateData }

func (h *memberUpdate) Handle(ctx context.Context, c *Client) error {
	if h.GuildID == proto.PlaceholderGuildID {
		return ErrPlaceholderGuild
	}
	if !c.hasRoom(h.GuildID) {
		return ErrForbidden
	}
	if err := c.store.UpdateNickname(ctx, c.user.ID, h.GuildID, h.NickName); err != nil {
		return err
	}
	c.hub.SendGuildMessage(ctx, h.GuildID, proto.New(proto.OutboundMemberUpdate, proto.MemberUpdateEvent{
		GuildID:  h.GuildID,
		UserID:   c.user.ID,
		NickName: h.NickName,
	}))
	return nil
}

// memberDelete removes the caller from a guild.
type memberDelete struct{ proto.MemberDeleteData }

func (h *memberDelete) Handle(ctx context.Context, c *Client) error {
	if h.GuildID == proto.PlaceholderGuildID {
		return ErrPlaceholderGuild
	}
	if !c.hasRoom(h.GuildID) {
		return ErrForbidden
	}
	if err := c.store.LeaveGuild(ctx, c.user.ID, h.GuildID); err != nil {
		return err
	}

	c.removeRoom(h.GuildID)
	c.hub.LeaveGuild(ctx, h.GuildID, c.user.ID)

	ev := proto.New(proto.OutboundMemberRemove, proto.MemberRemoveEvent{ID: c.user.ID, GuildID: h.GuildID})
	if err := c.Send(ctx, ev); err != nil {
		return err
	}
	c.hub.SendGuildMessage(ctx, h.GuildID, ev)
	return nil
}
