package core

import (
	"github.com/vovakirdan/guildchat-server/internal/proto"
	"github.com/vovakirdan/guildchat-server/internal/store"
)

func publicProfile(u store.User) proto.UserFetch {
	return proto.UserFetch{
		ID:          u.ID,
		Username:    u.Username,
		Profile:     u.Profile,
		CreatedAt:   proto.Timestamp(u.CreatedAt),
		Description: u.Description,
		IsStaff:     u.IsStaff,
		IsSuperuser: u.IsSuperuser,
	}
}

func userClient(u store.User) proto.UserClient {
	return proto.UserClient{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Profile:     u.Profile,
		CreatedAt:   proto.Timestamp(u.CreatedAt),
		Description: u.Description,
		IsOnline:    u.IsOnline,
		IsStaff:     u.IsStaff,
		IsSuperuser: u.IsSuperuser,
		Verified:    u.Verified(),
	}
}

func guildOut(g *store.Guild) proto.Guild {
	return proto.Guild{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		Icon:        g.Icon,
		CreatedAt:   proto.Timestamp(g.CreatedAt),
		CreatorID:   g.CreatorID,
	}
}

func channelOut(c *store.Channel) proto.Channel {
	return proto.Channel{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Position:    c.Position,
		GuildID:     c.GuildID,
		User1:       c.User1,
		User2:       c.User2,
		ChannelType: int(c.ChannelType),
		CreatedAt:   proto.Timestamp(c.CreatedAt),
	}
}

func guildChannels(g *store.Guild, channels []*store.Channel) proto.GuildChannels {
	out := proto.GuildChannels{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		Icon:        g.Icon,
		CreatedAt:   proto.Timestamp(g.CreatedAt),
		CreatorID:   g.CreatorID,
		Channels:    make([]proto.Channel, 0, len(channels)),
	}
	for _, c := range channels {
		out.Channels = append(out.Channels, channelOut(c))
	}
	return out
}

func memberOut(m *store.MemberWithUser) proto.Member {
	return proto.Member{
		ID:       m.ID,
		NickName: m.NickName,
		JoinedAt: proto.Timestamp(m.JoinedAt),
		GuildID:  m.GuildID,
		UserID:   m.UserID,
		User:     publicProfile(m.User),
	}
}

func storedMessage(m *store.Message) proto.StoredMessage {
	return proto.StoredMessage{
		ID:        m.ID,
		Content:   m.Content,
		CreatedAt: proto.Timestamp(m.CreatedAt),
		EditedAt:  proto.Timestamp(m.EditedAt),
		AuthorID:  m.AuthorID,
		ChannelID: m.ChannelID,
	}
}

func messageOut(m *store.Message, author store.User, nonce string) proto.Message {
	return proto.Message{
		ID:        m.ID,
		Content:   m.Content,
		CreatedAt: proto.Timestamp(m.CreatedAt),
		EditedAt:  proto.Timestamp(m.EditedAt),
		Author:    publicProfile(author),
		ChannelID: m.ChannelID,
		Nonce:     nonce,
	}
}
