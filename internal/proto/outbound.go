package proto

import (
	"time"

	"github.com/google/uuid"
)

// systemCreatedAt is the fixed creation date reported for the system author.
var systemCreatedAt = time.Date(2016, time.July, 8, 9, 10, 11, 0, time.UTC)

// UserFetch is the public profile snapshot embedded in messages and members.
type UserFetch struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Profile     *string   `json:"profile"`
	CreatedAt   Timestamp `json:"created_at"`
	Description *string   `json:"description"`
	IsStaff     bool      `json:"is_staff"`
	IsSuperuser bool      `json:"is_superuser"`
}

// UserClient is the caller's own profile as sent in the Ready payload.
type UserClient struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	Profile     *string   `json:"profile"`
	CreatedAt   Timestamp `json:"created_at"`
	Description *string   `json:"description"`
	IsOnline    bool      `json:"is_online"`
	IsStaff     bool      `json:"is_staff"`
	IsSuperuser bool      `json:"is_superuser"`
	Verified    bool      `json:"verified"`
}

// Message is a chat message with a denormalized author.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt Timestamp `json:"created_at"`
	EditedAt  Timestamp `json:"edited_at"`
	Author    UserFetch `json:"author"`
	ChannelID string    `json:"channel_id"`
	Nonce     string    `json:"nonce"`
}

// StoredMessage is a history entry as returned by MessageFetch.
type StoredMessage struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt Timestamp `json:"created_at"`
	EditedAt  Timestamp `json:"edited_at"`
	AuthorID  int64     `json:"author_id"`
	ChannelID string    `json:"channel_id"`
}

// Guild describes a guild without its channels.
type Guild struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Icon        *string   `json:"icon"`
	CreatedAt   Timestamp `json:"created_at"`
	CreatorID   int64     `json:"creator_id"`
}

// Channel is either guild-scoped (GuildID set) or a DM (User1/User2 set).
type Channel struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Position    int64     `json:"position"`
	GuildID     *string   `json:"guild_id"`
	User1       *int64    `json:"user1"`
	User2       *int64    `json:"user2"`
	ChannelType int       `json:"channel_type"`
	CreatedAt   Timestamp `json:"created_at"`
}

// GuildChannels is a guild together with its channels.
type GuildChannels struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Icon        *string   `json:"icon"`
	CreatedAt   Timestamp `json:"created_at"`
	CreatorID   int64     `json:"creator_id"`
	Channels    []Channel `json:"channels"`
}

// Member is a guild membership with the member's profile.
type Member struct {
	ID       string    `json:"id"`
	NickName *string   `json:"nick_name"`
	JoinedAt Timestamp `json:"joined_at"`
	GuildID  string    `json:"guild_id"`
	UserID   int64     `json:"user_id"`
	User     UserFetch `json:"user"`
}

// ReadyEvent is the one-time snapshot sent after the handshake.
type ReadyEvent struct {
	User   UserClient      `json:"user"`
	Guilds []GuildChannels `json:"guilds"`
}

// MessagesEvent carries channel history in chronological order.
type MessagesEvent struct {
	ChannelID string          `json:"channel_id"`
	Messages  []StoredMessage `json:"messages"`
}

// MembersEvent carries a guild member list.
type MembersEvent struct {
	GuildID string   `json:"guild_id"`
	Members []Member `json:"members"`
}

// MessageDeleteEvent announces a removed message.
type MessageDeleteEvent struct {
	ID        string  `json:"id"`
	ChannelID string  `json:"channel_id"`
	GuildID   *string `json:"guild_id"`
}

// GuildCreateEvent confirms a created or joined guild.
type GuildCreateEvent struct {
	Guild GuildChannels `json:"guild"`
}

// ChannelEvent is used for ChannelCreate and ChannelUpdate.
type ChannelEvent struct {
	Channel Channel `json:"channel"`
}

// ChannelDeleteEvent announces a removed channel.
type ChannelDeleteEvent struct {
	ID      string  `json:"id"`
	GuildID *string `json:"guild_id"`
}

// MemberCreateEvent announces a new guild member.
type MemberCreateEvent struct {
	ID    int64 `json:"id"`
	Guild Guild `json:"guild"`
}

// MemberUpdateEvent announces a nickname change.
type MemberUpdateEvent struct {
	GuildID  string `json:"guild_id"`
	UserID   int64  `json:"user_id"`
	NickName string `json:"nick_name"`
}

// MemberRemoveEvent announces a member leaving a guild.
type MemberRemoveEvent struct {
	ID      int64  `json:"id"`
	GuildID string `json:"guild_id"`
}

// SystemAuthor returns the synthetic author used for server notices.
func SystemAuthor() UserFetch {
	return UserFetch{
		ID:          0,
		Username:    "System",
		CreatedAt:   Timestamp(systemCreatedAt),
		IsStaff:     true,
		IsSuperuser: true,
	}
}

// SystemMessage builds a non-persisted server notice for a room.
func SystemMessage(content, channelID string) Message {
	now := Timestamp(time.Now().UTC())
	return Message{
		ID:        uuid.NewString(),
		Content:   content,
		CreatedAt: now,
		EditedAt:  now,
		Author:    SystemAuthor(),
		ChannelID: channelID,
		Nonce:     uuid.NewString(),
	}
}

// SystemNotice wraps SystemMessage in a MessageCreate envelope.
func SystemNotice(content, channelID string) Outbound {
	return Outbound{Type: OutboundMessageCreate, Data: SystemMessage(content, channelID)}
}

// New wraps data in an outbound envelope of the given kind.
func New(kind string, data any) Outbound {
	return Outbound{Type: kind, Data: data}
}
