package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a looked-up row does not exist or is not
// visible to the caller (for example, editing another user's message).
var ErrNotFound = errors.New("not found")

// User represents an account. Code is set while the email is unverified.
type User struct {
	ID          int64
	Username    string
	Email       string
	Profile     *string
	Description *string
	CreatedAt   time.Time
	IsOnline    bool
	IsStaff     bool
	IsSuperuser bool
	Code        *int32
}

// Verified reports whether the user has confirmed their email.
func (u *User) Verified() bool { return u.Code == nil }

// Session is a login session resolved from the identity token.
type Session struct {
	ID        string
	UserID    int64
	LastLogin *time.Time
}

// Guild represents a community grouping channels and members.
type Guild struct {
	ID          string
	Name        string
	Description *string
	Icon        *string
	CreatedAt   time.Time
	CreatorID   int64
}

// ChannelType distinguishes text and voice channels.
type ChannelType int

const (
	ChannelTypeText  ChannelType = 0
	ChannelTypeVoice ChannelType = 1
	ChannelTypeDM    ChannelType = 2
)

// Channel is guild-scoped when GuildID is set, otherwise a two-party DM
// between User1 and User2.
type Channel struct {
	ID          string
	Name        string
	Description *string
	Position    int64
	GuildID     *string
	User1       *int64
	User2       *int64
	ChannelType ChannelType
	CreatedAt   time.Time
}

// IsDM reports whether the channel is a direct-message channel.
func (c *Channel) IsDM() bool { return c.GuildID == nil }

// HasParticipant reports whether userID is one of the DM participants.
func (c *Channel) HasParticipant(userID int64) bool {
	return (c.User1 != nil && *c.User1 == userID) || (c.User2 != nil && *c.User2 == userID)
}

// ChannelParams holds the mutable fields of a guild channel.
type ChannelParams struct {
	Name        string
	Description *string
	Position    int64
	ChannelType ChannelType
}

// Member represents guild membership.
type Member struct {
	ID       string
	NickName *string
	JoinedAt time.Time
	GuildID  string
	UserID   int64
}

// MemberWithUser is a membership row joined with the member's profile.
type MemberWithUser struct {
	Member
	User User
}

// Message represents a persisted chat message.
type Message struct {
	ID        string
	Content   string
	CreatedAt time.Time
	EditedAt  time.Time
	AuthorID  int64
	ChannelID string
}

// MessageRoute is the delivery target of a message's channel: a guild
// room, or the two DM participants.
type MessageRoute struct {
	ChannelID string
	GuildID   *string
	User1     *int64
	User2     *int64
}

// RouteOf builds the delivery route of a channel.
func RouteOf(c *Channel) *MessageRoute {
	return &MessageRoute{ChannelID: c.ID, GuildID: c.GuildID, User1: c.User1, User2: c.User2}
}

// NewUser holds the fields needed to create an account.
type NewUser struct {
	Username    string
	Email       string
	IsStaff     bool
	IsSuperuser bool
	Code        *int32
}

// UserStore handles users and their login sessions.
type UserStore interface {
	// CreateUser creates a new account.
	CreateUser(ctx context.Context, u NewUser) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserBySession resolves the owner of a session.
	GetUserBySession(ctx context.Context, sessionID string) (*User, error)

	// CreateSession opens a new login session for a user.
	CreateSession(ctx context.Context, userID int64) (*Session, error)

	// TouchSession records a login on the session.
	TouchSession(ctx context.Context, sessionID string) error

	// SetUserOnline toggles the presence flag.
	SetUserOnline(ctx context.Context, userID int64, online bool) error
}

// GuildStore handles guild persistence.
type GuildStore interface {
	// CreateGuild creates a guild and makes the creator its first member.
	CreateGuild(ctx context.Context, creatorID int64, name string, description, icon *string) (*Guild, error)

	// GetGuild retrieves a guild by ID.
	GetGuild(ctx context.Context, id string) (*Guild, error)

	// ListUserGuilds lists the guilds a user is a member of.
	ListUserGuilds(ctx context.Context, userID int64) ([]*Guild, error)
}

// ChannelStore handles guild and DM channels.
type ChannelStore interface {
	CreateChannel(ctx context.Context, guildID string, p ChannelParams) (*Channel, error)
	GetChannel(ctx context.Context, id string) (*Channel, error)
	ListGuildChannels(ctx context.Context, guildID string) ([]*Channel, error)
	UpdateChannel(ctx context.Context, id string, p ChannelParams) (*Channel, error)

	// DeleteChannel removes a channel and returns the removed row.
	DeleteChannel(ctx context.Context, id string) (*Channel, error)

	// FindOrCreateDMChannel returns the DM channel between two users,
	// creating it on first use. Argument order does not matter.
	FindOrCreateDMChannel(ctx context.Context, userA, userB int64) (*Channel, error)
}

// MemberStore handles guild membership.
type MemberStore interface {
	// JoinGuild adds the user to the guild and returns the guild's channels.
	JoinGuild(ctx context.Context, userID int64, guildID string) ([]*Channel, error)

	// LeaveGuild removes the membership.
	LeaveGuild(ctx context.Context, userID int64, guildID string) error

	// UpdateNickname sets the user's nickname in a guild.
	UpdateNickname(ctx context.Context, userID int64, guildID, nickName string) error

	// IsMember checks if the user belongs to the guild.
	IsMember(ctx context.Context, userID int64, guildID string) (bool, error)

	// ListMembers lists up to limit members of a guild with their profiles.
	ListMembers(ctx context.Context, guildID string, limit int) ([]*MemberWithUser, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	CreateMessage(ctx context.Context, authorID int64, channelID, content string) (*Message, error)

	// UpdateMessage edits a message owned by authorID and returns the
	// edited row with its channel's route.
	UpdateMessage(ctx context.Context, authorID int64, id, content string) (*Message, *MessageRoute, error)

	// DeleteMessage removes a message owned by authorID. The route is read
	// before the row disappears.
	DeleteMessage(ctx context.Context, authorID int64, id string) (*MessageRoute, error)

	// ListMessages returns up to limit messages of a channel, newest first.
	ListMessages(ctx context.Context, channelID string, limit int) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	GuildStore
	ChannelStore
	MemberStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
