package proto

// MessageCreateData sends a message to a channel (or the placeholder guild).
type MessageCreateData struct {
	Content   string `json:"content"`
	ChannelID string `json:"channel_id"`
	Nonce     string `json:"nonce"`
}

// MessageUpdateData edits one of the caller's messages.
type MessageUpdateData struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Nonce   string `json:"nonce"`
}

// MessageDeleteData removes one of the caller's messages.
type MessageDeleteData struct {
	ID string `json:"id"`
}

// MessageFetchData requests the recent history of a channel.
type MessageFetchData struct {
	ChannelID string `json:"channel_id"`
}

// MemberFetchData requests the member list of a guild.
type MemberFetchData struct {
	GuildID string `json:"guild_id"`
}

// UserFetchData requests a user profile.
type UserFetchData struct {
	ID int64 `json:"id"`
}

// GuildCreateData creates a guild owned by the caller.
type GuildCreateData struct {
	Name string  `json:"name"`
	Desc *string `json:"desc,omitempty"`
	Icon *string `json:"icon,omitempty"`
}

// ChannelCreateData creates a channel inside a guild.
type ChannelCreateData struct {
	Name        string  `json:"name"`
	Desc        *string `json:"desc,omitempty"`
	Position    int64   `json:"position"`
	GuildID     string  `json:"guild_id"`
	ChannelType int     `json:"channel_type"`
}

// DMChannelCreateData opens a direct channel with another user.
type DMChannelCreateData struct {
	UserID int64 `json:"user_id"`
}

// ChannelUpdateData replaces a channel's mutable fields.
type ChannelUpdateData struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Desc        *string `json:"desc,omitempty"`
	Position    int64   `json:"position"`
	ChannelType int     `json:"channel_type"`
}

// ChannelDeleteData removes a channel.
type ChannelDeleteData struct {
	ID string `json:"id"`
}

// MemberCreateData joins the caller to a guild.
type MemberCreateData struct {
	GuildID string `json:"guild_id"`
}

// MemberUpdateData sets the caller's nickname in a guild.
type MemberUpdateData struct {
	GuildID  string `json:"guild_id"`
	NickName string `json:"nick_name"`
}

// MemberDeleteData removes the caller from a guild.
type MemberDeleteData struct {
	GuildID string `json:"guild_id"`
}
