package core

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/guildchat-server/internal/proto"
	"github.com/vovakirdan/guildchat-server/internal/store"
)

// Options tunes per-connection behaviour.
type Options struct {
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	MessageFetchLimit int
	MemberFetchLimit  int
	// Now is the clock used for heartbeats and rate limiting.
	Now func() time.Time
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		HeartbeatInterval: 5 * time.Second,
		HeartbeatTimeout:  10 * time.Second,
		MessageFetchLimit: 1000,
		MemberFetchLimit:  1000,
		Now:               time.Now,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = def.HeartbeatInterval
	}
	if o.HeartbeatTimeout <= 0 {
		o.HeartbeatTimeout = def.HeartbeatTimeout
	}
	if o.MessageFetchLimit <= 0 {
		o.MessageFetchLimit = def.MessageFetchLimit
	}
	if o.MemberFetchLimit <= 0 {
		o.MemberFetchLimit = def.MemberFetchLimit
	}
	if o.Now == nil {
		o.Now = def.Now
	}
	return o
}

// ClientParams holds everything needed to build a connection.
type ClientParams struct {
	Hub       *Hub
	Store     store.Store
	Transport Transport
	User      store.User
	SessionID string
	Encoding  proto.Encoding
	Options   Options
	Logger    *zerolog.Logger
}

// Client is one live connection of an authenticated user.
type Client struct {
	ID string

	user      store.User
	sessionID string
	encoding  proto.Encoding
	transport Transport
	hub       *Hub
	store     store.Store
	limiter   *RateLimiter
	opts      Options
	log       zerolog.Logger

	roomsMu sync.Mutex
	rooms   map[string]struct{}

	// alive is the unix-nano time of the last liveness acknowledgment.
	alive atomic.Int64

	writeMu sync.Mutex

	closeOnce sync.Once
	closed    atomic.Bool
	done      chan struct{}

	// inHub is guarded by Hub.mu.
	inHub bool
}

// NewClient builds a connection. It is not registered until Run.
func NewClient(p ClientParams) *Client {
	opts := p.Options.withDefaults()
	logger := p.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	id := uuid.NewString()
	c := &Client{
		ID:        id,
		user:      p.User,
		sessionID: p.SessionID,
		encoding:  p.Encoding,
		transport: p.Transport,
		hub:       p.Hub,
		store:     p.Store,
		limiter:   NewRateLimiter(DefaultIntervals(), opts.Now),
		opts:      opts,
		log:       logger.With().Int64("user_id", p.User.ID).Str("client_id", id).Logger(),
		rooms:     make(map[string]struct{}),
		done:      make(chan struct{}),
	}
	c.touch()
	return c
}

// User returns the cached profile of the connection's owner.
func (c *Client) User() store.User { return c.user }

// Encoding returns the outbound encoding chosen at handshake.
func (c *Client) Encoding() proto.Encoding { return c.encoding }

// Done is closed once the connection has been torn down.
func (c *Client) Done() <-chan struct{} { return c.done }

// Rooms returns the cached room ids, sorted.
func (c *Client) Rooms() []string {
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()

	rooms := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		rooms = append(rooms, id)
	}
	slices.Sort(rooms)
	return rooms
}

// hasRoom checks the registry, which is shared by all of the user's
// devices, and brings the cached set in line with it.
func (c *Client) hasRoom(id string) bool {
	member := c.hub.IsMember(id, c.user.ID)

	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()
	if member {
		c.rooms[id] = struct{}{}
	} else {
		delete(c.rooms, id)
	}
	return member
}

func (c *Client) addRoom(id string) {
	c.roomsMu.Lock()
	c.rooms[id] = struct{}{}
	c.roomsMu.Unlock()
}

func (c *Client) removeRoom(id string) {
	c.roomsMu.Lock()
	delete(c.rooms, id)
	c.roomsMu.Unlock()
}

func (c *Client) drainRooms() []string {
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()

	rooms := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		rooms = append(rooms, id)
	}
	clear(c.rooms)
	return rooms
}

func (c *Client) now() time.Time { return c.opts.Now() }

func (c *Client) touch() { c.alive.Store(c.now().UnixNano()) }

func (c *Client) lastAlive() time.Time { return time.Unix(0, c.alive.Load()) }

// Send writes an event to this connection only.
func (c *Client) Send(ctx context.Context, ev proto.Outbound) error {
	return c.writeEvent(ctx, newFrameCache(ev))
}

func (c *Client) writeEvent(ctx context.Context, frames *frameCache) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	data, err := frames.get(c.encoding)
	if err != nil {
		return fmt.Errorf("encode %s: %w", frames.ev.Type, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.transport.WriteFrame(ctx, c.encoding.Binary(), data); err != nil {
		return fmt.Errorf("write %s: %w", frames.ev.Type, err)
	}
	return nil
}

// canAccess reports whether the user may read or post in a channel:
// guild channels need the guild in the cached room set, DM channels need
// the user to be a participant.
func (c *Client) canAccess(ch *store.Channel) bool {
	if ch.GuildID != nil {
		return c.hasRoom(*ch.GuildID)
	}
	return ch.HasParticipant(c.user.ID)
}

// route broadcasts ev to a guild room or to both DM participants.
func (c *Client) route(ctx context.Context, r *store.MessageRoute, ev proto.Outbound) {
	switch {
	case r.GuildID != nil:
		c.hub.SendGuildMessage(ctx, *r.GuildID, ev)
	case r.User1 != nil && r.User2 != nil:
		c.hub.SendDM(ctx, *r.User1, *r.User2, ev)
	default:
		c.log.Warn().Str("channel_id", r.ChannelID).Msg("channel has no route")
	}
}
