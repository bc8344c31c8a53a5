package core

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/guildchat-server/internal/proto"
	"github.com/vovakirdan/guildchat-server/internal/store"
)

// Hub is the process-wide connection registry. It tracks the live
// connections of every user and the membership of every guild room, and
// fans events out to them.
//
// The lock only guards map access. Broadcasts check the target
// connections out of the map, write to them with the lock released and
// then put the survivors back, so a stalled socket never blocks other
// users' traffic.
type Hub struct {
	mu       sync.Mutex
	sessions map[int64][]*Client
	live     map[int64]int
	guilds   map[string]map[int64]struct{}

	visitors atomic.Int64
	log      *zerolog.Logger
}

// Stats is a point-in-time snapshot of the registry.
type Stats struct {
	Users       int   `json:"users"`
	Connections int   `json:"connections"`
	Rooms       int   `json:"rooms"`
	Visitors    int64 `json:"visitors"`
}

// NewHub creates an empty registry. The placeholder room always exists.
func NewHub(logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		sessions: make(map[int64][]*Client),
		live:     make(map[int64]int),
		guilds: map[string]map[int64]struct{}{
			proto.PlaceholderGuildID: {},
		},
		log: logger,
	}
}

// InsertSession registers a live connection for a user.
func (h *Hub) InsertSession(userID int64, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.inHub {
		return
	}
	c.inHub = true
	h.sessions[userID] = append(h.sessions[userID], c)
	h.live[userID]++
}

// RemoveSession unregisters a connection and returns how many live
// connections the user still has. Removing an unknown connection is a no-op.
func (h *Hub) RemoveSession(userID int64, c *Client) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !c.inHub {
		return h.live[userID]
	}
	// The connection may be checked out by a broadcast; the reinsert step
	// skips it once inHub is cleared.
	h.sessions[userID] = slices.DeleteFunc(h.sessions[userID], func(other *Client) bool { return other == c })
	if len(h.sessions[userID]) == 0 {
		delete(h.sessions, userID)
	}
	h.dropLocked(userID, c)
	return h.live[userID]
}

func (h *Hub) dropLocked(userID int64, c *Client) {
	c.inHub = false
	h.live[userID]--
	if h.live[userID] <= 0 {
		delete(h.live, userID)
	}
}

// HasSessions reports whether the user has at least one live connection.
func (h *Hub) HasSessions(userID int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.live[userID] > 0
}

// FindUserByID returns the cached profile from one of the user's live
// connections. It never consults storage.
func (h *Hub) FindUserByID(userID int64) (store.User, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.sessions[userID]
	if len(conns) == 0 {
		return store.User{}, false
	}
	return conns[0].User(), true
}

// AddMember puts a user into a room without announcing it.
func (h *Hub) AddMember(room string, userID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.addMemberLocked(room, userID)
}

func (h *Hub) addMemberLocked(room string, userID int64) {
	members, ok := h.guilds[room]
	if !ok {
		members = make(map[int64]struct{})
		h.guilds[room] = members
	}
	members[userID] = struct{}{}
}

// JoinGuild adds a user to a room and announces it to the room.
func (h *Hub) JoinGuild(ctx context.Context, room string, userID int64) {
	h.log.Info().Int64("user_id", userID).Str("guild_id", room).Msg("joining guild")

	h.AddMember(room, userID)
	h.SendGuildMessage(ctx, room, proto.SystemNotice("Someone joined", room))
}

// LeaveGuild removes a user from a room. The last member leaving deletes
// the room without an announcement. The placeholder room cannot be left.
func (h *Hub) LeaveGuild(ctx context.Context, room string, userID int64) {
	if room == proto.PlaceholderGuildID {
		return
	}
	h.log.Info().Int64("user_id", userID).Str("guild_id", room).Msg("leaving guild")

	h.mu.Lock()
	members, ok := h.guilds[room]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, member := members[userID]; !member {
		h.mu.Unlock()
		return
	}
	delete(members, userID)
	if len(members) == 0 {
		delete(h.guilds, room)
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	h.SendGuildMessage(ctx, room, proto.SystemNotice("Someone left", room))
}

// Members returns the sorted user ids recorded in a room.
func (h *Hub) Members(room string) []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.guilds[room]
	if !ok {
		return nil
	}
	ids := make([]int64, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// IsMember reports whether userID is recorded in room.
func (h *Hub) IsMember(room string, userID int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.guilds[room][userID]
	return ok
}

// GuildsOf returns the sorted rooms that list userID, the placeholder
// room excluded.
func (h *Hub) GuildsOf(userID int64) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var rooms []string
	for id, members := range h.guilds {
		if id == proto.PlaceholderGuildID {
			continue
		}
		if _, ok := members[userID]; ok {
			rooms = append(rooms, id)
		}
	}
	slices.Sort(rooms)
	return rooms
}

// Guilds returns the sorted ids of all known rooms.
func (h *Hub) Guilds() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	rooms := make([]string, 0, len(h.guilds))
	for id := range h.guilds {
		rooms = append(rooms, id)
	}
	slices.Sort(rooms)
	return rooms
}

// NewVisitor bumps the visitor counter and returns the new total.
func (h *Hub) NewVisitor() int64 {
	return h.visitors.Add(1)
}

// Stats reports registry counters.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := Stats{Users: len(h.live), Rooms: len(h.guilds), Visitors: h.visitors.Load()}
	for _, n := range h.live {
		st.Connections += n
	}
	return st
}

// SendGuildMessage delivers ev to every live connection of every member of
// room. Unknown rooms are a no-op.
func (h *Hub) SendGuildMessage(ctx context.Context, room string, ev proto.Outbound) {
	h.deliver(ctx, ev, func() []int64 {
		members, ok := h.guilds[room]
		if !ok {
			return nil
		}
		ids := make([]int64, 0, len(members))
		for id := range members {
			ids = append(ids, id)
		}
		return ids
	})
}

// SendDM delivers ev to the live connections of two users.
func (h *Hub) SendDM(ctx context.Context, userA, userB int64, ev proto.Outbound) {
	h.deliver(ctx, ev, func() []int64 {
		if userA == userB {
			return []int64{userA}
		}
		return []int64{userA, userB}
	})
}

// Send delivers ev to every live connection.
func (h *Hub) Send(ctx context.Context, ev proto.Outbound) {
	h.deliver(ctx, ev, func() []int64 {
		ids := make([]int64, 0, len(h.sessions))
		for id := range h.sessions {
			ids = append(ids, id)
		}
		return ids
	})
}

// CloseAll closes every live connection, typically on shutdown.
func (h *Hub) CloseAll(code int, reason string) {
	h.mu.Lock()
	var conns []*Client
	for _, list := range h.sessions {
		conns = append(conns, list...)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.Close(code, reason)
	}
}

// deliver runs the two-phase broadcast. targets is called with the lock
// held.
func (h *Hub) deliver(ctx context.Context, ev proto.Outbound, targets func() []int64) {
	// Writes must outlive the caller: a disconnecting session still
	// announces its departure to everyone else.
	ctx = context.WithoutCancel(ctx)

	h.mu.Lock()
	ids := targets()
	checkedOut := make(map[int64][]*Client, len(ids))
	for _, id := range ids {
		if conns, ok := h.sessions[id]; ok {
			checkedOut[id] = conns
			delete(h.sessions, id)
		}
	}
	h.mu.Unlock()

	if len(checkedOut) == 0 {
		return
	}

	frames := newFrameCache(ev)
	var (
		wg     sync.WaitGroup
		failMu sync.Mutex
		failed = make(map[*Client]struct{})
	)
	for _, conns := range checkedOut {
		for _, c := range conns {
			wg.Go(func() {
				if err := c.writeEvent(ctx, frames); err != nil {
					h.log.Warn().Err(err).
						Int64("user_id", c.user.ID).
						Str("client_id", c.ID).
						Str("event", ev.Type).
						Msg("broadcast write failed, dropping connection")
					failMu.Lock()
					failed[c] = struct{}{}
					failMu.Unlock()
				}
			})
		}
	}
	wg.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, conns := range checkedOut {
		for _, c := range conns {
			if !c.inHub {
				continue
			}
			if _, bad := failed[c]; bad || c.closed.Load() {
				h.dropLocked(id, c)
				continue
			}
			// Append: new connections may have registered meanwhile.
			h.sessions[id] = append(h.sessions[id], c)
		}
	}
}

// frameCache encodes an event at most once per encoding.
type frameCache struct {
	ev   proto.Outbound
	once [2]sync.Once
	data [2][]byte
	err  [2]error
}

func newFrameCache(ev proto.Outbound) *frameCache {
	return &frameCache{ev: ev}
}

func (f *frameCache) get(enc proto.Encoding) ([]byte, error) {
	i := 0
	if enc == proto.EncodingJSON {
		i = 1
	}
	f.once[i].Do(func() {
		f.data[i], f.err[i] = enc.Marshal(f.ev)
	})
	return f.data[i], f.err[i]
}
