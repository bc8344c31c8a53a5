package core

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/vovakirdan/guildchat-server/internal/proto"
	"github.com/vovakirdan/guildchat-server/internal/store"
	"github.com/vovakirdan/guildchat-server/internal/store/sqlstore"
)

var errTransportClosed = errors.New("transport closed")

// wireEvent is one frame written to a fakeTransport.
type wireEvent struct {
	Type   string
	raw    []byte
	binary bool
}

func (ev wireEvent) decode(t *testing.T, v any) {
	t.Helper()
	if ev.binary {
		var env struct {
			Data cbor.RawMessage `cbor:"data"`
		}
		if err := cbor.Unmarshal(ev.raw, &env); err != nil {
			t.Fatalf("decode cbor envelope: %v", err)
		}
		if err := cbor.Unmarshal(env.Data, v); err != nil {
			t.Fatalf("decode cbor %s: %v", ev.Type, err)
		}
		return
	}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(ev.raw, &env); err != nil {
		t.Fatalf("decode json envelope: %v", err)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode json %s: %v", ev.Type, err)
	}
}

type fakeTransport struct {
	in     chan Frame
	events chan wireEvent

	closeOnce   sync.Once
	closed      chan struct{}
	mu          sync.Mutex
	closeCode   int
	closeReason string

	failWrites atomic.Bool
	ping       func(ctx context.Context) error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:     make(chan Frame, 16),
		events: make(chan wireEvent, 1024),
		closed: make(chan struct{}),
	}
}

func (f *fakeTransport) ReadFrame(ctx context.Context) (Frame, error) {
	select {
	case <-f.closed:
		return Frame{}, errTransportClosed
	default:
	}
	select {
	case fr := <-f.in:
		return fr, nil
	case <-f.closed:
		return Frame{}, errTransportClosed
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

func (f *fakeTransport) WriteFrame(_ context.Context, binary bool, data []byte) error {
	if f.failWrites.Load() {
		return errors.New("broken pipe")
	}
	select {
	case <-f.closed:
		return errTransportClosed
	default:
	}

	var head struct {
		Type string `json:"type"`
	}
	var err error
	if binary {
		err = cbor.Unmarshal(data, &head)
	} else {
		err = json.Unmarshal(data, &head)
	}
	if err != nil {
		return err
	}
	f.events <- wireEvent{Type: head.Type, raw: data, binary: binary}
	return nil
}

func (f *fakeTransport) Ping(ctx context.Context) error {
	if f.ping != nil {
		return f.ping(ctx)
	}
	return nil
}

func (f *fakeTransport) Close(code int, reason string) error {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closeCode, f.closeReason = code, reason
		f.mu.Unlock()
		close(f.closed)
	})
	return nil
}

func (f *fakeTransport) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeTransport) closeStatus() (int, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCode, f.closeReason
}

func (f *fakeTransport) sendJSON(t *testing.T, kind string, data any) {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"type": kind, "data": data})
	if err != nil {
		t.Fatalf("marshal %s: %v", kind, err)
	}
	f.in <- Frame{Kind: FrameText, Data: raw}
}

// mustEvent polls ch until an event of kind arrives, skipping others.
func mustEvent(t *testing.T, ch <-chan wireEvent, kind string) wireEvent {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev.Type == kind {
				return ev
			}
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return wireEvent{}
}

// nextOf returns the first event whose kind is one of kinds.
func nextOf(t *testing.T, ch <-chan wireEvent, kinds ...string) wireEvent {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if slices.Contains(kinds, ev.Type) {
				return ev
			}
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	t.Fatalf("none of %v received", kinds)
	return wireEvent{}
}

// mustMessage waits for a MessageCreate whose content matches.
func mustMessage(t *testing.T, ch <-chan wireEvent, content string) proto.Message {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev.Type != proto.OutboundMessageCreate {
				continue
			}
			var m proto.Message
			ev.decode(t, &m)
			if m.Content == content {
				return m
			}
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	t.Fatalf("message %q not received", content)
	return proto.Message{}
}

// noMessage asserts no MessageCreate with content arrives within wait.
func noMessage(t *testing.T, ch <-chan wireEvent, content string, wait time.Duration) {
	t.Helper()

	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev.Type != proto.OutboundMessageCreate {
				continue
			}
			var m proto.Message
			ev.decode(t, &m)
			if m.Content == content {
				t.Fatalf("unexpected message %q", content)
			}
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

// noEvent asserts nothing at all is written within wait.
func noEvent(t *testing.T, ch <-chan wireEvent, wait time.Duration) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %s", ev.Type)
	case <-time.After(wait):
	}
}

// manualClock is a settable clock shared by a test and the code under test.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// tickingClock advances on every reading so stored rows keep their order.
type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type harness struct {
	t    *testing.T
	hub  *Hub
	st   *sqlstore.Store
	opts Options
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	clock := &tickingClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	st, err := sqlstore.NewWithSetup(":memory:", sqlstore.SQLiteSchema, sqlstore.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	return &harness{
		t:   t,
		hub: NewHub(nil),
		st:  st,
		opts: Options{
			// Long enough that heartbeats never interfere unless a test asks.
			HeartbeatInterval: time.Hour,
			HeartbeatTimeout:  2 * time.Hour,
		},
	}
}

func (h *harness) user(name string) *store.User {
	h.t.Helper()
	u, err := h.st.CreateUser(context.Background(), store.NewUser{Username: name, Email: name + "@example.com"})
	if err != nil {
		h.t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

// guild creates a guild owned by owner with one text channel.
func (h *harness) guild(owner *store.User, name string) (*store.Guild, *store.Channel) {
	h.t.Helper()
	ctx := context.Background()
	g, err := h.st.CreateGuild(ctx, owner.ID, name, nil, nil)
	if err != nil {
		h.t.Fatalf("create guild: %v", err)
	}
	ch, err := h.st.CreateChannel(ctx, g.ID, store.ChannelParams{Name: "general"})
	if err != nil {
		h.t.Fatalf("create channel: %v", err)
	}
	return g, ch
}

func (h *harness) join(u *store.User, g *store.Guild) {
	h.t.Helper()
	if _, err := h.st.JoinGuild(context.Background(), u.ID, g.ID); err != nil {
		h.t.Fatalf("join guild: %v", err)
	}
}

type testConn struct {
	client   *Client
	tr       *fakeTransport
	finished chan struct{}
	runErr   error
}

func (c *testConn) events() <-chan wireEvent { return c.tr.events }

func (c *testConn) send(t *testing.T, kind string, data any) {
	t.Helper()
	c.tr.sendJSON(t, kind, data)
}

func (c *testConn) wait(t *testing.T) error {
	t.Helper()
	select {
	case <-c.finished:
		return c.runErr
	case <-time.After(2 * time.Second):
		t.Fatal("session did not finish")
		return nil
	}
}

// start runs a session without waiting for the ready payload.
func (h *harness) start(u *store.User, enc proto.Encoding, opts Options) *testConn {
	h.t.Helper()
	sess, err := h.st.CreateSession(context.Background(), u.ID)
	if err != nil {
		h.t.Fatalf("create session: %v", err)
	}

	tr := newFakeTransport()
	c := NewClient(ClientParams{
		Hub:       h.hub,
		Store:     h.st,
		Transport: tr,
		User:      *u,
		SessionID: sess.ID,
		Encoding:  enc,
		Options:   opts,
	})
	conn := &testConn{client: c, tr: tr, finished: make(chan struct{})}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		conn.runErr = c.Run(ctx)
		close(conn.finished)
	}()
	h.t.Cleanup(func() {
		c.Close(CloseGoingAway, "")
		cancel()
		select {
		case <-conn.finished:
		case <-time.After(2 * time.Second):
		}
	})
	return conn
}

// connect runs a JSON session and waits until it is ready.
func (h *harness) connect(u *store.User) *testConn {
	h.t.Helper()
	conn := h.start(u, proto.EncodingJSON, h.opts)
	mustEvent(h.t, conn.events(), proto.OutboundReady)
	// The welcome notice is the last unicast of the ready sync.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ev := mustEvent(h.t, conn.events(), proto.OutboundMessageCreate)
		var m proto.Message
		ev.decode(h.t, &m)
		if strings.HasPrefix(m.Content, "Ready!") {
			return conn
		}
	}
	h.t.Fatal("welcome message not received")
	return nil
}

// idle builds a registered client that is not running a session loop.
func (h *harness) idle(userID int64) (*Client, *fakeTransport) {
	h.t.Helper()
	tr := newFakeTransport()
	c := NewClient(ClientParams{
		Hub:       h.hub,
		Store:     h.st,
		Transport: tr,
		User:      store.User{ID: userID, Username: "user"},
		Encoding:  proto.EncodingJSON,
		Options:   h.opts,
	})
	h.hub.InsertSession(userID, c)
	return c, tr
}
