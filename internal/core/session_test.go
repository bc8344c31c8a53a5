package core

import (
	"context"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/vovakirdan/guildchat-server/internal/proto"
	"github.com/vovakirdan/guildchat-server/internal/store"
)

func TestSessionReadySync(t *testing.T) {
	h := newHarness(t)
	alice := h.user("alice")
	g, ch := h.guild(alice, "g1")

	conn := h.start(alice, proto.EncodingJSON, h.opts)

	var ready proto.ReadyEvent
	mustEvent(t, conn.events(), proto.OutboundReady).decode(t, &ready)
	if ready.User.ID != alice.ID || !ready.User.IsOnline || !ready.User.Verified {
		t.Fatalf("unexpected ready user %+v", ready.User)
	}
	if len(ready.Guilds) != 1 || ready.Guilds[0].ID != g.ID {
		t.Fatalf("unexpected ready guilds %+v", ready.Guilds)
	}
	if len(ready.Guilds[0].Channels) != 1 || ready.Guilds[0].Channels[0].ID != ch.ID {
		t.Fatalf("unexpected ready channels %+v", ready.Guilds[0].Channels)
	}

	ev := mustEvent(t, conn.events(), proto.OutboundMessageCreate)
	var welcome proto.Message
	ev.decode(t, &welcome)
	if !strings.HasPrefix(welcome.Content, "Ready! Total visitors 1. User: {") {
		t.Fatalf("unexpected welcome %q", welcome.Content)
	}
	if welcome.Author.ID != 0 || welcome.Author.Username != "System" {
		t.Fatalf("welcome should come from the system author, got %+v", welcome.Author)
	}
	mustMessage(t, conn.events(), "Someone connected")

	if got := h.hub.Members(g.ID); !slices.Equal(got, []int64{alice.ID}) {
		t.Fatalf("unexpected room members %v", got)
	}
	if !slices.Contains(h.hub.Members(proto.PlaceholderGuildID), alice.ID) {
		t.Fatal("user should be in the placeholder room")
	}
	if got := conn.client.Rooms(); !slices.Equal(got, []string{g.ID}) {
		t.Fatalf("unexpected cached rooms %v", got)
	}

	stored, err := h.st.GetUserByID(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !stored.IsOnline {
		t.Fatal("user should be marked online")
	}
}

func TestSessionWarnsUnverifiedUser(t *testing.T) {
	h := newHarness(t)
	code := int32(42)
	u, err := h.st.CreateUser(context.Background(), store.NewUser{Username: "new", Email: "new@example.com", Code: &code})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	conn := h.start(u, proto.EncodingJSON, h.opts)
	first := nextOf(t, conn.events(), proto.OutboundMessageCreate, proto.OutboundReady)
	if first.Type != proto.OutboundMessageCreate {
		t.Fatalf("warning should precede ready, got %s", first.Type)
	}
	var m proto.Message
	first.decode(t, &m)
	if m.Content != unverifiedWarning {
		t.Fatalf("unexpected warning %q", m.Content)
	}
}

func TestSessionBinaryEncoding(t *testing.T) {
	h := newHarness(t)
	alice := h.user("alice")
	h.guild(alice, "g1")

	conn := h.start(alice, proto.EncodingCBOR, h.opts)
	ev := mustEvent(t, conn.events(), proto.OutboundReady)
	if !ev.binary {
		t.Fatal("ready should be a binary frame")
	}
	var ready proto.ReadyEvent
	ev.decode(t, &ready)
	if ready.User.Username != "alice" || len(ready.Guilds) != 1 {
		t.Fatalf("unexpected ready %+v", ready)
	}
}

func TestSessionMessageCreateEchoesNonce(t *testing.T) {
	h := newHarness(t)
	alice := h.user("alice")
	bob := h.user("bob")
	g, ch := h.guild(alice, "g1")
	h.join(bob, g)

	a := h.connect(alice)
	b := h.connect(bob)

	a.send(t, proto.KindMessageCreate, proto.MessageCreateData{Content: "hi", ChannelID: ch.ID, Nonce: "nonce-1"})

	for _, conn := range []*testConn{a, b} {
		m := mustMessage(t, conn.events(), "hi")
		if m.Nonce != "nonce-1" || m.Author.ID != alice.ID || m.ChannelID != ch.ID {
			t.Fatalf("unexpected broadcast %+v", m)
		}
	}
	noMessage(t, a.events(), "hi", 100*time.Millisecond)
}

func TestSessionMessageFetchIsChronological(t *testing.T) {
	h := newHarness(t)
	alice := h.user("alice")
	_, ch := h.guild(alice, "g1")
	for _, content := range []string{"one", "two", "three"} {
		if _, err := h.st.CreateMessage(context.Background(), alice.ID, ch.ID, content); err != nil {
			t.Fatalf("create message: %v", err)
		}
	}

	a := h.connect(alice)
	a.send(t, proto.KindMessageFetch, proto.MessageFetchData{ChannelID: ch.ID})

	var out proto.MessagesEvent
	mustEvent(t, a.events(), proto.OutboundMessages).decode(t, &out)
	var got []string
	for _, m := range out.Messages {
		got = append(got, m.Content)
	}
	if !slices.Equal(got, []string{"one", "two", "three"}) {
		t.Fatalf("expected chronological order, got %v", got)
	}
}

func TestSessionRateLimitDropsBurst(t *testing.T) {
	h := newHarness(t)
	clock := newManualClock()
	h.opts.Now = clock.Now
	alice := h.user("alice")
	_, ch := h.guild(alice, "g1")
	a := h.connect(alice)

	count := func() int {
		a.send(t, proto.KindMessageFetch, proto.MessageFetchData{ChannelID: ch.ID})
		var out proto.MessagesEvent
		mustEvent(t, a.events(), proto.OutboundMessages).decode(t, &out)
		return len(out.Messages)
	}

	a.send(t, proto.KindMessageCreate, proto.MessageCreateData{Content: "first", ChannelID: ch.ID})
	a.send(t, proto.KindMessageCreate, proto.MessageCreateData{Content: "second", ChannelID: ch.ID})
	if n := count(); n != 1 {
		t.Fatalf("expected 1 accepted message, got %d", n)
	}

	clock.Advance(time.Second)
	a.send(t, proto.KindMessageCreate, proto.MessageCreateData{Content: "third", ChannelID: ch.ID})
	if n := count(); n != 2 {
		t.Fatalf("expected 2 accepted messages, got %d", n)
	}
}

func TestSessionMalformedPayloadKeepsRateLimitWindow(t *testing.T) {
	h := newHarness(t)
	h.opts.Now = newManualClock().Now
	alice := h.user("alice")
	_, ch := h.guild(alice, "g1")
	a := h.connect(alice)

	a.tr.in <- Frame{Kind: FrameText, Data: []byte(`{"type":"MessageCreate","data":{"content":5,"channel_id":"` + ch.ID + `"}}`)}
	a.send(t, proto.KindMessageCreate, proto.MessageCreateData{Content: "kept", ChannelID: ch.ID, Nonce: "n"})

	m := mustMessage(t, a.events(), "kept")
	if m.Nonce != "n" {
		t.Fatalf("unexpected nonce %q", m.Nonce)
	}
}

func TestSessionIgnoresMalformedFrames(t *testing.T) {
	h := newHarness(t)
	alice := h.user("alice")
	_, ch := h.guild(alice, "g1")
	a := h.connect(alice)

	a.tr.in <- Frame{Kind: FrameText, Data: []byte("garbage{")}
	a.tr.in <- Frame{Kind: FrameBinary, Data: []byte{0xff, 0x00}}
	a.tr.in <- Frame{Kind: FrameText, Data: []byte(`{"type":"NoSuchKind","data":{}}`)}
	a.tr.in <- Frame{Kind: FrameText, Data: []byte(`{"type":"MessageFetch","data":null}`)}
	a.send(t, proto.KindMessageFetch, proto.MessageFetchData{ChannelID: ch.ID})

	mustEvent(t, a.events(), proto.OutboundMessages)
	if a.tr.isClosed() {
		t.Fatal("malformed frames must not close the connection")
	}
}

func TestSessionHeartbeatTimeout(t *testing.T) {
	h := newHarness(t)
	clock := newManualClock()
	alice := h.user("alice")
	bob := h.user("bob")
	g, _ := h.guild(alice, "g1")
	h.join(bob, g)
	b := h.connect(bob)

	opts := Options{HeartbeatInterval: 10 * time.Millisecond, HeartbeatTimeout: time.Minute, Now: clock.Now}
	a := h.start(alice, proto.EncodingJSON, opts)
	mustEvent(t, a.events(), proto.OutboundReady)

	// Time runs faster than the probes can be acknowledged.
	var err error
	func() {
		deadline := time.After(2 * time.Second)
		for {
			select {
			case <-a.finished:
				err = a.runErr
				return
			case <-deadline:
				t.Fatal("session did not time out")
			case <-time.After(5 * time.Millisecond):
				clock.Advance(2 * time.Minute)
			}
		}
	}()
	if err == nil {
		t.Fatal("expected a heartbeat error")
	}
	if _, reason := a.tr.closeStatus(); reason != "heartbeat timeout" {
		t.Fatalf("unexpected close reason %q", reason)
	}
	mustMessage(t, b.events(), "Someone left")
	if got := h.hub.Members(g.ID); !slices.Equal(got, []int64{bob.ID}) {
		t.Fatalf("timed out user should leave its rooms, got %v", got)
	}
}

func TestSessionHeartbeatProbeFailure(t *testing.T) {
	h := newHarness(t)
	alice := h.user("alice")
	g, _ := h.guild(alice, "g1")

	tr := newFakeTransport()
	tr.ping = func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	sess, err := h.st.CreateSession(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	c := NewClient(ClientParams{
		Hub:       h.hub,
		Store:     h.st,
		Transport: tr,
		User:      *alice,
		SessionID: sess.ID,
		Encoding:  proto.EncodingJSON,
		Options:   Options{HeartbeatInterval: 10 * time.Millisecond, HeartbeatTimeout: 30 * time.Millisecond},
	})

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected heartbeat error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("unacknowledged probes should end the session")
	}

	if !tr.isClosed() {
		t.Fatal("transport should be closed")
	}
	if len(h.hub.Members(g.ID)) != 0 || h.hub.HasSessions(alice.ID) {
		t.Fatal("registry state should be released")
	}
	stored, _ := h.st.GetUserByID(context.Background(), alice.ID)
	if stored.IsOnline {
		t.Fatal("user should be marked offline")
	}
}

func TestSessionDisconnectIsIdempotent(t *testing.T) {
	h := newHarness(t)
	alice := h.user("alice")
	bob := h.user("bob")
	g, _ := h.guild(alice, "g1")
	h.join(bob, g)

	b := h.connect(bob)
	a := h.connect(alice)

	a.client.Close(CloseNormal, "")
	a.client.Close(CloseNormal, "")
	a.client.disconnect(context.Background(), CloseNormal, "")

	if err := a.wait(t); err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	mustMessage(t, b.events(), "Someone left")
	noMessage(t, b.events(), "Someone left", 150*time.Millisecond)
}

func TestSessionPeerCloseEchoesReason(t *testing.T) {
	h := newHarness(t)
	a := h.connect(h.user("alice"))

	a.tr.in <- Frame{Kind: FrameClose, CloseCode: CloseNormal, CloseReason: "bye"}
	if err := a.wait(t); err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if code, reason := a.tr.closeStatus(); code != CloseNormal || reason != "bye" {
		t.Fatalf("unexpected close %d %q", code, reason)
	}
}

func TestSessionUnsupportedFrameDisconnects(t *testing.T) {
	h := newHarness(t)
	a := h.connect(h.user("alice"))

	a.tr.in <- Frame{Kind: FrameUnsupported}
	a.wait(t)
	if code, _ := a.tr.closeStatus(); code != CloseProtocolError {
		t.Fatalf("expected protocol error close, got %d", code)
	}
}

func TestSessionMultiDeviceKeepsMembership(t *testing.T) {
	h := newHarness(t)
	alice := h.user("alice")
	g, _ := h.guild(alice, "g1")

	phone := h.connect(alice)
	laptop := h.connect(alice)

	phone.client.Close(CloseNormal, "")
	phone.wait(t)

	if !slices.Contains(h.hub.Members(g.ID), alice.ID) {
		t.Fatal("membership must survive while another device is connected")
	}
	stored, _ := h.st.GetUserByID(context.Background(), alice.ID)
	if !stored.IsOnline {
		t.Fatal("user should stay online")
	}

	laptop.client.Close(CloseNormal, "")
	laptop.wait(t)
	if slices.Contains(h.hub.Members(g.ID), alice.ID) {
		t.Fatal("membership should be released with the last device")
	}
}

func TestSessionMultiDeviceSharesJoinedGuild(t *testing.T) {
	h := newHarness(t)
	alice := h.user("alice")
	bob := h.user("bob")
	g, ch := h.guild(alice, "g1")

	phone := h.connect(bob)
	laptop := h.connect(bob)

	phone.send(t, proto.KindMemberCreate, proto.MemberCreateData{GuildID: g.ID})
	mustEvent(t, phone.events(), proto.OutboundGuildCreate)

	// The laptop never saw the join but may post in the guild.
	laptop.send(t, proto.KindMessageCreate, proto.MessageCreateData{Content: "from laptop", ChannelID: ch.ID})
	mustMessage(t, laptop.events(), "from laptop")
	mustMessage(t, phone.events(), "from laptop")

	phone.client.Close(CloseNormal, "")
	phone.wait(t)
	if !slices.Contains(h.hub.Members(g.ID), bob.ID) {
		t.Fatal("membership must survive while the laptop is connected")
	}

	laptop.client.Close(CloseNormal, "")
	laptop.wait(t)
	if slices.Contains(h.hub.Members(g.ID), bob.ID) {
		t.Fatalf("bob still listed in %s after his last device left: %v", g.ID, h.hub.Members(g.ID))
	}
	if h.hub.HasSessions(bob.ID) {
		t.Fatal("bob should have no live connections")
	}
}
