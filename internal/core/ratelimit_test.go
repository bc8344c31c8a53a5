package core

import (
	"testing"
	"time"

	"github.com/vovakirdan/guildchat-server/internal/proto"
)

func TestRateLimiterMinimumInterval(t *testing.T) {
	clock := newManualClock()
	rl := NewRateLimiter(DefaultIntervals(), clock.Now)

	if !rl.Allow(proto.KindMessageCreate) {
		t.Fatal("first event should pass")
	}
	if rl.Allow(proto.KindMessageCreate) {
		t.Fatal("immediate repeat should be dropped")
	}

	clock.Advance(999 * time.Millisecond)
	if rl.Allow(proto.KindMessageCreate) {
		t.Fatal("event before the interval should be dropped")
	}

	// Dropped events do not push the window forward.
	clock.Advance(time.Millisecond)
	if !rl.Allow(proto.KindMessageCreate) {
		t.Fatal("event at the interval should pass")
	}
}

func TestRateLimiterKindsAreIndependent(t *testing.T) {
	clock := newManualClock()
	rl := NewRateLimiter(DefaultIntervals(), clock.Now)

	if !rl.Allow(proto.KindGuildCreate) || !rl.Allow(proto.KindMessageCreate) {
		t.Fatal("different kinds must not share a window")
	}

	clock.Advance(59 * time.Second)
	if rl.Allow(proto.KindGuildCreate) {
		t.Fatal("guild creation is limited to one per minute")
	}
	if !rl.Allow(proto.KindMessageCreate) {
		t.Fatal("message creation window has passed")
	}

	for range 10 {
		if !rl.Allow(proto.KindMessageFetch) {
			t.Fatal("kinds without an interval are unthrottled")
		}
	}
}

func TestDefaultIntervals(t *testing.T) {
	got := DefaultIntervals()
	want := map[string]time.Duration{
		proto.KindMessageCreate: time.Second,
		proto.KindMessageUpdate: 2 * time.Second,
		proto.KindGuildCreate:   time.Minute,
	}
	if len(got) != len(want) {
		t.Fatalf("unexpected intervals %v", got)
	}
	for kind, d := range want {
		if got[kind] != d {
			t.Fatalf("%s: got %v want %v", kind, got[kind], d)
		}
	}
}
