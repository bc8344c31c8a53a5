package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/guildchat-server/internal/proto"
)

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	token := flag.String("token", "", "identity token (see `guildchat dev-user`)")
	guild := flag.String("guild", "smoke", "name of the guild to create")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	u, err := url.Parse(*addr)
	if err != nil {
		return fmt.Errorf("parse addr: %w", err)
	}
	q := u.Query()
	q.Set("recv_type", "json")
	q.Set("token", *token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(kind string, data any) error {
		if err := wsjson.Write(ctx, conn, map[string]any{"type": kind, "data": data}); err != nil {
			return fmt.Errorf("send %s: %w", kind, err)
		}
		return nil
	}
	await := func(kind string) (envelope, error) {
		for {
			var ev envelope
			if err := wsjson.Read(ctx, conn, &ev); err != nil {
				return ev, fmt.Errorf("read: %w", err)
			}
			fmt.Printf("Received: type=%s data=%s\n", ev.Type, ev.Data)
			if ev.Type == kind {
				return ev, nil
			}
		}
	}

	if _, err := await(proto.OutboundReady); err != nil {
		return err
	}

	if err := send(proto.KindGuildCreate, proto.GuildCreateData{Name: *guild}); err != nil {
		return err
	}
	ev, err := await(proto.OutboundGuildCreate)
	if err != nil {
		return err
	}
	var created proto.GuildCreateEvent
	if err := json.Unmarshal(ev.Data, &created); err != nil {
		return fmt.Errorf("decode guild: %w", err)
	}

	if err := send(proto.KindChannelCreate, proto.ChannelCreateData{Name: "general", GuildID: created.Guild.ID}); err != nil {
		return err
	}
	ev, err = await(proto.OutboundChannelCreate)
	if err != nil {
		return err
	}
	var channel proto.ChannelEvent
	if err := json.Unmarshal(ev.Data, &channel); err != nil {
		return fmt.Errorf("decode channel: %w", err)
	}

	nonce := fmt.Sprintf("smoke-%d", time.Now().UnixNano())
	if err := send(proto.KindMessageCreate, proto.MessageCreateData{Content: *text, ChannelID: channel.Channel.ID, Nonce: nonce}); err != nil {
		return err
	}
	for {
		ev, err := await(proto.OutboundMessageCreate)
		if err != nil {
			return err
		}
		var msg proto.Message
		if err := json.Unmarshal(ev.Data, &msg); err != nil {
			return fmt.Errorf("decode message: %w", err)
		}
		if msg.Nonce == nonce {
			fmt.Println("smoke test passed")
			return nil
		}
	}
}
