package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/guildchat-server/internal/proto"
)

const unverifiedWarning = "WARNING: Your account is not verified. Please check your email and verify at /verify"

// Run drives the connection: it registers the client, performs the ready
// sync and then runs the heartbeat and read units until either one ends the
// connection. Cleanup runs exactly once however the connection ends.
func (c *Client) Run(ctx context.Context) error {
	c.hub.InsertSession(c.user.ID, c)
	c.log.Info().Str("encoding", c.encoding.String()).Msg("client connected")

	if err := c.readySync(ctx); err != nil {
		c.disconnect(ctx, CloseInternalError, "ready sync failed")
		return fmt.Errorf("ready sync: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.heartbeat(gctx) })
	g.Go(func() error { return c.readLoop(gctx) })
	err := g.Wait()

	c.disconnect(ctx, CloseNormal, "")
	return err
}

// Close tears the connection down. Safe to call more than once.
func (c *Client) Close(code int, reason string) {
	c.disconnect(context.Background(), code, reason)
}

func (c *Client) readySync(ctx context.Context) error {
	c.hub.AddMember(proto.PlaceholderGuildID, c.user.ID)
	visitors := c.hub.NewVisitor()

	if err := c.store.SetUserOnline(ctx, c.user.ID, true); err != nil {
		c.log.Warn().Err(err).Msg("mark user online")
	}
	if err := c.store.TouchSession(ctx, c.sessionID); err != nil {
		c.log.Warn().Err(err).Msg("touch session")
	}

	if !c.user.Verified() {
		if err := c.Send(ctx, proto.SystemNotice(unverifiedWarning, proto.PlaceholderGuildID)); err != nil {
			return err
		}
	}

	guilds, err := c.store.ListUserGuilds(ctx, c.user.ID)
	if err != nil {
		c.log.Warn().Err(err).Msg("load guilds, continuing with none")
		guilds = nil
	}

	snapshot := make([]proto.GuildChannels, 0, len(guilds))
	for _, g := range guilds {
		c.addRoom(g.ID)
		c.hub.JoinGuild(ctx, g.ID, c.user.ID)

		channels, err := c.store.ListGuildChannels(ctx, g.ID)
		if err != nil {
			c.log.Warn().Err(err).Str("guild_id", g.ID).Msg("load channels")
			channels = nil
		}
		snapshot = append(snapshot, guildChannels(g, channels))
	}

	self := userClient(c.user)
	self.IsOnline = true
	if err := c.Send(ctx, proto.New(proto.OutboundReady, proto.ReadyEvent{User: self, Guilds: snapshot})); err != nil {
		return err
	}

	raw, err := json.Marshal(self)
	if err != nil {
		return fmt.Errorf("encode ready user: %w", err)
	}
	welcome := fmt.Sprintf("Ready! Total visitors %d. User: %s", visitors, raw)
	if err := c.Send(ctx, proto.SystemNotice(welcome, proto.PlaceholderGuildID)); err != nil {
		return err
	}

	c.hub.SendGuildMessage(ctx, proto.PlaceholderGuildID, proto.SystemNotice("Someone connected", proto.PlaceholderGuildID))
	c.log.Info().Int("guilds", len(snapshot)).Msg("client ready")
	return nil
}

// heartbeat probes the peer on every tick and ends the connection when the
// probe fails or the last acknowledgment is older than the timeout.
func (c *Client) heartbeat(ctx context.Context) error {
	ticker := time.NewTicker(c.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return nil
		case <-ctx.Done():
			c.disconnect(ctx, CloseGoingAway, "")
			return nil
		case <-ticker.C:
		}

		if c.now().Sub(c.lastAlive()) > c.opts.HeartbeatTimeout {
			c.log.Info().Msg("heartbeat timed out, disconnecting")
			c.disconnect(ctx, CloseNormal, "heartbeat timeout")
			return ErrHeartbeatTimeout
		}

		pingCtx, cancel := context.WithTimeout(ctx, c.opts.HeartbeatTimeout)
		err := c.transport.Ping(pingCtx)
		cancel()
		if err != nil {
			if c.closed.Load() {
				return nil
			}
			c.log.Info().Err(err).Msg("heartbeat probe failed, disconnecting")
			c.disconnect(ctx, CloseNormal, "heartbeat failed")
			return fmt.Errorf("heartbeat: %w", err)
		}
		c.touch()
	}
}

// readLoop consumes inbound frames in arrival order.
func (c *Client) readLoop(ctx context.Context) error {
	for {
		f, err := c.transport.ReadFrame(ctx)
		if err != nil {
			// Stream exhausted or transport closed underneath us.
			if !c.closed.Load() && !errors.Is(err, context.Canceled) {
				c.log.Debug().Err(err).Msg("read frame")
			}
			c.disconnect(ctx, CloseNormal, "")
			return nil
		}

		switch f.Kind {
		case FramePong:
			c.touch()
		case FrameText, FrameBinary:
			c.handleFrame(ctx, f)
		case FrameClose:
			c.log.Info().Int("code", f.CloseCode).Str("reason", f.CloseReason).Msg("peer closed")
			c.disconnect(ctx, f.CloseCode, f.CloseReason)
			return nil
		default:
			c.log.Info().Msg("unsupported frame, disconnecting")
			c.disconnect(ctx, CloseProtocolError, "")
			return nil
		}
	}
}

func (c *Client) handleFrame(ctx context.Context, f Frame) {
	in, err := proto.DecodeInbound(f.Kind == FrameBinary, f.Data)
	if err != nil {
		c.log.Debug().Err(err).Msg("dropping undecodable frame")
		return
	}
	if err := c.dispatch(ctx, in); err != nil {
		c.log.Warn().Err(err).Str("event", in.Type).Msg("event not handled")
	}
}

// disconnect closes the transport and releases registry state once.
func (c *Client) disconnect(ctx context.Context, code int, reason string) {
	c.closeOnce.Do(func() {
		ctx := context.WithoutCancel(ctx)

		c.closed.Store(true)
		close(c.done)
		if err := c.transport.Close(code, reason); err != nil {
			c.log.Debug().Err(err).Msg("close transport")
		}

		rooms := c.drainRooms()
		if remaining := c.hub.RemoveSession(c.user.ID, c); remaining > 0 {
			// Another device is still connected: keep presence and rooms.
			c.log.Info().Int("remaining", remaining).Msg("client disconnected")
			return
		}

		if err := c.store.SetUserOnline(ctx, c.user.ID, false); err != nil {
			c.log.Warn().Err(err).Msg("mark user offline")
		}
		// Rooms joined from another device are only in the registry.
		for _, room := range c.hub.GuildsOf(c.user.ID) {
			if !slices.Contains(rooms, room) {
				rooms = append(rooms, room)
			}
		}
		for _, room := range rooms {
			c.hub.LeaveGuild(ctx, room, c.user.ID)
		}
		c.log.Info().Int("rooms", len(rooms)).Msg("client disconnected")
	})
}
