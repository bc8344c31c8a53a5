package http

import (
	"context"
	"errors"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/guildchat-server/internal/auth"
	"github.com/vovakirdan/guildchat-server/internal/core"
	"github.com/vovakirdan/guildchat-server/internal/proto"
	"github.com/vovakirdan/guildchat-server/internal/store"
)

// WSHandler upgrades HTTP connections and hands them to a core.Client.
type WSHandler struct {
	hub            *core.Hub
	store          store.Store
	opts           core.Options
	originPatterns []string
	readLimit      int64
	log            *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(deps Deps) *WSHandler {
	return &WSHandler{
		hub:   deps.Hub,
		store: deps.Store,
		opts: core.Options{
			HeartbeatInterval: deps.Config.HeartbeatInterval,
			HeartbeatTimeout:  deps.Config.HeartbeatTimeout,
			MessageFetchLimit: deps.Config.MessageFetchLimit,
			MemberFetchLimit:  deps.Config.MemberFetchLimit,
		},
		originPatterns: deps.Config.AllowedOrigins,
		readLimit:      deps.Config.MaxMessageBytes,
		log:            deps.Logger,
	}
}

// Serve is the gin handler for GET /ws. Identity comes from IdentityMiddleware.
func (h *WSHandler) Serve(c *gin.Context) {
	r := c.Request
	conn, err := websocket.Accept(c.Writer, r, &websocket.AcceptOptions{
		OriginPatterns:     h.originPatterns,
		InsecureSkipVerify: len(h.originPatterns) == 0,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	if h.readLimit > 0 {
		conn.SetReadLimit(h.readLimit)
	}

	user, sessionID, err := h.authenticate(r.Context(), c)
	if err != nil {
		h.log.Debug().Err(err).Msg("ws unauthorized")
		conn.Close(websocket.StatusCode(core.CloseUnauthorized), "Unauthorized")
		return
	}

	client := core.NewClient(core.ClientParams{
		Hub:       h.hub,
		Store:     h.store,
		Transport: newWSTransport(conn),
		User:      *user,
		SessionID: sessionID,
		Encoding:  proto.ParseEncoding(r.URL.Query().Get("recv_type")),
		Options:   h.opts,
		Logger:    h.log,
	})
	if err := client.Run(r.Context()); err != nil && !errors.Is(err, context.Canceled) {
		h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
	}
}

func (h *WSHandler) authenticate(ctx context.Context, c *gin.Context) (*store.User, string, error) {
	id, ok := identityFrom(c)
	if !ok {
		return nil, "", auth.ErrNoCredential
	}
	user, err := h.store.GetUserBySession(ctx, id.SessionID)
	if err != nil {
		return nil, "", err
	}
	if user.ID != id.UserID {
		return nil, "", errSessionMismatch
	}
	return user, id.SessionID, nil
}

var errSessionMismatch = errors.New("session belongs to another user")

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
