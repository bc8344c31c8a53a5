package http

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/coder/websocket"

	"github.com/vovakirdan/guildchat-server/internal/core"
)

// wsTransport adapts a websocket connection to core.Transport.
// Pongs are consumed by the library while Ping waits, so FramePong never surfaces.
type wsTransport struct {
	conn *websocket.Conn
}

var _ core.Transport = (*wsTransport)(nil)

func newWSTransport(conn *websocket.Conn) *wsTransport {
	return &wsTransport{conn: conn}
}

func (t *wsTransport) ReadFrame(ctx context.Context) (core.Frame, error) {
	typ, data, err := t.conn.Read(ctx)
	if err != nil {
		var ce websocket.CloseError
		if errors.As(err, &ce) {
			return core.Frame{Kind: core.FrameClose, CloseCode: int(ce.Code), CloseReason: ce.Reason}, nil
		}
		return core.Frame{}, err
	}
	switch typ {
	case websocket.MessageText:
		return core.Frame{Kind: core.FrameText, Data: data}, nil
	case websocket.MessageBinary:
		return core.Frame{Kind: core.FrameBinary, Data: data}, nil
	default:
		return core.Frame{Kind: core.FrameUnsupported}, nil
	}
}

func (t *wsTransport) WriteFrame(ctx context.Context, binary bool, data []byte) error {
	typ := websocket.MessageText
	if binary {
		typ = websocket.MessageBinary
	}
	return t.conn.Write(ctx, typ, data)
}

func (t *wsTransport) Ping(ctx context.Context) error {
	return t.conn.Ping(ctx)
}

func (t *wsTransport) Close(code int, reason string) error {
	return t.conn.Close(websocket.StatusCode(code), closeReason(reason))
}

// maxCloseReason is the largest reason a close frame can carry.
const maxCloseReason = 123

// closeReason trims reason to fit a close frame without splitting a rune.
func closeReason(reason string) string {
	if len(reason) <= maxCloseReason {
		return reason
	}
	cut := maxCloseReason
	for cut > 0 && !utf8.RuneStart(reason[cut]) {
		cut--
	}
	return reason[:cut]
}
