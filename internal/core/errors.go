package core

import "errors"

// Handler errors. They are logged by the session and never sent to the
// client.
var (
	ErrClientClosed     = errors.New("client closed")
	ErrForbidden        = errors.New("forbidden")
	ErrPlaceholderGuild = errors.New("not allowed on the placeholder guild")
	ErrBadRequest       = errors.New("bad request")
	ErrHeartbeatTimeout = errors.New("heartbeat timeout")
)
