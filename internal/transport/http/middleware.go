package http

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/guildchat-server/internal/auth"
)

// ContextKeyIdentity is the gin context key for the resolved auth.Identity.
const ContextKeyIdentity = "identity"

// IdentityMiddleware resolves request credentials without rejecting the request.
// The websocket handler decides how to refuse an anonymous upgrade.
func IdentityMiddleware(resolver *auth.Resolver, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := resolver.Resolve(c.Request)
		switch {
		case err == nil:
			c.Set(ContextKeyIdentity, id)
		case errors.Is(err, auth.ErrNoCredential):
		default:
			logger.Debug().Err(err).Msg("invalid token")
		}
		c.Next()
	}
}

func identityFrom(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(ContextKeyIdentity)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	}
}
