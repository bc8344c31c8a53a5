package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/guildchat-server/internal/auth"
	"github.com/vovakirdan/guildchat-server/internal/config"
	"github.com/vovakirdan/guildchat-server/internal/core"
	"github.com/vovakirdan/guildchat-server/internal/store"
)

// Deps are the collaborators the HTTP layer routes into.
type Deps struct {
	Hub      *core.Hub
	Store    store.Store
	Resolver *auth.Resolver
	Config   config.Config
	Logger   *zerolog.Logger
}

// NewServer builds an HTTP server with basic routes.
func NewServer(deps Deps) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              deps.Config.Addr,
		Handler:           NewRouter(deps),
		ReadHeaderTimeout: deps.Config.ReadHeaderTimeout,
	}
}

// NewRouter wires routes and middleware onto a gin engine.
func NewRouter(deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(deps.Logger))

	router.GET("/health", healthHandler)
	router.GET("/stats", func(c *gin.Context) {
		c.JSON(stdhttp.StatusOK, deps.Hub.Stats())
	})

	ws := NewWSHandler(deps)
	router.GET("/ws", IdentityMiddleware(deps.Resolver, deps.Logger), ws.Serve)

	return router
}
