package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/heartwise/backend/internal/config"
	"github.com/zhouzirui/heartwise/backend/internal/handler/chat"
	"github.com/zhouzirui/heartwise/backend/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/heartwise/backend/internal/middleware"
	chatService "github.com/zhouzirui/heartwise/backend/internal/service/chat"
)

// Options carries the optional collaborators of the router.
type Options struct {
	// Archive is pinged by /healthz when set.
	Archive Pinger
	// ArchiveName labels the archive check, e.g. "sqlite".
	ArchiveName string
}

// NewRouter wires HTTP routes to the session engine.
func NewRouter(engine *chatService.Engine, serverCfg config.ServerConfig, logger zerolog.Logger, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.Logger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.Metrics)
	r.Use(middlewarePkg.CORS(serverCfg.AllowedOrigins))

	chatHandler := chat.New(engine, logger)
	streamHandler := stream.New(engine, logger, serverCfg.MaxBodyBytes)

	r.Route("/api/chat", func(api chi.Router) {
		api.Group(func(rest chi.Router) {
			if serverCfg.MaxBodyBytes > 0 {
				rest.Use(middlewarePkg.MaxBodySize(serverCfg.MaxBodyBytes))
			}
			chatHandler.RegisterRoutes(rest)
		})

		streamHandler.RegisterRoutes(api)
	})

	name := opts.ArchiveName
	if name == "" {
		name = "archive"
	}
	r.Method(http.MethodGet, "/healthz", &healthHandler{
		sessions: engine.Store().Len,
		archive:  opts.Archive,
		name:     name,
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
