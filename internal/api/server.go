// Package api provides the HTTP API server and handlers for the ReadMark
// reading-stats pipeline.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/readmarkapp/readmark-server/internal/auth"
	"github.com/readmarkapp/readmark-server/internal/service"
	"github.com/readmarkapp/readmark-server/internal/store/sqlite"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	store       *sqlite.Store
	sessions    *service.SessionService
	stats       *service.StatsService
	leaderboard *service.LeaderboardService
	milestones  *service.MilestoneDetector
	tokens      *auth.TokenVerifier

	router *chi.Mux
	api    huma.API
	logger *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(
	store *sqlite.Store,
	sessions *service.SessionService,
	stats *service.StatsService,
	leaderboard *service.LeaderboardService,
	milestones *service.MilestoneDetector,
	tokens *auth.TokenVerifier,
	logger *slog.Logger,
) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	humaConfig := huma.DefaultConfig("ReadMark API", "1.0.0")
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}

	s := &Server{
		store:       store,
		sessions:    sessions,
		stats:       stats,
		leaderboard: leaderboard,
		milestones:  milestones,
		tokens:      tokens,
		router:      router,
		api:         humachi.New(router, humaConfig),
		logger:      logger,
	}

	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerSessionRoutes()
	s.registerStatsRoutes()
	s.registerLeaderboardRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
