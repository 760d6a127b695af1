package providers

import (
	"context"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/readmarkapp/readmark-server/internal/api"
	"github.com/readmarkapp/readmark-server/internal/auth"
	"github.com/readmarkapp/readmark-server/internal/config"
	"github.com/readmarkapp/readmark-server/internal/logger"
	"github.com/readmarkapp/readmark-server/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	sessions := do.MustInvoke[*service.SessionService](i)
	stats := do.MustInvoke[*service.StatsService](i)
	leaderboard := do.MustInvoke[*service.LeaderboardService](i)
	milestones := do.MustInvoke[*service.MilestoneDetector](i)
	tokens := do.MustInvoke[*auth.TokenVerifier](i)

	handler := api.NewServer(storeHandle.Store, sessions, stats, leaderboard, milestones, tokens, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr)

	return &HTTPServerHandle{Server: srv}, nil
}
