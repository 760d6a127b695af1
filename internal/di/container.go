// Package di provides dependency injection configuration for the ReadMark server.
package di

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/readmarkapp/readmark-server/internal/auth"
	"github.com/readmarkapp/readmark-server/internal/config"
	"github.com/readmarkapp/readmark-server/internal/di/providers"
	"github.com/readmarkapp/readmark-server/internal/logger"
	"github.com/readmarkapp/readmark-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideAuthKey)
	do.Provide(injector, providers.ProvideTokenVerifier)

	// Database layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideSlogLogger)

	// Business services
	do.Provide(injector, providers.ProvideHeartbeatLimiter)
	do.Provide(injector, providers.ProvideDailyAggregator)
	do.Provide(injector, providers.ProvideStreakTracker)
	do.Provide(injector, providers.ProvideMilestoneDetector)
	do.Provide(injector, providers.ProvideSessionService)
	do.Provide(injector, providers.ProvideStatsService)
	do.Provide(injector, providers.ProvideLeaderboardService)
	do.Provide(injector, providers.ProvideReconciler)

	// Workers
	do.Provide(injector, providers.ProvideStaleSessionSweeper)
	do.Provide(injector, providers.ProvideSettlementJob)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	// Invoke core services to trigger initialization
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[providers.AuthKey](injector)
	_ = do.MustInvoke[*auth.TokenVerifier](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)

	// Business services
	_ = do.MustInvoke[*providers.HeartbeatLimiterHandle](injector)
	_ = do.MustInvoke[*service.DailyAggregator](injector)
	_ = do.MustInvoke[*service.StreakTracker](injector)
	_ = do.MustInvoke[*service.MilestoneDetector](injector)
	_ = do.MustInvoke[*service.SessionService](injector)
	_ = do.MustInvoke[*service.StatsService](injector)
	_ = do.MustInvoke[*service.LeaderboardService](injector)

	// Rebuild derived stats from session history before anything serves
	// reads or closes stale sessions.
	reconciler := do.MustInvoke[*service.Reconciler](injector)
	if err := reconciler.Run(context.Background()); err != nil {
		return err
	}

	// Workers
	_ = do.MustInvoke[*providers.StaleSessionSweeper](injector)
	_ = do.MustInvoke[*providers.SettlementJob](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
