package providers

import (
	"github.com/samber/do/v2"

	"github.com/readmarkapp/readmark-server/internal/config"
	"github.com/readmarkapp/readmark-server/internal/logger"
	"github.com/readmarkapp/readmark-server/internal/ratelimit"
	"github.com/readmarkapp/readmark-server/internal/service"
)

// HeartbeatLimiterHandle wraps the heartbeat limiter with shutdown capability.
type HeartbeatLimiterHandle struct {
	*ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *HeartbeatLimiterHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideHeartbeatLimiter provides the per-session heartbeat coalescer.
// One persisted heartbeat per session per configured interval; the burst
// of one lets the first report through immediately.
func ProvideHeartbeatLimiter(i do.Injector) (*HeartbeatLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)

	rps := 1.0 / cfg.Sessions.HeartbeatMinInterval.Seconds()
	return &HeartbeatLimiterHandle{KeyedRateLimiter: ratelimit.New(rps, 1)}, nil
}

// ProvideDailyAggregator provides the day-bucket aggregator.
func ProvideDailyAggregator(i do.Injector) (*service.DailyAggregator, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewDailyAggregator(storeHandle.Store, log.Logger), nil
}

// ProvideStreakTracker provides the streak tracker.
func ProvideStreakTracker(i do.Injector) (*service.StreakTracker, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewStreakTracker(storeHandle.Store, log.Logger), nil
}

// ProvideMilestoneDetector provides the milestone detector.
func ProvideMilestoneDetector(i do.Injector) (*service.MilestoneDetector, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewMilestoneDetector(storeHandle.Store, log.Logger), nil
}

// ProvideSessionService provides the reading session service.
func ProvideSessionService(i do.Injector) (*service.SessionService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	aggregator := do.MustInvoke[*service.DailyAggregator](i)
	streaks := do.MustInvoke[*service.StreakTracker](i)
	milestones := do.MustInvoke[*service.MilestoneDetector](i)
	limiterHandle := do.MustInvoke[*HeartbeatLimiterHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSessionService(
		storeHandle.Store,
		storeHandle.Store,
		aggregator,
		streaks,
		milestones,
		limiterHandle.KeyedRateLimiter,
		log.Logger,
	), nil
}

// ProvideStatsService provides the stats query service.
func ProvideStatsService(i do.Injector) (*service.StatsService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewStatsService(storeHandle.Store, log.Logger), nil
}

// ProvideLeaderboardService provides the weekly leaderboard service.
func ProvideLeaderboardService(i do.Injector) (*service.LeaderboardService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewLeaderboardService(storeHandle.Store, storeHandle.Store, cfg.Leaderboard.TopN, log.Logger), nil
}

// ProvideReconciler provides the startup reconciliation job.
func ProvideReconciler(i do.Injector) (*service.Reconciler, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewReconciler(storeHandle.Store, log.Logger), nil
}
