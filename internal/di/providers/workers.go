package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/readmarkapp/readmark-server/internal/config"
	"github.com/readmarkapp/readmark-server/internal/logger"
	"github.com/readmarkapp/readmark-server/internal/service"
)

// StaleSessionSweeper periodically force-closes sessions that stopped
// heartbeating.
type StaleSessionSweeper struct {
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (j *StaleSessionSweeper) Shutdown() error {
	j.cancel()
	return nil
}

// ProvideStaleSessionSweeper provides the stale session sweep job.
func ProvideStaleSessionSweeper(i do.Injector) (*StaleSessionSweeper, error) {
	cfg := do.MustInvoke[*config.Config](i)
	sessions := do.MustInvoke[*service.SessionService](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx, cancel := context.WithCancel(context.Background())

	sweep := func() {
		cutoff := time.Now().Add(-cfg.Sessions.StaleAfter)
		if count, err := sessions.CloseStale(ctx, cutoff); err != nil {
			log.Warn("Stale session sweep failed", "error", err)
		} else if count > 0 {
			log.Info("Stale session sweep completed", "closed", count)
		}
	}

	go func() {
		ticker := time.NewTicker(cfg.Sessions.SweepInterval)
		defer ticker.Stop()

		// Initial sweep on startup.
		sweep()

		for {
			select {
			case <-ticker.C:
				sweep()
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info("Stale session sweeper started",
		"stale_after", cfg.Sessions.StaleAfter,
		"interval", cfg.Sessions.SweepInterval,
	)

	return &StaleSessionSweeper{cancel: cancel}, nil
}

// SettlementJob settles completed leaderboard weeks on a timer.
type SettlementJob struct {
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (j *SettlementJob) Shutdown() error {
	j.cancel()
	return nil
}

// ProvideSettlementJob provides the weekly leaderboard settlement job.
func ProvideSettlementJob(i do.Injector) (*SettlementJob, error) {
	cfg := do.MustInvoke[*config.Config](i)
	leaderboard := do.MustInvoke[*service.LeaderboardService](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		ticker := time.NewTicker(cfg.Leaderboard.SettleCheckInterval)
		defer ticker.Stop()

		// Catch up on startup in case the server was down over a week
		// boundary.
		if err := leaderboard.SettleDue(ctx); err != nil {
			log.Warn("Leaderboard settlement failed", "error", err)
		}

		for {
			select {
			case <-ticker.C:
				if err := leaderboard.SettleDue(ctx); err != nil {
					log.Warn("Leaderboard settlement failed", "error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info("Leaderboard settlement job started",
		"interval", cfg.Leaderboard.SettleCheckInterval,
	)

	return &SettlementJob{cancel: cancel}, nil
}
