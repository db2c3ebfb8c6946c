// Package jobs holds the background tickers started from main.
package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"alteris/gateway/internal/config"
	"alteris/gateway/internal/planning"
)

// StartPlanningWarmJob refreshes the promotion cache on an interval so
// notification passes rarely pay the admin fetch. It needs a service
// token; without one the job stays off and the cache fills lazily from
// user traffic.
func StartPlanningWarmJob(ctx context.Context, cfg config.Config, cache *planning.Cache, logger *zap.Logger) {
	if !cfg.PlanningWarmEnabled {
		return
	}
	if cfg.ServiceToken == "" {
		logger.Warn("planning warm job disabled: no service token configured")
		return
	}
	interval := cfg.PlanningWarmInterval
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	timeout := cfg.PlanningWarmTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tickCtx, cancel := context.WithTimeout(ctx, timeout)
				err := cache.Refresh(tickCtx, cfg.ServiceToken)
				cancel()
				if err != nil {
					logger.Warn("planning warm refresh failed", zap.Error(err))
					continue
				}
				logger.Debug("planning cache refreshed")
			}
		}
	}()
}
