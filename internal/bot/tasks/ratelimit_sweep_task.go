package tasks

import (
	"context"
)

// newRateLimitSweepTask creates the task that evicts rate-limiter entries
// older than the maximum session duration, keeping the per-user map from
// growing with every trainee who ever messaged the bot.
func newRateLimitSweepTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "ratelimit_sweep")

	return func(ctx context.Context) error {
		removed := deps.RateLimiter.Sweep(deps.Config.Limits.MaxSessionDuration)
		if removed > 0 {
			log.InfoContext(ctx, "Evicted stale rate-limit entries", "removed", removed)
		}
		return nil
	}
}
