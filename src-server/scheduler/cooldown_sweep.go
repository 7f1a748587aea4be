package scheduler

import (
	"context"
	"log/slog"
	"time"
)

type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (int64, error)
}

// Deletes expired cooldown rows every interval until shutdown is closed.
// Expired rows never block anyone, this only keeps the table small.
func CooldownSweep(shutdown <-chan struct{}, sweeper Sweeper, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-shutdown:
			slog.Debug("CooldownSweep: stopped")
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			removed, err := sweeper.Sweep(ctx, time.Now())
			cancel()
			if err != nil {
				slog.Error("CooldownSweep: can't sweep expired cooldowns", "error", err)
				continue
			}
			if removed > 0 {
				slog.Info("CooldownSweep: removed expired cooldowns", "count", removed)
			}
		}
	}
}
