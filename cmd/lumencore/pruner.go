package main

import (
	"context"
	"time"

	"github.com/nerrad567/lumen-core/internal/device"
	"github.com/nerrad567/lumen-core/internal/infrastructure/logging"
)

// pruneInterval is how often expired command records are removed.
const pruneInterval = time.Hour

// runCommandLogPruner deletes command records older than the retention
// window on a fixed interval, until ctx is cancelled.
func runCommandLogPruner(ctx context.Context, commandLog device.CommandLogRepository, interval, retention time.Duration, log *logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := commandLog.PruneCommands(ctx, retention)
			if err != nil {
				log.Error("pruning command log failed", "error", err)
				continue
			}
			if removed > 0 {
				log.Info("pruned command log", "removed", removed, "retention", retention)
			}
		}
	}
}
