package db

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
)

// StartAccessEventCleaner removes access events older than retention every
// interval. The returned channel is closed once the cleaner has stopped.
func StartAccessEventCleaner(
	ctx context.Context,
	db *sql.DB,
	interval time.Duration,
	retention time.Duration,
	log *zap.Logger,
) <-chan struct{} {
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().Add(-retention).UTC()
				res, err := db.ExecContext(ctx, `DELETE FROM access_events WHERE created_at < $1`, cutoff)
				if err != nil {
					log.Error("failed to clean access events", zap.Error(err))
					continue
				}
				if rows, _ := res.RowsAffected(); rows > 0 {
					log.Info("cleaned access events", zap.Int64("removed", rows))
				}
			}
		}
	}()
	return done
}
