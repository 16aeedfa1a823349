package tasks

import (
	"context"
	"fmt"
	"time"
)

// newSQLMaintenanceTask vacuums the database so deleted chat turns and sent
// reminders give their space back.
func newSQLMaintenanceTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", SQLMaintenanceTask, "driver", deps.Driver)

	return func(ctx context.Context) error {
		startTime := time.Now()

		if err := deps.Store.RunSQLMaintenance(ctx); err != nil {
			return fmt.Errorf("%s maintenance failed after %s: %w", deps.Driver, time.Since(startTime).Round(time.Millisecond), err)
		}

		log.InfoContext(ctx, "Database maintenance completed", "duration", time.Since(startTime))
		return nil
	}
}
