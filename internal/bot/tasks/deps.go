// Package tasks implements the scheduled jobs of mamabot and their registration.
package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/edgard/mamabot/internal/database"
	"github.com/edgard/mamabot/internal/notify"
)

// Store is the persistence scheduled tasks use.
type Store interface {
	GetPatient(ctx context.Context, id string) (*database.Patient, error)
	GetDueReminders(ctx context.Context, now time.Time, limit int) ([]database.Reminder, error)
	MarkRemindersSent(ctx context.Context, ids []string, sentAt time.Time) error
	RunSQLMaintenance(ctx context.Context) error
}

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger   *slog.Logger
	Store    Store
	Notifier notify.Notifier
	// Driver names the SQL backend, for maintenance logs.
	Driver string
	// Now defaults to time.Now.
	Now func() time.Time
}

func (d TaskDeps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}
