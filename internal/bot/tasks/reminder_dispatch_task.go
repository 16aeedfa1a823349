package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/edgard/mamabot/internal/database"
	"github.com/edgard/mamabot/internal/notify"
)

// reminderBatchSize bounds the reminders handled in one run. Leftovers are
// picked up by the next run.
const reminderBatchSize = 100

// newReminderDispatchTask notifies due reminders and marks the delivered ones sent.
// Reminders whose delivery failed stay unsent and are retried on the next run.
func newReminderDispatchTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", ReminderDispatchTask)

	return func(ctx context.Context) error {
		now := deps.now()

		due, err := deps.Store.GetDueReminders(ctx, now, reminderBatchSize)
		if err != nil {
			return fmt.Errorf("failed to load due reminders: %w", err)
		}
		if len(due) == 0 {
			log.DebugContext(ctx, "No reminders due")
			return nil
		}

		patients := make(map[string]*database.Patient)
		var failures []error
		delivered := make([]database.Reminder, 0, len(due))

		for _, r := range due {
			patient, ok := patients[r.UserID]
			if !ok {
				if patient, err = deps.Store.GetPatient(ctx, r.UserID); err != nil {
					log.WarnContext(ctx, "Failed to load reminder patient", "error", err, "user_id", r.UserID)
				}
				patients[r.UserID] = patient
			}
			if patient == nil {
				patient = &database.Patient{ID: r.UserID}
			}

			if err := deps.Notifier.NotifyReminder(ctx, notify.ReminderNotice{Patient: patient, Reminder: r}); err != nil {
				log.ErrorContext(ctx, "Failed to deliver reminder", "error", err, "reminder_id", r.ID)
				failures = append(failures, fmt.Errorf("reminder %s: %w", r.ID, err))
				continue
			}
			delivered = append(delivered, r)
		}

		if len(delivered) > 0 {
			ids := lo.Map(delivered, func(r database.Reminder, _ int) string { return r.ID })
			if err := deps.Store.MarkRemindersSent(ctx, ids, now.UTC()); err != nil {
				return fmt.Errorf("failed to mark reminders sent: %w", err)
			}
		}

		log.InfoContext(ctx, "Dispatched reminders", "due", len(due), "delivered", len(delivered), "failed", len(failures))
		return errors.Join(failures...)
	}
}
