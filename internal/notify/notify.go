// Package notify delivers alert, SOS, and reminder notices to care teams
// and patients through pluggable sinks.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/edgard/mamabot/internal/alert"
	"github.com/edgard/mamabot/internal/database"
)

// AlertNotice is produced when a vitals snapshot needs clinician attention.
type AlertNotice struct {
	UserID  string
	Patient *database.Patient // nil when the patient is not registered
	Doctor  *database.Doctor  // nil when no doctor is assigned
	Alert   alert.Result
	Vitals  database.VitalsSnapshot
}

// SOSNotice is produced when a patient raises an emergency.
type SOSNotice struct {
	UserID  string
	Patient *database.Patient
	Doctor  *database.Doctor
	Event   database.SOSEvent
}

// ReminderNotice is produced when a reminder falls due.
type ReminderNotice struct {
	Patient  *database.Patient
	Reminder database.Reminder
}

// Notifier delivers notices. Implementations must be safe for concurrent use.
type Notifier interface {
	NotifyAlert(ctx context.Context, n AlertNotice) error
	NotifySOS(ctx context.Context, n SOSNotice) error
	NotifyReminder(ctx context.Context, n ReminderNotice) error
}

// Multi fans every notice out to all sinks and joins their errors.
type Multi []Notifier

// NewMulti combines sinks, skipping nil entries.
func NewMulti(sinks ...Notifier) Multi {
	m := make(Multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	return m
}

func (m Multi) NotifyAlert(ctx context.Context, n AlertNotice) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.NotifyAlert(ctx, n))
	}
	return errors.Join(errs...)
}

func (m Multi) NotifySOS(ctx context.Context, n SOSNotice) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.NotifySOS(ctx, n))
	}
	return errors.Join(errs...)
}

func (m Multi) NotifyReminder(ctx context.Context, n ReminderNotice) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.NotifyReminder(ctx, n))
	}
	return errors.Join(errs...)
}

// LogNotifier records every notice in the structured log.
// Message text is not logged.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With("component", "notify_log")}
}

func (l *LogNotifier) NotifyAlert(ctx context.Context, n AlertNotice) error {
	l.log.WarnContext(ctx, "Health alert raised",
		"user_id", n.UserID,
		"level", n.Alert.Level,
		"breaches", len(n.Alert.Breaches),
		"doctor_id", doctorID(n.Doctor),
	)
	return nil
}

func (l *LogNotifier) NotifySOS(ctx context.Context, n SOSNotice) error {
	l.log.ErrorContext(ctx, "SOS raised",
		"user_id", n.UserID,
		"sos_id", n.Event.ID,
		"doctor_id", doctorID(n.Doctor),
	)
	return nil
}

func (l *LogNotifier) NotifyReminder(ctx context.Context, n ReminderNotice) error {
	l.log.InfoContext(ctx, "Reminder due",
		"user_id", n.Reminder.UserID,
		"reminder_id", n.Reminder.ID,
		"type", n.Reminder.Type,
	)
	return nil
}

func doctorID(d *database.Doctor) string {
	if d == nil {
		return ""
	}
	return d.ID
}

func patientName(p *database.Patient, fallbackID string) string {
	if p == nil || p.Name == "" {
		return "patient " + fallbackID
	}
	return p.Name
}
