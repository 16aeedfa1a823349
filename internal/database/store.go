package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Store defines the interface for database operations.
// Methods should accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// SavePatient inserts or updates a patient record.
	SavePatient(ctx context.Context, patient *Patient) error
	// GetPatient retrieves a patient by ID. Returns nil, nil if not found.
	GetPatient(ctx context.Context, id string) (*Patient, error)
	// GetPatientByTelegramID retrieves the patient linked to a Telegram user. Returns nil, nil if not found.
	GetPatientByTelegramID(ctx context.Context, telegramUserID int64) (*Patient, error)

	// SaveDoctor inserts or updates a doctor record.
	SaveDoctor(ctx context.Context, doctor *Doctor) error
	// GetDoctor retrieves a doctor by ID. Returns nil, nil if not found.
	GetDoctor(ctx context.Context, id string) (*Doctor, error)

	// SaveVitals inserts a new vitals snapshot.
	SaveVitals(ctx context.Context, vitals *VitalsSnapshot) error
	// GetRecentVitals retrieves up to limit snapshots for a user, newest first.
	GetRecentVitals(ctx context.Context, userID string, limit int) ([]VitalsSnapshot, error)

	// SaveAppointment inserts a new appointment.
	SaveAppointment(ctx context.Context, appointment *Appointment) error
	// GetAppointments retrieves all appointments for a user ordered by scheduled time.
	GetAppointments(ctx context.Context, userID string) ([]Appointment, error)

	// SaveReminder inserts a new reminder.
	SaveReminder(ctx context.Context, reminder *Reminder) error
	// GetDueReminders retrieves unsent reminders whose remind_at is not after now.
	GetDueReminders(ctx context.Context, now time.Time, limit int) ([]Reminder, error)
	// MarkRemindersSent stamps sent_at on the given reminders.
	MarkRemindersSent(ctx context.Context, ids []string, sentAt time.Time) error

	// SaveSOSEvent inserts a new SOS event.
	SaveSOSEvent(ctx context.Context, event *SOSEvent) error

	// AppendChatTurns stores turns for a user in the order given, in a single transaction.
	AppendChatTurns(ctx context.Context, userID string, turns ...ChatTurn) error
	// GetChatHistory retrieves the last limit turns for a user, oldest first.
	GetChatHistory(ctx context.Context, userID string, limit int) ([]ChatTurn, error)
	// DeleteChatHistory deletes all stored turns for a user.
	DeleteChatHistory(ctx context.Context, userID string) error

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// inTx runs fn inside a transaction, rolling back unless fn succeeds and the commit goes through.
func (s *sqlxStore) inTx(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction", "op", op, "error", err)
		return fmt.Errorf("failed to begin transaction for %s: %w", op, err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back transaction", "op", op, "error", rollbackErr)
			}
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction", "op", op, "error", err)
		return fmt.Errorf("failed to commit transaction for %s: %w", op, err)
	}
	// Successfully committed, set tx to nil to avoid rollback
	tx = nil
	return nil
}

func newID() string {
	return uuid.NewString()
}

// SavePatient inserts or updates a patient record.
func (s *sqlxStore) SavePatient(ctx context.Context, patient *Patient) error {
	if patient == nil {
		return fmt.Errorf("cannot save nil patient")
	}
	if patient.ID == "" {
		patient.ID = newID()
	}

	now := time.Now().UTC()
	patient.UpdatedAt = now

	return s.inTx(ctx, "save patient", func(tx *sqlx.Tx) error {
		var exists bool
		if err := tx.GetContext(ctx, &exists, tx.Rebind(`SELECT EXISTS(SELECT 1 FROM patients WHERE id = ?)`), patient.ID); err != nil {
			return fmt.Errorf("failed to check patient existence: %w", err)
		}

		query := `
            UPDATE patients
            SET name = :name, email = :email, assigned_doctor_id = :assigned_doctor_id,
                telegram_user_id = :telegram_user_id, updated_at = :updated_at
            WHERE id = :id;
        `
		if !exists {
			patient.CreatedAt = now
			query = `
                INSERT INTO patients (id, name, email, assigned_doctor_id, telegram_user_id, created_at, updated_at)
                VALUES (:id, :name, :email, :assigned_doctor_id, :telegram_user_id, :created_at, :updated_at);
            `
		}

		if _, err := tx.NamedExecContext(ctx, query, patient); err != nil {
			s.logger.ErrorContext(ctx, "Error saving patient", "patient_id", patient.ID, "error", err)
			return fmt.Errorf("failed to save patient %s: %w", patient.ID, err)
		}
		s.logger.DebugContext(ctx, "Patient saved", "patient_id", patient.ID, "created", !exists)
		return nil
	})
}

// GetPatient retrieves a patient by ID.
func (s *sqlxStore) GetPatient(ctx context.Context, id string) (*Patient, error) {
	var patient Patient
	query := s.db.Rebind(`
        SELECT id, name, email, assigned_doctor_id, telegram_user_id, created_at, updated_at
        FROM patients WHERE id = ?;
    `)
	err := s.db.GetContext(ctx, &patient, query, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting patient", "patient_id", id, "error", err)
		return nil, fmt.Errorf("failed to get patient %s: %w", id, err)
	}
	return &patient, nil
}

// GetPatientByTelegramID retrieves the patient linked to a Telegram user.
func (s *sqlxStore) GetPatientByTelegramID(ctx context.Context, telegramUserID int64) (*Patient, error) {
	if telegramUserID == 0 {
		return nil, fmt.Errorf("telegram_user_id cannot be zero")
	}

	var patient Patient
	query := s.db.Rebind(`
        SELECT id, name, email, assigned_doctor_id, telegram_user_id, created_at, updated_at
        FROM patients WHERE telegram_user_id = ?
        LIMIT 1;
    `)
	err := s.db.GetContext(ctx, &patient, query, telegramUserID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting patient by telegram id", "telegram_user_id", telegramUserID, "error", err)
		return nil, fmt.Errorf("failed to get patient for telegram user %d: %w", telegramUserID, err)
	}
	return &patient, nil
}

// SaveDoctor inserts or updates a doctor record.
func (s *sqlxStore) SaveDoctor(ctx context.Context, doctor *Doctor) error {
	if doctor == nil {
		return fmt.Errorf("cannot save nil doctor")
	}
	if doctor.ID == "" {
		doctor.ID = newID()
	}

	now := time.Now().UTC()
	doctor.UpdatedAt = now

	return s.inTx(ctx, "save doctor", func(tx *sqlx.Tx) error {
		var exists bool
		if err := tx.GetContext(ctx, &exists, tx.Rebind(`SELECT EXISTS(SELECT 1 FROM doctors WHERE id = ?)`), doctor.ID); err != nil {
			return fmt.Errorf("failed to check doctor existence: %w", err)
		}

		query := `
            UPDATE doctors
            SET name = :name, specialty = :specialty, telegram_chat_id = :telegram_chat_id, updated_at = :updated_at
            WHERE id = :id;
        `
		if !exists {
			doctor.CreatedAt = now
			query = `
                INSERT INTO doctors (id, name, specialty, telegram_chat_id, created_at, updated_at)
                VALUES (:id, :name, :specialty, :telegram_chat_id, :created_at, :updated_at);
            `
		}

		if _, err := tx.NamedExecContext(ctx, query, doctor); err != nil {
			s.logger.ErrorContext(ctx, "Error saving doctor", "doctor_id", doctor.ID, "error", err)
			return fmt.Errorf("failed to save doctor %s: %w", doctor.ID, err)
		}
		s.logger.DebugContext(ctx, "Doctor saved", "doctor_id", doctor.ID, "created", !exists)
		return nil
	})
}

// GetDoctor retrieves a doctor by ID.
func (s *sqlxStore) GetDoctor(ctx context.Context, id string) (*Doctor, error) {
	var doctor Doctor
	query := s.db.Rebind(`
        SELECT id, name, specialty, telegram_chat_id, created_at, updated_at
        FROM doctors WHERE id = ?;
    `)
	err := s.db.GetContext(ctx, &doctor, query, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting doctor", "doctor_id", id, "error", err)
		return nil, fmt.Errorf("failed to get doctor %s: %w", id, err)
	}
	return &doctor, nil
}

// SaveVitals inserts a new vitals snapshot.
func (s *sqlxStore) SaveVitals(ctx context.Context, vitals *VitalsSnapshot) error {
	if vitals == nil {
		return fmt.Errorf("cannot save nil vitals")
	}
	if vitals.UserID == "" {
		return fmt.Errorf("vitals must have a user_id")
	}
	if vitals.ID == "" {
		vitals.ID = newID()
	}
	if vitals.Timestamp.IsZero() {
		vitals.Timestamp = time.Now().UTC()
	}
	vitals.CreatedAt = time.Now().UTC()

	query := `
        INSERT INTO vitals (id, user_id, timestamp, systolic, diastolic, sugar_level, weight, heart_rate, alert_level, created_at)
        VALUES (:id, :user_id, :timestamp, :systolic, :diastolic, :sugar_level, :weight, :heart_rate, :alert_level, :created_at);
    `
	result, err := s.db.NamedExecContext(ctx, query, vitals)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving vitals", "user_id", vitals.UserID, "error", err)
		return fmt.Errorf("failed to save vitals for user %s: %w", vitals.UserID, err)
	}

	// Check that we affected exactly one row
	if affected, err := result.RowsAffected(); err == nil && affected != 1 {
		s.logger.WarnContext(ctx, "Unexpected number of rows affected when saving vitals",
			"user_id", vitals.UserID, "affected", affected)
	}

	s.logger.DebugContext(ctx, "Vitals saved", "user_id", vitals.UserID, "vitals_id", vitals.ID, "alert_level", vitals.AlertLevel)
	return nil
}

// GetRecentVitals retrieves up to limit snapshots for a user, newest first.
func (s *sqlxStore) GetRecentVitals(ctx context.Context, userID string, limit int) ([]VitalsSnapshot, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id cannot be empty")
	}

	// Check for reasonable limits
	if limit <= 0 {
		limit = 15
	} else if limit > 100 {
		limit = 100
		s.logger.DebugContext(ctx, "Limit exceeded maximum value, capping", "user_id", userID, "capped_limit", limit)
	}

	vitals := []VitalsSnapshot{}
	query := s.db.Rebind(`
        SELECT id, user_id, timestamp, systolic, diastolic, sugar_level, weight, heart_rate, alert_level, created_at
        FROM vitals
        WHERE user_id = ?
        ORDER BY timestamp DESC, created_at DESC
        LIMIT ?;
    `)
	if err := s.db.SelectContext(ctx, &vitals, query, userID, limit); err != nil {
		s.logger.ErrorContext(ctx, "Error getting recent vitals", "user_id", userID, "limit", limit, "error", err)
		return nil, fmt.Errorf("failed to get recent vitals for user %s: %w", userID, err)
	}
	return vitals, nil
}

// SaveAppointment inserts a new appointment.
func (s *sqlxStore) SaveAppointment(ctx context.Context, appointment *Appointment) error {
	if appointment == nil {
		return fmt.Errorf("cannot save nil appointment")
	}
	if appointment.ID == "" {
		appointment.ID = newID()
	}
	if appointment.Status == "" {
		appointment.Status = AppointmentPending
	}
	appointment.CreatedAt = time.Now().UTC()

	query := `
        INSERT INTO appointments (id, user_id, doctor_id, patient_name, scheduled_at, reason, status, created_at)
        VALUES (:id, :user_id, :doctor_id, :patient_name, :scheduled_at, :reason, :status, :created_at);
    `
	if _, err := s.db.NamedExecContext(ctx, query, appointment); err != nil {
		s.logger.ErrorContext(ctx, "Error saving appointment", "user_id", appointment.UserID, "error", err)
		return fmt.Errorf("failed to save appointment for user %s: %w", appointment.UserID, err)
	}
	s.logger.DebugContext(ctx, "Appointment saved", "user_id", appointment.UserID, "appointment_id", appointment.ID)
	return nil
}

// GetAppointments retrieves all appointments for a user ordered by scheduled time.
func (s *sqlxStore) GetAppointments(ctx context.Context, userID string) ([]Appointment, error) {
	appointments := []Appointment{}
	query := s.db.Rebind(`
        SELECT id, user_id, doctor_id, patient_name, scheduled_at, reason, status, created_at
        FROM appointments
        WHERE user_id = ?
        ORDER BY scheduled_at ASC;
    `)
	if err := s.db.SelectContext(ctx, &appointments, query, userID); err != nil {
		s.logger.ErrorContext(ctx, "Error getting appointments", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get appointments for user %s: %w", userID, err)
	}
	return appointments, nil
}

// SaveReminder inserts a new reminder.
func (s *sqlxStore) SaveReminder(ctx context.Context, reminder *Reminder) error {
	if reminder == nil {
		return fmt.Errorf("cannot save nil reminder")
	}
	if reminder.ID == "" {
		reminder.ID = newID()
	}
	reminder.CreatedAt = time.Now().UTC()

	query := `
        INSERT INTO reminders (id, user_id, title, remind_at, note, type, sent_at, created_at)
        VALUES (:id, :user_id, :title, :remind_at, :note, :type, :sent_at, :created_at);
    `
	if _, err := s.db.NamedExecContext(ctx, query, reminder); err != nil {
		s.logger.ErrorContext(ctx, "Error saving reminder", "user_id", reminder.UserID, "error", err)
		return fmt.Errorf("failed to save reminder for user %s: %w", reminder.UserID, err)
	}
	s.logger.DebugContext(ctx, "Reminder saved", "user_id", reminder.UserID, "reminder_id", reminder.ID)
	return nil
}

// GetDueReminders retrieves unsent reminders whose remind_at is not after now, oldest first.
func (s *sqlxStore) GetDueReminders(ctx context.Context, now time.Time, limit int) ([]Reminder, error) {
	if limit <= 0 {
		limit = 100
	}

	reminders := []Reminder{}
	query := s.db.Rebind(`
        SELECT id, user_id, title, remind_at, note, type, sent_at, created_at
        FROM reminders
        WHERE sent_at IS NULL AND remind_at <= ?
        ORDER BY remind_at ASC
        LIMIT ?;
    `)
	if err := s.db.SelectContext(ctx, &reminders, query, now.UTC(), limit); err != nil {
		s.logger.ErrorContext(ctx, "Error getting due reminders", "error", err)
		return nil, fmt.Errorf("failed to get due reminders: %w", err)
	}
	return reminders, nil
}

// MarkRemindersSent stamps sent_at on the given reminders in a single transaction.
func (s *sqlxStore) MarkRemindersSent(ctx context.Context, ids []string, sentAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	return s.inTx(ctx, "mark reminders sent", func(tx *sqlx.Tx) error {
		query, args, err := sqlx.In(`UPDATE reminders SET sent_at = ? WHERE id IN (?)`, sentAt.UTC(), ids)
		if err != nil {
			return fmt.Errorf("failed to build mark-sent query: %w", err)
		}
		query = tx.Rebind(query) // Rebind for specific SQL driver within the transaction

		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			s.logger.ErrorContext(ctx, "Error marking reminders sent", "count", len(ids), "error", err)
			return fmt.Errorf("failed to mark reminders sent: %w", err)
		}
		if affected, err := result.RowsAffected(); err == nil && affected != int64(len(ids)) {
			s.logger.WarnContext(ctx, "Not all reminders were marked sent", "requested", len(ids), "affected", affected)
		}
		return nil
	})
}

// SaveSOSEvent inserts a new SOS event.
func (s *sqlxStore) SaveSOSEvent(ctx context.Context, event *SOSEvent) error {
	if event == nil {
		return fmt.Errorf("cannot save nil sos event")
	}
	if event.ID == "" {
		event.ID = newID()
	}
	event.CreatedAt = time.Now().UTC()

	query := `
        INSERT INTO sos_events (id, user_id, lat, lng, note, created_at)
        VALUES (:id, :user_id, :lat, :lng, :note, :created_at);
    `
	if _, err := s.db.NamedExecContext(ctx, query, event); err != nil {
		s.logger.ErrorContext(ctx, "Error saving sos event", "user_id", event.UserID, "error", err)
		return fmt.Errorf("failed to save sos event for user %s: %w", event.UserID, err)
	}
	s.logger.InfoContext(ctx, "SOS event saved", "user_id", event.UserID, "sos_id", event.ID)
	return nil
}

// AppendChatTurns stores turns for a user in the order given.
func (s *sqlxStore) AppendChatTurns(ctx context.Context, userID string, turns ...ChatTurn) error {
	if userID == "" {
		return fmt.Errorf("user_id cannot be empty")
	}
	if len(turns) == 0 {
		return nil
	}

	now := time.Now().UTC()
	base := now.UnixNano()

	return s.inTx(ctx, "append chat turns", func(tx *sqlx.Tx) error {
		var last sql.NullInt64
		if err := tx.GetContext(ctx, &last, tx.Rebind(`SELECT MAX(seq) FROM chat_turns WHERE user_id = ?`), userID); err != nil {
			return fmt.Errorf("failed to read chat sequence: %w", err)
		}
		if last.Valid && last.Int64 >= base {
			base = last.Int64 + 1
		}

		query := `
            INSERT INTO chat_turns (id, user_id, role, text, seq, created_at)
            VALUES (:id, :user_id, :role, :text, :seq, :created_at);
        `
		for i := range turns {
			turn := turns[i]
			turn.ID = newID()
			turn.UserID = userID
			turn.Seq = base + int64(i)
			turn.CreatedAt = now
			if _, err := tx.NamedExecContext(ctx, query, &turn); err != nil {
				s.logger.ErrorContext(ctx, "Error saving chat turn", "user_id", userID, "error", err)
				return fmt.Errorf("failed to save chat turn for user %s: %w", userID, err)
			}
		}
		return nil
	})
}

// GetChatHistory retrieves the last limit turns for a user, oldest first.
func (s *sqlxStore) GetChatHistory(ctx context.Context, userID string, limit int) ([]ChatTurn, error) {
	if limit <= 0 {
		limit = 20
	}

	turns := []ChatTurn{}
	query := s.db.Rebind(`
        SELECT id, user_id, role, text, seq, created_at
        FROM chat_turns
        WHERE user_id = ?
        ORDER BY seq DESC
        LIMIT ?;
    `)
	if err := s.db.SelectContext(ctx, &turns, query, userID, limit); err != nil {
		s.logger.ErrorContext(ctx, "Error getting chat history", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get chat history for user %s: %w", userID, err)
	}

	// Reverse to chronological order
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// DeleteChatHistory deletes all stored turns for a user.
func (s *sqlxStore) DeleteChatHistory(ctx context.Context, userID string) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM chat_turns WHERE user_id = ?`), userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting chat history", "user_id", userID, "error", err)
		return fmt.Errorf("failed to delete chat history for user %s: %w", userID, err)
	}
	if affected, err := result.RowsAffected(); err == nil {
		s.logger.InfoContext(ctx, "Chat history deleted", "user_id", userID, "rows_affected", affected)
	}
	return nil
}

// RunSQLMaintenance executes VACUUM, and on SQLite sets a busy timeout first.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...", "driver", s.db.DriverName())

	if s.db.DriverName() == DriverSQLite {
		if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
			s.logger.WarnContext(ctx, "Failed to set busy timeout before VACUUM", "error", err)
		}
	}

	// VACUUM must run outside a transaction on both SQLite and PostgreSQL
	if _, err := s.db.ExecContext(ctx, "VACUUM;"); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
			return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)
		}
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	return nil
}
