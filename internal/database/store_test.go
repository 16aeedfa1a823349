package database_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/edgard/mamabot/internal/database"
	"github.com/edgard/mamabot/internal/logger"
)

func newTestStore(t *testing.T) database.Store {
	t.Helper()

	db, err := database.NewDB(database.DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })

	return database.NewStore(db, logger.Discard())
}

func TestNewDB_UnsupportedDriver(t *testing.T) {
	t.Parallel()

	if _, err := database.NewDB("mysql", "whatever"); err == nil {
		t.Error("NewDB() expected error for unsupported driver")
	}
}

func TestStore_PatientRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	patient := &database.Patient{Name: "Jane", Email: "jane@example.com", AssignedDoctorID: "doc-1", TelegramUserID: 42}
	if err := store.SavePatient(ctx, patient); err != nil {
		t.Fatalf("SavePatient() error = %v", err)
	}
	if patient.ID == "" {
		t.Fatal("SavePatient() did not assign an ID")
	}

	patient.Name = "Jane Doe"
	if err := store.SavePatient(ctx, patient); err != nil {
		t.Fatalf("SavePatient() update error = %v", err)
	}

	got, err := store.GetPatient(ctx, patient.ID)
	if err != nil || got == nil {
		t.Fatalf("GetPatient() = %v, %v", got, err)
	}
	if got.Name != "Jane Doe" || got.AssignedDoctorID != "doc-1" {
		t.Errorf("GetPatient() = %+v", got)
	}

	byTG, err := store.GetPatientByTelegramID(ctx, 42)
	if err != nil || byTG == nil || byTG.ID != patient.ID {
		t.Errorf("GetPatientByTelegramID() = %+v, %v", byTG, err)
	}

	missing, err := store.GetPatient(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("GetPatient(missing) = %+v, %v, want nil, nil", missing, err)
	}
}

func TestStore_DoctorRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	doctor := &database.Doctor{ID: "doc-1", Name: "Dr. Carter", Specialty: "Obstetrics", TelegramChatID: 99}
	if err := store.SaveDoctor(ctx, doctor); err != nil {
		t.Fatalf("SaveDoctor() error = %v", err)
	}
	got, err := store.GetDoctor(ctx, "doc-1")
	if err != nil || got == nil {
		t.Fatalf("GetDoctor() = %v, %v", got, err)
	}
	if got.Name != "Dr. Carter" || got.TelegramChatID != 99 {
		t.Errorf("GetDoctor() = %+v", got)
	}
}

func TestStore_RecentVitalsNewestFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	diastolic := 85
	for i := range 5 {
		v := &database.VitalsSnapshot{
			UserID:     "u1",
			Timestamp:  base.Add(time.Duration(i) * time.Hour),
			SystolicBP: 110 + i,
			SugarLevel: 90,
			AlertLevel: "normal",
		}
		if i == 4 {
			v.DiastolicBP = &diastolic
		}
		if err := store.SaveVitals(ctx, v); err != nil {
			t.Fatalf("SaveVitals() error = %v", err)
		}
	}
	other := &database.VitalsSnapshot{UserID: "u2", Timestamp: base, SystolicBP: 150, SugarLevel: 90, AlertLevel: "warning"}
	if err := store.SaveVitals(ctx, other); err != nil {
		t.Fatalf("SaveVitals() error = %v", err)
	}

	got, err := store.GetRecentVitals(ctx, "u1", 3)
	if err != nil {
		t.Fatalf("GetRecentVitals() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("GetRecentVitals() len = %d, want 3", len(got))
	}
	if got[0].SystolicBP != 114 || got[2].SystolicBP != 112 {
		t.Errorf("order = %d,%d,%d, want newest first", got[0].SystolicBP, got[1].SystolicBP, got[2].SystolicBP)
	}
	if got[0].DiastolicBP == nil || *got[0].DiastolicBP != 85 {
		t.Errorf("DiastolicBP = %v, want 85", got[0].DiastolicBP)
	}
	if got[1].DiastolicBP != nil {
		t.Errorf("DiastolicBP = %v, want nil", *got[1].DiastolicBP)
	}

	none, err := store.GetRecentVitals(ctx, "nobody", 15)
	if err != nil || len(none) != 0 {
		t.Errorf("GetRecentVitals(unknown) = %v, %v, want empty", none, err)
	}
}

func TestStore_DueRemindersAndMarkSent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	due := &database.Reminder{UserID: "u1", Title: "Iron supplement", RemindAt: now.Add(-time.Minute), Type: "medication"}
	later := &database.Reminder{UserID: "u1", Title: "Tdap vaccine", RemindAt: now.Add(time.Hour), Type: "vaccination"}
	for _, r := range []*database.Reminder{due, later} {
		if err := store.SaveReminder(ctx, r); err != nil {
			t.Fatalf("SaveReminder() error = %v", err)
		}
	}

	got, err := store.GetDueReminders(ctx, now, 10)
	if err != nil {
		t.Fatalf("GetDueReminders() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != due.ID {
		t.Fatalf("GetDueReminders() = %+v, want only %s", got, due.ID)
	}

	if err := store.MarkRemindersSent(ctx, []string{due.ID}, now); err != nil {
		t.Fatalf("MarkRemindersSent() error = %v", err)
	}
	got, err = store.GetDueReminders(ctx, now.Add(2*time.Hour), 10)
	if err != nil {
		t.Fatalf("GetDueReminders() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != later.ID {
		t.Errorf("GetDueReminders() after mark = %+v, want only %s", got, later.ID)
	}
}

func TestStore_ChatHistory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.AppendChatTurns(ctx, "u1",
		database.ChatTurn{Role: "user", Text: "hi"},
		database.ChatTurn{Role: "assistant", Text: "hello"},
	); err != nil {
		t.Fatalf("AppendChatTurns() error = %v", err)
	}
	if err := store.AppendChatTurns(ctx, "u1",
		database.ChatTurn{Role: "user", Text: "is 135 high?"},
		database.ChatTurn{Role: "assistant", Text: "slightly"},
	); err != nil {
		t.Fatalf("AppendChatTurns() error = %v", err)
	}

	got, err := store.GetChatHistory(ctx, "u1", 3)
	if err != nil {
		t.Fatalf("GetChatHistory() error = %v", err)
	}
	want := []string{"hello", "is 135 high?", "slightly"}
	if len(got) != len(want) {
		t.Fatalf("GetChatHistory() len = %d, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Text != w {
			t.Errorf("turn %d = %q, want %q", i, got[i].Text, w)
		}
	}

	if err := store.DeleteChatHistory(ctx, "u1"); err != nil {
		t.Fatalf("DeleteChatHistory() error = %v", err)
	}
	got, err = store.GetChatHistory(ctx, "u1", 10)
	if err != nil || len(got) != 0 {
		t.Errorf("GetChatHistory() after delete = %v, %v", got, err)
	}
}

func TestStore_AppointmentsAndSOS(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	at := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
	second := &database.Appointment{UserID: "u1", DoctorID: "doc-1", PatientName: "Jane", ScheduledAt: at.Add(48 * time.Hour), Reason: "scan"}
	first := &database.Appointment{UserID: "u1", DoctorID: "doc-1", PatientName: "Jane", ScheduledAt: at, Reason: "checkup"}
	for _, a := range []*database.Appointment{second, first} {
		if err := store.SaveAppointment(ctx, a); err != nil {
			t.Fatalf("SaveAppointment() error = %v", err)
		}
	}

	got, err := store.GetAppointments(ctx, "u1")
	if err != nil {
		t.Fatalf("GetAppointments() error = %v", err)
	}
	if len(got) != 2 || got[0].Reason != "checkup" || got[0].Status != database.AppointmentPending {
		t.Errorf("GetAppointments() = %+v", got)
	}

	if err := store.SaveSOSEvent(ctx, &database.SOSEvent{UserID: "u1", Lat: 6.52, Lng: 3.37}); err != nil {
		t.Errorf("SaveSOSEvent() error = %v", err)
	}
}

func TestStore_RunSQLMaintenance(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	if err := store.RunSQLMaintenance(context.Background()); err != nil {
		t.Errorf("RunSQLMaintenance() error = %v", err)
	}
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
