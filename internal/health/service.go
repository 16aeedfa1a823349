// Package health implements the patient-facing operations: vitals submission
// with alerting, assistant questions, appointments, reminders, and SOS.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/edgard/mamabot/internal/advisory"
	"github.com/edgard/mamabot/internal/alert"
	"github.com/edgard/mamabot/internal/database"
	"github.com/edgard/mamabot/internal/errs"
	"github.com/edgard/mamabot/internal/logger"
	"github.com/edgard/mamabot/internal/notify"
)

// Store is the persistence the service needs.
type Store interface {
	Ping(ctx context.Context) error
	SavePatient(ctx context.Context, patient *database.Patient) error
	GetPatient(ctx context.Context, id string) (*database.Patient, error)
	SaveDoctor(ctx context.Context, doctor *database.Doctor) error
	GetDoctor(ctx context.Context, id string) (*database.Doctor, error)
	SaveVitals(ctx context.Context, vitals *database.VitalsSnapshot) error
	GetRecentVitals(ctx context.Context, userID string, limit int) ([]database.VitalsSnapshot, error)
	SaveAppointment(ctx context.Context, appointment *database.Appointment) error
	GetAppointments(ctx context.Context, userID string) ([]database.Appointment, error)
	SaveReminder(ctx context.Context, reminder *database.Reminder) error
	SaveSOSEvent(ctx context.Context, event *database.SOSEvent) error
}

// Advisor answers patient questions.
type Advisor interface {
	AnswerQuestion(ctx context.Context, req advisory.Request) (*advisory.Response, error)
}

// Phraser rewrites alert messages. *alert.Narrator satisfies it, including a nil one.
type Phraser interface {
	Narrate(ctx context.Context, res alert.Result, doctorName string) alert.Result
}

// Deps holds the collaborators of a Service.
type Deps struct {
	Store           Store
	Advisor         Advisor
	Phraser         Phraser // optional
	Notifier        notify.Notifier
	DispatchTimeout time.Duration
	Logger          *slog.Logger
}

// Service implements the health operations. It is safe for concurrent use.
type Service struct {
	store           Store
	advisor         Advisor
	phraser         Phraser
	notifier        notify.Notifier
	dispatchTimeout time.Duration
	validate        *validator.Validate
	log             *slog.Logger

	dispatches sync.WaitGroup
}

// DefaultDispatchTimeout bounds one background notification dispatch.
const DefaultDispatchTimeout = 30 * time.Second

// New creates a Service.
func New(deps Deps) *Service {
	log := deps.Logger
	if log == nil {
		log = logger.Discard()
	}
	timeout := deps.DispatchTimeout
	if timeout <= 0 {
		timeout = DefaultDispatchTimeout
	}
	return &Service{
		store:           deps.Store,
		advisor:         deps.Advisor,
		phraser:         deps.Phraser,
		notifier:        deps.Notifier,
		dispatchTimeout: timeout,
		validate:        newValidator(),
		log:             log.With("component", "health_service"),
	}
}

// Ping reports whether the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Wait blocks until all in-flight notification dispatches finish.
func (s *Service) Wait() {
	s.dispatches.Wait()
}

// SubmitVitals validates in, classifies it, dispatches a notice when the
// result calls for one, and stores the snapshot.
func (s *Service) SubmitVitals(ctx context.Context, in VitalsInput) (*VitalsOutcome, error) {
	trim(&in.UserID)
	if err := s.check(in); err != nil {
		return nil, err
	}

	patient, doctor := s.resolveCareTeam(ctx, in.UserID)
	userName, doctorName := "", ""
	if patient != nil {
		userName = patient.Name
	}
	if doctor != nil {
		doctorName = doctor.Name
	}

	res := alert.Classify(*in.SystolicBP, *in.SugarLevel, userName, doctorName)
	if s.phraser != nil {
		res = s.phraser.Narrate(ctx, res, doctorName)
	}

	snapshot := database.VitalsSnapshot{
		UserID:      in.UserID,
		Timestamp:   time.Now().UTC(),
		SystolicBP:  *in.SystolicBP,
		DiastolicBP: in.DiastolicBP,
		SugarLevel:  *in.SugarLevel,
		Weight:      in.Weight,
		HeartRate:   in.HeartRate,
		AlertLevel:  string(res.Level),
	}
	if in.Timestamp != nil && !in.Timestamp.IsZero() {
		snapshot.Timestamp = in.Timestamp.UTC()
	}

	if res.ShouldNotify {
		notice := notify.AlertNotice{UserID: in.UserID, Patient: patient, Doctor: doctor, Alert: res, Vitals: snapshot}
		s.dispatch(ctx, "alert", func(ctx context.Context) error {
			return s.notifier.NotifyAlert(ctx, notice)
		})
	}

	if err := s.store.SaveVitals(ctx, &snapshot); err != nil {
		s.log.ErrorContext(ctx, "Failed to store vitals", "user_id", in.UserID, "error", err)
		return nil, errs.NewInternalError(errs.GenericMessage, err)
	}

	s.log.InfoContext(ctx, "Vitals recorded", "user_id", in.UserID, "level", res.Level, "notify", res.ShouldNotify)
	return &VitalsOutcome{Alert: res, Vitals: snapshot}, nil
}

// Ask forwards a question to the advisory gateway.
func (s *Service) Ask(ctx context.Context, req advisory.Request) (*advisory.Response, error) {
	return s.advisor.AnswerQuestion(ctx, req)
}

// SubmitAppointment books an appointment with an existing doctor.
func (s *Service) SubmitAppointment(ctx context.Context, in AppointmentInput) (*database.Appointment, error) {
	trim(&in.UserID, &in.DoctorID, &in.PatientName, &in.Reason)
	if err := s.check(in); err != nil {
		return nil, err
	}

	doctor, err := s.store.GetDoctor(ctx, in.DoctorID)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to look up doctor", "doctor_id", in.DoctorID, "error", err)
		return nil, errs.NewInternalError(errs.GenericMessage, err)
	}
	if doctor == nil {
		return nil, validationIssue("doctorId", "exists", fmt.Sprintf("doctor %s does not exist", in.DoctorID))
	}

	appt := &database.Appointment{
		UserID:      in.UserID,
		DoctorID:    in.DoctorID,
		PatientName: in.PatientName,
		ScheduledAt: in.ScheduledAt.UTC(),
		Reason:      in.Reason,
		Status:      in.Status,
	}
	if err := s.store.SaveAppointment(ctx, appt); err != nil {
		return nil, errs.NewInternalError(errs.GenericMessage, err)
	}
	return appt, nil
}

// SubmitSOS stores an emergency event and alerts the care team.
func (s *Service) SubmitSOS(ctx context.Context, in SOSInput) (*database.SOSEvent, error) {
	trim(&in.UserID, &in.Note)
	if err := s.check(in); err != nil {
		return nil, err
	}

	event := &database.SOSEvent{UserID: in.UserID, Lat: *in.Lat, Lng: *in.Lng, Note: in.Note}
	if err := s.store.SaveSOSEvent(ctx, event); err != nil {
		s.log.ErrorContext(ctx, "Failed to store sos event", "user_id", in.UserID, "error", err)
		return nil, errs.NewInternalError(errs.GenericMessage, err)
	}

	patient, doctor := s.resolveCareTeam(ctx, in.UserID)
	notice := notify.SOSNotice{UserID: in.UserID, Patient: patient, Doctor: doctor, Event: *event}
	s.dispatch(ctx, "sos", func(ctx context.Context) error {
		return s.notifier.NotifySOS(ctx, notice)
	})
	return event, nil
}

// SubmitReminder schedules a reminder for the reminder_dispatch task.
func (s *Service) SubmitReminder(ctx context.Context, in ReminderInput) (*database.Reminder, error) {
	trim(&in.UserID, &in.Title, &in.Note)
	if err := s.check(in); err != nil {
		return nil, err
	}
	if in.Type == "" {
		in.Type = ReminderMedication
	}

	reminder := &database.Reminder{
		UserID:   in.UserID,
		Title:    in.Title,
		RemindAt: in.RemindAt.UTC(),
		Note:     in.Note,
		Type:     in.Type,
	}
	if err := s.store.SaveReminder(ctx, reminder); err != nil {
		return nil, errs.NewInternalError(errs.GenericMessage, err)
	}
	return reminder, nil
}

// MaxVitalsLimit caps RecentVitals.
const MaxVitalsLimit = 100

// RecentVitals lists a user's latest snapshots, newest first.
func (s *Service) RecentVitals(ctx context.Context, userID string, limit int) ([]database.VitalsSnapshot, error) {
	trim(&userID)
	if userID == "" {
		return nil, validationIssue("userId", "required", "userId is required")
	}
	if limit < 0 || limit > MaxVitalsLimit {
		return nil, validationIssue("limit", "range", fmt.Sprintf("limit must be between 0 and %d", MaxVitalsLimit))
	}
	if limit == 0 {
		limit = advisory.DefaultRecentVitalsLimit
	}

	vitals, err := s.store.GetRecentVitals(ctx, userID, limit)
	if err != nil {
		return nil, errs.NewInternalError(errs.GenericMessage, err)
	}
	return vitals, nil
}

// Appointments lists a user's appointments by scheduled time.
func (s *Service) Appointments(ctx context.Context, userID string) ([]database.Appointment, error) {
	trim(&userID)
	if userID == "" {
		return nil, validationIssue("userId", "required", "userId is required")
	}

	appts, err := s.store.GetAppointments(ctx, userID)
	if err != nil {
		return nil, errs.NewInternalError(errs.GenericMessage, err)
	}
	return appts, nil
}

// RegisterPatient creates or updates a patient.
func (s *Service) RegisterPatient(ctx context.Context, in PatientInput) (*database.Patient, error) {
	trim(&in.ID, &in.Name, &in.Email, &in.AssignedDoctorID)
	if err := s.check(in); err != nil {
		return nil, err
	}

	patient := &database.Patient{
		ID:               in.ID,
		Name:             in.Name,
		Email:            in.Email,
		AssignedDoctorID: in.AssignedDoctorID,
		TelegramUserID:   in.TelegramUserID,
	}
	if err := s.store.SavePatient(ctx, patient); err != nil {
		return nil, errs.NewInternalError(errs.GenericMessage, err)
	}
	return patient, nil
}

// RegisterDoctor creates or updates a doctor.
func (s *Service) RegisterDoctor(ctx context.Context, in DoctorInput) (*database.Doctor, error) {
	trim(&in.ID, &in.Name, &in.Specialty)
	if err := s.check(in); err != nil {
		return nil, err
	}

	doctor := &database.Doctor{
		ID:             in.ID,
		Name:           in.Name,
		Specialty:      in.Specialty,
		TelegramChatID: in.TelegramChatID,
	}
	if err := s.store.SaveDoctor(ctx, doctor); err != nil {
		return nil, errs.NewInternalError(errs.GenericMessage, err)
	}
	return doctor, nil
}

// resolveCareTeam loads the patient and their assigned doctor. Lookup
// failures are logged and yield nil so alerting still proceeds.
func (s *Service) resolveCareTeam(ctx context.Context, userID string) (*database.Patient, *database.Doctor) {
	patient, err := s.store.GetPatient(ctx, userID)
	if err != nil {
		s.log.WarnContext(ctx, "Failed to resolve patient", "user_id", userID, "error", err)
		return nil, nil
	}
	if patient == nil || patient.AssignedDoctorID == "" {
		return patient, nil
	}

	doctor, err := s.store.GetDoctor(ctx, patient.AssignedDoctorID)
	if err != nil {
		s.log.WarnContext(ctx, "Failed to resolve doctor", "user_id", userID, "doctor_id", patient.AssignedDoctorID, "error", err)
		return patient, nil
	}
	return patient, doctor
}

// dispatch runs fn in the background, detached from the caller's
// cancellation and bounded by the dispatch timeout.
func (s *Service) dispatch(ctx context.Context, kind string, fn func(ctx context.Context) error) {
	if s.notifier == nil {
		return
	}

	s.dispatches.Add(1)
	go func() {
		defer s.dispatches.Done()

		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.dispatchTimeout)
		defer cancel()

		if err := fn(dctx); err != nil {
			s.log.WarnContext(dctx, "Notification dispatch failed", "kind", kind, "error", err)
		}
	}()
}
