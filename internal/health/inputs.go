package health

import (
	"strings"
	"time"

	"github.com/edgard/mamabot/internal/alert"
	"github.com/edgard/mamabot/internal/database"
)

// VitalsInput is a vitals submission. Pointer fields distinguish
// missing values from zero so that required and optional fields validate correctly.
type VitalsInput struct {
	UserID      string     `json:"userId"      validate:"required"`
	SystolicBP  *int       `json:"systolicBP"  validate:"required,min=50,max=300"`
	DiastolicBP *int       `json:"diastolicBP" validate:"omitempty,min=30,max=200"`
	SugarLevel  *int       `json:"sugarLevel"  validate:"required,min=30,max=500"`
	Weight      *float64   `json:"weight"      validate:"omitempty,min=20,max=300"`
	HeartRate   *int       `json:"heartRate"   validate:"omitempty,min=30,max=250"`
	Timestamp   *time.Time `json:"timestamp"`
}

// VitalsOutcome is the result of a successful submission.
type VitalsOutcome struct {
	Alert  alert.Result            `json:"alert"`
	Vitals database.VitalsSnapshot `json:"vitals"`
}

// AppointmentInput books a visit.
type AppointmentInput struct {
	UserID      string     `json:"userId"      validate:"required"`
	DoctorID    string     `json:"doctorId"    validate:"required"`
	PatientName string     `json:"patientName" validate:"required,max=200"`
	ScheduledAt *time.Time `json:"scheduledAt" validate:"required"`
	Reason      string     `json:"reason"      validate:"max=1000"`
	Status      string     `json:"status"      validate:"omitempty,oneof=pending confirmed cancelled"`
}

// SOSInput raises an emergency at a location.
type SOSInput struct {
	UserID string   `json:"userId" validate:"required"`
	Lat    *float64 `json:"lat"    validate:"required,min=-90,max=90"`
	Lng    *float64 `json:"lng"    validate:"required,min=-180,max=180"`
	Note   string   `json:"note"   validate:"max=1000"`
}

// Reminder types.
const (
	ReminderMedication  = "medication"
	ReminderVaccination = "vaccination"
	ReminderOther       = "other"
)

// ReminderInput schedules a reminder.
type ReminderInput struct {
	UserID   string     `json:"userId"   validate:"required"`
	Title    string     `json:"title"    validate:"required,min=1,max=200"`
	RemindAt *time.Time `json:"remindAt" validate:"required"`
	Note     string     `json:"note"     validate:"max=1000"`
	Type     string     `json:"type"     validate:"omitempty,oneof=medication vaccination other"`
}

// PatientInput registers or updates a patient.
type PatientInput struct {
	ID               string `json:"id"               validate:"max=64"`
	Name             string `json:"name"             validate:"required,max=200"`
	Email            string `json:"email"            validate:"omitempty,email"`
	AssignedDoctorID string `json:"assignedDoctorId" validate:"max=64"`
	TelegramUserID   int64  `json:"telegramUserId"   validate:"min=0"`
}

// DoctorInput registers or updates a doctor.
type DoctorInput struct {
	ID             string `json:"id"             validate:"max=64"`
	Name           string `json:"name"           validate:"required,max=200"`
	Specialty      string `json:"specialty"      validate:"max=200"`
	TelegramChatID int64  `json:"telegramChatId"`
}

func trim(fields ...*string) {
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
}
