package database

import (
	"database/sql"
	"time"
)

// Patient is a registered mother. UserID values across the system refer to Patient.ID.
type Patient struct {
	ID        string    `db:"id"         json:"id"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`

	Name             string `db:"name"               json:"name"`
	Email            string `db:"email"              json:"email"`
	AssignedDoctorID string `db:"assigned_doctor_id" json:"assignedDoctorId"`
	TelegramUserID   int64  `db:"telegram_user_id"   json:"telegramUserId,omitempty"` // 0 when not linked
}

// Doctor is a clinician that patients are assigned to.
type Doctor struct {
	ID        string    `db:"id"         json:"id"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`

	Name           string `db:"name"             json:"name"`
	Specialty      string `db:"specialty"        json:"specialty"`
	TelegramChatID int64  `db:"telegram_chat_id" json:"telegramChatId,omitempty"`
}

// VitalsSnapshot is one recorded measurement event. Snapshots are never
// updated, only superseded by newer ones for the same user.
type VitalsSnapshot struct {
	ID        string    `db:"id"         json:"id"`
	CreatedAt time.Time `db:"created_at" json:"-"`

	UserID      string    `db:"user_id"     json:"userId"`
	Timestamp   time.Time `db:"timestamp"   json:"timestamp"`
	SystolicBP  int       `db:"systolic"    json:"systolicBP"`
	DiastolicBP *int      `db:"diastolic"   json:"diastolicBP,omitempty"`
	SugarLevel  int       `db:"sugar_level" json:"sugarLevel"`
	Weight      *float64  `db:"weight"      json:"weight,omitempty"`
	HeartRate   *int      `db:"heart_rate"  json:"heartRate,omitempty"`
	AlertLevel  string    `db:"alert_level" json:"alertLevel"`
}

// Appointment statuses.
const (
	AppointmentPending   = "pending"
	AppointmentConfirmed = "confirmed"
	AppointmentCancelled = "cancelled"
)

// Appointment is a scheduled visit with a doctor.
type Appointment struct {
	ID        string    `db:"id"         json:"id"`
	CreatedAt time.Time `db:"created_at" json:"-"`

	UserID      string    `db:"user_id"      json:"userId"`
	DoctorID    string    `db:"doctor_id"    json:"doctorId"`
	PatientName string    `db:"patient_name" json:"patientName"`
	ScheduledAt time.Time `db:"scheduled_at" json:"scheduledAt"`
	Reason      string    `db:"reason"       json:"reason"`
	Status      string    `db:"status"       json:"status"`
}

// Reminder is a medication or vaccination reminder delivered by the scheduler.
type Reminder struct {
	ID        string    `db:"id"         json:"id"`
	CreatedAt time.Time `db:"created_at" json:"-"`

	UserID   string       `db:"user_id"   json:"userId"`
	Title    string       `db:"title"     json:"title"`
	RemindAt time.Time    `db:"remind_at" json:"remindAt"`
	Note     string       `db:"note"      json:"note,omitempty"`
	Type     string       `db:"type"      json:"type"`
	SentAt   sql.NullTime `db:"sent_at"   json:"-"`
}

// SOSEvent is an emergency request raised by a patient.
type SOSEvent struct {
	ID        string    `db:"id"         json:"id"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`

	UserID string  `db:"user_id" json:"userId"`
	Lat    float64 `db:"lat"     json:"lat"`
	Lng    float64 `db:"lng"     json:"lng"`
	Note   string  `db:"note"    json:"note,omitempty"`
}

// ChatTurn is one stored message of a patient's assistant conversation.
type ChatTurn struct {
	ID        string    `db:"id"         json:"-"`
	CreatedAt time.Time `db:"created_at" json:"-"`

	UserID string `db:"user_id" json:"-"`
	Role   string `db:"role"    json:"role"`
	Text   string `db:"text"    json:"text"`
	Seq    int64  `db:"seq"     json:"-"` // insertion order within a user's history
}
