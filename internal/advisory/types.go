// Package advisory answers patient questions through a text-generation
// service, letting the model fetch the patient's own records through a
// declared tool.
package advisory

import (
	"context"

	"github.com/edgard/mamabot/internal/database"
	"github.com/edgard/mamabot/internal/errs"
)

// Role identifies the author of a ChatTurn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatTurn is one message of prior conversation, oldest first.
type ChatTurn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Request is a question from a patient.
type Request struct {
	UserID   string     `json:"userId"`
	Question string     `json:"question"`
	History  []ChatTurn `json:"history"`
}

// Response is the assistant's answer.
type Response struct {
	Answer string `json:"answer"`
}

// RecordsSource is the read-only view of patient records the health data tool uses.
type RecordsSource interface {
	GetRecentVitals(ctx context.Context, userID string, limit int) ([]database.VitalsSnapshot, error)
	GetAppointments(ctx context.Context, userID string) ([]database.Appointment, error)
}

// Config tunes the gateway.
type Config struct {
	SystemInstruction string
	RecentVitalsLimit int
	MaxToolRounds     int
}

// Defaults applied when Config fields are zero.
const (
	DefaultRecentVitalsLimit = 15
	DefaultMaxToolRounds     = 3
)

// FallbackMessage is the only text shown to users when answering fails.
const FallbackMessage = errs.GenericMessage
