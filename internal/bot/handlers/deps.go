package handlers

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/mamabot/internal/advisory"
	"github.com/edgard/mamabot/internal/config"
	"github.com/edgard/mamabot/internal/database"
	"github.com/edgard/mamabot/internal/health"
)

// HealthService is the subset of health operations reachable from chat.
type HealthService interface {
	SubmitVitals(ctx context.Context, in health.VitalsInput) (*health.VitalsOutcome, error)
	SubmitSOS(ctx context.Context, in health.SOSInput) (*database.SOSEvent, error)
	Ask(ctx context.Context, req advisory.Request) (*advisory.Response, error)
}

// ChatStore links Telegram senders to patients and keeps their conversation.
type ChatStore interface {
	GetPatientByTelegramID(ctx context.Context, telegramUserID int64) (*database.Patient, error)
	AppendChatTurns(ctx context.Context, userID string, turns ...database.ChatTurn) error
	GetChatHistory(ctx context.Context, userID string, limit int) ([]database.ChatTurn, error)
	DeleteChatHistory(ctx context.Context, userID string) error
}

// Sender is the part of the Telegram API the handlers reply through. *bot.Bot implements it.
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendChatAction(ctx context.Context, params *bot.SendChatActionParams) (bool, error)
}

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger *slog.Logger
	Config *config.Config
	Store  ChatStore
	Health HealthService
}
