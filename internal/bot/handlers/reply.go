package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/mamabot/internal/database"
	"github.com/edgard/mamabot/internal/errs"
)

func reply(ctx context.Context, s Sender, log *slog.Logger, chatID int64, text string) {
	if _, err := s.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		log.ErrorContext(ctx, "Failed to send message", "error", err, "chat_id", chatID)
	}
}

// withBotName substitutes the @botname placeholder once the bot identity is known.
func withBotName(deps HandlerDeps, text string) string {
	if info := deps.Config.Telegram.BotInfo; info != nil && info.Username != "" {
		return strings.ReplaceAll(text, "@botname", "@"+info.Username)
	}
	return text
}

// linkedPatient resolves the patient behind msg. It replies and returns false
// when the sender is not linked or the lookup fails.
func linkedPatient(ctx context.Context, deps HandlerDeps, s Sender, log *slog.Logger, msg *models.Message) (*database.Patient, bool) {
	patient, err := deps.Store.GetPatientByTelegramID(ctx, msg.From.ID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to resolve patient", "error", err, "user_id", msg.From.ID)
		reply(ctx, s, log, msg.Chat.ID, deps.Config.Messages.GeneralError)
		return nil, false
	}
	if patient == nil {
		log.InfoContext(ctx, "Message from unlinked sender", "user_id", msg.From.ID)
		reply(ctx, s, log, msg.Chat.ID, deps.Config.Messages.NotLinked)
		return nil, false
	}
	return patient, true
}

// errorText renders err for a chat reply. Validation details are listed,
// internal causes are replaced by the generic message.
func errorText(deps HandlerDeps, err error) string {
	appErr, ok := errs.As(err)
	if !ok || appErr.Kind() != errs.KindValidation {
		return deps.Config.Messages.GeneralError
	}

	var sb strings.Builder
	sb.WriteString(appErr.Message())
	for _, d := range appErr.Details() {
		if d.Message != "" {
			fmt.Fprintf(&sb, "\n- %s", d.Message)
		} else {
			fmt.Fprintf(&sb, "\n- %s (%s)", d.Field, d.Constraint)
		}
	}
	return sb.String()
}
