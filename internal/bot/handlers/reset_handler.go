package handlers

import (
	"context"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const resetTimeout = 30 * time.Second

// NewResetHandler returns a handler for the /reset command, which clears
// the sender's assistant conversation.
func NewResetHandler(deps HandlerDeps) bot.HandlerFunc {
	h := resetHandler{deps}
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		h.handle(ctx, b, update)
	}
}

type resetHandler struct {
	deps HandlerDeps
}

func (h resetHandler) handle(ctx context.Context, s Sender, update *models.Update) {
	log := h.deps.Logger.With("handler", "reset")
	if update.Message == nil || update.Message.From == nil {
		log.ErrorContext(ctx, "Reset handler called with nil Message or From", "update_id", update.ID)
		return
	}
	msg := update.Message

	patient, ok := linkedPatient(ctx, h.deps, s, log, msg)
	if !ok {
		return
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, resetTimeout)
	defer cancel()

	if err := h.deps.Store.DeleteChatHistory(timeoutCtx, patient.ID); err != nil {
		log.ErrorContext(ctx, "Failed to reset chat history", "error", err, "patient_id", patient.ID)
		reply(ctx, s, log, msg.Chat.ID, h.deps.Config.Messages.GeneralError)
		return
	}

	log.InfoContext(ctx, "Chat history cleared", "patient_id", patient.ID)
	reply(ctx, s, log, msg.Chat.ID, h.deps.Config.Messages.HistoryReset)
}
