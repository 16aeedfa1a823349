package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/samber/lo"

	"github.com/edgard/mamabot/internal/advisory"
	"github.com/edgard/mamabot/internal/database"
	"github.com/edgard/mamabot/internal/health"
)

const (
	aiProcessingTimeout = 2 * time.Minute
	dbSaveTimeout       = 5 * time.Second
)

// NewMessageHandler returns the default handler. Locations raise an SOS,
// other text is answered by the assistant.
func NewMessageHandler(deps HandlerDeps) bot.HandlerFunc {
	h := messageHandler{deps}
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		h.handle(ctx, b, update)
	}
}

type messageHandler struct {
	deps HandlerDeps
}

func (h messageHandler) handle(ctx context.Context, s Sender, update *models.Update) {
	log := h.deps.Logger.With("handler", "message")

	msg := update.Message
	if msg == nil || msg.From == nil {
		log.DebugContext(ctx, "Ignoring update without message or sender", "update_id", update.ID)
		return
	}

	switch {
	case msg.Location != nil:
		h.handleLocation(ctx, s, msg)
	case strings.HasPrefix(strings.TrimSpace(msg.Text), "/"):
		log.DebugContext(ctx, "Unknown command", "chat_id", msg.Chat.ID)
		reply(ctx, s, log, msg.Chat.ID, withBotName(h.deps, h.deps.Config.Messages.Help))
	case strings.TrimSpace(msg.Text) != "":
		h.handleQuestion(ctx, s, msg)
	default:
		log.DebugContext(ctx, "Ignoring message without text or location", "chat_id", msg.Chat.ID)
	}
}

func (h messageHandler) handleLocation(ctx context.Context, s Sender, msg *models.Message) {
	log := h.deps.Logger.With("handler", "sos")

	patient, ok := linkedPatient(ctx, h.deps, s, log, msg)
	if !ok {
		return
	}

	lat, lng := msg.Location.Latitude, msg.Location.Longitude
	event, err := h.deps.Health.SubmitSOS(ctx, health.SOSInput{UserID: patient.ID, Lat: &lat, Lng: &lng})
	if err != nil {
		log.ErrorContext(ctx, "SOS submission failed", "error", err, "patient_id", patient.ID)
		reply(ctx, s, log, msg.Chat.ID, errorText(h.deps, err))
		return
	}

	log.WarnContext(ctx, "SOS raised from Telegram", "patient_id", patient.ID, "sos_id", event.ID)
	reply(ctx, s, log, msg.Chat.ID, h.deps.Config.Messages.SOSReceived)
}

func (h messageHandler) handleQuestion(ctx context.Context, s Sender, msg *models.Message) {
	log := h.deps.Logger.With("handler", "question")
	chatID := msg.Chat.ID

	patient, ok := linkedPatient(ctx, h.deps, s, log, msg)
	if !ok {
		return
	}

	if _, err := s.SendChatAction(ctx, &bot.SendChatActionParams{ChatID: chatID, Action: models.ChatActionTyping}); err != nil {
		log.WarnContext(ctx, "Failed to send typing action", "error", err, "chat_id", chatID)
	}

	question := strings.TrimSpace(msg.Text)
	history := h.history(ctx, patient.ID)

	aiCtx, cancel := context.WithTimeout(ctx, aiProcessingTimeout)
	defer cancel()

	resp, err := h.deps.Health.Ask(aiCtx, advisory.Request{UserID: patient.ID, Question: question, History: history})
	if err != nil {
		log.ErrorContext(ctx, "Assistant request failed", "error", err, "patient_id", patient.ID)
		reply(ctx, s, log, chatID, errorText(h.deps, err))
		return
	}

	reply(ctx, s, log, chatID, resp.Answer)

	saveCtx, saveCancel := context.WithTimeout(context.WithoutCancel(ctx), dbSaveTimeout)
	defer saveCancel()
	err = h.deps.Store.AppendChatTurns(saveCtx, patient.ID,
		database.ChatTurn{Role: string(advisory.RoleUser), Text: question},
		database.ChatTurn{Role: string(advisory.RoleAssistant), Text: resp.Answer},
	)
	if err != nil {
		log.ErrorContext(ctx, "Failed to store chat turns", "error", err, "patient_id", patient.ID)
	}
}

// history loads the stored conversation, oldest first. A failed load
// degrades to an empty history.
func (h messageHandler) history(ctx context.Context, patientID string) []advisory.ChatTurn {
	limit := h.deps.Config.Advisory.HistoryLimit
	if limit <= 0 {
		return nil
	}

	turns, err := h.deps.Store.GetChatHistory(ctx, patientID, limit)
	if err != nil {
		h.deps.Logger.WarnContext(ctx, "Failed to load chat history, continuing without it", "error", err, "patient_id", patientID)
		return nil
	}
	return lo.Map(turns, func(t database.ChatTurn, _ int) advisory.ChatTurn {
		return advisory.ChatTurn{Role: advisory.Role(t.Role), Text: t.Text}
	})
}
