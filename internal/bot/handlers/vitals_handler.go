package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/mamabot/internal/health"
)

const vitalsTimeout = 2 * time.Minute

var errVitalsUsage = errors.New("invalid /vitals arguments")

// NewVitalsHandler returns a handler for /vitals <sys> <sugar> [dia] [weight] [hr].
func NewVitalsHandler(deps HandlerDeps) bot.HandlerFunc {
	h := vitalsHandler{deps}
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		h.handle(ctx, b, update)
	}
}

type vitalsHandler struct {
	deps HandlerDeps
}

func (h vitalsHandler) handle(ctx context.Context, s Sender, update *models.Update) {
	log := h.deps.Logger.With("handler", "vitals")
	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Vitals handler received update with nil message or sender", "update_id", update.ID)
		return
	}
	msg := update.Message

	patient, ok := linkedPatient(ctx, h.deps, s, log, msg)
	if !ok {
		return
	}

	in, err := parseVitalsArgs(msg.Text)
	if err != nil {
		log.DebugContext(ctx, "Rejected /vitals arguments", "error", err, "chat_id", msg.Chat.ID)
		reply(ctx, s, log, msg.Chat.ID, h.deps.Config.Messages.VitalsUsage)
		return
	}
	in.UserID = patient.ID
	ts := time.Unix(int64(msg.Date), 0).UTC()
	if msg.Date > 0 {
		in.Timestamp = &ts
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, vitalsTimeout)
	defer cancel()

	out, err := h.deps.Health.SubmitVitals(timeoutCtx, in)
	if err != nil {
		log.WarnContext(ctx, "Vitals submission failed", "error", err, "patient_id", patient.ID)
		reply(ctx, s, log, msg.Chat.ID, errorText(h.deps, err))
		return
	}

	log.InfoContext(ctx, "Vitals recorded", "patient_id", patient.ID, "level", out.Alert.Level)
	reply(ctx, s, log, msg.Chat.ID, out.Alert.Message)
}

// parseVitalsArgs reads "/vitals <sys> <sugar> [dia] [weight] [hr]".
// Range checks are left to the health service.
func parseVitalsArgs(text string) (health.VitalsInput, error) {
	var in health.VitalsInput

	fields := strings.Fields(text)
	if len(fields) > 0 && strings.HasPrefix(fields[0], "/") {
		fields = fields[1:]
	}
	if len(fields) < 2 || len(fields) > 5 {
		return in, fmt.Errorf("%w: expected 2 to 5 values, got %d", errVitalsUsage, len(fields))
	}

	var err error
	if in.SystolicBP, err = parseWhole("systolic", fields[0]); err != nil {
		return in, err
	}
	if in.SugarLevel, err = parseWhole("sugar", fields[1]); err != nil {
		return in, err
	}
	if len(fields) > 2 {
		if in.DiastolicBP, err = parseWhole("diastolic", fields[2]); err != nil {
			return in, err
		}
	}
	if len(fields) > 3 {
		w, err := strconv.ParseFloat(strings.ReplaceAll(fields[3], ",", "."), 64)
		if err != nil {
			return in, fmt.Errorf("%w: weight %q is not a number", errVitalsUsage, fields[3])
		}
		in.Weight = &w
	}
	if len(fields) > 4 {
		if in.HeartRate, err = parseWhole("heart rate", fields[4]); err != nil {
			return in, err
		}
	}
	return in, nil
}

func parseWhole(name, raw string) (*int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q is not a whole number", errVitalsUsage, name, raw)
	}
	return &n, nil
}
