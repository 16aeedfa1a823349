package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/samber/lo"

	"github.com/edgard/mamabot/internal/database"
)

// MessageSender is the part of *bot.Bot used to deliver messages.
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramNotifier sends alerts and SOS notices to the assigned doctor's chat
// and, when set, a fallback care-team chat. Reminders go to the patient directly.
type TelegramNotifier struct {
	sender         MessageSender
	fallbackChatID int64
	log            *slog.Logger
}

// NewTelegramNotifier creates a TelegramNotifier. fallbackChatID 0 disables the fallback chat.
func NewTelegramNotifier(sender MessageSender, fallbackChatID int64, log *slog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		sender:         sender,
		fallbackChatID: fallbackChatID,
		log:            log.With("component", "notify_telegram"),
	}
}

func (t *TelegramNotifier) NotifyAlert(ctx context.Context, n AlertNotice) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s (%s)\n", strings.ToUpper(string(n.Alert.Level)), patientName(n.Patient, n.UserID), n.UserID)
	sb.WriteString(n.Alert.Message)
	if !n.Vitals.Timestamp.IsZero() {
		fmt.Fprintf(&sb, "\nRecorded at %s", n.Vitals.Timestamp.UTC().Format("2006-01-02 15:04 MST"))
	}
	return t.broadcast(ctx, t.careTeamChats(n.Doctor), sb.String())
}

func (t *TelegramNotifier) NotifySOS(ctx context.Context, n SOSNotice) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SOS from %s (%s)\n", patientName(n.Patient, n.UserID), n.UserID)
	fmt.Fprintf(&sb, "Location: https://maps.google.com/?q=%.6f,%.6f", n.Event.Lat, n.Event.Lng)
	if n.Event.Note != "" {
		fmt.Fprintf(&sb, "\nNote: %s", n.Event.Note)
	}
	return t.broadcast(ctx, t.careTeamChats(n.Doctor), sb.String())
}

func (t *TelegramNotifier) NotifyReminder(ctx context.Context, n ReminderNotice) error {
	if n.Patient == nil || n.Patient.TelegramUserID == 0 {
		t.log.DebugContext(ctx, "Patient has no linked Telegram account, skipping reminder", "reminder_id", n.Reminder.ID)
		return nil
	}

	text := "Reminder: " + n.Reminder.Title
	if n.Reminder.Note != "" {
		text += "\n" + n.Reminder.Note
	}
	return t.broadcast(ctx, []int64{n.Patient.TelegramUserID}, text)
}

func (t *TelegramNotifier) careTeamChats(doctor *database.Doctor) []int64 {
	var chats []int64
	if doctor != nil && doctor.TelegramChatID != 0 {
		chats = append(chats, doctor.TelegramChatID)
	}
	if t.fallbackChatID != 0 {
		chats = append(chats, t.fallbackChatID)
	}
	return lo.Uniq(chats)
}

func (t *TelegramNotifier) broadcast(ctx context.Context, chats []int64, text string) error {
	if len(chats) == 0 {
		t.log.DebugContext(ctx, "No Telegram chat to notify")
		return nil
	}

	var errs []error
	for _, chatID := range chats {
		if _, err := t.sender.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
			t.log.ErrorContext(ctx, "Failed to send Telegram notification", "chat_id", chatID, "error", err)
			errs = append(errs, fmt.Errorf("telegram chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}
