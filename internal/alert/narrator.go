package alert

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/edgard/mamabot/internal/llm"
)

const narratorInstruction = `You are a healthcare assistant for a pregnancy care service. You rewrite health alert messages so they read warmly and clearly for an expectant mother.

Rules:
- Keep every number and unit exactly as given.
- Keep the recommended action.
- If the message says a doctor has been notified, keep that sentence with the doctor's name unchanged.
- Do not add new medical claims, diagnoses, or notifications.
- Reply with the rewritten message only, at most three sentences.`

// Narrator rewrites classifier messages through a language model. The level
// and notification flag of a Result are never changed; only Message is.
// A nil *Narrator returns results unchanged.
type Narrator struct {
	client  llm.Client
	timeout time.Duration
	log     *slog.Logger
}

// NewNarrator creates a Narrator. A zero timeout means no extra deadline.
func NewNarrator(client llm.Client, timeout time.Duration, log *slog.Logger) *Narrator {
	return &Narrator{
		client:  client,
		timeout: timeout,
		log:     log.With("component", "alert_narrator"),
	}
}

// Narrate returns res with a rephrased message, or res untouched when the
// model fails or its rewrite loses required content.
func (n *Narrator) Narrate(ctx context.Context, res Result, doctorName string) Result {
	if n == nil || n.client == nil {
		return res
	}

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	resp, err := n.client.Generate(ctx, &llm.Request{
		System:   narratorInstruction,
		Messages: []llm.Message{{Role: llm.RoleUser, Text: fmt.Sprintf("Alert level: %s\nMessage: %s", res.Level, res.Message)}},
	})
	if err != nil {
		n.log.WarnContext(ctx, "Alert phrasing failed, using deterministic message", "level", res.Level, "error", err)
		return res
	}

	text := strings.TrimSpace(resp.Text)
	if reason := rejectRewrite(text, res, strings.TrimSpace(doctorName)); reason != "" {
		n.log.WarnContext(ctx, "Alert rewrite rejected, using deterministic message", "level", res.Level, "reason", reason)
		return res
	}

	res.Message = text
	return res
}

func rejectRewrite(text string, res Result, doctorName string) string {
	switch {
	case text == "":
		return "empty"
	case res.ShouldNotify && doctorName != "" && !strings.Contains(text, doctorName):
		return "clinician name dropped"
	case res.ShouldNotify && doctorName == "" && !strings.Contains(strings.ToLower(text), "notified"):
		return "notification mention dropped"
	case !res.ShouldNotify && strings.Contains(strings.ToLower(text), "notified"):
		return "notification claimed for normal reading"
	}
	for _, b := range res.Breaches {
		if !strings.Contains(text, strconv.Itoa(b.Value)) {
			return "metric value dropped"
		}
	}
	return ""
}
