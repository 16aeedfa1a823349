package advisory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/lo"

	"github.com/edgard/mamabot/internal/errs"
	"github.com/edgard/mamabot/internal/llm"
)

// Gateway brokers questions between patients and the text-generation service.
// It holds no per-request state and is safe for concurrent use.
type Gateway struct {
	client  llm.Client
	records RecordsSource
	cfg     Config
	log     *slog.Logger
}

// NewGateway creates a Gateway. Zero limits take package defaults.
func NewGateway(client llm.Client, records RecordsSource, cfg Config, log *slog.Logger) *Gateway {
	if cfg.RecentVitalsLimit <= 0 {
		cfg.RecentVitalsLimit = DefaultRecentVitalsLimit
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = DefaultMaxToolRounds
	}
	return &Gateway{
		client:  client,
		records: records,
		cfg:     cfg,
		log:     log.With("component", "advisory_gateway"),
	}
}

var errToolRoundsExceeded = errors.New("tool call limit exceeded")

// AnswerQuestion validates req, runs the model with the health data tool
// available, and returns its answer. Failures are either validation errors,
// returned before any model call, or internal errors carrying FallbackMessage.
func (g *Gateway) AnswerQuestion(ctx context.Context, req Request) (*Response, error) {
	userID := strings.TrimSpace(req.UserID)
	question := strings.TrimSpace(req.Question)
	if err := validateRequest(userID, question); err != nil {
		return nil, err
	}

	log := g.log.With("user_id", userID)
	messages := buildMessages(req.History, userID, question)

	for round := 0; ; round++ {
		resp, err := g.client.Generate(ctx, &llm.Request{
			System:   g.cfg.SystemInstruction,
			Messages: messages,
			Tools:    []llm.Tool{healthDataTool},
		})
		if err != nil {
			log.ErrorContext(ctx, "Model call failed", "round", round, "error", err)
			return nil, errs.NewInternalError(FallbackMessage, err)
		}

		if len(resp.Calls) == 0 {
			answer := strings.TrimSpace(resp.Text)
			if answer == "" {
				log.ErrorContext(ctx, "Model returned no answer", "round", round)
				return nil, errs.NewInternalError(FallbackMessage, errors.New("model returned empty answer"))
			}
			log.DebugContext(ctx, "Question answered", "tool_rounds", round, "answer_length", len(answer))
			return &Response{Answer: answer}, nil
		}

		if round >= g.cfg.MaxToolRounds {
			log.ErrorContext(ctx, "Model exceeded tool call limit", "max_tool_rounds", g.cfg.MaxToolRounds)
			return nil, errs.NewInternalError(FallbackMessage, errToolRoundsExceeded)
		}

		results := make([]llm.FunctionResult, 0, len(resp.Calls))
		for _, call := range resp.Calls {
			res, err := g.runTool(ctx, userID, call)
			if err != nil {
				log.ErrorContext(ctx, "Tool execution failed", "tool", call.Name, "error", err)
				return nil, errs.NewInternalError(FallbackMessage, err)
			}
			results = append(results, res)
		}

		messages = append(messages,
			llm.Message{Role: llm.RoleModel, Text: resp.Text, Calls: resp.Calls},
			llm.Message{Role: llm.RoleUser, Results: results},
		)
	}
}

func validateRequest(userID, question string) error {
	var issues []errs.FieldIssue
	if userID == "" {
		issues = append(issues, errs.FieldIssue{Field: "userId", Constraint: "required", Message: "userId must not be empty"})
	}
	if question == "" {
		issues = append(issues, errs.FieldIssue{Field: "question", Constraint: "required", Message: "question must not be empty"})
	}
	if len(issues) > 0 {
		return errs.NewValidationError("invalid chat request", issues...)
	}
	return nil
}

// buildMessages converts history to model messages, oldest first, and appends
// the new question. Blank turns and unknown roles are dropped.
func buildMessages(history []ChatTurn, userID, question string) []llm.Message {
	kept := lo.Filter(history, func(turn ChatTurn, _ int) bool {
		return strings.TrimSpace(turn.Text) != "" && (turn.Role == RoleUser || turn.Role == RoleAssistant)
	})

	messages := lo.Map(kept, func(turn ChatTurn, _ int) llm.Message {
		role := llm.RoleUser
		if turn.Role == RoleAssistant {
			role = llm.RoleModel
		}
		return llm.Message{Role: role, Text: turn.Text}
	})

	return append(messages, llm.Message{
		Role: llm.RoleUser,
		Text: fmt.Sprintf("Here is my question: %s\nMy user ID is: %s", question, userID),
	})
}
