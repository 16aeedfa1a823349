package advisory_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/edgard/mamabot/internal/advisory"
	"github.com/edgard/mamabot/internal/database"
	"github.com/edgard/mamabot/internal/errs"
	"github.com/edgard/mamabot/internal/llm"
	"github.com/edgard/mamabot/internal/logger"
)

// scriptedClient replays responses in order and records every request.
type scriptedClient struct {
	mu        sync.Mutex
	responses []*llm.Response
	err       error
	requests  []*llm.Request
}

func (c *scriptedClient) Generate(_ context.Context, req *llm.Request) (*llm.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if c.err != nil {
		return nil, c.err
	}
	if len(c.responses) == 0 {
		return &llm.Response{}, nil
	}
	resp := c.responses[0]
	if len(c.responses) > 1 {
		c.responses = c.responses[1:]
	}
	return resp, nil
}

func (c *scriptedClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

type fakeRecords struct {
	vitalsCalls []string
	limit       int
	vitals      []database.VitalsSnapshot
	err         error
}

func (f *fakeRecords) GetRecentVitals(_ context.Context, userID string, limit int) ([]database.VitalsSnapshot, error) {
	f.vitalsCalls = append(f.vitalsCalls, userID)
	f.limit = limit
	return f.vitals, f.err
}

func (f *fakeRecords) GetAppointments(_ context.Context, _ string) ([]database.Appointment, error) {
	return []database.Appointment{}, f.err
}

func newGateway(client llm.Client, records advisory.RecordsSource) *advisory.Gateway {
	return advisory.NewGateway(client, records, advisory.Config{SystemInstruction: "persona"}, logger.Discard())
}

func toolCall(userID string) *llm.Response {
	return &llm.Response{Calls: []llm.FunctionCall{{ID: "c1", Name: advisory.HealthDataToolName, Args: map[string]any{"userId": userID}}}}
}

func TestAnswerQuestion_ValidationMakesNoCalls(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		req       advisory.Request
		wantField string
	}{
		{name: "whitespace question", req: advisory.Request{UserID: "u1", Question: "  "}, wantField: "question"},
		{name: "empty question", req: advisory.Request{UserID: "u1"}, wantField: "question"},
		{name: "blank user", req: advisory.Request{UserID: " \t", Question: "hello"}, wantField: "userId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client := &scriptedClient{}
			records := &fakeRecords{}

			_, err := newGateway(client, records).AnswerQuestion(context.Background(), tt.req)

			appErr, ok := errs.As(err)
			if !ok || appErr.Kind() != errs.KindValidation {
				t.Fatalf("err = %v, want validation error", err)
			}
			if len(appErr.Details()) == 0 || appErr.Details()[0].Field != tt.wantField {
				t.Errorf("details = %+v, want field %q", appErr.Details(), tt.wantField)
			}
			if client.callCount() != 0 || len(records.vitalsCalls) != 0 {
				t.Errorf("external calls made: model=%d store=%d", client.callCount(), len(records.vitalsCalls))
			}
		})
	}
}

func TestAnswerQuestion_DirectAnswer(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{responses: []*llm.Response{{Text: "  Drink water and rest.  "}}}
	records := &fakeRecords{}

	resp, err := newGateway(client, records).AnswerQuestion(context.Background(), advisory.Request{
		UserID:   "u1",
		Question: " Is mild swelling normal? ",
		History: []advisory.ChatTurn{
			{Role: advisory.RoleUser, Text: "hi"},
			{Role: advisory.RoleAssistant, Text: "Hello!"},
			{Role: advisory.RoleUser, Text: "   "},
			{Role: "system", Text: "ignored"},
		},
	})
	if err != nil {
		t.Fatalf("AnswerQuestion() error = %v", err)
	}
	if resp.Answer != "Drink water and rest." {
		t.Errorf("Answer = %q", resp.Answer)
	}
	if len(records.vitalsCalls) != 0 {
		t.Error("records fetched without a tool call")
	}

	req := client.requests[0]
	if req.System != "persona" {
		t.Errorf("System = %q", req.System)
	}
	if len(req.Tools) != 1 || req.Tools[0].Name != advisory.HealthDataToolName {
		t.Errorf("Tools = %+v", req.Tools)
	}
	if len(req.Messages) != 3 {
		t.Fatalf("Messages len = %d, want 3 (2 history + question)", len(req.Messages))
	}
	if req.Messages[1].Role != llm.RoleModel {
		t.Errorf("assistant turn role = %q, want model", req.Messages[1].Role)
	}
	last := req.Messages[2].Text
	if !strings.Contains(last, "Is mild swelling normal?") || !strings.Contains(last, "u1") {
		t.Errorf("question message = %q", last)
	}
}

func TestAnswerQuestion_ToolRoundTrip(t *testing.T) {
	t.Parallel()

	records := &fakeRecords{vitals: []database.VitalsSnapshot{{UserID: "u1", SystolicBP: 135, SugarLevel: 100, Timestamp: time.Now()}}}
	client := &scriptedClient{responses: []*llm.Response{
		toolCall("someone-else"),
		{Text: "Your last reading was 135 mmHg."},
	}}

	resp, err := newGateway(client, records).AnswerQuestion(context.Background(), advisory.Request{UserID: "u1", Question: "What was my last BP?"})
	if err != nil {
		t.Fatalf("AnswerQuestion() error = %v", err)
	}
	if resp.Answer != "Your last reading was 135 mmHg." {
		t.Errorf("Answer = %q", resp.Answer)
	}

	if len(records.vitalsCalls) != 1 || records.vitalsCalls[0] != "u1" {
		t.Errorf("vitals fetched for %v, want only the request user", records.vitalsCalls)
	}
	if records.limit != advisory.DefaultRecentVitalsLimit {
		t.Errorf("vitals limit = %d, want %d", records.limit, advisory.DefaultRecentVitalsLimit)
	}

	if client.callCount() != 2 {
		t.Fatalf("model calls = %d, want 2", client.callCount())
	}
	second := client.requests[1].Messages
	results := second[len(second)-1].Results
	if len(results) != 1 || results[0].ID != "c1" {
		t.Fatalf("tool results = %+v", results)
	}
	if _, ok := results[0].Response["vitals"]; !ok {
		t.Errorf("tool response missing vitals: %+v", results[0].Response)
	}
}

func TestAnswerQuestion_UnknownToolGetsErrorPayload(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{responses: []*llm.Response{
		{Calls: []llm.FunctionCall{{ID: "x", Name: "deleteEverything"}}},
		{Text: "Sorry, I can only look up your health data."},
	}}

	resp, err := newGateway(client, &fakeRecords{}).AnswerQuestion(context.Background(), advisory.Request{UserID: "u1", Question: "q"})
	if err != nil {
		t.Fatalf("AnswerQuestion() error = %v", err)
	}
	if resp.Answer == "" {
		t.Error("empty answer")
	}
	msgs := client.requests[1].Messages
	if _, ok := msgs[len(msgs)-1].Results[0].Response["error"]; !ok {
		t.Error("unknown tool did not produce an error payload")
	}
}

func TestAnswerQuestion_InternalFailures(t *testing.T) {
	t.Parallel()

	rawErr := errors.New("upstream exploded: secret-token-123")

	tests := []struct {
		name      string
		client    *scriptedClient
		records   *fakeRecords
		wantCalls int
	}{
		{name: "model error", client: &scriptedClient{err: rawErr}, records: &fakeRecords{}, wantCalls: 1},
		{name: "empty answer", client: &scriptedClient{responses: []*llm.Response{{Text: "   "}}}, records: &fakeRecords{}, wantCalls: 1},
		{name: "store failure", client: &scriptedClient{responses: []*llm.Response{toolCall("u1")}}, records: &fakeRecords{err: rawErr}, wantCalls: 1},
		{name: "tool loop bound", client: &scriptedClient{responses: []*llm.Response{toolCall("u1")}}, records: &fakeRecords{}, wantCalls: advisory.DefaultMaxToolRounds + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp, err := newGateway(tt.client, tt.records).AnswerQuestion(context.Background(), advisory.Request{UserID: "u1", Question: "How am I doing?"})

			if resp != nil {
				t.Errorf("resp = %+v, want nil", resp)
			}
			appErr, ok := errs.As(err)
			if !ok || appErr.Kind() != errs.KindInternal {
				t.Fatalf("err = %v, want internal error", err)
			}
			if appErr.Message() != advisory.FallbackMessage {
				t.Errorf("Message() = %q, want fallback", appErr.Message())
			}
			if strings.Contains(appErr.Message(), "secret-token-123") {
				t.Error("raw error leaked into user-facing message")
			}
			if tt.client.callCount() != tt.wantCalls {
				t.Errorf("model calls = %d, want %d", tt.client.callCount(), tt.wantCalls)
			}
		})
	}
}
