// Package openai implements the llm.Client contract on the OpenAI chat completions API
// and any compatible endpoint reachable through a custom base URL.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gopenai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/edgard/mamabot/internal/llm"
)

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req gopenai.ChatCompletionRequest) (gopenai.ChatCompletionResponse, error)
}

type chatClient struct {
	api         chatCompleter
	log         *slog.Logger
	model       string
	temperature float32
	maxRetries  int
	retryDelay  time.Duration
}

// NewClient creates a new OpenAI client with the provided settings.
func NewClient(s llm.Settings, log *slog.Logger) (llm.Client, error) {
	if s.APIKey == "" {
		return nil, errors.New("openai API key is required")
	}

	aiConfig := gopenai.DefaultConfig(s.APIKey)
	if s.BaseURL != "" {
		aiConfig.BaseURL = s.BaseURL
	}

	logger := log.With("component", "openai_client")
	logger.Info("OpenAI client initialized successfully", "model", s.ModelName)
	return newClient(gopenai.NewClientWithConfig(aiConfig), s, logger), nil
}

func newClient(api chatCompleter, s llm.Settings, log *slog.Logger) *chatClient {
	return &chatClient{
		api:         api,
		log:         log,
		model:       s.ModelName,
		temperature: s.Temperature,
		maxRetries:  s.MaxRetries,
		retryDelay:  time.Duration(s.RetryDelaySeconds) * time.Second,
	}
}

// Generate sends req as a chat completion and returns either the answer text or the requested tool calls.
func (c *chatClient) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}

	messages, err := toMessages(req.System, req.Messages)
	if err != nil {
		return nil, err
	}

	temperature := c.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	chatReq := gopenai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Tools:       toTools(req.Tools),
		Temperature: temperature,
	}

	c.log.DebugContext(ctx, "Generating chat completion", "message_count", len(messages), "tool_count", len(chatReq.Tools))

	resp, err := c.createWithRetries(ctx, chatReq)
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New("openai returned no choices")
	}
	msg := resp.Choices[0].Message

	if len(msg.ToolCalls) > 0 {
		calls, err := fromToolCalls(msg.ToolCalls)
		if err != nil {
			c.log.ErrorContext(ctx, "Malformed tool call arguments from OpenAI", "error", err)
			return nil, err
		}
		return &llm.Response{Calls: calls}, nil
	}

	text := strings.TrimSpace(msg.Content)
	if text == "" {
		c.log.WarnContext(ctx, "OpenAI response text is empty", "finish_reason", resp.Choices[0].FinishReason)
		return nil, fmt.Errorf("openai returned empty content, finish reason: %s", resp.Choices[0].FinishReason)
	}
	return &llm.Response{Text: text}, nil
}

func (c *chatClient) createWithRetries(ctx context.Context, req gopenai.ChatCompletionRequest) (gopenai.ChatCompletionResponse, error) {
	var resp gopenai.ChatCompletionResponse
	var err error

	for i := 0; i <= c.maxRetries; i++ {
		resp, err = c.api.CreateChatCompletion(ctx, req)
		if err == nil {
			return resp, nil
		}

		c.log.WarnContext(ctx, "OpenAI API call failed, checking for retry", "attempt", i+1, "max_retries", c.maxRetries, "error", err)

		var apiErr *gopenai.APIError
		if errors.As(err, &apiErr) && retriable(apiErr.HTTPStatusCode) {
			if i < c.maxRetries {
				select {
				case <-ctx.Done():
					return resp, fmt.Errorf("openai retry aborted: %w", ctx.Err())
				case <-time.After(c.retryDelay):
				}
				continue
			}
			return resp, fmt.Errorf("openai API call failed after %d retries (status %d): %w", c.maxRetries, apiErr.HTTPStatusCode, err)
		}

		return resp, fmt.Errorf("openai API call failed: %w", err)
	}
	return resp, err
}

func retriable(status int) bool {
	return status == 429 || status == 500 || status == 503
}

func toMessages(system string, messages []llm.Message) ([]gopenai.ChatCompletionMessage, error) {
	out := make([]gopenai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		out = append(out, gopenai.ChatCompletionMessage{Role: gopenai.ChatMessageRoleSystem, Content: system})
	}

	for _, m := range messages {
		if m.Role == llm.RoleModel {
			msg := gopenai.ChatCompletionMessage{Role: gopenai.ChatMessageRoleAssistant, Content: m.Text}
			for _, call := range m.Calls {
				args, err := json.Marshal(call.Args)
				if err != nil {
					return nil, fmt.Errorf("failed to encode tool call arguments: %w", err)
				}
				msg.ToolCalls = append(msg.ToolCalls, gopenai.ToolCall{
					ID:       call.ID,
					Type:     gopenai.ToolTypeFunction,
					Function: gopenai.FunctionCall{Name: call.Name, Arguments: string(args)},
				})
			}
			if msg.Content == "" && len(msg.ToolCalls) == 0 {
				continue
			}
			out = append(out, msg)
			continue
		}

		if m.Text != "" {
			out = append(out, gopenai.ChatCompletionMessage{Role: gopenai.ChatMessageRoleUser, Content: m.Text})
		}
		for _, res := range m.Results {
			body, err := json.Marshal(res.Response)
			if err != nil {
				return nil, fmt.Errorf("failed to encode tool result: %w", err)
			}
			out = append(out, gopenai.ChatCompletionMessage{
				Role:       gopenai.ChatMessageRoleTool,
				Content:    string(body),
				Name:       res.Name,
				ToolCallID: res.ID,
			})
		}
	}
	return out, nil
}

func toTools(tools []llm.Tool) []gopenai.Tool {
	if len(tools) == 0 {
		return nil
	}

	out := make([]gopenai.Tool, 0, len(tools))
	for _, t := range tools {
		params := jsonschema.Definition{
			Type:       jsonschema.Object,
			Properties: map[string]jsonschema.Definition{},
		}
		for _, p := range t.Params {
			params.Properties[p.Name] = jsonschema.Definition{Type: schemaType(p.Type), Description: p.Description}
			if p.Required {
				params.Required = append(params.Required, p.Name)
			}
		}
		out = append(out, gopenai.Tool{
			Type: gopenai.ToolTypeFunction,
			Function: &gopenai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return out
}

func schemaType(t llm.ParamType) jsonschema.DataType {
	switch t {
	case llm.TypeInteger:
		return jsonschema.Integer
	case llm.TypeNumber:
		return jsonschema.Number
	case llm.TypeBoolean:
		return jsonschema.Boolean
	default:
		return jsonschema.String
	}
}

func fromToolCalls(calls []gopenai.ToolCall) ([]llm.FunctionCall, error) {
	out := make([]llm.FunctionCall, 0, len(calls))
	for _, tc := range calls {
		args := map[string]any{}
		if strings.TrimSpace(tc.Function.Arguments) != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("invalid arguments for tool %q: %w", tc.Function.Name, err)
			}
		}
		out = append(out, llm.FunctionCall{ID: tc.ID, Name: tc.Function.Name, Args: args})
	}
	return out, nil
}
