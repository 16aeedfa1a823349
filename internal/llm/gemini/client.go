// Package gemini implements the llm.Client contract on Google's Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/edgard/mamabot/internal/llm"
)

// contentGenerator is the subset of *genai.Models the client needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type sdkClient struct {
	models           contentGenerator
	log              *slog.Logger
	contentConfig    *genai.GenerateContentConfig
	defaultModelName string
	maxRetries       int
	retryDelay       time.Duration
}

// NewClient creates a new Gemini client with the provided settings.
func NewClient(ctx context.Context, s llm.Settings, log *slog.Logger) (llm.Client, error) {
	if s.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	logger := log.With("component", "gemini_client")
	logger.Info("Gemini client initialized successfully", "model", s.ModelName)
	return newClient(gi.Models, s, logger), nil
}

func newClient(models contentGenerator, s llm.Settings, log *slog.Logger) *sdkClient {
	temperature := s.Temperature
	return &sdkClient{
		models: models,
		log:    log,
		contentConfig: &genai.GenerateContentConfig{
			Temperature: &temperature,
			SafetySettings: []*genai.SafetySetting{
				{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
				{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
				{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
				{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
			},
		},
		defaultModelName: s.ModelName,
		maxRetries:       s.MaxRetries,
		retryDelay:       time.Duration(s.RetryDelaySeconds) * time.Second,
	}
}

// Generate sends req to Gemini and returns either the answer text or the requested tool calls.
func (c *sdkClient) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	c.log.DebugContext(ctx, "Generating content", "message_count", len(req.Messages), "tool_count", len(req.Tools))

	copyCfg := *c.contentConfig
	if req.System != "" {
		copyCfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.Temperature != nil {
		t := *req.Temperature
		copyCfg.Temperature = &t
	}
	copyCfg.Tools = toTools(req.Tools)

	resp, err := c.generateContentWithRetries(ctx, c.defaultModelName, toContents(req.Messages), &copyCfg)
	if err != nil {
		return nil, err
	}

	if calls := fromFunctionCalls(resp.FunctionCalls()); len(calls) > 0 {
		c.log.DebugContext(ctx, "Gemini requested tool calls", "count", len(calls))
		return &llm.Response{Calls: calls}, nil
	}

	text, err := c.extractTextFromResponse(ctx, resp)
	if err != nil {
		return nil, err
	}
	return &llm.Response{Text: text}, nil
}

func (c *sdkClient) generateContentWithRetries(ctx context.Context, modelName string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	var resp *genai.GenerateContentResponse
	var err error

	for i := 0; i <= c.maxRetries; i++ {
		resp, err = c.models.GenerateContent(ctx, modelName, contents, cfg)
		if err == nil {
			return resp, nil
		}

		c.log.WarnContext(ctx, "Gemini API call failed, checking for retry", "attempt", i+1, "max_retries", c.maxRetries, "error", err)

		var genAiAPIError *genai.APIError
		if errors.As(err, &genAiAPIError) && (genAiAPIError.Code == 500 || genAiAPIError.Code == 503) { // Retriable HTTP codes
			if i < c.maxRetries {
				c.log.InfoContext(ctx, "Retrying Gemini API call due to retriable APIError", "delay", c.retryDelay, "code", genAiAPIError.Code)
				select {
				case <-ctx.Done():
					return nil, fmt.Errorf("gemini retry aborted: %w", ctx.Err())
				case <-time.After(c.retryDelay):
				}
				continue
			}
			c.log.ErrorContext(ctx, "Gemini API call failed after max retries with APIError", "error", err, "code", genAiAPIError.Code)
			return nil, fmt.Errorf("gemini API call failed after %d retries (APIError code %d): %w", c.maxRetries, genAiAPIError.Code, err)
		}

		c.log.ErrorContext(ctx, "Gemini API call failed with non-retriable error", "error", err)
		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}
	return nil, err
}

func (c *sdkClient) extractTextFromResponse(ctx context.Context, resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("gemini returned nil response")
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reasonMsg := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reasonMsg = resp.PromptFeedback.BlockReasonMessage
		}
		c.log.ErrorContext(ctx, "Gemini request blocked", "reason", reasonMsg)
		return "", fmt.Errorf("request blocked by safety filter: %s", reasonMsg)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
			finishReason = fmt.Sprintf("%v", resp.Candidates[0].FinishReason)
		}
		c.log.WarnContext(ctx, "Gemini response missing candidates or content", "finish_reason", finishReason)

		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonStop {
			return "", fmt.Errorf("gemini returned no content, finish reason: %s", finishReason)
		}
		return "", errors.New("gemini returned empty content")
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		c.log.WarnContext(ctx, "Gemini response text is empty")
		return "", errors.New("gemini returned empty text")
	}
	return text, nil
}

func toContents(messages []llm.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == llm.RoleModel {
			role = genai.RoleModel
		}

		var parts []*genai.Part
		if m.Text != "" {
			parts = append(parts, &genai.Part{Text: m.Text})
		}
		for _, call := range m.Calls {
			parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: call.ID, Name: call.Name, Args: call.Args}})
		}
		for _, res := range m.Results {
			parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{ID: res.ID, Name: res.Name, Response: res.Response}})
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}
	return contents
}

func toTools(tools []llm.Tool) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}

	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		schema := &genai.Schema{Type: genai.TypeObject, Properties: map[string]*genai.Schema{}}
		for _, p := range t.Params {
			schema.Properties[p.Name] = &genai.Schema{Type: schemaType(p.Type), Description: p.Description}
			if p.Required {
				schema.Required = append(schema.Required, p.Name)
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  schema,
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func schemaType(t llm.ParamType) genai.Type {
	switch t {
	case llm.TypeInteger:
		return genai.TypeInteger
	case llm.TypeNumber:
		return genai.TypeNumber
	case llm.TypeBoolean:
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}

func fromFunctionCalls(calls []*genai.FunctionCall) []llm.FunctionCall {
	out := make([]llm.FunctionCall, 0, len(calls))
	for _, fc := range calls {
		if fc == nil {
			continue
		}
		out = append(out, llm.FunctionCall{ID: fc.ID, Name: fc.Name, Args: fc.Args})
	}
	return out
}
