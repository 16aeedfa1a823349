package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/edgard/mamabot/internal/config"
	"github.com/edgard/mamabot/internal/llm"
	"github.com/edgard/mamabot/internal/llm/gemini"
	openaillm "github.com/edgard/mamabot/internal/llm/openai"
)

// newLLMClient builds the text-generation client for the configured provider.
func newLLMClient(ctx context.Context, cfg config.AIConfig, log *slog.Logger) (llm.Client, error) {
	settings := llm.Settings{
		APIKey:            cfg.APIKey,
		BaseURL:           cfg.BaseURL,
		ModelName:         cfg.ModelName,
		Temperature:       cfg.Temperature,
		MaxRetries:        cfg.MaxRetries,
		RetryDelaySeconds: cfg.RetryDelaySeconds,
	}

	switch cfg.Provider {
	case "gemini":
		return gemini.NewClient(ctx, settings, log)
	case "openai":
		return openaillm.NewClient(settings, log)
	default:
		return nil, fmt.Errorf("unsupported ai provider %q", cfg.Provider)
	}
}
