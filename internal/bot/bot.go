// Package bot runs the mamabot components together and manages their lifecycle.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Server is a blocking server that stops when its context is cancelled.
type Server interface {
	Run(ctx context.Context) error
}

// Poller receives Telegram updates until its context is cancelled. *tgbot.Bot implements it.
type Poller interface {
	Start(ctx context.Context)
}

// App orchestrates the HTTP API, the optional Telegram poller, and the scheduler.
type App struct {
	logger    *slog.Logger
	http      Server
	poller    Poller
	scheduler *Scheduler
}

// NewApp creates an App. poller may be nil when Telegram is disabled.
func NewApp(logger *slog.Logger, http Server, poller Poller, scheduler *Scheduler) *App {
	return &App{
		logger:    logger.With("component", "app_orchestrator"),
		http:      http,
		poller:    poller,
		scheduler: scheduler,
	}
}

// Run starts all components and blocks until ctx is cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("Starting app orchestrator...")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.http.Run(gCtx); err != nil {
			return err
		}
		if ctx.Err() == nil && gCtx.Err() == nil {
			return fmt.Errorf("http server stopped unexpectedly")
		}
		return nil
	})

	if a.poller != nil {
		g.Go(func() error {
			a.logger.Info("Starting Telegram bot listener...")
			a.poller.Start(gCtx)
			a.logger.Info("Telegram bot listener stopped.")

			if gCtx.Err() == nil {
				a.logger.Warn("Telegram bot listener stopped unexpectedly without context cancellation.")
				return fmt.Errorf("telegram listener stopped unexpectedly")
			}
			return nil
		})
	}

	g.Go(func() error {
		a.logger.Info("Starting scheduler...")
		if err := a.scheduler.Start(gCtx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		a.logger.Info("Shutdown signal received, stopping scheduler...")

		if err := a.scheduler.Stop(); err != nil {
			a.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	a.logger.Info("App running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("App stopped due to error", "error", err)
		return err
	}

	a.logger.Info("App stopped gracefully.")
	return nil
}
