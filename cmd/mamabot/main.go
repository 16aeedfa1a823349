// Package main contains the entrypoint for the mamabot service.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/mamabot/internal/advisory"
	"github.com/edgard/mamabot/internal/alert"
	"github.com/edgard/mamabot/internal/bot"
	"github.com/edgard/mamabot/internal/bot/handlers"
	"github.com/edgard/mamabot/internal/bot/tasks"
	"github.com/edgard/mamabot/internal/config"
	"github.com/edgard/mamabot/internal/database"
	"github.com/edgard/mamabot/internal/health"
	"github.com/edgard/mamabot/internal/httpapi"
	"github.com/edgard/mamabot/internal/logger"
	"github.com/edgard/mamabot/internal/notify"
	"github.com/edgard/mamabot/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run wires all components, blocks until shutdown, and returns the exit code
// (0 for a graceful stop, 1 for failure).
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Error("Failed to connect to database", "driver", cfg.Database.Driver, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	aiClient, err := newLLMClient(ctx, cfg.AI, log)
	if err != nil {
		log.Error("Failed to initialize AI client", "provider", cfg.AI.Provider, "error", err)
		return 1
	}

	gateway := advisory.NewGateway(aiClient, store, advisory.Config{
		SystemInstruction: cfg.Advisory.SystemInstruction,
		RecentVitalsLimit: cfg.Advisory.RecentVitalsLimit,
		MaxToolRounds:     cfg.Advisory.MaxToolRounds,
	}, log)

	var phraser health.Phraser
	if cfg.Alerts.AIPhrasing {
		phraser = alert.NewNarrator(aiClient, cfg.Alerts.PhrasingTimeout, log)
		log.Info("AI phrasing of alert messages enabled")
	}

	sinks := []notify.Notifier{notify.NewLogNotifier(log)}

	if cfg.Notify.Kafka.Enabled {
		kafkaNotifier := notify.NewKafkaNotifier(notify.NewKafkaWriter(cfg.Notify.Kafka.Brokers, cfg.Notify.Kafka.Topic), log)
		defer func() {
			if err := kafkaNotifier.Close(); err != nil {
				log.Error("Failed to close Kafka writer", "error", err)
			}
		}()
		sinks = append(sinks, kafkaNotifier)
		log.Info("Kafka notifications enabled", "topic", cfg.Notify.Kafka.Topic)
	}

	// The default handler needs the health service, which needs the bot as
	// its Telegram sink. It is assigned before polling starts.
	var onMessage tgbot.HandlerFunc
	var tg *tgbot.Bot
	if cfg.Telegram.Enabled {
		botOpts := []tgbot.Option{
			tgbot.WithMiddlewares(logger.Middleware(log)),
			tgbot.WithDefaultHandler(func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
				onMessage(ctx, b, update)
			}),
		}
		tg, err = telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
		if err != nil {
			log.Error("Failed to create Telegram bot", "error", err)
			return 1
		}

		cfg.Telegram.BotInfo, err = tg.GetMe(ctx)
		if err != nil {
			log.Error("Failed to get bot info", "error", err)
			return 1
		}
		log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

		sinks = append(sinks, notify.NewTelegramNotifier(tg, cfg.Telegram.FallbackChatID, log))
	}
	notifier := notify.NewMulti(sinks...)

	svc := health.New(health.Deps{
		Store:           store,
		Advisor:         gateway,
		Phraser:         phraser,
		Notifier:        notifier,
		DispatchTimeout: cfg.Notify.DispatchTimeout,
		Logger:          log,
	})

	var poller bot.Poller
	if tg != nil {
		hDeps := handlers.HandlerDeps{
			Logger: log,
			Config: cfg,
			Store:  store,
			Health: svc,
		}
		onMessage = handlers.NewMessageHandler(hDeps)
		if err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllCommands(hDeps)); err != nil {
			log.Error("Failed to register Telegram handlers", "error", err)
			return 1
		}
		poller = tg
	}

	tDeps := tasks.TaskDeps{
		Logger:   log,
		Store:    store,
		Notifier: notifier,
		Driver:   cfg.Database.Driver,
	}
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	server := httpapi.NewServer(svc, httpapi.Options{
		Addr:            cfg.HTTP.Addr,
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
	}, log)

	app := bot.NewApp(log, server, poller, sched)

	log.Info("Starting mamabot...")
	runErr := app.Run(ctx)
	log.Info("Run loop finished. Waiting for pending notifications...")
	svc.Wait()

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("mamabot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("mamabot stopped gracefully.")
	return 0
}
