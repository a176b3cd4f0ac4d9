// Package main contains the entrypoint for the sales training bot.
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

	"github.com/fieldry/salestrainer/internal/bot"
	"github.com/fieldry/salestrainer/internal/bot/handlers"
	"github.com/fieldry/salestrainer/internal/bot/tasks"
	"github.com/fieldry/salestrainer/internal/config"
	"github.com/fieldry/salestrainer/internal/database"
	"github.com/fieldry/salestrainer/internal/judge"
	"github.com/fieldry/salestrainer/internal/knowledge"
	"github.com/fieldry/salestrainer/internal/llm"
	"github.com/fieldry/salestrainer/internal/logger"
	"github.com/fieldry/salestrainer/internal/session"
	"github.com/fieldry/salestrainer/internal/sheets"
	"github.com/fieldry/salestrainer/internal/telegram"

	_ "modernc.org/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes all application components, starts the bot, handles
// graceful shutdown, and returns an exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.New(cfg.Log.Level, cfg.Log.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Log.Level, "json", cfg.Log.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to open database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	llmClient := llm.NewClient(cfg.LLM, log)

	knowledgeStore, err := knowledge.NewStore(cfg.Knowledge, cfg.LLM, log)
	if err != nil {
		log.Error("Failed to open knowledge store", "path", cfg.Knowledge.Path, "error", err)
		return 1
	}
	if cfg.Knowledge.DataDir != "" {
		if err := knowledgeStore.LoadDir(ctx, cfg.Knowledge.DataDir); err != nil {
			log.Error("Failed to load knowledge documents", "dir", cfg.Knowledge.DataDir, "error", err)
			return 1
		}
	}

	var sink session.ExportSink
	if cfg.Sheets.Enabled {
		svc, err := sheets.NewService(ctx, cfg.Sheets, log)
		if err != nil {
			log.Error("Failed to initialize Sheets export", "error", err)
			return 1
		}
		sink = svc
	} else {
		log.Info("Sheets export disabled")
	}

	evaluator := judge.NewEngine(store, llmClient, knowledgeStore, cfg.Knowledge.TopK, log)
	states := session.NewStateStore()
	manager := session.NewManager(store, llmClient, knowledgeStore, evaluator, sink, states, cfg, log)
	limiter := session.NewRateLimiter(cfg.Limits.RateLimitInterval)

	hDeps := handlers.HandlerDeps{
		Logger:      log,
		Config:      cfg,
		Store:       store,
		Manager:     manager,
		RateLimiter: limiter,
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(handlers.NewDefaultHandler(hDeps)),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	if err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllCommands(hDeps)); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}

	tDeps := tasks.TaskDeps{
		Logger:      log,
		Config:      cfg,
		Store:       store,
		Manager:     manager,
		RateLimiter: limiter,
		Bot:         tg,
	}
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	app := bot.NewBot(log, cfg, db, store, manager, tg, sched)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}
