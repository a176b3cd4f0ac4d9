package handlers

import (
	"log/slog"

	"github.com/fieldry/salestrainer/internal/config"
	"github.com/fieldry/salestrainer/internal/database"
	"github.com/fieldry/salestrainer/internal/session"
)

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger      *slog.Logger
	Config      *config.Config
	Store       database.Store
	Manager     *session.Manager
	RateLimiter *session.RateLimiter
}
