// Package tasks implements the bot's scheduled background tasks: closing
// sessions that exceeded the maximum duration and evicting stale rate-limit
// entries.
package tasks

import (
	"log/slog"

	tgbot "github.com/go-telegram/bot"

	"github.com/fieldry/salestrainer/internal/config"
	"github.com/fieldry/salestrainer/internal/database"
	"github.com/fieldry/salestrainer/internal/session"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger      *slog.Logger
	Config      *config.Config
	Store       database.Store
	Manager     *session.Manager
	RateLimiter *session.RateLimiter
	Bot         *tgbot.Bot
}
