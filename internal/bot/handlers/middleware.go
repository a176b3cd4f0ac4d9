// Package handlers contains Telegram bot command, callback, and dialog
// handlers, along with their registration logic and middleware.
package handlers

import (
	"context"
	"errors"
	"log/slog"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/fieldry/salestrainer/internal/database"
)

// senderID extracts the acting user's ID from a message or callback update.
func senderID(update *models.Update) (int64, bool) {
	switch {
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID, true
	case update.CallbackQuery != nil:
		return update.CallbackQuery.From.ID, true
	}
	return 0, false
}

// chatID extracts the chat the update belongs to.
func chatID(update *models.Update) (int64, bool) {
	switch {
	case update.Message != nil:
		return update.Message.Chat.ID, true
	case update.CallbackQuery != nil && update.CallbackQuery.Message.Message != nil:
		return update.CallbackQuery.Message.Message.Chat.ID, true
	}
	return 0, false
}

// AllowedOnly creates a middleware that rejects users who are neither on the
// configured allow lists nor registered in the database by an admin.
func AllowedOnly(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
			userID, ok := senderID(update)
			if !ok {
				next(ctx, b, update)
				return
			}

			if !deps.Config.IsAllowed(userID) {
				// Admins can register employees at runtime, so a user row
				// counts as authorization too.
				_, err := deps.Store.GetUserByTelegramID(ctx, userID)
				if errors.Is(err, database.ErrNotFound) {
					log := deps.Logger.With("middleware", "allowed_only")
					log.WarnContext(ctx, "Unauthorized access attempt", "user_id", userID)
					if chat, ok := chatID(update); ok {
						sendText(ctx, b, deps.Logger, chat, "You are not authorized to use this bot. Ask your manager for access.")
					}
					return
				}
				if err != nil {
					deps.Logger.ErrorContext(ctx, "Authorization lookup failed", "user_id", userID, "error", err)
					return
				}
			}

			next(ctx, b, update)
		}
	}
}

// AdminOnly creates a middleware that only lets configured admins through.
func AdminOnly(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
			userID, ok := senderID(update)
			if !ok || !deps.Config.IsAdmin(userID) {
				log := deps.Logger.With("middleware", "admin_only")
				log.WarnContext(ctx, "Non-admin attempted admin action", "user_id", userID)
				if chat, chatOK := chatID(update); chatOK {
					sendText(ctx, b, deps.Logger, chat, "This command is for administrators only.")
				}
				return
			}
			next(ctx, b, update)
		}
	}
}

// RateLimited creates a middleware that silently drops messages arriving
// faster than the configured per-user interval.
func RateLimited(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
			userID, ok := senderID(update)
			if ok && !deps.RateLimiter.Allow(userID) {
				deps.Logger.DebugContext(ctx, "Dropping rate-limited message", "user_id", userID)
				return
			}
			next(ctx, b, update)
		}
	}
}

// sendText sends a plain text message and logs delivery failures.
func sendText(ctx context.Context, b *tgbot.Bot, log *slog.Logger, chat int64, text string) {
	if _, err := b.SendMessage(ctx, &tgbot.SendMessageParams{ChatID: chat, Text: text}); err != nil {
		log.ErrorContext(ctx, "Failed to send message", "chat_id", chat, "error", err)
	}
}
