package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/fieldry/salestrainer/internal/session"
)

// scenarioCallbackPrefix prefixes scenario-picker callback data; the rest of
// the payload is the catalog key.
const scenarioCallbackPrefix = "scenario_"

// NewScenarioHandler returns a callback handler that starts a roleplay
// session for the picked scenario and sends the client's opening line.
func NewScenarioHandler(deps HandlerDeps) bot.HandlerFunc {
	return scenarioHandler{deps}.Handle
}

type scenarioHandler struct {
	deps HandlerDeps
}

func (h scenarioHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "scenario")

	cb := update.CallbackQuery
	if cb == nil || cb.Message.Message == nil {
		log.WarnContext(ctx, "Scenario callback without accessible message", "update_id", update.ID)
		return
	}

	// Always answer so the client stops showing the spinner.
	if _, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: cb.ID}); err != nil {
		log.WarnContext(ctx, "Failed to answer callback query", "error", err)
	}

	chat := cb.Message.Message.Chat.ID
	key := strings.TrimPrefix(cb.Data, scenarioCallbackPrefix)

	if _, active := h.deps.Manager.ActiveSession(chat); active {
		sendText(ctx, b, log, chat, "You already have a training session in progress. Send /finish first to end it.")
		return
	}

	sendTyping(ctx, b, log, chat)

	opening, err := h.deps.Manager.StartScenario(ctx, chat, cb.From.ID, key)
	switch {
	case errors.Is(err, session.ErrUnknownScenario):
		log.WarnContext(ctx, "Unknown scenario key in callback", "key", key, "user_id", cb.From.ID)
		sendText(ctx, b, log, chat, "That scenario is no longer available. Send /start to see the current list.")
		return
	case errors.Is(err, session.ErrUserNotFound):
		sendText(ctx, b, log, chat, "Please send /start first so I can register you.")
		return
	case err != nil:
		log.ErrorContext(ctx, "Failed to start session", "key", key, "user_id", cb.From.ID, "error", err)
		sendText(ctx, b, log, chat, "Could not start the session, please try again in a moment.")
		return
	}

	sendText(ctx, b, log, chat, opening)
}

// sendTyping shows the "typing..." indicator while a model call is pending.
func sendTyping(ctx context.Context, b *bot.Bot, log *slog.Logger, chat int64) {
	if _, err := b.SendChatAction(ctx, &bot.SendChatActionParams{
		ChatID: chat,
		Action: models.ChatActionTyping,
	}); err != nil {
		log.DebugContext(ctx, "Failed to send typing action", "chat_id", chat, "error", err)
	}
}
