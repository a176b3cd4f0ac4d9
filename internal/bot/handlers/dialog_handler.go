package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/fieldry/salestrainer/internal/llm"
	"github.com/fieldry/salestrainer/internal/session"
)

// NewDialogHandler returns the default handler: every plain text message from
// a user in a dialog is one roleplay turn. When the simulated client utters a
// finish phrase, the session is closed on the same turn.
func NewDialogHandler(deps HandlerDeps) bot.HandlerFunc {
	return dialogHandler{deps}.Handle
}

type dialogHandler struct {
	deps HandlerDeps
}

func (h dialogHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "dialog")

	if update.Message == nil || update.Message.From == nil || update.Message.Text == "" {
		return
	}

	chat := update.Message.Chat.ID
	sessionID, active := h.deps.Manager.ActiveSession(chat)
	if !active {
		sendText(ctx, b, log, chat, "No training session is running. Send /start to pick a scenario.")
		return
	}

	sendTyping(ctx, b, log, chat)

	reply, finished, err := h.deps.Manager.HandleTurn(ctx, chat, update.Message.Text)
	switch {
	case errors.Is(err, session.ErrMessageTooLong):
		sendText(ctx, b, log, chat, fmt.Sprintf(
			"That message is too long, keep it under %d characters.",
			h.deps.Config.Limits.MaxMessageLength))
		return
	case errors.Is(err, session.ErrNoActiveSession):
		// State was cleared between the check and the turn.
		sendText(ctx, b, log, chat, "No training session is running. Send /start to pick a scenario.")
		return
	case errors.Is(err, llm.ErrCostLimit):
		log.WarnContext(ctx, "Daily cost limit reached", "session_id", sessionID)
		sendText(ctx, b, log, chat, "The training budget for today is exhausted. Your session is kept, try again tomorrow.")
		return
	case err != nil:
		// Transient failure: keep the session alive so the trainee can retry.
		log.ErrorContext(ctx, "Dialog turn failed", "session_id", sessionID, "error", err)
		sendText(ctx, b, log, chat, "Sorry, something went wrong. Say that again?")
		return
	}

	sendText(ctx, b, log, chat, reply)

	if finished {
		log.InfoContext(ctx, "Finish phrase detected, closing session", "session_id", sessionID)
		closeAndReport(ctx, h.deps, b, log, chat, sessionID)
	}
}
