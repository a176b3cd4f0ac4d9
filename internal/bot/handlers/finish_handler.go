package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewFinishHandler returns a handler for the /finish command, which ends the
// active session regardless of what the simulated client last said.
func NewFinishHandler(deps HandlerDeps) bot.HandlerFunc {
	return finishHandler{deps}.Handle
}

type finishHandler struct {
	deps HandlerDeps
}

func (h finishHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "finish")

	if update.Message == nil || update.Message.From == nil {
		return
	}
	chat := update.Message.Chat.ID

	sessionID, active := h.deps.Manager.ActiveSession(chat)
	if !active {
		sendText(ctx, b, log, chat, "No training session is running. Send /start to pick a scenario.")
		return
	}

	log.InfoContext(ctx, "Handling /finish command", "chat_id", chat, "session_id", sessionID)
	closeAndReport(ctx, h.deps, b, log, chat, sessionID)
}
