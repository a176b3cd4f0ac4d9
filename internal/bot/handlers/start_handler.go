package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/fieldry/salestrainer/internal/scenario"
)

// NewStartHandler returns a handler for the /start command. It registers the
// user, reconciles the admin flag against the configured lists, and shows
// either the scenario picker or the admin panel.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	return startHandler{deps}.Handle
}

type startHandler struct {
	deps HandlerDeps
}

func (h startHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "start")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Start handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	from := update.Message.From
	chat := update.Message.Chat.ID
	isAdmin := h.deps.Config.IsAdmin(from.ID)

	fullName := from.FirstName
	if from.LastName != "" {
		fullName += " " + from.LastName
	}

	if _, err := h.deps.Manager.EnsureUser(ctx, from.ID, from.Username, fullName, isAdmin); err != nil {
		log.ErrorContext(ctx, "Failed to register user", "telegram_id", from.ID, "error", err)
		sendText(ctx, b, log, chat, "Something went wrong, please try again.")
		return
	}

	log.InfoContext(ctx, "Handling /start command", "chat_id", chat, "user_id", from.ID, "is_admin", isAdmin)

	if isAdmin {
		h.sendAdminPanel(ctx, b, chat)
		return
	}
	h.sendScenarioPicker(ctx, b, chat, from.FirstName)
}

func (h startHandler) sendScenarioPicker(ctx context.Context, b *bot.Bot, chat int64, firstName string) {
	log := h.deps.Logger.With("handler", "start")

	var rows [][]models.InlineKeyboardButton
	for _, tmpl := range scenario.All() {
		rows = append(rows, []models.InlineKeyboardButton{{
			Text:         tmpl.Title,
			CallbackData: scenarioCallbackPrefix + tmpl.Key,
		}})
	}

	text := fmt.Sprintf(
		"Hi %s! I'm your sales training partner. Pick a scenario and I'll play the client. Say your lines as you would on a real call; send /finish when you want to stop and get your evaluation.",
		firstName,
	)
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chat,
		Text:        text,
		ReplyMarkup: &models.InlineKeyboardMarkup{InlineKeyboard: rows},
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send scenario picker", "chat_id", chat, "error", err)
	}
}

func (h startHandler) sendAdminPanel(ctx context.Context, b *bot.Bot, chat int64) {
	log := h.deps.Logger.With("handler", "start")

	rows := [][]models.InlineKeyboardButton{
		{{Text: "Employees", CallbackData: adminEmployeesCallback}},
		{{Text: "Add employee", CallbackData: adminAddCallback}},
		{{Text: "Try a scenario", CallbackData: adminTrainCallback}},
	}
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chat,
		Text:        "Admin panel. Session reports are sent here automatically when employees finish training.",
		ReplyMarkup: &models.InlineKeyboardMarkup{InlineKeyboard: rows},
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send admin panel", "chat_id", chat, "error", err)
	}
}
