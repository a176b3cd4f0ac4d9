package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/fieldry/salestrainer/internal/database"
)

const (
	adminEmployeesCallback = "admin_employees"
	adminAddCallback       = "admin_add"
	adminTrainCallback     = "admin_train"
)

// NewAdminCallbackHandler returns the handler for admin-panel buttons.
func NewAdminCallbackHandler(deps HandlerDeps) bot.HandlerFunc {
	return adminHandler{deps}.HandleCallback
}

// NewAddEmployeeHandler returns a handler for the /add_employee command.
func NewAddEmployeeHandler(deps HandlerDeps) bot.HandlerFunc {
	return adminHandler{deps}.HandleAddEmployee
}

type adminHandler struct {
	deps HandlerDeps
}

func (h adminHandler) HandleCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "admin")

	cb := update.CallbackQuery
	if cb == nil || cb.Message.Message == nil {
		return
	}
	if _, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: cb.ID}); err != nil {
		log.WarnContext(ctx, "Failed to answer callback query", "error", err)
	}
	chat := cb.Message.Message.Chat.ID

	switch cb.Data {
	case adminEmployeesCallback:
		h.sendEmployeeList(ctx, b, chat)
	case adminAddCallback:
		sendText(ctx, b, log, chat, "Send /add_employee <telegram_id> to grant an employee access.")
	case adminTrainCallback:
		startHandler{h.deps}.sendScenarioPicker(ctx, b, chat, cb.From.FirstName)
	default:
		log.WarnContext(ctx, "Unknown admin callback", "data", cb.Data)
	}
}

func (h adminHandler) sendEmployeeList(ctx context.Context, b *bot.Bot, chat int64) {
	log := h.deps.Logger.With("handler", "admin")

	employees, err := h.deps.Store.ListEmployees(ctx)
	if err != nil {
		log.ErrorContext(ctx, "Failed to list employees", "error", err)
		sendText(ctx, b, log, chat, "Could not load the employee list.")
		return
	}
	if len(employees) == 0 {
		sendText(ctx, b, log, chat, "No employees registered yet.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Registered employees:\n")
	for _, emp := range employees {
		label := emp.FullName
		if label == "" {
			label = emp.Username
		}
		if label == "" {
			label = "(not seen yet)"
		}
		fmt.Fprintf(&sb, "%d: %s\n", emp.TelegramID, label)
	}
	sendText(ctx, b, log, chat, sb.String())
}

func (h adminHandler) HandleAddEmployee(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "admin")

	if update.Message == nil || update.Message.From == nil {
		return
	}
	chat := update.Message.Chat.ID

	parts := strings.Fields(update.Message.Text)
	if len(parts) != 2 {
		sendText(ctx, b, log, chat, "Usage: /add_employee <telegram_id>")
		return
	}
	telegramID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || telegramID <= 0 {
		sendText(ctx, b, log, chat, "The Telegram ID must be a positive number, e.g. /add_employee 123456789")
		return
	}

	_, err = h.deps.Store.GetUserByTelegramID(ctx, telegramID)
	if err == nil {
		sendText(ctx, b, log, chat, fmt.Sprintf("User %d already has access.", telegramID))
		return
	}
	if !errors.Is(err, database.ErrNotFound) {
		log.ErrorContext(ctx, "Failed to check existing user", "telegram_id", telegramID, "error", err)
		sendText(ctx, b, log, chat, "Could not add the employee, please try again.")
		return
	}

	user := &database.User{TelegramID: telegramID}
	if err := h.deps.Store.CreateUser(ctx, user); err != nil {
		log.ErrorContext(ctx, "Failed to create employee", "telegram_id", telegramID, "error", err)
		sendText(ctx, b, log, chat, "Could not add the employee, please try again.")
		return
	}

	log.InfoContext(ctx, "Employee added", "telegram_id", telegramID, "added_by", update.Message.From.ID)
	sendText(ctx, b, log, chat, fmt.Sprintf("Employee %d added. They can now send /start to begin training.", telegramID))
}
