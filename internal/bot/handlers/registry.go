package handlers

import (
	tgbot "github.com/go-telegram/bot"
)

// RegisteredHandler represents a handler with its pattern and middleware.
// It encapsulates all information needed to register the handler with the
// Telegram bot instance.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	MatchType   tgbot.MatchType
}

// RegisterAllCommands initializes and returns a map of all command and
// callback handlers, each wired with the middleware it needs. The default
// dialog handler is registered separately as the bot's default handler.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := make(map[string]RegisteredHandler)

	allowed := []tgbot.Middleware{AllowedOnly(deps)}
	adminOnly := []tgbot.Middleware{AdminOnly(deps)}

	handlers["/start"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "start",
		Handler:     NewStartHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  allowed,
	}
	handlers["/finish"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "finish",
		Handler:     NewFinishHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  allowed,
	}
	handlers["/add_employee"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "add_employee",
		Handler:     NewAddEmployeeHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  adminOnly,
	}

	handlers["scenario"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeCallbackQueryData,
		Pattern:     scenarioCallbackPrefix,
		Handler:     NewScenarioHandler(deps),
		MatchType:   tgbot.MatchTypePrefix,
		Middleware:  allowed,
	}
	handlers["admin"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeCallbackQueryData,
		Pattern:     "admin_",
		Handler:     NewAdminCallbackHandler(deps),
		MatchType:   tgbot.MatchTypePrefix,
		Middleware:  adminOnly,
	}

	return handlers
}

// NewDefaultHandler builds the dialog handler wrapped with authorization and
// per-user rate limiting, for use as the bot's default handler.
func NewDefaultHandler(deps HandlerDeps) tgbot.HandlerFunc {
	handler := NewDialogHandler(deps)
	for _, mw := range []tgbot.Middleware{RateLimited(deps), AllowedOnly(deps)} {
		handler = mw(handler)
	}
	return handler
}
