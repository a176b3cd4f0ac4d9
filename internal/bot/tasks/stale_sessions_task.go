package tasks

import (
	"context"
	"fmt"
	"time"

	tgbot "github.com/go-telegram/bot"

	"github.com/fieldry/salestrainer/internal/bot/handlers"
)

// newStaleSessionsTask creates the task that force-closes sessions running
// longer than the configured maximum. Each closed session goes through the
// full closure pipeline, so the trainee still gets an evaluation.
func newStaleSessionsTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "stale_sessions")

	return func(ctx context.Context) error {
		cutoff := time.Now().UTC().Add(-deps.Config.Limits.MaxSessionDuration)

		stale, err := deps.Store.ListStaleActiveSessions(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("failed to list stale sessions: %w", err)
		}
		if len(stale) == 0 {
			return nil
		}
		log.InfoContext(ctx, "Closing stale sessions", "count", len(stale), "cutoff", cutoff)

		var failed int
		for _, detail := range stale {
			// Conversation state maps the chat to the session; for private
			// chats the Telegram user ID doubles as the chat ID if the
			// state was lost across a restart.
			chat, ok := deps.Manager.States().ChatForSession(detail.ID)
			if !ok {
				chat = detail.UserTelegramID
			}

			report, err := deps.Manager.Close(ctx, chat, detail.ID)
			if err != nil {
				log.ErrorContext(ctx, "Failed to close stale session", "session_id", detail.ID, "error", err)
				failed++
				continue
			}
			if report == nil {
				continue
			}

			notice := fmt.Sprintf("Your training session timed out after %d minutes and was closed.\n\n%s",
				int(deps.Config.Limits.MaxSessionDuration.Minutes()), handlers.FormatReport(report))
			if _, err := deps.Bot.SendMessage(ctx, &tgbot.SendMessageParams{ChatID: chat, Text: notice}); err != nil {
				log.WarnContext(ctx, "Failed to notify trainee about timeout", "session_id", detail.ID, "error", err)
			}

			summary := fmt.Sprintf("Session of %s on %q timed out and was auto-closed with score %d/10.",
				report.Summary.Trainee, report.Summary.Scenario, report.Verdict.Score)
			for _, adminID := range deps.Config.Telegram.AdminIDs {
				if adminID == chat {
					continue
				}
				if _, err := deps.Bot.SendMessage(ctx, &tgbot.SendMessageParams{ChatID: adminID, Text: summary}); err != nil {
					log.WarnContext(ctx, "Failed to notify admin about timeout", "admin_id", adminID, "error", err)
				}
			}
		}

		if failed > 0 {
			return fmt.Errorf("failed to close %d of %d stale sessions", failed, len(stale))
		}
		return nil
	}
}
