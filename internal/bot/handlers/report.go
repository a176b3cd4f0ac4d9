package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"

	"github.com/fieldry/salestrainer/internal/session"
)

// FormatReport renders a closed-session report for Telegram delivery.
func FormatReport(report *session.Report) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Training finished: %s\n", report.Summary.Scenario)
	fmt.Fprintf(&sb, "Duration: %d min, %d messages\n\n", report.Summary.DurationMinutes, report.Summary.MessageCount)
	fmt.Fprintf(&sb, "Score: %d/10\n", report.Verdict.Score)

	if len(report.Verdict.GoodPoints) > 0 {
		sb.WriteString("\nWhat went well:\n")
		for _, p := range report.Verdict.GoodPoints {
			fmt.Fprintf(&sb, "+ %s\n", p)
		}
	}
	if len(report.Verdict.Mistakes) > 0 {
		sb.WriteString("\nWhat to work on:\n")
		for _, m := range report.Verdict.Mistakes {
			fmt.Fprintf(&sb, "- %s\n", m)
		}
	}
	if report.Verdict.Recommendations != "" {
		fmt.Fprintf(&sb, "\nRecommendations: %s\n", report.Verdict.Recommendations)
	}
	if !report.Evaluated {
		sb.WriteString("\nAutomatic evaluation was unavailable for this session.")
	}
	return sb.String()
}

// closeAndReport completes the session, sends the evaluation to the trainee,
// and forwards a short summary to every configured admin. Used by the finish
// command and by finish-phrase detection.
func closeAndReport(ctx context.Context, deps HandlerDeps, b *bot.Bot, log *slog.Logger, chat, sessionID int64) {
	sendTyping(ctx, b, log, chat)

	report, err := deps.Manager.Close(ctx, chat, sessionID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to close session", "session_id", sessionID, "error", err)
		sendText(ctx, b, log, chat, "Could not finish the session cleanly, please try /finish again.")
		return
	}
	if report == nil {
		sendText(ctx, b, log, chat, "This session is already finished.")
		return
	}

	sendText(ctx, b, log, chat, FormatReport(report))
	notifyAdmins(ctx, deps, b, log, chat, fmt.Sprintf(
		"%s finished %q with score %d/10 (%d messages, %d min).",
		report.Summary.Trainee, report.Summary.Scenario,
		report.Verdict.Score, report.Summary.MessageCount, report.Summary.DurationMinutes,
	))
}

// notifyAdmins sends a message to every configured admin except the chat the
// event originated in.
func notifyAdmins(ctx context.Context, deps HandlerDeps, b *bot.Bot, log *slog.Logger, originChat int64, text string) {
	for _, adminID := range deps.Config.Telegram.AdminIDs {
		if adminID == originChat {
			continue
		}
		if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: adminID, Text: text}); err != nil {
			log.WarnContext(ctx, "Failed to notify admin", "admin_id", adminID, "error", err)
		}
	}
}
