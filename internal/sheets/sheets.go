// Package sheets appends session summaries and transcripts to a shared
// Google spreadsheet. Export is best-effort: callers log failures and never
// let them block session closure.
package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/fieldry/salestrainer/internal/config"
)

// Summary is one completed-session row.
type Summary struct {
	SessionID       int64
	Trainee         string
	FinishedAt      time.Time
	Scenario        string
	DurationMinutes int
	MessageCount    int
	Score           int
	GoodPoints      []string
	Mistakes        []string
	Recommendations string
}

// Service writes to the configured spreadsheet via the Sheets API.
type Service struct {
	log             *slog.Logger
	api             *sheets.Service
	spreadsheetID   string
	summarySheet    string
	transcriptSheet string
}

// NewService authorizes against the Sheets API with the configured service
// account credentials.
func NewService(ctx context.Context, cfg config.SheetsConfig, log *slog.Logger) (*Service, error) {
	api, err := sheets.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsPath),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	logger := log.With("component", "sheets")
	logger.Info("Sheets export configured", "spreadsheet_id", cfg.SpreadsheetID)

	return &Service{
		log:             logger,
		api:             api,
		spreadsheetID:   cfg.SpreadsheetID,
		summarySheet:    cfg.SummarySheet,
		transcriptSheet: cfg.TranscriptSheet,
	}, nil
}

// WriteSummary appends a single summary row.
func (s *Service) WriteSummary(ctx context.Context, summary Summary) error {
	row := []any{
		summary.SessionID,
		summary.Trainee,
		summary.FinishedAt.Format("02.01.2006 15:04"),
		summary.Scenario,
		summary.DurationMinutes,
		summary.MessageCount,
		summary.Score,
		strings.Join(summary.GoodPoints, "; "),
		strings.Join(summary.Mistakes, "; "),
		summary.Recommendations,
	}
	if err := s.appendRow(ctx, s.summarySheet, row); err != nil {
		return fmt.Errorf("failed to write summary for session %d: %w", summary.SessionID, err)
	}

	s.log.InfoContext(ctx, "Summary exported", "session_id", summary.SessionID)
	return nil
}

// WriteTranscript appends the full dialog as a single row.
func (s *Service) WriteTranscript(ctx context.Context, sessionID int64, trainee, transcript string) error {
	row := []any{sessionID, trainee, transcript}
	if err := s.appendRow(ctx, s.transcriptSheet, row); err != nil {
		return fmt.Errorf("failed to write transcript for session %d: %w", sessionID, err)
	}

	s.log.InfoContext(ctx, "Transcript exported", "session_id", sessionID)
	return nil
}

func (s *Service) appendRow(ctx context.Context, sheet string, row []any) error {
	_, err := s.api.Spreadsheets.Values.
		Append(s.spreadsheetID, sheet+"!A1", &sheets.ValueRange{Values: [][]any{row}}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}
