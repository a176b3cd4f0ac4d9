package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fieldry/salestrainer/internal/config"
	"github.com/fieldry/salestrainer/internal/database"
	"github.com/fieldry/salestrainer/internal/judge"
	"github.com/fieldry/salestrainer/internal/knowledge"
	"github.com/fieldry/salestrainer/internal/llm"
	"github.com/fieldry/salestrainer/internal/scenario"
	"github.com/fieldry/salestrainer/internal/sheets"
)

var (
	// ErrUnknownScenario means the selected key is not in the catalog.
	ErrUnknownScenario = errors.New("unknown scenario")
	// ErrUserNotFound means the trainee has no user row yet.
	ErrUserNotFound = errors.New("user not found")
	// ErrNoActiveSession means the conversation is not in a dialog.
	ErrNoActiveSession = errors.New("no active session")
	// ErrMessageTooLong means the inbound message exceeds the configured
	// maximum and was neither persisted nor sent to the model.
	ErrMessageTooLong = errors.New("message too long")
)

// ExportSink receives completed-session summaries and transcripts. Failures
// are logged by the manager and never propagated.
type ExportSink interface {
	WriteSummary(ctx context.Context, summary sheets.Summary) error
	WriteTranscript(ctx context.Context, sessionID int64, trainee, transcript string) error
}

// Report describes a closed session for user-facing and admin messaging.
type Report struct {
	Summary   sheets.Summary
	Verdict   judge.Verdict
	Evaluated bool
}

// Manager orchestrates the session lifecycle: scenario selection, dialog
// turns with knowledge retrieval, finish-phrase detection, and closure.
type Manager struct {
	log       *slog.Logger
	store     database.Store
	generator llm.Generator
	search    knowledge.Searcher
	evaluator judge.Evaluator
	sink      ExportSink
	states    *StateStore

	maxMessageLength int
	historyWindow    int
	topK             int
	finishPhrases    []string
}

// NewManager wires the lifecycle controller. search and sink may be nil.
func NewManager(
	store database.Store,
	generator llm.Generator,
	search knowledge.Searcher,
	evaluator judge.Evaluator,
	sink ExportSink,
	states *StateStore,
	cfg *config.Config,
	log *slog.Logger,
) *Manager {
	phrases := make([]string, 0, len(cfg.Dialog.FinishPhrases))
	for _, p := range cfg.Dialog.FinishPhrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			phrases = append(phrases, p)
		}
	}

	return &Manager{
		log:              log.With("component", "session_manager"),
		store:            store,
		generator:        generator,
		search:           search,
		evaluator:        evaluator,
		sink:             sink,
		states:           states,
		maxMessageLength: cfg.Limits.MaxMessageLength,
		historyWindow:    cfg.Limits.HistoryWindow,
		topK:             cfg.Knowledge.TopK,
		finishPhrases:    phrases,
	}
}

// States exposes the conversation state store.
func (m *Manager) States() *StateStore {
	return m.states
}

// EnsureUser fetches or creates the user row for a Telegram identity and
// reconciles its stored admin flag with the configured value. Called on
// every /start so allow-list changes take effect on the next login.
func (m *Manager) EnsureUser(ctx context.Context, telegramID int64, username, fullName string, isAdmin bool) (*database.User, error) {
	user, err := m.store.GetUserByTelegramID(ctx, telegramID)
	if errors.Is(err, database.ErrNotFound) {
		user = &database.User{
			TelegramID: telegramID,
			Username:   username,
			FullName:   fullName,
			IsAdmin:    isAdmin,
		}
		if err := m.store.CreateUser(ctx, user); err != nil {
			return nil, err
		}
		return user, nil
	}
	if err != nil {
		return nil, err
	}

	if user.IsAdmin != isAdmin {
		if err := m.store.SetUserAdmin(ctx, user.ID, isAdmin); err != nil {
			return nil, err
		}
		user.IsAdmin = isAdmin
		m.log.InfoContext(ctx, "Admin flag reconciled", "telegram_id", telegramID, "is_admin", isAdmin)
	}
	return user, nil
}

// StartScenario creates a new active session for the scenario key, asks the
// model for the client's opening line, persists it, and caches session ID
// and system prompt in the conversation state.
func (m *Manager) StartScenario(ctx context.Context, chatID, telegramID int64, key string) (string, error) {
	tmpl, ok := scenario.Get(key)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownScenario, key)
	}

	user, err := m.store.GetUserByTelegramID(ctx, telegramID)
	if errors.Is(err, database.ErrNotFound) {
		return "", fmt.Errorf("%w: telegram id %d", ErrUserNotFound, telegramID)
	}
	if err != nil {
		return "", err
	}

	sc, err := m.store.GetOrCreateScenario(ctx, tmpl.Row())
	if err != nil {
		return "", err
	}

	sess := &database.Session{UserID: user.ID, ScenarioID: sc.ID}
	if err := m.store.CreateSession(ctx, sess); err != nil {
		return "", err
	}

	opening, err := m.generator.Generate(ctx, nil, sc.SystemPrompt, "")
	if err != nil {
		return "", fmt.Errorf("failed to generate opening line: %w", err)
	}

	if err := m.store.AddMessage(ctx, &database.Message{
		SessionID: sess.ID,
		Role:      database.RoleAssistant,
		Content:   opening,
	}); err != nil {
		return "", err
	}

	m.states.Set(chatID, State{
		Phase:        PhaseInDialog,
		SessionID:    sess.ID,
		SystemPrompt: sc.SystemPrompt,
	})

	m.log.InfoContext(ctx, "Session started",
		"session_id", sess.ID, "scenario", key, "telegram_id", telegramID)
	return opening, nil
}

// HandleTurn processes one trainee message: persist it, build the bounded
// transcript window, retrieve client-collection snippets, generate the
// simulated client's reply, persist it, and detect finish phrases. The
// returned finished flag tells the caller to close the session this turn.
func (m *Manager) HandleTurn(ctx context.Context, chatID int64, text string) (string, bool, error) {
	state := m.states.Get(chatID)
	if state.Phase != PhaseInDialog {
		return "", false, ErrNoActiveSession
	}

	if utf8.RuneCountInString(text) > m.maxMessageLength {
		return "", false, fmt.Errorf("%w: limit %d characters", ErrMessageTooLong, m.maxMessageLength)
	}

	if err := m.store.AddMessage(ctx, &database.Message{
		SessionID: state.SessionID,
		Role:      database.RoleUser,
		Content:   text,
	}); err != nil {
		return "", false, err
	}

	history, err := m.store.GetSessionMessages(ctx, state.SessionID, m.historyWindow)
	if err != nil {
		return "", false, err
	}

	transcript := make([]llm.Turn, 0, len(history))
	for _, msg := range history {
		transcript = append(transcript, llm.Turn{Role: msg.Role, Content: msg.Content})
	}

	var snippets []string
	if m.search != nil {
		snippets, err = m.search.Search(ctx, text, knowledge.CollectionClient, m.topK)
		if err != nil {
			m.log.WarnContext(ctx, "Knowledge search failed, continuing without context",
				"session_id", state.SessionID, "error", err)
			snippets = nil
		}
	}

	reply, err := m.generator.Generate(ctx, transcript, state.SystemPrompt, strings.Join(snippets, "\n"))
	if err != nil {
		return "", false, fmt.Errorf("failed to generate reply: %w", err)
	}

	if err := m.store.AddMessage(ctx, &database.Message{
		SessionID: state.SessionID,
		Role:      database.RoleAssistant,
		Content:   reply,
	}); err != nil {
		return "", false, err
	}

	return reply, m.detectFinish(reply), nil
}

// detectFinish reports whether the reply contains any configured finish
// phrase, case-insensitively, as a substring.
func (m *Manager) detectFinish(reply string) bool {
	lower := strings.ToLower(reply)
	for _, phrase := range m.finishPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// ActiveSession returns the session bound to the conversation, if any.
func (m *Manager) ActiveSession(chatID int64) (int64, bool) {
	state := m.states.Get(chatID)
	if state.Phase != PhaseInDialog {
		return 0, false
	}
	return state.SessionID, true
}

// Close completes a session and runs the secondary pipeline: evaluation,
// export, and summary assembly. Closing an already-completed session is a
// no-op that only clears conversation state. Evaluation and export failures
// are logged and swallowed; they never block closure.
func (m *Manager) Close(ctx context.Context, chatID, sessionID int64) (*Report, error) {
	log := m.log.With("session_id", sessionID)

	finishedAt := time.Now().UTC()
	transitioned, err := m.store.CompleteSession(ctx, sessionID, finishedAt)
	if err != nil {
		return nil, err
	}
	if !transitioned {
		log.InfoContext(ctx, "Session already closed, clearing state only")
		m.states.Clear(chatID)
		return nil, nil
	}

	// Re-fetch after the status commit so the summary is built from the
	// stored row, scenario, and owner.
	detail, err := m.store.GetSessionDetail(ctx, sessionID)
	if err != nil {
		m.states.Clear(chatID)
		return nil, err
	}

	report := &Report{}

	verdict, evalErr := m.evaluator.Evaluate(ctx, sessionID)
	if evalErr != nil {
		log.ErrorContext(ctx, "Evaluation failed, continuing with closure", "error", evalErr)
	}
	report.Verdict = verdict
	report.Evaluated = evalErr == nil

	messageCount, err := m.store.CountSessionMessages(ctx, sessionID)
	if err != nil {
		log.WarnContext(ctx, "Failed to count messages", "error", err)
	}

	if detail.FinishedAt.Valid {
		finishedAt = detail.FinishedAt.Time
	}
	report.Summary = sheets.Summary{
		SessionID:       sessionID,
		Trainee:         detail.TraineeLabel(),
		FinishedAt:      finishedAt,
		Scenario:        detail.ScenarioTitle,
		DurationMinutes: int(finishedAt.Sub(detail.StartedAt).Minutes()),
		MessageCount:    messageCount,
		Score:           verdict.Score,
		GoodPoints:      verdict.GoodPoints,
		Mistakes:        verdict.Mistakes,
		Recommendations: verdict.Recommendations,
	}

	m.export(ctx, report, detail)

	m.states.Clear(chatID)
	log.InfoContext(ctx, "Session closed", "score", verdict.Score, "messages", messageCount)
	return report, nil
}

func (m *Manager) export(ctx context.Context, report *Report, detail *database.SessionDetail) {
	if m.sink == nil {
		return
	}
	log := m.log.With("session_id", report.Summary.SessionID)

	if err := m.sink.WriteSummary(ctx, report.Summary); err != nil {
		log.ErrorContext(ctx, "Summary export failed", "error", err)
	}

	messages, err := m.store.GetSessionMessages(ctx, report.Summary.SessionID, 0)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load transcript for export", "error", err)
		return
	}
	if err := m.sink.WriteTranscript(ctx, report.Summary.SessionID,
		report.Summary.Trainee, FormatTranscript(messages)); err != nil {
		log.ErrorContext(ctx, "Transcript export failed", "error", err)
	}
}

// FormatTranscript renders a transcript with a clock time and role label per
// line, oldest first.
func FormatTranscript(messages []database.Message) string {
	var sb strings.Builder
	for _, msg := range messages {
		label := "Client"
		if msg.Role == database.RoleUser {
			label = "Trainee"
		}
		fmt.Fprintf(&sb, "%s %s: %s\n", msg.Timestamp.Format("15:04"), label, msg.Content)
	}
	return sb.String()
}
