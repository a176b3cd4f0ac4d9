package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the data access operations used by the bot.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// GetUserByTelegramID returns the user with the given Telegram ID,
	// or ErrNotFound.
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*User, error)

	// CreateUser inserts a new user and fills in its generated ID.
	CreateUser(ctx context.Context, user *User) error

	// SetUserAdmin updates the stored admin flag for a user.
	SetUserAdmin(ctx context.Context, userID int64, isAdmin bool) error

	// ListEmployees returns all non-admin users.
	ListEmployees(ctx context.Context) ([]User, error)

	// GetOrCreateScenario returns the scenario row with the given name,
	// creating it from the provided template on first use.
	GetOrCreateScenario(ctx context.Context, tmpl *Scenario) (*Scenario, error)

	// CreateSession inserts a new active session and fills in its ID.
	CreateSession(ctx context.Context, session *Session) error

	// GetSessionDetail returns a session joined with its scenario and owner,
	// or ErrNotFound.
	GetSessionDetail(ctx context.Context, sessionID int64) (*SessionDetail, error)

	// CompleteSession transitions a session from active to completed and
	// records the finish time. It reports whether the transition happened;
	// false means the session was already completed (or missing), making
	// closure idempotent.
	CompleteSession(ctx context.Context, sessionID int64, finishedAt time.Time) (bool, error)

	// ListStaleActiveSessions returns active sessions started before the cutoff.
	ListStaleActiveSessions(ctx context.Context, cutoff time.Time) ([]SessionDetail, error)

	// AddMessage appends a message to a session transcript.
	AddMessage(ctx context.Context, message *Message) error

	// GetSessionMessages returns a session's messages in chronological order.
	// A positive limit restricts the result to the most recent N messages,
	// still returned oldest-first.
	GetSessionMessages(ctx context.Context, sessionID int64, limit int) ([]Message, error)

	// CountSessionMessages returns the number of messages in a session.
	CountSessionMessages(ctx context.Context, sessionID int64) (int, error)

	// CreateEvaluation inserts the verdict for a session. At most one
	// evaluation per session is enforced by the schema.
	CreateEvaluation(ctx context.Context, eval *Evaluation) error

	// HasEvaluation reports whether a session has already been evaluated.
	HasEvaluation(ctx context.Context, sessionID int64) (bool, error)
}

type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a Store backed by sqlx.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) GetUserByTelegramID(ctx context.Context, telegramID int64) (*User, error) {
	var user User
	err := s.db.GetContext(ctx, &user,
		`SELECT id, telegram_id, username, full_name, is_admin, created_at
         FROM users WHERE telegram_id = ?;`, telegramID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user with telegram id %d: %w", telegramID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by telegram id %d: %w", telegramID, err)
	}
	return &user, nil
}

func (s *sqlxStore) CreateUser(ctx context.Context, user *User) error {
	if user == nil {
		return errors.New("cannot create nil user")
	}
	if user.TelegramID == 0 {
		return errors.New("user must have a non-zero telegram_id")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.NamedExecContext(ctx,
		`INSERT INTO users (telegram_id, username, full_name, is_admin, created_at)
         VALUES (:telegram_id, :username, :full_name, :is_admin, :created_at);`, user)
	if err != nil {
		return fmt.Errorf("failed to create user (telegram id %d): %w", user.TelegramID, err)
	}
	if id, err := res.LastInsertId(); err == nil {
		user.ID = id
	}

	s.logger.DebugContext(ctx, "User created", "user_id", user.ID, "telegram_id", user.TelegramID)
	return nil
}

func (s *sqlxStore) SetUserAdmin(ctx context.Context, userID int64, isAdmin bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET is_admin = ? WHERE id = ?;`, isAdmin, userID)
	if err != nil {
		return fmt.Errorf("failed to update admin flag for user %d: %w", userID, err)
	}
	return nil
}

func (s *sqlxStore) ListEmployees(ctx context.Context) ([]User, error) {
	var users []User
	err := s.db.SelectContext(ctx, &users,
		`SELECT id, telegram_id, username, full_name, is_admin, created_at
         FROM users WHERE is_admin = 0 ORDER BY created_at;`)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	return users, nil
}

func (s *sqlxStore) GetOrCreateScenario(ctx context.Context, tmpl *Scenario) (*Scenario, error) {
	if tmpl == nil || tmpl.Name == "" {
		return nil, errors.New("scenario template must have a name")
	}

	var scenario Scenario
	err := s.db.GetContext(ctx, &scenario,
		`SELECT id, name, title, description, system_prompt, created_at
         FROM scenarios WHERE name = ?;`, tmpl.Name)
	if err == nil {
		return &scenario, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to look up scenario %q: %w", tmpl.Name, err)
	}

	created := *tmpl
	created.CreatedAt = time.Now().UTC()
	res, err := s.db.NamedExecContext(ctx,
		`INSERT INTO scenarios (name, title, description, system_prompt, created_at)
         VALUES (:name, :title, :description, :system_prompt, :created_at);`, &created)
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario %q: %w", tmpl.Name, err)
	}
	if id, err := res.LastInsertId(); err == nil {
		created.ID = id
	}

	s.logger.InfoContext(ctx, "Scenario materialized", "name", created.Name, "scenario_id", created.ID)
	return &created, nil
}

func (s *sqlxStore) CreateSession(ctx context.Context, session *Session) error {
	if session == nil {
		return errors.New("cannot create nil session")
	}
	if session.UserID == 0 || session.ScenarioID == 0 {
		return errors.New("session must reference a user and a scenario")
	}
	if session.Status == "" {
		session.Status = SessionActive
	}
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now().UTC()
	}

	res, err := s.db.NamedExecContext(ctx,
		`INSERT INTO sessions (user_id, scenario_id, status, started_at)
         VALUES (:user_id, :scenario_id, :status, :started_at);`, session)
	if err != nil {
		return fmt.Errorf("failed to create session (user %d): %w", session.UserID, err)
	}
	if id, err := res.LastInsertId(); err == nil {
		session.ID = id
	}

	s.logger.DebugContext(ctx, "Session created", "session_id", session.ID, "user_id", session.UserID)
	return nil
}

const sessionDetailQuery = `
    SELECT s.id, s.user_id, s.scenario_id, s.status, s.started_at, s.finished_at,
           sc.name AS scenario_name, sc.title AS scenario_title,
           u.telegram_id AS user_telegram_id, u.username AS user_username,
           u.full_name AS user_full_name
    FROM sessions s
    JOIN scenarios sc ON sc.id = s.scenario_id
    JOIN users u ON u.id = s.user_id`

func (s *sqlxStore) GetSessionDetail(ctx context.Context, sessionID int64) (*SessionDetail, error) {
	var detail SessionDetail
	err := s.db.GetContext(ctx, &detail, sessionDetailQuery+` WHERE s.id = ?;`, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %d: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session %d: %w", sessionID, err)
	}
	return &detail, nil
}

func (s *sqlxStore) CompleteSession(ctx context.Context, sessionID int64, finishedAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, finished_at = ?
         WHERE id = ? AND status = ?;`,
		SessionCompleted, finishedAt.UTC(), sessionID, SessionActive)
	if err != nil {
		return false, fmt.Errorf("failed to complete session %d: %w", sessionID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check completion of session %d: %w", sessionID, err)
	}
	if affected == 0 {
		s.logger.DebugContext(ctx, "Session already completed or missing", "session_id", sessionID)
		return false, nil
	}

	s.logger.InfoContext(ctx, "Session completed", "session_id", sessionID)
	return true, nil
}

func (s *sqlxStore) ListStaleActiveSessions(ctx context.Context, cutoff time.Time) ([]SessionDetail, error) {
	var details []SessionDetail
	err := s.db.SelectContext(ctx, &details,
		sessionDetailQuery+` WHERE s.status = ? AND s.started_at < ?;`,
		SessionActive, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list stale sessions: %w", err)
	}
	return details, nil
}

func (s *sqlxStore) AddMessage(ctx context.Context, message *Message) error {
	if message == nil {
		return errors.New("cannot save nil message")
	}
	if message.SessionID == 0 {
		return errors.New("message must have a non-zero session_id")
	}
	if message.Role != RoleUser && message.Role != RoleAssistant {
		return fmt.Errorf("unknown message role %q", message.Role)
	}
	if message.Content == "" {
		return errors.New("message must have non-empty content")
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now().UTC()
	}

	res, err := s.db.NamedExecContext(ctx,
		`INSERT INTO messages (session_id, role, content, timestamp)
         VALUES (:session_id, :role, :content, :timestamp);`, message)
	if err != nil {
		return fmt.Errorf("failed to save message (session %d): %w", message.SessionID, err)
	}
	if id, err := res.LastInsertId(); err == nil {
		message.ID = id
	}

	s.logger.DebugContext(ctx, "Message saved", "session_id", message.SessionID, "role", message.Role)
	return nil
}

func (s *sqlxStore) GetSessionMessages(ctx context.Context, sessionID int64, limit int) ([]Message, error) {
	var messages []Message

	if limit > 0 {
		// Fetch the newest N, then reverse to chronological order.
		err := s.db.SelectContext(ctx, &messages,
			`SELECT id, session_id, role, content, timestamp
             FROM messages WHERE session_id = ?
             ORDER BY timestamp DESC, id DESC LIMIT ?;`, sessionID, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to get messages for session %d: %w", sessionID, err)
		}
		for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
			messages[i], messages[j] = messages[j], messages[i]
		}
		return messages, nil
	}

	err := s.db.SelectContext(ctx, &messages,
		`SELECT id, session_id, role, content, timestamp
         FROM messages WHERE session_id = ?
         ORDER BY timestamp ASC, id ASC;`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages for session %d: %w", sessionID, err)
	}
	return messages, nil
}

func (s *sqlxStore) CountSessionMessages(ctx context.Context, sessionID int64) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM messages WHERE session_id = ?;`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages for session %d: %w", sessionID, err)
	}
	return count, nil
}

func (s *sqlxStore) CreateEvaluation(ctx context.Context, eval *Evaluation) error {
	if eval == nil {
		return errors.New("cannot create nil evaluation")
	}
	if eval.SessionID == 0 {
		return errors.New("evaluation must have a non-zero session_id")
	}
	if eval.EvaluatedAt.IsZero() {
		eval.EvaluatedAt = time.Now().UTC()
	}

	res, err := s.db.NamedExecContext(ctx,
		`INSERT INTO evaluations (session_id, score, good_points, mistakes, recommendations, evaluated_at)
         VALUES (:session_id, :score, :good_points, :mistakes, :recommendations, :evaluated_at);`, eval)
	if err != nil {
		return fmt.Errorf("failed to create evaluation (session %d): %w", eval.SessionID, err)
	}
	if id, err := res.LastInsertId(); err == nil {
		eval.ID = id
	}

	s.logger.InfoContext(ctx, "Evaluation saved", "session_id", eval.SessionID, "score", eval.Score)
	return nil
}

func (s *sqlxStore) HasEvaluation(ctx context.Context, sessionID int64) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM evaluations WHERE session_id = ?;`, sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to check evaluation for session %d: %w", sessionID, err)
	}
	return count > 0, nil
}
