package database

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Session status values. A session only ever moves from active to completed.
const (
	SessionActive    = "active"
	SessionCompleted = "completed"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// User is a trainee or administrator known to the bot.
type User struct {
	ID         int64     `db:"id"`
	TelegramID int64     `db:"telegram_id"`
	Username   string    `db:"username"`
	FullName   string    `db:"full_name"`
	IsAdmin    bool      `db:"is_admin"`
	CreatedAt  time.Time `db:"created_at"`
}

// Scenario is a roleplay configuration materialized from the static catalog.
// Name is the catalog key and is unique.
type Scenario struct {
	ID           int64     `db:"id"`
	Name         string    `db:"name"`
	Title        string    `db:"title"`
	Description  string    `db:"description"`
	SystemPrompt string    `db:"system_prompt"`
	CreatedAt    time.Time `db:"created_at"`
}

// Session is one roleplay conversation from scenario selection to closure.
type Session struct {
	ID         int64        `db:"id"`
	UserID     int64        `db:"user_id"`
	ScenarioID int64        `db:"scenario_id"`
	Status     string       `db:"status"`
	StartedAt  time.Time    `db:"started_at"`
	FinishedAt sql.NullTime `db:"finished_at"`
}

// SessionDetail is a session joined with its scenario and owner, as needed
// at closure.
type SessionDetail struct {
	Session
	ScenarioName   string `db:"scenario_name"`
	ScenarioTitle  string `db:"scenario_title"`
	UserTelegramID int64  `db:"user_telegram_id"`
	UserUsername   string `db:"user_username"`
	UserFullName   string `db:"user_full_name"`
}

// TraineeLabel returns the best human-readable name for the session's owner.
func (d *SessionDetail) TraineeLabel() string {
	if d.UserUsername != "" {
		return d.UserUsername
	}
	if d.UserFullName != "" {
		return d.UserFullName
	}
	return fmt.Sprintf("id:%d", d.UserTelegramID)
}

// Message is one turn of a session transcript. Rows are append-only.
type Message struct {
	ID        int64     `db:"id"`
	SessionID int64     `db:"session_id"`
	Role      string    `db:"role"`
	Content   string    `db:"content"`
	Timestamp time.Time `db:"timestamp"`
}

// StringList stores a []string as a JSON array in a TEXT column.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal string list: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case string:
		return json.Unmarshal([]byte(v), l)
	case []byte:
		return json.Unmarshal(v, l)
	default:
		return fmt.Errorf("unsupported type %T for string list", src)
	}
}

// Evaluation is the judge's verdict on a completed session. At most one per
// session; never updated once written.
type Evaluation struct {
	ID              int64      `db:"id"`
	SessionID       int64      `db:"session_id"`
	Score           int        `db:"score"`
	GoodPoints      StringList `db:"good_points"`
	Mistakes        StringList `db:"mistakes"`
	Recommendations string     `db:"recommendations"`
	EvaluatedAt     time.Time  `db:"evaluated_at"`
}
