package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/fieldry/salestrainer/internal/database"
	"github.com/fieldry/salestrainer/migrations"
)

// newTestStore opens an in-memory database with the embedded schema applied.
func newTestStore(t *testing.T) database.Store {
	t.Helper()

	db, err := sqlx.Connect("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema, err := migrations.FS.ReadFile("000001_init.up.sql")
	if err != nil {
		t.Fatalf("failed to read schema: %v", err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}

	return database.NewStore(db, nil)
}

func seedSession(t *testing.T, store database.Store, startedAt time.Time) (*database.User, *database.Session) {
	t.Helper()
	ctx := context.Background()

	user := &database.User{TelegramID: 100, Username: "alex", FullName: "Alex Doe"}
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	scenario, err := store.GetOrCreateScenario(ctx, &database.Scenario{
		Name: "cold_call", Title: "Cold call", SystemPrompt: "You are a client.",
	})
	if err != nil {
		t.Fatalf("GetOrCreateScenario: %v", err)
	}

	session := &database.Session{UserID: user.ID, ScenarioID: scenario.ID, StartedAt: startedAt}
	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return user, session
}

func TestUserRoundtrip(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.GetUserByTelegramID(ctx, 100); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	user := &database.User{TelegramID: 100, Username: "alex", FullName: "Alex Doe"}
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.ID == 0 {
		t.Error("CreateUser did not fill in the ID")
	}

	got, err := store.GetUserByTelegramID(ctx, 100)
	if err != nil {
		t.Fatalf("GetUserByTelegramID: %v", err)
	}
	if got.Username != "alex" || got.FullName != "Alex Doe" || got.IsAdmin {
		t.Errorf("unexpected user %+v", got)
	}

	if err := store.SetUserAdmin(ctx, user.ID, true); err != nil {
		t.Fatalf("SetUserAdmin: %v", err)
	}
	got, err = store.GetUserByTelegramID(ctx, 100)
	if err != nil {
		t.Fatalf("GetUserByTelegramID: %v", err)
	}
	if !got.IsAdmin {
		t.Error("admin flag not persisted")
	}
}

func TestListEmployeesExcludesAdmins(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	for _, u := range []*database.User{
		{TelegramID: 1, Username: "boss", IsAdmin: true},
		{TelegramID: 2, Username: "emp1"},
		{TelegramID: 3, Username: "emp2"},
	} {
		if err := store.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
	}

	employees, err := store.ListEmployees(ctx)
	if err != nil {
		t.Fatalf("ListEmployees: %v", err)
	}
	if len(employees) != 2 {
		t.Fatalf("employee count = %d, want 2", len(employees))
	}
	for _, e := range employees {
		if e.IsAdmin {
			t.Errorf("admin %q in employee list", e.Username)
		}
	}
}

func TestGetOrCreateScenarioIsIdempotent(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	tmpl := &database.Scenario{Name: "cold_call", Title: "Cold call", SystemPrompt: "p"}
	first, err := store.GetOrCreateScenario(ctx, tmpl)
	if err != nil {
		t.Fatalf("first GetOrCreateScenario: %v", err)
	}
	second, err := store.GetOrCreateScenario(ctx, tmpl)
	if err != nil {
		t.Fatalf("second GetOrCreateScenario: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("scenario IDs differ: %d vs %d", first.ID, second.ID)
	}
}

func TestCompleteSessionIsIdempotent(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	_, session := seedSession(t, store, time.Now().UTC())
	finishedAt := time.Now().UTC()

	transitioned, err := store.CompleteSession(ctx, session.ID, finishedAt)
	if err != nil {
		t.Fatalf("first CompleteSession: %v", err)
	}
	if !transitioned {
		t.Fatal("first completion should transition")
	}

	transitioned, err = store.CompleteSession(ctx, session.ID, finishedAt.Add(time.Minute))
	if err != nil {
		t.Fatalf("second CompleteSession: %v", err)
	}
	if transitioned {
		t.Error("second completion should be a no-op")
	}

	detail, err := store.GetSessionDetail(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSessionDetail: %v", err)
	}
	if detail.Status != database.SessionCompleted {
		t.Errorf("status = %q, want completed", detail.Status)
	}
	if !detail.FinishedAt.Valid {
		t.Error("finished_at not recorded")
	}

	if _, err := store.CompleteSession(ctx, 9999, finishedAt); err != nil {
		t.Errorf("completing a missing session should not error, got %v", err)
	}
}

func TestGetSessionDetailJoins(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	_, session := seedSession(t, store, time.Now().UTC())

	detail, err := store.GetSessionDetail(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("GetSessionDetail: %v", err)
	}
	if detail.ScenarioName != "cold_call" || detail.ScenarioTitle != "Cold call" {
		t.Errorf("scenario join: %q / %q", detail.ScenarioName, detail.ScenarioTitle)
	}
	if detail.UserTelegramID != 100 || detail.UserUsername != "alex" {
		t.Errorf("user join: %d / %q", detail.UserTelegramID, detail.UserUsername)
	}
	if detail.TraineeLabel() != "alex" {
		t.Errorf("trainee label = %q", detail.TraineeLabel())
	}

	if _, err := store.GetSessionDetail(context.Background(), 9999); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListStaleActiveSessions(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	user, old := seedSession(t, store, now.Add(-2*time.Hour))

	scenario, err := store.GetOrCreateScenario(ctx, &database.Scenario{Name: "cold_call", SystemPrompt: "p"})
	if err != nil {
		t.Fatalf("GetOrCreateScenario: %v", err)
	}
	fresh := &database.Session{UserID: user.ID, ScenarioID: scenario.ID, StartedAt: now}
	if err := store.CreateSession(ctx, fresh); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	closed := &database.Session{UserID: user.ID, ScenarioID: scenario.ID, StartedAt: now.Add(-3 * time.Hour)}
	if err := store.CreateSession(ctx, closed); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := store.CompleteSession(ctx, closed.ID, now); err != nil {
		t.Fatalf("CompleteSession: %v", err)
	}

	stale, err := store.ListStaleActiveSessions(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("ListStaleActiveSessions: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != old.ID {
		t.Errorf("stale sessions = %+v, want only session %d", stale, old.ID)
	}
}

func TestMessagesWindowAndOrder(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	_, session := seedSession(t, store, time.Now().UTC())

	base := time.Now().UTC().Add(-time.Minute)
	contents := []string{"m1", "m2", "m3", "m4", "m5"}
	for i, c := range contents {
		role := database.RoleUser
		if i%2 == 1 {
			role = database.RoleAssistant
		}
		msg := &database.Message{
			SessionID: session.ID,
			Role:      role,
			Content:   c,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}
		if err := store.AddMessage(ctx, msg); err != nil {
			t.Fatalf("AddMessage: %v", err)
		}
	}

	all, err := store.GetSessionMessages(ctx, session.ID, 0)
	if err != nil {
		t.Fatalf("GetSessionMessages: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("message count = %d, want 5", len(all))
	}
	for i, m := range all {
		if m.Content != contents[i] {
			t.Errorf("message %d = %q, want %q", i, m.Content, contents[i])
		}
	}

	// A limited read returns the most recent N, still oldest-first.
	window, err := store.GetSessionMessages(ctx, session.ID, 3)
	if err != nil {
		t.Fatalf("GetSessionMessages with limit: %v", err)
	}
	if len(window) != 3 {
		t.Fatalf("window size = %d, want 3", len(window))
	}
	for i, want := range []string{"m3", "m4", "m5"} {
		if window[i].Content != want {
			t.Errorf("window %d = %q, want %q", i, window[i].Content, want)
		}
	}

	count, err := store.CountSessionMessages(ctx, session.ID)
	if err != nil {
		t.Fatalf("CountSessionMessages: %v", err)
	}
	if count != 5 {
		t.Errorf("count = %d, want 5", count)
	}
}

func TestEvaluationRoundtrip(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	_, session := seedSession(t, store, time.Now().UTC())

	has, err := store.HasEvaluation(ctx, session.ID)
	if err != nil {
		t.Fatalf("HasEvaluation: %v", err)
	}
	if has {
		t.Fatal("fresh session should have no evaluation")
	}

	eval := &database.Evaluation{
		SessionID:       session.ID,
		Score:           7,
		GoodPoints:      database.StringList{"good opener", "asked questions"},
		Mistakes:        database.StringList{"weak close"},
		Recommendations: "practice closing",
	}
	if err := store.CreateEvaluation(ctx, eval); err != nil {
		t.Fatalf("CreateEvaluation: %v", err)
	}

	has, err = store.HasEvaluation(ctx, session.ID)
	if err != nil {
		t.Fatalf("HasEvaluation: %v", err)
	}
	if !has {
		t.Error("evaluation not recorded")
	}

	// The schema enforces one evaluation per session.
	dup := &database.Evaluation{SessionID: session.ID, Score: 9}
	if err := store.CreateEvaluation(ctx, dup); err == nil {
		t.Error("second evaluation for the same session should fail")
	}
}
