package judge

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/fieldry/salestrainer/internal/database"
	"github.com/fieldry/salestrainer/internal/knowledge"
	"github.com/fieldry/salestrainer/internal/llm"
)

// fakeStore implements only the Store methods the judge touches; the rest
// panic through the embedded nil interface.
type fakeStore struct {
	database.Store

	messages    []database.Message
	messagesErr error

	hasEvaluation bool
	saved         *database.Evaluation
	createErr     error
}

func (f *fakeStore) GetSessionMessages(_ context.Context, _ int64, _ int) ([]database.Message, error) {
	return f.messages, f.messagesErr
}

func (f *fakeStore) HasEvaluation(_ context.Context, _ int64) (bool, error) {
	return f.hasEvaluation, nil
}

func (f *fakeStore) CreateEvaluation(_ context.Context, eval *database.Evaluation) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.saved = eval
	return nil
}

// fakeGenerator replays scripted replies and records every call.
type fakeGenerator struct {
	replies []string
	errs    []error
	calls   int
}

func (f *fakeGenerator) Generate(_ context.Context, _ []llm.Turn, _ string, _ string) (string, error) {
	i := f.calls
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var reply string
	if i < len(f.replies) {
		reply = f.replies[i]
	}
	return reply, err
}

type fakeSearcher struct {
	snippets []string
	queries  []string
}

func (f *fakeSearcher) Search(_ context.Context, query string, _ knowledge.Collection, _ int) ([]string, error) {
	f.queries = append(f.queries, query)
	return f.snippets, nil
}

func newTestEngine(store database.Store, gen llm.Generator, search knowledge.Searcher) *Engine {
	e := NewEngine(store, gen, search, 3, slog.New(slog.DiscardHandler))
	e.delay = func(time.Duration) {}
	return e
}

func sessionMessages() []database.Message {
	return []database.Message{
		{Role: database.RoleAssistant, Content: "Hello, who is this?"},
		{Role: database.RoleUser, Content: "Hi, this is Alex from Acme."},
		{Role: database.RoleAssistant, Content: "I'm listening."},
	}
}

func TestEvaluateSuccess(t *testing.T) {
	t.Parallel()

	store := &fakeStore{messages: sessionMessages()}
	gen := &fakeGenerator{replies: []string{
		`{"score": 8, "good_points": ["opened well"], "mistakes": [], "recommendations": "good"}`,
	}}

	verdict, err := newTestEngine(store, gen, nil).Evaluate(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict.Score != 8 {
		t.Errorf("score = %d, want 8", verdict.Score)
	}
	if gen.calls != 1 {
		t.Errorf("generator calls = %d, want 1", gen.calls)
	}
	if store.saved == nil {
		t.Fatal("verdict was not persisted")
	}
	if store.saved.Score != 8 {
		t.Errorf("persisted score = %d, want 8", store.saved.Score)
	}
}

func TestEvaluateEmptySessionSkipsModel(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	gen := &fakeGenerator{}

	verdict, err := newTestEngine(store, gen, nil).Evaluate(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.calls != 0 {
		t.Errorf("generator calls = %d, want 0 for empty session", gen.calls)
	}
	if verdict.Score != 5 {
		t.Errorf("score = %d, want default 5", verdict.Score)
	}
	if store.saved == nil {
		t.Fatal("default verdict was not persisted")
	}
}

func TestEvaluateRetriesOnBadReply(t *testing.T) {
	t.Parallel()

	store := &fakeStore{messages: sessionMessages()}
	gen := &fakeGenerator{replies: []string{
		"I think the trainee did fine.",
		"```json\n{\"score\": 6, \"recommendations\": \"ok\"}\n```",
	}}

	verdict, err := newTestEngine(store, gen, nil).Evaluate(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.calls != 2 {
		t.Errorf("generator calls = %d, want 2", gen.calls)
	}
	if verdict.Score != 6 {
		t.Errorf("score = %d, want 6", verdict.Score)
	}
}

func TestEvaluateExhaustedRetriesDefaultVerdict(t *testing.T) {
	t.Parallel()

	store := &fakeStore{messages: sessionMessages()}
	genErr := errors.New("model unavailable")
	gen := &fakeGenerator{errs: []error{genErr, genErr, genErr}}

	verdict, err := newTestEngine(store, gen, nil).Evaluate(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.calls != 3 {
		t.Errorf("generator calls = %d, want 3", gen.calls)
	}
	if verdict.Score != 5 {
		t.Errorf("score = %d, want default 5", verdict.Score)
	}
	if store.saved == nil {
		t.Fatal("default verdict was not persisted")
	}
}

func TestEvaluateKeepsFirstVerdict(t *testing.T) {
	t.Parallel()

	store := &fakeStore{messages: sessionMessages(), hasEvaluation: true}
	gen := &fakeGenerator{replies: []string{`{"score": 9, "recommendations": "x"}`}}

	if _, err := newTestEngine(store, gen, nil).Evaluate(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.saved != nil {
		t.Error("second verdict overwrote the first")
	}
}

func TestEvaluateEnrichesWithScripts(t *testing.T) {
	t.Parallel()

	store := &fakeStore{messages: sessionMessages()}
	gen := &fakeGenerator{replies: []string{`{"score": 7, "recommendations": "x"}`}}
	search := &fakeSearcher{snippets: []string{"Always confirm the next step."}}

	if _, err := newTestEngine(store, gen, search).Evaluate(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(search.queries) != 1 {
		t.Fatalf("search queries = %d, want 1", len(search.queries))
	}
	// Only trainee lines feed the rubric lookup.
	if search.queries[0] != "Hi, this is Alex from Acme.\n" {
		t.Errorf("unexpected search query %q", search.queries[0])
	}
}

func TestRenderTranscript(t *testing.T) {
	t.Parallel()

	got := RenderTranscript(sessionMessages())
	want := "Client: Hello, who is this?\nTrainee: Hi, this is Alex from Acme.\nClient: I'm listening.\n"
	if got != want {
		t.Errorf("transcript mismatch:\ngot  %q\nwant %q", got, want)
	}
}
