// Package judge scores completed roleplay sessions with an LLM and persists
// the verdict. The model is only informally constrained to emit JSON, so a
// non-compliant reply is an expected, recoverable condition: extraction is
// defensive, retries are bounded, and every failure path ends in a fixed
// default verdict rather than an error.
package judge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fieldry/salestrainer/internal/database"
	"github.com/fieldry/salestrainer/internal/knowledge"
	"github.com/fieldry/salestrainer/internal/llm"
)

const (
	maxAttempts  = 3
	attemptDelay = 2 * time.Second
)

const systemPrompt = `You are an experienced sales coach evaluating a training roleplay.
The transcript below is a conversation between a Trainee (a salesperson) and a
Client (a simulated customer). Judge only the Trainee's performance. Do not
continue the roleplay.

Respond with a single JSON object and nothing else:
{"score": <integer 0-10>, "good_points": [<strings>], "mistakes": [<strings>], "recommendations": <string>}`

// Evaluator produces a verdict for a finished session.
type Evaluator interface {
	Evaluate(ctx context.Context, sessionID int64) (Verdict, error)
}

// Engine implements Evaluator on top of the store, the LLM client, and the
// scripts knowledge collection.
type Engine struct {
	log       *slog.Logger
	store     database.Store
	generator llm.Generator
	search    knowledge.Searcher
	topK      int

	// delay is swappable in tests.
	delay func(time.Duration)
}

// NewEngine creates an evaluation engine. search may be nil, in which case
// the rubric enrichment step is skipped.
func NewEngine(store database.Store, generator llm.Generator, search knowledge.Searcher, topK int, log *slog.Logger) *Engine {
	return &Engine{
		log:       log.With("component", "judge"),
		store:     store,
		generator: generator,
		search:    search,
		topK:      topK,
		delay:     time.Sleep,
	}
}

// Evaluate scores the session's transcript and persists the verdict. It
// never returns an error for model non-compliance; after the retry budget is
// exhausted the default verdict is persisted and returned. The returned
// error covers only storage failures.
func (e *Engine) Evaluate(ctx context.Context, sessionID int64) (Verdict, error) {
	log := e.log.With("session_id", sessionID)

	messages, err := e.store.GetSessionMessages(ctx, sessionID, 0)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load transcript", "error", err)
		return DefaultVerdict(), fmt.Errorf("failed to load transcript for session %d: %w", sessionID, err)
	}
	if len(messages) == 0 {
		log.WarnContext(ctx, "Session has no messages, returning default verdict")
		verdict := DefaultVerdict()
		return verdict, e.persist(ctx, sessionID, verdict)
	}

	prompt := e.enrichPrompt(ctx, messages)
	transcript := RenderTranscript(messages)

	verdict := DefaultVerdict()
	var lastReply string
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		reply, genErr := e.generator.Generate(ctx,
			[]llm.Turn{{Role: database.RoleUser, Content: transcript}}, prompt, "")
		if genErr != nil {
			log.WarnContext(ctx, "Judge generation failed", "attempt", attempt, "error", genErr)
		} else {
			lastReply = reply
			parsed, parseErr := ParseVerdict(reply)
			if parseErr == nil {
				verdict = parsed
				log.InfoContext(ctx, "Session evaluated", "score", verdict.Score, "attempt", attempt)
				return verdict, e.persist(ctx, sessionID, verdict)
			}
			log.WarnContext(ctx, "Judge reply did not parse", "attempt", attempt, "error", parseErr)
		}

		if attempt < maxAttempts {
			e.delay(attemptDelay)
		}
	}

	log.ErrorContext(ctx, "Evaluation retries exhausted, using default verdict",
		"raw_reply", lastReply)
	return verdict, e.persist(ctx, sessionID, verdict)
}

// enrichPrompt appends reference-script snippets matched against the
// trainee's own messages to the judge system prompt.
func (e *Engine) enrichPrompt(ctx context.Context, messages []database.Message) string {
	if e.search == nil {
		return systemPrompt
	}

	var trainee strings.Builder
	for _, m := range messages {
		if m.Role == database.RoleUser {
			trainee.WriteString(m.Content)
			trainee.WriteString("\n")
		}
	}
	if trainee.Len() == 0 {
		return systemPrompt
	}

	snippets, err := e.search.Search(ctx, trainee.String(), knowledge.CollectionScripts, e.topK)
	if err != nil || len(snippets) == 0 {
		return systemPrompt
	}

	return systemPrompt + "\n\nReference scripts to evaluate against:\n" + strings.Join(snippets, "\n---\n")
}

// RenderTranscript renders messages as labeled plain text. Sending the
// transcript as a single user turn keeps the judge from resuming the
// roleplay instead of scoring it.
func RenderTranscript(messages []database.Message) string {
	var sb strings.Builder
	for _, m := range messages {
		label := "Client"
		if m.Role == database.RoleUser {
			label = "Trainee"
		}
		fmt.Fprintf(&sb, "%s: %s\n", label, m.Content)
	}
	return sb.String()
}

func (e *Engine) persist(ctx context.Context, sessionID int64, verdict Verdict) error {
	exists, err := e.store.HasEvaluation(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to check existing evaluation: %w", err)
	}
	if exists {
		e.log.WarnContext(ctx, "Session already evaluated, keeping first verdict", "session_id", sessionID)
		return nil
	}

	return e.store.CreateEvaluation(ctx, &database.Evaluation{
		SessionID:       sessionID,
		Score:           verdict.Score,
		GoodPoints:      database.StringList(verdict.GoodPoints),
		Mistakes:        database.StringList(verdict.Mistakes),
		Recommendations: verdict.Recommendations,
	})
}
