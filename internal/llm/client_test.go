package llm

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/fieldry/salestrainer/internal/config"
)

// newCompletionServer returns a server that always answers with the given
// content and token usage, recording the last request body.
func newCompletionServer(t *testing.T, content string, totalTokens int, lastReq *openai.ChatCompletionRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if lastReq != nil {
			if err := json.NewDecoder(r.Body).Decode(lastReq); err != nil {
				t.Errorf("failed to decode request: %v", err)
			}
		}
		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}},
			},
			Usage: openai.Usage{TotalTokens: totalTokens},
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("failed to encode response: %v", err)
		}
	}))
}

func testClient(baseURL string, dailyLimit float64) *Client {
	return NewClient(config.LLMConfig{
		APIKey:         "test-key",
		BaseURL:        baseURL + "/v1",
		Model:          "test-model",
		Temperature:    0.7,
		MaxTokens:      256,
		DailyCostLimit: dailyLimit,
		Timeout:        5 * time.Second,
	}, slog.New(slog.DiscardHandler))
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	var req openai.ChatCompletionRequest
	srv := newCompletionServer(t, "I'm not interested.", 42, &req)
	defer srv.Close()

	client := testClient(srv.URL, 0)
	reply, err := client.Generate(context.Background(),
		[]Turn{{Role: "assistant", Content: "Hello?"}, {Role: "user", Content: "Hi, this is Alex."}},
		"You are a skeptical client.", "Company background.")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if reply != "I'm not interested." {
		t.Errorf("reply = %q", reply)
	}

	if len(req.Messages) != 3 {
		t.Fatalf("message count = %d, want 3", len(req.Messages))
	}
	system := req.Messages[0]
	if system.Role != openai.ChatMessageRoleSystem {
		t.Errorf("first message role = %q, want system", system.Role)
	}
	if system.Content != "You are a skeptical client.\n\nContext:\nCompany background." {
		t.Errorf("system content = %q", system.Content)
	}
	if req.Messages[1].Role != "assistant" || req.Messages[2].Role != "user" {
		t.Errorf("transcript roles = %q, %q", req.Messages[1].Role, req.Messages[2].Role)
	}
	if req.Model != "test-model" {
		t.Errorf("model = %q", req.Model)
	}
}

func TestGenerateCostLimit(t *testing.T) {
	t.Parallel()

	// 100000 tokens at $0.00001 each is $1, exactly the ceiling.
	srv := newCompletionServer(t, "ok", 100000, nil)
	defer srv.Close()

	client := testClient(srv.URL, 1.0)
	ctx := context.Background()

	if _, err := client.Generate(ctx, nil, "prompt", ""); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := client.Generate(ctx, nil, "prompt", ""); !errors.Is(err, ErrCostLimit) {
		t.Errorf("err = %v, want ErrCostLimit", err)
	}
}

func TestGenerateEstimatesTokensWithoutUsage(t *testing.T) {
	t.Parallel()

	srv := newCompletionServer(t, "a reply of some length", 0, nil)
	defer srv.Close()

	client := testClient(srv.URL, 1.0)
	if _, err := client.Generate(context.Background(), nil, "prompt", ""); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if client.costSpent <= 0 {
		t.Error("cost was not tracked from the length estimate")
	}
}
