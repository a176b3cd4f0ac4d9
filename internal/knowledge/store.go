// Package knowledge provides the vector-searchable knowledge base used to
// ground the simulated client's replies and the judge's rubric. It is backed
// by an embedded chromem-go database with two collections: one for client
// roleplay material and one for reference sales scripts.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/philippgille/chromem-go"

	"github.com/fieldry/salestrainer/internal/config"
)

// Collection names the two knowledge partitions.
type Collection string

const (
	// CollectionClient grounds the simulated client's replies.
	CollectionClient Collection = "client"
	// CollectionScripts holds reference scripts used as the judge's rubric.
	CollectionScripts Collection = "scripts"
)

const (
	clientCollectionName  = "client_knowledge"
	scriptsCollectionName = "sales_scripts"
)

// Searcher answers nearest-neighbor queries against a knowledge collection.
type Searcher interface {
	Search(ctx context.Context, query string, collection Collection, topK int) ([]string, error)
}

// Store is a persistent chromem-go database with the two fixed collections.
type Store struct {
	log     *slog.Logger
	client  *chromem.Collection
	scripts *chromem.Collection
}

// NewStore opens (or creates) the persistent vector database at cfg.Path and
// ensures both collections exist. Embeddings are produced by the same
// OpenAI-compatible endpoint the chat client talks to.
func NewStore(cfg config.KnowledgeConfig, llmCfg config.LLMConfig, log *slog.Logger) (*Store, error) {
	db, err := chromem.NewPersistentDB(cfg.Path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open knowledge database: %w", err)
	}

	embed := chromem.NewEmbeddingFuncOpenAICompat(llmCfg.BaseURL, llmCfg.APIKey, cfg.EmbeddingModel, nil)
	return newStore(db, embed, log)
}

func newStore(db *chromem.DB, embed chromem.EmbeddingFunc, log *slog.Logger) (*Store, error) {
	client, err := db.GetOrCreateCollection(clientCollectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %q: %w", clientCollectionName, err)
	}
	scripts, err := db.GetOrCreateCollection(scriptsCollectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %q: %w", scriptsCollectionName, err)
	}

	logger := log.With("component", "knowledge_store")
	logger.Info("Knowledge store opened",
		"client_docs", client.Count(), "scripts_docs", scripts.Count())

	return &Store{log: logger, client: client, scripts: scripts}, nil
}

func (s *Store) collection(c Collection) *chromem.Collection {
	if c == CollectionScripts {
		return s.scripts
	}
	return s.client
}

// Search returns up to topK snippets most similar to the query, ordered by
// similarity. An empty collection or a failed query yields an empty slice;
// search never fails a dialog turn.
func (s *Store) Search(ctx context.Context, query string, collection Collection, topK int) ([]string, error) {
	col := s.collection(collection)

	count := col.Count()
	if count == 0 {
		s.log.DebugContext(ctx, "Knowledge collection is empty", "collection", collection)
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	results, err := col.Query(ctx, query, topK, nil, nil)
	if err != nil {
		s.log.WarnContext(ctx, "Knowledge query failed", "collection", collection, "error", err)
		return nil, nil
	}

	snippets := make([]string, 0, len(results))
	for _, r := range results {
		snippets = append(snippets, r.Content)
	}
	return snippets, nil
}
