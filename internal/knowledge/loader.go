package knowledge

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/philippgille/chromem-go"
)

const chunkSize = 500

// LoadDir walks the knowledge base directory and ingests every supported
// file (.txt, .md, .pdf). Files whose path contains a "scripts" segment go
// into the scripts collection, everything else into the client collection.
// Already-ingested chunks keep their IDs, so reloading is an upsert.
func (s *Store) LoadDir(ctx context.Context, dir string) error {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		s.log.Warn("Knowledge base directory not found, skipping load", "dir", dir)
		return nil
	}

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		text, err := extractText(path)
		if err != nil {
			s.log.Warn("Failed to read knowledge file, skipping", "path", path, "error", err)
			return nil
		}
		if strings.TrimSpace(text) == "" {
			return nil
		}

		col := s.client
		colLabel := CollectionClient
		if strings.Contains(strings.ToLower(path), "scripts") {
			col = s.scripts
			colLabel = CollectionScripts
		}

		docs := chunkDocuments(filepath.Base(path), text)
		if len(docs) == 0 {
			return nil
		}
		if err := col.AddDocuments(ctx, docs, 1); err != nil {
			return fmt.Errorf("failed to ingest %s: %w", path, err)
		}

		s.log.Info("Knowledge file ingested", "path", path, "collection", colLabel, "chunks", len(docs))
		return nil
	})
}

func extractText(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	case ".pdf":
		return extractPDFText(path)
	default:
		return "", nil
	}
}

func extractPDFText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}
	return buf.String(), nil
}

func chunkDocuments(source, text string) []chromem.Document {
	chunks := splitChunks(text, chunkSize)

	docs := make([]chromem.Document, 0, len(chunks))
	for i, chunk := range chunks {
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		docs = append(docs, chromem.Document{
			ID:       fmt.Sprintf("%s_chunk_%d", source, i),
			Content:  chunk,
			Metadata: map[string]string{"source": source},
		})
	}
	return docs
}

// splitChunks cuts text into fixed-size rune windows.
func splitChunks(text string, size int) []string {
	if size <= 0 {
		return nil
	}
	runes := []rune(text)

	var chunks []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
