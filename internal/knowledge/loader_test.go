package knowledge

import (
	"strings"
	"testing"
)

func TestSplitChunks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		text     string
		size     int
		expected []string
	}{
		{
			name:     "shorter than one chunk",
			text:     "short",
			size:     10,
			expected: []string{"short"},
		},
		{
			name:     "exact multiple",
			text:     "aabbcc",
			size:     2,
			expected: []string{"aa", "bb", "cc"},
		},
		{
			name:     "trailing remainder",
			text:     "aabbc",
			size:     2,
			expected: []string{"aa", "bb", "c"},
		},
		{
			name:     "empty text",
			text:     "",
			size:     2,
			expected: nil,
		},
		{
			name:     "zero size",
			text:     "abc",
			size:     0,
			expected: nil,
		},
		{
			name: "multibyte runes are not split",
			text: "привет мир",
			size: 6,
			expected: []string{
				"привет",
				" мир",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := splitChunks(tc.text, tc.size)
			if len(got) != len(tc.expected) {
				t.Fatalf("chunk count = %d, want %d (%q)", len(got), len(tc.expected), got)
			}
			for i := range got {
				if got[i] != tc.expected[i] {
					t.Errorf("chunk %d = %q, want %q", i, got[i], tc.expected[i])
				}
			}
		})
	}
}

func TestChunkDocuments(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("a", chunkSize) + strings.Repeat("b", 10)
	docs := chunkDocuments("handbook.txt", text)

	if len(docs) != 2 {
		t.Fatalf("doc count = %d, want 2", len(docs))
	}
	if docs[0].ID != "handbook.txt_chunk_0" || docs[1].ID != "handbook.txt_chunk_1" {
		t.Errorf("unexpected chunk IDs %q, %q", docs[0].ID, docs[1].ID)
	}
	if docs[0].Metadata["source"] != "handbook.txt" {
		t.Errorf("source metadata = %q", docs[0].Metadata["source"])
	}
	if len(docs[0].Content) != chunkSize {
		t.Errorf("first chunk length = %d, want %d", len(docs[0].Content), chunkSize)
	}
}

func TestChunkDocumentsSkipsBlankChunks(t *testing.T) {
	t.Parallel()

	docs := chunkDocuments("blank.txt", "   \n\t  ")
	if len(docs) != 0 {
		t.Errorf("doc count = %d, want 0 for whitespace-only text", len(docs))
	}
}
