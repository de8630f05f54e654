package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgallion1/budgetqa/internal/document"
	"github.com/dgallion1/budgetqa/internal/index"
)

const previewRunes = 200

// ChunkPreview is a short summary of an indexed chunk, written for inspection.
type ChunkPreview struct {
	ID             string `json:"id"`
	TextPreview    string `json:"text_preview"`
	StartPage      int    `json:"start_page"`
	EndPage        int    `json:"end_page"`
	Section        string `json:"section"`
	HasTableHeader bool   `json:"has_table_header"`
}

// Previews summarises chunks, truncating text to 200 runes.
func Previews(chunks []document.Chunk) []ChunkPreview {
	out := make([]ChunkPreview, len(chunks))
	for i, c := range chunks {
		text := c.Text
		if r := []rune(text); len(r) > previewRunes {
			text = string(r[:previewRunes]) + "..."
		}
		out[i] = ChunkPreview{
			ID:             index.ChunkID(i, c),
			TextPreview:    text,
			StartPage:      c.StartPage,
			EndPage:        c.EndPage,
			Section:        c.Section,
			HasTableHeader: c.HasTableHeader(),
		}
	}
	return out
}

// SaveChunksPreview writes chunk previews as indented JSON.
func SaveChunksPreview(path string, chunks []document.Chunk) error {
	data, err := json.MarshalIndent(Previews(chunks), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal previews: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write previews: %w", err)
	}
	return nil
}
