package extract

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/dgallion1/budgetqa/internal/document"
)

// SavePagesJSON writes pages as an indented JSON array of {"page","text"}
// objects, the format reloaded by LoadPagesJSON.
func SavePagesJSON(path string, pages []document.Page) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	data, err := json.MarshalIndent(pages, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal pages: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// LoadPagesJSON reads pages saved by SavePagesJSON, sorted by page number.
// Entries with a page number below 1 are rejected.
func LoadPagesJSON(path string) ([]document.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var pages []document.Page
	if err := json.Unmarshal(data, &pages); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	for _, p := range pages {
		if p.Number < 1 {
			return nil, fmt.Errorf("%s: invalid page number %d", path, p.Number)
		}
	}
	sort.SliceStable(pages, func(i, j int) bool { return pages[i].Number < pages[j].Number })
	return pages, nil
}
