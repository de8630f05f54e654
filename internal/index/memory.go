package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/dgallion1/budgetqa/internal/document"
)

// Memory is a brute-force cosine index. With a path it persists to a JSON
// file after every write and reloads it on open.
type Memory struct {
	mu      sync.RWMutex
	path    string
	records []Record
}

type storedRecord struct {
	ID     string         `json:"id"`
	Chunk  document.Chunk `json:"chunk"`
	Vector []float32      `json:"vector"`
}

// NewMemory opens the index at path. An empty path keeps it in memory only.
func NewMemory(path string) (*Memory, error) {
	m := &Memory{path: path}
	if path == "" {
		return m, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	var stored []storedRecord
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decode index %s: %w", path, err)
	}
	for _, s := range stored {
		m.records = append(m.records, Record(s))
	}
	return m, nil
}

func (m *Memory) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
	return m.saveLocked()
}

// Upsert replaces records with the same ID and appends the rest.
func (m *Memory) Upsert(ctx context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos := make(map[string]int, len(m.records))
	for i, r := range m.records {
		pos[r.ID] = i
	}
	for _, r := range records {
		if i, ok := pos[r.ID]; ok {
			m.records[i] = r
			continue
		}
		pos[r.ID] = len(m.records)
		m.records = append(m.records, r)
	}
	return m.saveLocked()
}

func (m *Memory) Search(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if k <= 0 {
		return nil, nil
	}
	hits := make([]Hit, 0, len(m.records))
	for _, r := range m.records {
		hits = append(hits, newHit(r.Chunk, cosine(vector, r.Vector)))
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

func (m *Memory) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) saveLocked() error {
	if m.path == "" {
		return nil
	}
	stored := make([]storedRecord, len(m.records))
	for i, r := range m.records {
		stored[i] = storedRecord(r)
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return os.Rename(tmp, m.path)
}

// cosine similarity; mismatched or zero vectors score 0.
func cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
