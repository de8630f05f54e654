// Package index stores chunk vectors and answers nearest-neighbour queries.
package index

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/dgallion1/budgetqa/internal/document"
	"github.com/google/uuid"
)

// Record is one chunk ready to be indexed.
type Record struct {
	ID     string
	Chunk  document.Chunk
	Vector []float32
}

// Hit is a search result. Score is cosine similarity; Distance is 1 - Score.
type Hit struct {
	Chunk    document.Chunk `json:"chunk"`
	Score    float32        `json:"score"`
	Distance float32        `json:"distance"`
}

// Index is a vector store holding a single collection.
type Index interface {
	// Reset drops every record and recreates the empty collection.
	Reset(ctx context.Context) error
	Upsert(ctx context.Context, records []Record) error
	// Search returns up to k hits, most similar first.
	Search(ctx context.Context, vector []float32, k int) ([]Hit, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

var chunkNamespace = uuid.MustParse("7d5b1a4e-3c2f-4e8a-9b61-2f0c8d9e4a17")

// ChunkID derives a stable point ID from the chunk position and content, so
// re-ingesting the same chunks overwrites them.
func ChunkID(i int, c document.Chunk) string {
	sum := sha256.Sum256([]byte(c.Text))
	key := fmt.Sprintf("chunk_%d:%x", i, sum[:16])
	return uuid.NewSHA1(chunkNamespace, []byte(key)).String()
}

// NewRecords pairs chunks with their vectors.
func NewRecords(chunks []document.Chunk, vectors [][]float32) ([]Record, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("have %d chunks but %d vectors", len(chunks), len(vectors))
	}
	recs := make([]Record, len(chunks))
	for i, c := range chunks {
		recs[i] = Record{ID: ChunkID(i, c), Chunk: c, Vector: vectors[i]}
	}
	return recs, nil
}

func newHit(c document.Chunk, score float32) Hit {
	return Hit{Chunk: c, Score: score, Distance: 1 - score}
}
