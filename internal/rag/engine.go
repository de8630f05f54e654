// Package rag answers questions from the indexed budget document.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgallion1/budgetqa/internal/embed"
	"github.com/dgallion1/budgetqa/internal/index"
)

const (
	MinK = 1
	MaxK = 10
)

// ErrEmptyQuestion is returned for a blank question.
var ErrEmptyQuestion = errors.New("question is empty")

// Result is an answer with the chunks it was generated from.
type Result struct {
	Query   string      `json:"query"`
	Answer  string      `json:"answer"`
	Sources []index.Hit `json:"sources"`
}

// Engine retrieves the chunks closest to a question and asks the model to answer from them.
type Engine struct {
	embedder  embed.Embedder
	index     index.Index
	generator Generator
	log       *slog.Logger
}

func NewEngine(e embed.Embedder, idx index.Index, g Generator, log *slog.Logger) *Engine {
	return &Engine{embedder: e, index: idx, generator: g, log: log}
}

// ClampK keeps k within [MinK, MaxK].
func ClampK(k int) int {
	return max(MinK, min(k, MaxK))
}

// Retrieve returns the k hits closest to the question.
func (e *Engine) Retrieve(ctx context.Context, question string, k int) ([]index.Hit, error) {
	vec, err := embed.EmbedQuery(ctx, e.embedder, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	hits, err := e.index.Search(ctx, vec, ClampK(k))
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return hits, nil
}

// Query answers a question from the k closest chunks.
func (e *Engine) Query(ctx context.Context, question string, k int) (Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Result{}, ErrEmptyQuestion
	}
	k = ClampK(k)
	started := time.Now()

	hits, err := e.Retrieve(ctx, question, k)
	if err != nil {
		return Result{}, err
	}

	answer, err := e.generator.Generate(ctx, SystemPrompt, BuildUserMessage(BuildContext(hits), question))
	if err != nil {
		return Result{}, fmt.Errorf("generate answer: %w", err)
	}

	e.log.Info("query answered", "k", k, "sources", len(hits), "duration_ms", time.Since(started).Milliseconds())
	return Result{Query: question, Answer: answer, Sources: hits}, nil
}
