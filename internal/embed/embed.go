// Package embed turns text into vectors through Mistral's OpenAI-compatible
// embeddings endpoint.
package embed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/budgetqa/internal/retry"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/sync/errgroup"
)

// Op is the stats operation name for embedding calls.
const Op = "embed"

// Embedder maps texts to vectors, one per text in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Recorder receives the latency of each remote call.
type Recorder interface {
	Record(op string, d time.Duration, err error)
}

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	BatchSize   int
	Concurrency int
	Retry       retry.Policy
}

// Client batches texts and embeds batches concurrently.
type Client struct {
	api   openai.Client
	cfg   Config
	log   *slog.Logger
	stats Recorder
}

func NewClient(cfg Config, log *slog.Logger, stats Recorder) *Client {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	api := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(0),
	)
	return &Client{api: api, cfg: cfg, log: log, stats: stats}
}

// Embed returns one vector per text. Any failed batch fails the call.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for start := 0; start < len(texts); start += c.cfg.BatchSize {
		end := min(start+c.cfg.BatchSize, len(texts))
		g.Go(func() error {
			vecs, err := c.embedBatch(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embed texts %d-%d: %w", start, end-1, err)
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	var vecs [][]float32
	err := c.cfg.Retry.Do(ctx, c.log, "embed", func(ctx context.Context) error {
		started := time.Now()
		resp, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: batch},
			Model: openai.EmbeddingModel(c.cfg.Model),
		})
		if c.stats != nil {
			c.stats.Record(Op, time.Since(started), err)
		}
		if err != nil {
			return err
		}
		if len(resp.Data) != len(batch) {
			return fmt.Errorf("expected %d embeddings, got %d", len(batch), len(resp.Data))
		}
		vecs = make([][]float32, len(batch))
		for _, d := range resp.Data {
			if d.Index < 0 || int(d.Index) >= len(batch) {
				return fmt.Errorf("embedding index %d out of range", d.Index)
			}
			vecs[d.Index] = toFloat32(d.Embedding)
		}
		return nil
	})
	return vecs, err
}

// EmbedQuery embeds a single question.
func EmbedQuery(ctx context.Context, e Embedder, query string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(vecs))
	}
	return vecs[0], nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
