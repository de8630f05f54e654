// Package app builds the services shared by the binaries from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/budgetqa/internal/chunker"
	"github.com/dgallion1/budgetqa/internal/config"
	"github.com/dgallion1/budgetqa/internal/embed"
	"github.com/dgallion1/budgetqa/internal/extract"
	"github.com/dgallion1/budgetqa/internal/index"
	"github.com/dgallion1/budgetqa/internal/ocr"
	"github.com/dgallion1/budgetqa/internal/pipeline"
	"github.com/dgallion1/budgetqa/internal/rag"
	"github.com/dgallion1/budgetqa/internal/retry"
)

// Options select which parts are built.
type Options struct {
	// Ingest builds the PDF extractor and opens the OCR checkpoint.
	Ingest bool
}

// App holds the wired services.
type App struct {
	Config config.Config
	Log    *slog.Logger
	Stats  *rag.LLMStats

	OCR        ocr.Engine          // nil unless ingesting with an OCR backend
	Checkpoint *extract.Checkpoint // nil unless ingesting with an OCR backend
	PDF        extract.Source

	Embedder *embed.Client
	Index    index.Index
	Chat     *rag.ChatClient
	Engine   *rag.Engine
}

// New connects to the index and builds the clients. Close releases them.
func New(ctx context.Context, cfg config.Config, log *slog.Logger, opts Options) (*App, error) {
	a := &App{Config: cfg, Log: log, Stats: rag.NewLLMStats(time.Hour)}
	policy := retry.DefaultPolicy(cfg.RateLimitWait)

	idx, err := openIndex(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Index = idx

	a.Embedder = embed.NewClient(embed.Config{
		APIKey:      cfg.MistralAPIKey,
		BaseURL:     cfg.MistralBaseURL,
		Model:       cfg.EmbeddingModel,
		BatchSize:   cfg.EmbedBatchSize,
		Concurrency: cfg.MaxConcurrentEmbed,
		Retry:       policy,
	}, log, a.Stats)
	a.Chat = rag.NewChatClient(rag.ChatConfig{
		APIKey:      cfg.MistralAPIKey,
		BaseURL:     cfg.MistralBaseURL,
		Model:       cfg.ChatModel,
		Temperature: cfg.Temperature,
		Retry:       policy,
	}, log, a.Stats)
	a.Engine = rag.NewEngine(a.Embedder, a.Index, a.Chat, log)

	if opts.Ingest {
		if err := a.buildExtractor(cfg, log, policy); err != nil {
			a.Close()
			return nil, err
		}
	}

	log.Info("services ready",
		"index_backend", cfg.IndexBackend,
		"collection", cfg.Collection,
		"ocr_backend", cfg.OCRBackend,
		"chat_model", cfg.ChatModel,
		"embedding_model", cfg.EmbeddingModel,
		"max_chunk_size", cfg.MaxChunkSize,
		"overlap_lines", cfg.OverlapLines,
		"chunk_overlap_chars", cfg.ChunkOverlap, // informational, the chunker overlaps by lines
	)
	return a, nil
}

func openIndex(ctx context.Context, cfg config.Config) (index.Index, error) {
	switch cfg.IndexBackend {
	case "memory":
		return index.NewMemory(cfg.MemoryIndexPath())
	case "qdrant":
		q, err := index.NewQdrant(index.QdrantConfig{
			Host:       cfg.QdrantHost,
			Port:       cfg.QdrantPort,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.Collection,
			VectorSize: cfg.VectorSize,
		})
		if err != nil {
			return nil, err
		}
		if err := q.Ensure(ctx); err != nil {
			q.Close()
			return nil, fmt.Errorf("ensure collection %s: %w", cfg.Collection, err)
		}
		return q, nil
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.IndexBackend)
	}
}

func (a *App) buildExtractor(cfg config.Config, log *slog.Logger, policy retry.Policy) error {
	switch cfg.OCRBackend {
	case "text":
		a.PDF = &extract.TextLayerSource{Log: log}
		return nil
	case "mistral":
		a.OCR = ocr.NewMistralClient(cfg.MistralAPIKey, cfg.MistralBaseURL, cfg.OCRModel)
	case "tesseract":
		t, err := ocr.NewTesseract(cfg.OCRLanguage, cfg.OCRDPI)
		if err != nil {
			return fmt.Errorf("start tesseract: %w", err)
		}
		a.OCR = t
	default:
		return fmt.Errorf("unknown ocr backend %q", cfg.OCRBackend)
	}

	cp, err := extract.OpenCheckpoint(cfg.CheckpointPath())
	if err != nil {
		return err
	}
	a.Checkpoint = cp
	a.PDF = &extract.OCRSource{
		Engine:        a.OCR,
		Checkpoint:    cp,
		Retry:         policy,
		Log:           log,
		ProgressEvery: cfg.ProgressEvery,
		Pause:         time.Second,
	}
	return nil
}

// ChunkConfig is the chunker configuration. The character overlap is carried
// for reference; chunks overlap by OverlapLines.
func (a *App) ChunkConfig() chunker.Config {
	return chunker.Config{
		MaxChunkSize: a.Config.MaxChunkSize,
		Overlap:      a.Config.ChunkOverlap,
		OverlapLines: a.Config.OverlapLines,
	}
}

// Worker builds an ingestion worker writing its previews to VECTORSTORE_DIR.
func (a *App) Worker() *pipeline.Worker {
	return pipeline.NewWorker(pipeline.Deps{
		PDF:            a.PDF,
		Embedder:       a.Embedder,
		Index:          a.Index,
		Chunk:          a.ChunkConfig(),
		OutDir:         a.Config.VectorstoreDir,
		IndexBatchSize: a.Config.IndexBatchSize,
	}, a.Log)
}

// Close releases every client that was opened.
func (a *App) Close() error {
	var errs []error
	if a.OCR != nil {
		errs = append(errs, a.OCR.Close())
	}
	if a.Checkpoint != nil {
		errs = append(errs, a.Checkpoint.Close())
	}
	if a.Index != nil {
		errs = append(errs, a.Index.Close())
	}
	return errors.Join(errs...)
}
