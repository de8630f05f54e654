// Command ingest extracts the budget PDF, chunks it and fills the vector index.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dgallion1/budgetqa/internal/app"
	"github.com/dgallion1/budgetqa/internal/config"
	"github.com/dgallion1/budgetqa/internal/extract"
	"github.com/dgallion1/budgetqa/internal/pipeline"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	cfg := config.Load()

	pdfPath := flag.String("pdf", cfg.PDFPath, "document to ingest (.pdf, .docx, .md, .txt)")
	resume := flag.Bool("resume", true, "reuse pages recognized by an earlier run")
	pagesJSON := flag.String("pages-json", "", "chunk a saved extracted_pages.json instead of extracting")
	reset := flag.Bool("reset", true, "drop the collection before indexing")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	job, err := buildJob(*pdfPath, *pagesJSON)
	if err != nil {
		log.Error("cannot read input", "error", err)
		os.Exit(1)
	}
	job.ResetIndex = *reset

	a, err := app.New(ctx, cfg, log, app.Options{Ingest: *pagesJSON == ""})
	if err != nil {
		log.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if !*resume && a.Checkpoint != nil && job.FileData() != nil {
		if err := a.Checkpoint.For(job.FileData()).Reset(); err != nil {
			log.Error("reset checkpoint failed", "error", err)
			a.Close()
			os.Exit(1)
		}
		log.Info("checkpoint cleared")
	}

	log.Info("ingest starting", "input", job.Filename, "resume", *resume, "reset_index", job.ResetIndex)
	a.Worker().Process(ctx, job)

	snap := job.Snapshot()
	log.Info("ingest summary",
		"status", snap.Status,
		"pages", snap.Progress.TotalPages,
		"failed_pages", snap.Progress.FailedPages,
		"chunks", snap.Progress.TotalChunks,
		"chunks_indexed", snap.Progress.ChunksIndexed,
		"index_backend", cfg.IndexBackend,
		"collection", cfg.Collection,
		"output_dir", cfg.VectorstoreDir,
	)
	if snap.Status == pipeline.StatusFailed {
		log.Error("ingest failed", "errors", snap.Progress.Errors)
		a.Close()
		os.Exit(1)
	}
}

func buildJob(pdfPath, pagesJSON string) (*pipeline.Job, error) {
	if pagesJSON != "" {
		pages, err := extract.LoadPagesJSON(pagesJSON)
		if err != nil {
			return nil, err
		}
		return pipeline.NewJobFromPages(filepath.Base(pagesJSON), pages), nil
	}
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return nil, err
	}
	return pipeline.NewJob(filepath.Base(pdfPath), data), nil
}
