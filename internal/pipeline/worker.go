package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/dgallion1/budgetqa/internal/chunker"
	"github.com/dgallion1/budgetqa/internal/document"
	"github.com/dgallion1/budgetqa/internal/embed"
	"github.com/dgallion1/budgetqa/internal/extract"
	"github.com/dgallion1/budgetqa/internal/index"
	"github.com/dgallion1/budgetqa/internal/ocr"
)

const (
	ExtractedPagesFile = "extracted_pages.json"
	ChunksPreviewFile  = "chunks_preview.json"
)

// Deps are the collaborators a Worker needs.
type Deps struct {
	// PDF extracts .pdf uploads (OCR or text layer).
	PDF      extract.Source
	Embedder embed.Embedder
	Index    index.Index
	Chunk    chunker.Config
	// OutDir receives extracted_pages.json and chunks_preview.json. Empty skips them.
	OutDir         string
	IndexBatchSize int
}

// Worker processes document jobs one at a time. Jobs share the output files
// and the collection, and a resetting job clears what others indexed.
type Worker struct {
	deps Deps
	log  *slog.Logger

	mu sync.Mutex
}

func NewWorker(deps Deps, log *slog.Logger) *Worker {
	if deps.IndexBatchSize <= 0 {
		deps.IndexBatchSize = 50
	}
	return &Worker{deps: deps, log: log}
}

// Process runs extraction, chunking, embedding and indexing for a job. The
// outcome is recorded on the job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	w.mu.Lock()
	defer w.mu.Unlock()

	log := w.log.With("job_id", job.ID, "filename", job.Filename)

	// Phase 1: Extract
	job.SetStatus(StatusExtracting, "extracting")
	pages, failed, err := w.extract(ctx, job, log)
	if err != nil {
		log.Error("extraction failed", "error", err)
		job.AddError(fmt.Sprintf("extract: %s", err))
		job.SetStatus(StatusFailed, "extracting")
		return
	}
	job.SetFailedPages(failed)
	if w.deps.OutDir != "" {
		if err := extract.SavePagesJSON(filepath.Join(w.deps.OutDir, ExtractedPagesFile), pages); err != nil {
			log.Warn("save extracted pages failed", "error", err)
		}
	}

	// Phase 2: Chunk
	job.SetStatus(StatusChunking, "chunking")
	chunks := chunker.ProcessPages(pages, w.deps.Chunk)
	job.SetTotalChunks(len(chunks))
	withHeader := 0
	for _, c := range chunks {
		if c.HasTableHeader() {
			withHeader++
		}
	}
	log.Info("chunked document", "pages", len(pages), "chunks", len(chunks), "with_table_header", withHeader)

	if len(chunks) == 0 {
		log.Warn("no chunks produced")
		job.AddError("no extractable content")
		job.SetStatus(StatusFailed, "chunking")
		return
	}
	if w.deps.OutDir != "" {
		if err := SaveChunksPreview(filepath.Join(w.deps.OutDir, ChunksPreviewFile), chunks); err != nil {
			log.Warn("save chunk preview failed", "error", err)
		}
	}

	// Phase 3: Embed
	job.SetStatus(StatusEmbedding, "embedding")
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := w.deps.Embedder.Embed(ctx, texts)
	if err != nil {
		log.Error("embedding failed", "error", err)
		job.AddError(fmt.Sprintf("embed: %s", err))
		job.SetStatus(StatusFailed, "embedding")
		return
	}
	records, err := index.NewRecords(chunks, vectors)
	if err != nil {
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "embedding")
		return
	}

	// Phase 4: Index
	job.SetStatus(StatusIndexing, "indexing")
	if job.ResetIndex {
		if err := w.deps.Index.Reset(ctx); err != nil {
			log.Error("index reset failed", "error", err)
			job.AddError(fmt.Sprintf("reset index: %s", err))
			job.SetStatus(StatusFailed, "indexing")
			return
		}
	}
	for start := 0; start < len(records); start += w.deps.IndexBatchSize {
		end := min(start+w.deps.IndexBatchSize, len(records))
		if err := w.deps.Index.Upsert(ctx, records[start:end]); err != nil {
			log.Error("index batch failed", "from", start, "to", end-1, "error", err)
			job.AddError(fmt.Sprintf("index chunks %d-%d: %s", start, end-1, err))
			job.SetStatus(StatusFailed, "indexing")
			return
		}
		job.AddChunksIndexed(end - start)
		log.Debug("indexed batch", "from", start+1, "to", end)
	}
	job.releaseFileData()

	if len(failed) > 0 {
		log.Warn("ingest finished with failed pages", "failed_pages", len(failed), "chunks", len(records))
		job.SetStatus(StatusPartial, "done")
		return
	}
	log.Info("ingest complete", "chunks", len(records))
	job.SetStatus(StatusCompleted, "done")
}

func (w *Worker) extract(ctx context.Context, job *Job, log *slog.Logger) ([]document.Page, []int, error) {
	if pages := job.Pages(); pages != nil {
		job.SetPageProgress(len(pages), len(pages))
		log.Info("using pre-extracted pages", "pages", len(pages))
		return pages, failedPlaceholders(pages), nil
	}

	src, err := extract.ForFile(job.Filename, w.deps.PDF)
	if err != nil {
		return nil, nil, err
	}
	res, err := src.Extract(ctx, extract.Input{Name: job.Filename, Data: job.FileData()}, job.SetPageProgress)
	if err != nil {
		return nil, nil, err
	}
	if res.Resumed > 0 {
		log.Info("resumed extraction", "pages_from_checkpoint", res.Resumed)
	}
	return res.Pages, res.FailedPages, nil
}

// failedPlaceholders finds placeholder pages in a saved extraction.
func failedPlaceholders(pages []document.Page) []int {
	var failed []int
	for _, p := range pages {
		if p.Text == ocr.FailedPagePlaceholder(p.Number) {
			failed = append(failed, p.Number)
		}
	}
	return failed
}
