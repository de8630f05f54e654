package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/budgetqa/internal/document"
	"github.com/dgallion1/budgetqa/internal/ocr"
	"github.com/dgallion1/budgetqa/internal/retry"
)

// OCRSource recognizes a PDF page by page. Pages already in the document's
// checkpoint are reused; each new page is saved as soon as it is recognized, so an interrupted
// run resumes where it stopped. A page that still fails after retries is
// recorded as a placeholder and listed in Result.FailedPages.
type OCRSource struct {
	Engine     ocr.Engine
	Checkpoint *Checkpoint // optional
	Retry      retry.Policy
	Log        *slog.Logger

	// Every ProgressEvery pages the source logs progress and sleeps for Pause.
	ProgressEvery int
	Pause         time.Duration

	// PageCount overrides how the page total is found. Defaults to the PDF reader.
	PageCount func(data []byte) (int, error)
}

func (s *OCRSource) Extract(ctx context.Context, in Input, progress ProgressFunc) (Result, error) {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("document", in.Name)

	count := s.PageCount
	if count == nil {
		count = PageCount
	}
	total, err := count(in.Data)
	if err != nil {
		return Result{}, err
	}
	if total == 0 {
		return Result{}, fmt.Errorf("%s has no pages", in.Name)
	}

	done := map[int]string{}
	var cp *DocCheckpoint
	if s.Checkpoint != nil {
		cp = s.Checkpoint.For(in.Data)
		done, err = cp.Load()
		if err != nil {
			return Result{}, fmt.Errorf("load checkpoint: %w", err)
		}
	}

	var res Result
	if len(done) > 0 {
		log.Info("resuming ocr", "pages_done", len(done), "total_pages", total)
	}

	doc := ocr.NewDocument(in.Name, in.Data)
	defer doc.Close()
	processed := 0
	for n := 1; n <= total; n++ {
		// Placeholders from an earlier run are recognized again.
		if text, ok := done[n]; ok && text != ocr.FailedPagePlaceholder(n) {
			res.Pages = append(res.Pages, document.Page{Number: n, Text: text})
			res.Resumed++
			report(progress, n, total)
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		var text string
		err := s.Retry.Do(ctx, log, fmt.Sprintf("ocr page %d", n), func(ctx context.Context) error {
			var rerr error
			text, rerr = s.Engine.RecognizePage(ctx, doc, n)
			return rerr
		})
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			log.Error("ocr failed", "page", n, "error", err)
			res.FailedPages = append(res.FailedPages, n)
			text = ocr.FailedPagePlaceholder(n)
		} else {
			text = ocr.NormalizeMarkdown(text)
			log.Debug("page recognized", "page", n, "chars", len([]rune(text)))
		}

		res.Pages = append(res.Pages, document.Page{Number: n, Text: text})
		if cp != nil {
			if err := cp.Save(n, text); err != nil {
				log.Warn("checkpoint save failed", "page", n, "error", err)
			}
		}
		report(progress, n, total)

		processed++
		if s.ProgressEvery > 0 && processed%s.ProgressEvery == 0 {
			log.Info("ocr progress", "page", n, "total_pages", total, "failed", len(res.FailedPages))
			if s.Pause > 0 {
				select {
				case <-time.After(s.Pause):
				case <-ctx.Done():
					return res, ctx.Err()
				}
			}
		}
	}

	if len(res.FailedPages) > 0 {
		log.Warn("ocr finished with failures", "failed_pages", len(res.FailedPages), "first", firstN(res.FailedPages, 10))
	} else {
		log.Info("ocr complete", "pages", len(res.Pages))
	}
	return res, nil
}

func firstN(pages []int, n int) []int {
	if len(pages) <= n {
		return pages
	}
	return pages[:n]
}
