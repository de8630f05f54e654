package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgallion1/budgetqa/internal/document"
	"github.com/dgallion1/budgetqa/internal/ocr"
	pdflib "github.com/ledongthuc/pdf"
)

// PageCount returns the number of pages in a PDF.
func PageCount(data []byte) (int, error) {
	r, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	return r.NumPage(), nil
}

// TextLayerSource reads the embedded text layer of a PDF. It only helps for
// born-digital PDFs; scans come back empty.
type TextLayerSource struct {
	Log *slog.Logger
}

func (s *TextLayerSource) Extract(ctx context.Context, in Input, progress ProgressFunc) (Result, error) {
	r, err := pdflib.NewReader(bytes.NewReader(in.Data), int64(len(in.Data)))
	if err != nil {
		return Result{}, fmt.Errorf("open pdf: %w", err)
	}

	total := r.NumPage()
	res := Result{Pages: make([]document.Page, 0, total)}
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		text, err := pageText(r, i)
		if err != nil {
			if s.Log != nil {
				s.Log.Warn("text layer failed", "page", i, "error", err)
			}
			res.FailedPages = append(res.FailedPages, i)
			text = ocr.FailedPagePlaceholder(i)
		}
		res.Pages = append(res.Pages, document.Page{Number: i, Text: ocr.NormalizeMarkdown(text)})
		report(progress, i, total)
	}
	return res, nil
}

func pageText(r *pdflib.Reader, n int) (string, error) {
	page := r.Page(n)
	if page.V.IsNull() {
		return "", nil
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
