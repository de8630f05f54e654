package extract

import (
	"context"
	"strings"

	"github.com/dgallion1/budgetqa/internal/document"
	"github.com/dgallion1/budgetqa/internal/ocr"
)

// MarkdownSource reads markdown or plain text. Form feeds separate pages;
// without one the whole file is page 1.
type MarkdownSource struct{}

func (s *MarkdownSource) Extract(ctx context.Context, in Input, progress ProgressFunc) (Result, error) {
	parts := strings.Split(string(in.Data), "\f")
	res := Result{Pages: make([]document.Page, 0, len(parts))}
	for i, part := range parts {
		res.Pages = append(res.Pages, document.Page{Number: i + 1, Text: ocr.NormalizeMarkdown(part)})
		report(progress, i+1, len(parts))
	}
	return res, nil
}
