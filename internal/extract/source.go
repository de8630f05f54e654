// Package extract produces per-page text from input documents.
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dgallion1/budgetqa/internal/document"
)

// Input is a document to extract.
type Input struct {
	Name string
	Data []byte
}

// ProgressFunc is called after each page with the number of pages done so far.
type ProgressFunc func(done, total int)

// Result holds extracted pages in page order.
type Result struct {
	Pages       []document.Page
	FailedPages []int
	// Resumed counts pages restored from a checkpoint instead of extracted.
	Resumed int
}

// Source turns one document into pages.
type Source interface {
	Extract(ctx context.Context, in Input, progress ProgressFunc) (Result, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".pdf":      true,
	".docx":     true,
	".md":       true,
	".markdown": true,
	".txt":      true,
}

// ForFile returns the source for a filename. PDFs go to pdf, which is the OCR
// or text-layer source picked by configuration.
func ForFile(filename string, pdf Source) (Source, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		if pdf == nil {
			return nil, fmt.Errorf("no pdf source configured")
		}
		return pdf, nil
	case ".docx":
		return &DOCXSource{}, nil
	case ".md", ".markdown", ".txt":
		return &MarkdownSource{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

func report(progress ProgressFunc, done, total int) {
	if progress != nil {
		progress(done, total)
	}
}
