// Package ocr turns single PDF pages into markdown text.
package ocr

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/go-fitz"
)

// Engine recognizes one page of a PDF document. Page numbers are 1-based.
type Engine interface {
	RecognizePage(ctx context.Context, doc *Document, page int) (string, error)
	Close() error
}

// Document is the PDF being recognized. Engines cache per-document state on it:
// the uploaded file URL or the parsed PDF. Close releases that state.
type Document struct {
	Name string
	Data []byte

	mu        sync.Mutex
	remoteURL string
	pdf       *fitz.Document
}

// NewDocument wraps raw PDF bytes.
func NewDocument(name string, data []byte) *Document {
	return &Document{Name: name, Data: data}
}

func (d *Document) cachedURL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.remoteURL
}

func (d *Document) setURL(u string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.remoteURL = u
}

// Close releases the parsed PDF, if any.
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pdf == nil {
		return nil
	}
	err := d.pdf.Close()
	d.pdf = nil
	return err
}

// FailedPagePlaceholder is the text recorded for a page whose OCR failed.
func FailedPagePlaceholder(page int) string {
	return fmt.Sprintf("[OCR failed for page %d]", page)
}
