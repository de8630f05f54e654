package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"strings"
	"sync"

	"github.com/gen2brain/go-fitz"
	"github.com/otiai10/gosseract/v2"
)

// Tesseract recognizes pages locally: go-fitz rasterizes the page and gosseract
// reads the image. It needs libmupdf and tesseract with the configured languages.
type Tesseract struct {
	mu     sync.Mutex
	client *gosseract.Client
	dpi    float64
}

// NewTesseract creates a local OCR engine. languages is "+"-separated, e.g. "chi_sim+eng".
func NewTesseract(languages string, dpi float64) (*Tesseract, error) {
	client := gosseract.NewClient()
	if err := client.SetLanguage(strings.Split(languages, "+")...); err != nil {
		client.Close()
		return nil, fmt.Errorf("set tesseract language: %w", err)
	}
	// Keep column spacing so table cells stay apart.
	if err := client.SetVariable("preserve_interword_spaces", "1"); err != nil {
		client.Close()
		return nil, fmt.Errorf("set tesseract variable: %w", err)
	}
	return &Tesseract{client: client, dpi: dpi}, nil
}

// RecognizePage renders the page to PNG and returns the recognized text.
func (t *Tesseract) RecognizePage(ctx context.Context, doc *Document, page int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	pdf, err := openPDF(doc)
	if err != nil {
		return "", err
	}

	if page < 1 || page > pdf.NumPage() {
		return "", fmt.Errorf("page %d out of range (1-%d)", page, pdf.NumPage())
	}
	img, err := pdf.ImageDPI(page-1, t.dpi)
	if err != nil {
		return "", fmt.Errorf("render page %d: %w", page, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode page %d: %w", page, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := t.client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// openPDF parses the document once and keeps it on doc until doc.Close.
func openPDF(doc *Document) (*fitz.Document, error) {
	doc.mu.Lock()
	defer doc.mu.Unlock()
	if doc.pdf != nil {
		return doc.pdf, nil
	}
	pdf, err := fitz.NewFromMemory(doc.Data)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	doc.pdf = pdf
	return pdf, nil
}

// Close releases the tesseract handle.
func (t *Tesseract) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client.Close()
}
