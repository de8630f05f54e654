package ocr

import "testing"

// onePagePDF is a minimal single-page PDF; mupdf rebuilds the missing xref.
const onePagePDF = "%PDF-1.4\n" +
	"1 0 obj << /Type /Catalog /Pages 2 0 R >> endobj\n" +
	"2 0 obj << /Type /Pages /Kids [3 0 R] /Count 1 >> endobj\n" +
	"3 0 obj << /Type /Page /Parent 2 0 R /MediaBox [0 0 200 200] >> endobj\n" +
	"trailer << /Root 1 0 R >>\n" +
	"%%EOF\n"

func TestOpenPDF_ParsesOncePerDocument(t *testing.T) {
	doc := NewDocument("a.pdf", []byte(onePagePDF))
	first, err := openPDF(doc)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if n := first.NumPage(); n != 1 {
		t.Errorf("expected 1 page, got %d", n)
	}
	for range 3 {
		again, err := openPDF(doc)
		if err != nil {
			t.Fatalf("reopen: %v", err)
		}
		if again != first {
			t.Fatal("expected the parsed pdf to be reused")
		}
	}

	if err := doc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if doc.pdf != nil {
		t.Error("expected close to drop the parsed pdf")
	}
	if err := doc.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestOpenPDF_InvalidDataNotCached(t *testing.T) {
	doc := NewDocument("bad.pdf", []byte("not a pdf"))
	if _, err := openPDF(doc); err == nil {
		t.Fatal("expected error for invalid pdf")
	}
	if doc.pdf != nil {
		t.Error("failed parse must not be cached")
	}
}
