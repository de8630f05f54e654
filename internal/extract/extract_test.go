package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/budgetqa/internal/document"
	"github.com/dgallion1/budgetqa/internal/ocr"
	"github.com/dgallion1/budgetqa/internal/retry"
	"github.com/fumiama/go-docx"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeEngine returns "page N" text and fails pages listed in fail.
type fakeEngine struct {
	mu    sync.Mutex
	fail  map[int]error
	calls map[int]int
}

func (f *fakeEngine) RecognizePage(ctx context.Context, doc *ocr.Document, page int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[int]int{}
	}
	f.calls[page]++
	if err, ok := f.fail[page]; ok {
		return "", err
	}
	return "# 第" + string(rune('0'+page)) + "页\r\n｜ 项目 ｜ 数量 ｜", nil
}

func (f *fakeEngine) Close() error { return nil }

func fixedPages(n int) func([]byte) (int, error) {
	return func([]byte) (int, error) { return n, nil }
}

func noRetry() retry.Policy {
	return retry.Policy{MaxRetries: 2, Backoff: func(int) time.Duration { return 0 }}
}

func TestOCRSource_AllPages(t *testing.T) {
	eng := &fakeEngine{}
	src := &OCRSource{Engine: eng, Retry: noRetry(), Log: quiet, PageCount: fixedPages(3)}

	var progress []int
	res, err := src.Extract(context.Background(), Input{Name: "a.pdf"}, func(done, total int) {
		if total != 3 {
			t.Errorf("expected total 3, got %d", total)
		}
		progress = append(progress, done)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(res.Pages))
	}
	for i, p := range res.Pages {
		if p.Number != i+1 {
			t.Errorf("page %d has number %d", i, p.Number)
		}
		if strings.Contains(p.Text, "\r") || strings.Contains(p.Text, "｜") {
			t.Errorf("page %d not normalized: %q", p.Number, p.Text)
		}
	}
	if len(progress) != 3 || progress[2] != 3 {
		t.Errorf("unexpected progress calls: %v", progress)
	}
}

func TestOCRSource_FailedPageGetsPlaceholder(t *testing.T) {
	eng := &fakeEngine{fail: map[int]error{2: status.Error(codes.Unavailable, "ocr busy")}}
	src := &OCRSource{Engine: eng, Retry: noRetry(), Log: quiet, PageCount: fixedPages(3)}

	res, err := src.Extract(context.Background(), Input{Name: "a.pdf"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.FailedPages) != 1 || res.FailedPages[0] != 2 {
		t.Errorf("expected failed page [2], got %v", res.FailedPages)
	}
	if res.Pages[1].Text != "[OCR failed for page 2]" {
		t.Errorf("expected placeholder, got %q", res.Pages[1].Text)
	}
	if eng.calls[2] != 2 {
		t.Errorf("expected 2 attempts on retryable failure, got %d", eng.calls[2])
	}
}

func TestOCRSource_PermanentErrorNotRetried(t *testing.T) {
	eng := &fakeEngine{fail: map[int]error{1: errors.New("corrupt page")}}
	src := &OCRSource{Engine: eng, Retry: noRetry(), Log: quiet, PageCount: fixedPages(1)}

	res, err := src.Extract(context.Background(), Input{Name: "a.pdf"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eng.calls[1] != 1 {
		t.Errorf("expected 1 attempt, got %d", eng.calls[1])
	}
	if len(res.FailedPages) != 1 {
		t.Errorf("expected one failed page, got %v", res.FailedPages)
	}
}

func TestOCRSource_ResumesFromCheckpoint(t *testing.T) {
	cp, err := OpenCheckpoint(filepath.Join(t.TempDir(), "progress.db"))
	if err != nil {
		t.Fatalf("open checkpoint: %v", err)
	}
	defer cp.Close()

	data := []byte("pdf bytes")
	eng := &fakeEngine{fail: map[int]error{3: errors.New("boom")}}
	src := &OCRSource{Engine: eng, Checkpoint: cp, Retry: noRetry(), Log: quiet, PageCount: fixedPages(3)}
	if _, err := src.Extract(context.Background(), Input{Name: "a.pdf", Data: data}, nil); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// Second run: pages 1-2 come from the checkpoint, the failed page is tried again.
	eng2 := &fakeEngine{}
	src.Engine = eng2
	res, err := src.Extract(context.Background(), Input{Name: "a.pdf", Data: data}, nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.Resumed != 2 {
		t.Errorf("expected 2 resumed pages, got %d", res.Resumed)
	}
	if eng2.calls[1] != 0 || eng2.calls[2] != 0 || eng2.calls[3] != 1 {
		t.Errorf("unexpected calls on resume: %v", eng2.calls)
	}
	if len(res.FailedPages) != 0 {
		t.Errorf("expected no failures after retry, got %v", res.FailedPages)
	}
}

func TestOCRSource_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &OCRSource{Engine: &fakeEngine{}, Retry: noRetry(), Log: quiet, PageCount: fixedPages(2)}
	if _, err := src.Extract(ctx, Input{Name: "a.pdf"}, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCheckpoint_DocumentsAreIsolated(t *testing.T) {
	cp, err := OpenCheckpoint(filepath.Join(t.TempDir(), "progress.db"))
	if err != nil {
		t.Fatalf("open checkpoint: %v", err)
	}
	defer cp.Close()

	a := cp.For([]byte("doc A"))
	a.Save(2, "two")
	a.Save(1, "one")

	pages, err := a.Pages()
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 2 || pages[0].Number != 1 || pages[1].Text != "two" {
		t.Errorf("unexpected pages: %+v", pages)
	}

	// Same bytes map to the same pages.
	if m, _ := cp.For([]byte("doc A")).Load(); len(m) != 2 {
		t.Errorf("expected pages kept for same document, got %d", len(m))
	}

	b := cp.For([]byte("doc B"))
	if m, _ := b.Load(); len(m) != 0 {
		t.Errorf("expected no pages for new document, got %d", len(m))
	}
	b.Save(1, "B one")
	if m, _ := a.Load(); m[1] != "one" || len(m) != 2 {
		t.Errorf("saving doc B changed doc A: %v", m)
	}
	if n, err := cp.Documents(); err != nil || n != 2 {
		t.Errorf("expected 2 documents, got %d (%v)", n, err)
	}

	if err := b.Reset(); err != nil {
		t.Fatal(err)
	}
	if m, _ := a.Load(); len(m) != 2 {
		t.Errorf("resetting doc B dropped doc A pages: %v", m)
	}
}

func TestCheckpoint_Reset(t *testing.T) {
	cp, err := OpenCheckpoint(filepath.Join(t.TempDir(), "sub", "progress.db"))
	if err != nil {
		t.Fatalf("open checkpoint: %v", err)
	}
	defer cp.Close()
	cp.For([]byte("a")).Save(1, "x")
	cp.For([]byte("b")).Save(1, "y")
	if err := cp.Reset(); err != nil {
		t.Fatal(err)
	}
	if m, _ := cp.For([]byte("a")).Load(); len(m) != 0 {
		t.Errorf("expected empty after reset, got %d", len(m))
	}
	if n, _ := cp.Documents(); n != 0 {
		t.Errorf("expected no documents after reset, got %d", n)
	}
}

// nameEngine answers with the document name and page number. onPage runs
// before a page is recognized.
type nameEngine struct {
	onPage func(page int)
}

func (e *nameEngine) RecognizePage(ctx context.Context, doc *ocr.Document, page int) (string, error) {
	if e.onPage != nil {
		e.onPage(page)
	}
	return fmt.Sprintf("%s page %d", doc.Name, page), nil
}

func (e *nameEngine) Close() error { return nil }

func TestOCRSource_SharedCheckpointKeepsDocumentsApart(t *testing.T) {
	cp, err := OpenCheckpoint(filepath.Join(t.TempDir(), "progress.db"))
	if err != nil {
		t.Fatalf("open checkpoint: %v", err)
	}
	defer cp.Close()

	dataA, dataB := []byte("pdf A"), []byte("pdf B")
	srcB := &OCRSource{Engine: &nameEngine{}, Checkpoint: cp, Retry: noRetry(), Log: quiet, PageCount: fixedPages(3)}

	// Doc B is extracted in full while doc A is between pages 1 and 2.
	var resB Result
	var errB error
	engA := &nameEngine{onPage: func(page int) {
		if page == 2 {
			resB, errB = srcB.Extract(context.Background(), Input{Name: "b.pdf", Data: dataB}, nil)
		}
	}}
	srcA := &OCRSource{Engine: engA, Checkpoint: cp, Retry: noRetry(), Log: quiet, PageCount: fixedPages(3)}
	resA, err := srcA.Extract(context.Background(), Input{Name: "a.pdf", Data: dataA}, nil)
	if err != nil {
		t.Fatalf("extract a: %v", err)
	}
	if errB != nil {
		t.Fatalf("extract b: %v", errB)
	}

	if resB.Resumed != 0 {
		t.Errorf("doc B resumed %d pages from doc A", resB.Resumed)
	}
	for i, p := range resB.Pages {
		if want := fmt.Sprintf("b.pdf page %d", i+1); p.Text != want {
			t.Errorf("doc B page %d = %q, want %q", i+1, p.Text, want)
		}
	}
	for i, p := range resA.Pages {
		if want := fmt.Sprintf("a.pdf page %d", i+1); p.Text != want {
			t.Errorf("doc A page %d = %q, want %q", i+1, p.Text, want)
		}
	}

	// A rerun of doc B resumes only its own pages.
	again, err := srcB.Extract(context.Background(), Input{Name: "b.pdf", Data: dataB}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if again.Resumed != 3 || again.Pages[0].Text != "b.pdf page 1" {
		t.Errorf("unexpected resume of doc B: resumed=%d first=%q", again.Resumed, again.Pages[0].Text)
	}
}

func TestPagesJSON_RoundTripSorted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "extracted_pages.json")
	pages := []document.Page{{Number: 2, Text: "第二页"}, {Number: 1, Text: "第一页"}}
	if err := SavePagesJSON(path, pages); err != nil {
		t.Fatal(err)
	}
	got, err := LoadPagesJSON(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Number != 1 || got[0].Text != "第一页" {
		t.Errorf("unexpected pages: %+v", got)
	}
}

func TestLoadPagesJSON_RejectsBadPageNumber(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.json")
	if err := SavePagesJSON(path, []document.Page{{Number: 0, Text: "x"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPagesJSON(path); err == nil {
		t.Error("expected error for page 0")
	}
}

func TestMarkdownSource_FormFeedSplitsPages(t *testing.T) {
	src := &MarkdownSource{}
	res, err := src.Extract(context.Background(), Input{Name: "a.md", Data: []byte("# 一\n正文\f| a | b |\n|---|---|\f")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(res.Pages))
	}
	if res.Pages[1].Number != 2 || !strings.HasPrefix(res.Pages[1].Text, "| a |") {
		t.Errorf("unexpected page 2: %+v", res.Pages[1])
	}
}

func TestDOCXSource_HeadingsAndTables(t *testing.T) {
	f := docx.New().WithDefaultTheme()
	f.AddParagraph().Style("Heading2").AddText("第一章 费用")
	f.AddParagraph().AddText("说明文字")
	tbl := f.AddTable(2, 2, 0, nil)
	tbl.TableRows[0].TableCells[0].AddParagraph().AddText("项目")
	tbl.TableRows[0].TableCells[1].AddParagraph().AddText("单价")
	tbl.TableRows[1].TableCells[0].AddParagraph().AddText("钢筋")
	tbl.TableRows[1].TableCells[1].AddParagraph().AddText("4500")

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("write docx: %v", err)
	}

	res, err := (&DOCXSource{}).Extract(context.Background(), Input{Name: "a.docx", Data: buf.Bytes()}, nil)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(res.Pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(res.Pages))
	}
	text := res.Pages[0].Text
	for _, want := range []string{"## 第一章 费用", "说明文字", "| 项目 | 单价 |", "|---|---|", "| 钢筋 | 4500 |"} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in:\n%s", want, text)
		}
	}
}

func TestDocxTableRows_SeparatorFollowsFirstWrittenRow(t *testing.T) {
	f := docx.New().WithDefaultTheme()
	tbl := f.AddTable(3, 2, 0, nil)
	tbl.TableRows[0].TableCells = nil
	tbl.TableRows[1].TableCells[0].AddParagraph().AddText("项目")
	tbl.TableRows[1].TableCells[1].AddParagraph().AddText("单价")
	tbl.TableRows[2].TableCells[0].AddParagraph().AddText("钢筋")
	tbl.TableRows[2].TableCells[1].AddParagraph().AddText("4500")

	rows := docxTableRows(tbl)
	want := []string{"| 项目 | 单价 |", "|---|---|", "| 钢筋 | 4500 |"}
	if strings.Join(rows, "\n") != strings.Join(want, "\n") {
		t.Errorf("unexpected rows:\n%s", strings.Join(rows, "\n"))
	}
}

func TestForFile(t *testing.T) {
	pdf := &TextLayerSource{}
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"budget.PDF", false},
		{"notes.docx", false},
		{"pages.md", false},
		{"pages.txt", false},
		{"sheet.xlsx", true},
	}
	for _, tt := range tests {
		src, err := ForFile(tt.name, pdf)
		if (err != nil) != tt.wantErr {
			t.Errorf("ForFile(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if !tt.wantErr && src == nil {
			t.Errorf("ForFile(%q) returned nil source", tt.name)
		}
	}
	if src, _ := ForFile("a.pdf", pdf); src != Source(pdf) {
		t.Error("expected the configured pdf source")
	}
	if _, err := ForFile("a.pdf", nil); err == nil {
		t.Error("expected error without pdf source")
	}
}

func TestIsSupportedExtension(t *testing.T) {
	if !IsSupportedExtension("Tunnel budget.pdf") {
		t.Error("pdf should be supported")
	}
	if IsSupportedExtension("a.csv") {
		t.Error("csv should not be supported")
	}
}
