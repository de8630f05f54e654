package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/dgallion1/budgetqa/internal/document"
)

const testHeader = "| 项目 | 单位 | 单价 |\n|---|---|---|"

// tableGroup builds a group holding one table of at least minChars characters.
func tableGroup(minChars int) document.PageGroup {
	lines := strings.Split(testHeader, "\n")
	size := 0
	for _, l := range lines {
		size += utf8.RuneCountInString(l) + 1
	}
	for i := 1; size < minChars; i++ {
		row := fmt.Sprintf("| 平洞钻爆开挖 断面%03d | 100m3 | %d.50 |", i, 1000+i)
		lines = append(lines, row)
		size += utf8.RuneCountInString(row) + 1
	}
	return document.PageGroup{Text: strings.Join(lines, "\n"), StartPage: 40, EndPage: 42}
}

func containsTableRow(text string) bool {
	for _, l := range strings.Split(text, "\n") {
		if IsTableRow(l) {
			return true
		}
	}
	return false
}

func TestChunkGroup_TableSpanningGroupRepeatsHeader(t *testing.T) {
	group := tableGroup(3200)
	chunks := ChunkGroup(group, Metadata{}, Config{MaxChunkSize: 1500})

	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.TableHeader == nil || *c.TableHeader != testHeader {
			t.Errorf("chunk %d: expected table header %q, got %v", i, testHeader, c.TableHeader)
		}
		if i == 0 || !containsTableRow(c.Text) {
			continue
		}
		if !strings.HasPrefix(c.Text, testHeader+"\n") {
			t.Errorf("chunk %d: expected to begin with the table header, got %q", i, firstLines(c.Text, 3))
		}
	}
}

func TestChunkGroup_NoPipesNeverSetsHeader(t *testing.T) {
	var lines []string
	for i := 0; i < 200; i++ {
		lines = append(lines, fmt.Sprintf("第%d条 工程量计算规则说明，按设计图示尺寸以体积计算。", i))
	}
	group := document.PageGroup{Text: strings.Join(lines, "\n"), StartPage: 1, EndPage: 1}

	chunks := ChunkGroup(group, Metadata{}, DefaultConfig())
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.TableHeader != nil {
			t.Errorf("chunk %d: expected no table header, got %q", i, *c.TableHeader)
		}
	}
}

func TestChunkGroup_InheritsPageRange(t *testing.T) {
	group := tableGroup(5000)
	for i, c := range ChunkGroup(group, Metadata{}, Config{MaxChunkSize: 800}) {
		if c.StartPage != group.StartPage || c.EndPage != group.EndPage {
			t.Errorf("chunk %d: expected pages %d-%d, got %d-%d", i, group.StartPage, group.EndPage, c.StartPage, c.EndPage)
		}
	}
}

func TestChunkGroup_RespectsSoftCap(t *testing.T) {
	group := tableGroup(6000)
	cfg := Config{MaxChunkSize: 1000}
	chunks := ChunkGroup(group, Metadata{}, cfg)

	longest := 0
	for _, l := range strings.Split(group.Text, "\n") {
		if n := utf8.RuneCountInString(l) + 1; n > longest {
			longest = n
		}
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c.Text); n > cfg.MaxChunkSize+longest {
			t.Errorf("chunk %d: %d chars exceeds cap %d plus one line", i, n, cfg.MaxChunkSize)
		}
	}
}

func TestChunkGroup_TracksSection(t *testing.T) {
	text := strings.Join([]string{
		"## 第一章 土石方工程",
		strings.Repeat("说明", 30),
		"### 第二节 隧道开挖",
		strings.Repeat("内容", 30),
	}, "\n")
	group := document.PageGroup{Text: text, StartPage: 3, EndPage: 3}

	chunks := ChunkGroup(group, Metadata{Section: "总说明"}, Config{MaxChunkSize: 50})
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Section != "第一章 土石方工程" {
		t.Errorf("expected first section %q, got %q", "第一章 土石方工程", chunks[0].Section)
	}
	last := chunks[len(chunks)-1]
	if last.Section != "第二节 隧道开挖" {
		t.Errorf("expected last section %q, got %q", "第二节 隧道开挖", last.Section)
	}
}

func TestChunkGroup_BaseSectionUsedBeforeFirstHeading(t *testing.T) {
	group := document.PageGroup{Text: "正文一\n正文二", StartPage: 1, EndPage: 1}
	chunks := ChunkGroup(group, Metadata{Section: "总说明"}, DefaultConfig())
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Section != "总说明" {
		t.Errorf("expected section %q, got %q", "总说明", chunks[0].Section)
	}
	if chunks[0].Text != "正文一\n正文二" {
		t.Errorf("expected text to be preserved, got %q", chunks[0].Text)
	}
}

func TestChunkGroup_CarriesLastLinesAsOverlap(t *testing.T) {
	var lines []string
	for i := 0; i < 20; i++ {
		lines = append(lines, fmt.Sprintf("line %02d", i))
	}
	group := document.PageGroup{Text: strings.Join(lines, "\n"), StartPage: 1, EndPage: 1}

	// Each line is 8 characters with its newline, so the cap is reached on line 7.
	chunks := ChunkGroup(group, Metadata{}, Config{MaxChunkSize: 56, OverlapLines: 5})
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	first := strings.Split(chunks[0].Text, "\n")
	second := strings.Split(chunks[1].Text, "\n")
	if len(first) != 7 {
		t.Fatalf("expected first chunk to hold 7 lines, got %d", len(first))
	}
	for i := 0; i < 5; i++ {
		if second[i] != first[len(first)-5+i] {
			t.Errorf("overlap line %d: expected %q, got %q", i, first[len(first)-5+i], second[i])
		}
	}
}

func TestChunkGroup_ProseFlushDoesNotPrependHeader(t *testing.T) {
	lines := strings.Split(testHeader, "\n")
	for i := 0; i < 10; i++ {
		lines = append(lines, fmt.Sprintf("| 开挖%d | m3 | 10 |", i))
	}
	for i := 0; i < 6; i++ {
		lines = append(lines, "说明文字说明文字")
	}
	group := document.PageGroup{Text: strings.Join(lines, "\n"), StartPage: 1, EndPage: 1}

	// The cap is crossed on the sixth prose line.
	chunks := ChunkGroup(group, Metadata{}, Config{MaxChunkSize: 260})
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if strings.HasPrefix(chunks[1].Text, testHeader) {
		t.Errorf("expected overlap without header after a prose flush, got %q", firstLines(chunks[1].Text, 3))
	}
	if containsTableRow(chunks[1].Text) {
		t.Errorf("expected only prose in the overlap window, got %q", chunks[1].Text)
	}
}

func TestChunkGroup_EmptyAndBlankText(t *testing.T) {
	for _, text := range []string{"", "\n\n", "   \n\t"} {
		group := document.PageGroup{Text: text, StartPage: 1, EndPage: 1}
		if got := ChunkGroup(group, Metadata{}, DefaultConfig()); len(got) != 0 {
			t.Errorf("text %q: expected no chunks, got %d", text, len(got))
		}
	}
}

func TestChunkGroup_PlaceholderBecomesOrdinaryChunk(t *testing.T) {
	group := document.PageGroup{Text: "[OCR failed for page 12]", StartPage: 12, EndPage: 12}
	chunks := ChunkGroup(group, Metadata{}, DefaultConfig())
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].TableHeader != nil || chunks[0].Section != "" {
		t.Errorf("expected plain chunk, got %+v", chunks[0])
	}
}

func TestChunkGroup_RechunkingKeepsHeaderClassification(t *testing.T) {
	cfg := Config{MaxChunkSize: 1500}
	chunks := ChunkGroup(tableGroup(3200), Metadata{}, cfg)

	for i, c := range chunks {
		again := ChunkGroup(document.PageGroup{Text: c.Text, StartPage: c.StartPage, EndPage: c.EndPage}, Metadata{}, cfg)
		if len(again) == 0 {
			t.Fatalf("chunk %d: expected re-chunking to produce output", i)
		}
		got, ok := ExtractTableHeader(c.Text)
		if !ok || got != c.Header() {
			t.Errorf("chunk %d: expected helper to find header %q, got %q (found=%v)", i, c.Header(), got, ok)
		}
		if again[0].Header() != c.Header() || again[0].Section != c.Section {
			t.Errorf("chunk %d: re-chunking changed classification", i)
		}
	}
}

func TestChunkGroup_ZeroConfigUsesDefaults(t *testing.T) {
	chunks := ChunkGroup(tableGroup(4000), Metadata{}, Config{})
	if len(chunks) < 2 {
		t.Errorf("expected default cap to split a 4000 char table, got %d chunks", len(chunks))
	}
}

func TestProcessPages_MergesThenChunks(t *testing.T) {
	pages := []document.Page{
		{Number: 1, Text: "# 第一章\n" + testHeader + "\n| 钻孔 | m | 50 |"},
		{Number: 2, Text: "| 开挖 | m3 | 100 |\n| 支护 | m2 | 200 |"},
		{Number: 3, Text: "# 第三章\n正文"},
	}
	chunks := ProcessPages(pages, DefaultConfig())
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].StartPage != 1 || chunks[0].EndPage != 2 {
		t.Errorf("expected first chunk pages 1-2, got %d-%d", chunks[0].StartPage, chunks[0].EndPage)
	}
	if chunks[0].Header() != testHeader {
		t.Errorf("expected first chunk header %q, got %q", testHeader, chunks[0].Header())
	}
	if chunks[1].Section != "第三章" || chunks[1].TableHeader != nil {
		t.Errorf("expected plain chunk in 第三章, got %+v", chunks[1])
	}
}

func TestProcessPages_Empty(t *testing.T) {
	if got := ProcessPages(nil, DefaultConfig()); len(got) != 0 {
		t.Errorf("expected no chunks, got %d", len(got))
	}
}

func firstLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}

func TestConfig_WithDefaults(t *testing.T) {
	got := Config{}.withDefaults()
	if got.MaxChunkSize != 1500 || got.OverlapLines != 5 {
		t.Errorf("unexpected defaults: %+v", got)
	}
	if got.Overlap != 0 {
		t.Errorf("character overlap is not defaulted, got %d", got.Overlap)
	}

	// Character overlap has no effect on the scan.
	group := document.PageGroup{Text: "| 项目 | 单价 |\n|---|---|\n| 钢筋 | 4500 |\n| 水泥 | 520 |", StartPage: 1, EndPage: 1}
	a := ChunkGroup(group, Metadata{}, Config{MaxChunkSize: 20, OverlapLines: 1})
	b := ChunkGroup(group, Metadata{}, Config{MaxChunkSize: 20, OverlapLines: 1, Overlap: 500})
	if len(a) != len(b) {
		t.Fatalf("overlap changed chunk count: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Text != b[i].Text {
			t.Errorf("chunk %d differs: %q vs %q", i, a[i].Text, b[i].Text)
		}
	}
}
