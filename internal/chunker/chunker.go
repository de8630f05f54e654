package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/budgetqa/internal/document"
)

// Config controls chunking behavior.
type Config struct {
	MaxChunkSize int // Soft cap in characters; a chunk is flushed once it reaches this size.
	Overlap      int // Character overlap from configuration, logged only; chunks overlap by OverlapLines.
	OverlapLines int // Trailing lines carried into the next chunk.
}

// DefaultConfig returns the defaults used for the budget document.
func DefaultConfig() Config {
	return Config{
		MaxChunkSize: 1500,
		Overlap:      200,
		OverlapLines: 5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxChunkSize <= 0 {
		c.MaxChunkSize = d.MaxChunkSize
	}
	if c.OverlapLines <= 0 {
		c.OverlapLines = d.OverlapLines
	}
	return c
}

// Metadata seeds the scan of one page group.
type Metadata struct {
	Section string // Section in effect before the group's first heading.
}

// scanState is the accumulation state of one ChunkGroup call.
type scanState struct {
	section     string
	tableHeader *string
	lines       []string
	size        int
}

func (s *scanState) add(line string) {
	s.lines = append(s.lines, line)
	s.size += lineSize(line)
}

func (s *scanState) emit(g document.PageGroup) document.Chunk {
	var header *string
	if s.tableHeader != nil {
		h := *s.tableHeader
		header = &h
	}
	return document.Chunk{
		Text:        strings.Join(s.lines, "\n"),
		Section:     s.section,
		TableHeader: header,
		StartPage:   g.StartPage,
		EndPage:     g.EndPage,
	}
}

// resetTo keeps the last n lines and, when the scan is inside a table, puts the
// header back in front of them.
func (s *scanState) resetTo(n int, inTable bool) {
	start := len(s.lines) - n
	if start < 0 {
		start = 0
	}
	kept := make([]string, 0, n+2)
	if inTable && s.tableHeader != nil {
		kept = append(kept, strings.Split(*s.tableHeader, "\n")...)
	}
	kept = append(kept, s.lines[start:]...)

	s.lines = kept
	s.size = 0
	for _, l := range kept {
		s.size += lineSize(l)
	}
}

// lineSize counts characters plus the joining newline.
func lineSize(line string) int {
	return utf8.RuneCountInString(line) + 1
}

// ChunkGroup splits one page group into chunks that keep table headers attached to
// their rows. Chunks inherit the group's page range.
func ChunkGroup(group document.PageGroup, meta Metadata, cfg Config) []document.Chunk {
	cfg = cfg.withDefaults()

	var chunks []document.Chunk
	st := scanState{section: meta.Section}

	lines := strings.Split(group.Text, "\n")
	for i, line := range lines {
		if IsHeading(line) {
			st.section = HeadingText(line)
		}
		if i+1 < len(lines) && IsTableHeader(line, lines[i+1]) {
			h := line + "\n" + lines[i+1]
			st.tableHeader = &h
		}

		st.add(line)

		if st.size >= cfg.MaxChunkSize {
			chunks = append(chunks, st.emit(group))
			st.resetTo(cfg.OverlapLines, IsTableRow(line))
		}
	}

	if len(st.lines) > 0 && strings.TrimSpace(strings.Join(st.lines, "\n")) != "" {
		chunks = append(chunks, st.emit(group))
	}

	return chunks
}

// ProcessPages merges cross-page tables and chunks every resulting group.
func ProcessPages(pages []document.Page, cfg Config) []document.Chunk {
	var all []document.Chunk
	for _, g := range MergePages(pages) {
		all = append(all, ChunkGroup(g, Metadata{}, cfg)...)
	}
	return all
}
