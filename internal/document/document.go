package document

import (
	"fmt"
	"strings"
)

// PageGroupSeparator joins consecutive page texts inside a PageGroup.
const PageGroupSeparator = "\n"

// Page is the extracted text of one source page.
type Page struct {
	Number int    `json:"page"` // 1-based source page number
	Text   string `json:"text"` // Markdown-like text, possibly a failure placeholder
}

// NewPage validates the page number.
func NewPage(number int, text string) (Page, error) {
	if number < 1 {
		return Page{}, fmt.Errorf("page number must be positive, got %d", number)
	}
	return Page{Number: number, Text: text}, nil
}

// PageGroup is one or more consecutive pages merged because a table spans their boundary.
type PageGroup struct {
	Text      string
	StartPage int
	EndPage   int
}

// NewPageGroup enforces StartPage <= EndPage.
func NewPageGroup(text string, start, end int) (PageGroup, error) {
	if start < 1 {
		return PageGroup{}, fmt.Errorf("start page must be positive, got %d", start)
	}
	if start > end {
		return PageGroup{}, fmt.Errorf("start page %d after end page %d", start, end)
	}
	return PageGroup{Text: text, StartPage: start, EndPage: end}, nil
}

// GroupFromPage starts a group holding a single page.
func GroupFromPage(p Page) PageGroup {
	return PageGroup{Text: p.Text, StartPage: p.Number, EndPage: p.Number}
}

// Append extends the group with a following page.
func (g *PageGroup) Append(p Page) {
	g.Text += PageGroupSeparator + p.Text
	g.EndPage = p.Number
}

// Chunk is a bounded-size unit of text with the structure it was cut from.
type Chunk struct {
	Text        string  `json:"text"`
	Section     string  `json:"section"`
	TableHeader *string `json:"table_header"` // header row + separator row, nil outside tables
	StartPage   int     `json:"start_page"`
	EndPage     int     `json:"end_page"`
}

// HasTableHeader reports whether the chunk was cut inside a table.
func (c Chunk) HasTableHeader() bool {
	return c.TableHeader != nil && *c.TableHeader != ""
}

// Header returns the table header or "".
func (c Chunk) Header() string {
	if c.TableHeader == nil {
		return ""
	}
	return *c.TableHeader
}

// PageRange formats the page span for display and prompts.
func (c Chunk) PageRange() string {
	return FormatPageRange(c.StartPage, c.EndPage)
}

// FormatPageRange renders "Page 3" or "Pages 3-5".
func FormatPageRange(start, end int) string {
	if start == end || end == 0 {
		return fmt.Sprintf("Page %d", start)
	}
	return fmt.Sprintf("Pages %d-%d", start, end)
}

// JoinPages concatenates page texts the way merged groups do.
func JoinPages(pages []Page) string {
	texts := make([]string, len(pages))
	for i, p := range pages {
		texts[i] = p.Text
	}
	return strings.Join(texts, PageGroupSeparator)
}
