package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/dgallion1/budgetqa/internal/document"
	"github.com/dgallion1/budgetqa/internal/ocr"
	"github.com/fumiama/go-docx"
)

// DOCXSource renders a .docx file as one markdown page. Heading styles become
// "#" headings and tables become pipe tables with a separator after the first row.
type DOCXSource struct{}

func (s *DOCXSource) Extract(ctx context.Context, in Input, progress ProgressFunc) (Result, error) {
	doc, err := docx.Parse(bytes.NewReader(in.Data), int64(len(in.Data)))
	if err != nil {
		return Result{}, fmt.Errorf("parse docx: %w", err)
	}

	var lines []string
	for _, item := range doc.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			text := docxParagraphText(it)
			if text == "" {
				continue
			}
			if level := docxHeadingLevel(it); level > 0 {
				text = strings.Repeat("#", level) + " " + text
			}
			lines = append(lines, text)
		case *docx.Table:
			lines = append(lines, docxTableRows(it)...)
		}
	}

	report(progress, 1, 1)
	text := ocr.NormalizeMarkdown(strings.Join(lines, "\n"))
	return Result{Pages: []document.Page{{Number: 1, Text: text}}}, nil
}

func docxTableRows(t *docx.Table) []string {
	var rows []string
	for _, tr := range t.TableRows {
		cells := make([]string, 0, len(tr.TableCells))
		for _, tc := range tr.TableCells {
			var parts []string
			for _, p := range tc.Paragraphs {
				if s := docxParagraphText(p); s != "" {
					parts = append(parts, s)
				}
			}
			cells = append(cells, strings.ReplaceAll(strings.Join(parts, " "), "|", `\|`))
		}
		if len(cells) == 0 {
			continue
		}
		rows = append(rows, "| "+strings.Join(cells, " | ")+" |")
		// The first written row is the header.
		if len(rows) == 1 {
			rows = append(rows, "|"+strings.Repeat("---|", len(cells)))
		}
	}
	return rows
}

func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	if !strings.HasPrefix(style, "heading") || len(style) != len("heading")+1 {
		return 0
	}
	level := int(style[len(style)-1] - '0')
	if level < 1 || level > 6 {
		return 0
	}
	return level
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
