package ocr

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

var htmlTableRe = regexp.MustCompile(`(?is)<table\b.*?</table>`)

// NormalizeMarkdown cleans OCR output so table detection sees pipe rows:
// line endings are unified, embedded HTML tables become pipe tables, and
// rows using full-width bars or digits are folded with NFKC.
func NormalizeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = htmlTableRe.ReplaceAllStringFunc(s, htmlTableToPipes)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.ContainsRune(line, '｜') || strings.HasPrefix(trimmed, "|") {
			lines[i] = norm.NFKC.String(line)
		}
	}
	return strings.Join(lines, "\n")
}

// htmlTableToPipes renders an HTML table as a pipe table. The first row is the
// header. Input that does not parse is returned unchanged.
func htmlTableToPipes(fragment string) string {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}

	var rows [][]string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			rows = append(rows, rowCells(n))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	if len(rows) == 0 {
		return fragment
	}

	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}

	var b strings.Builder
	b.WriteString("\n")
	for i, r := range rows {
		for len(r) < width {
			r = append(r, "")
		}
		b.WriteString("| " + strings.Join(r, " | ") + " |\n")
		if i == 0 {
			b.WriteString("|" + strings.Repeat("---|", width) + "\n")
		}
	}
	return b.String()
}

func rowCells(tr *html.Node) []string {
	var cells []string
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || (c.Data != "td" && c.Data != "th") {
			continue
		}
		text := strings.Join(strings.Fields(textContent(c)), " ")
		text = strings.ReplaceAll(text, "|", `\|`)
		cells = append(cells, text)
		for range colspan(c) - 1 {
			cells = append(cells, "")
		}
	}
	return cells
}

func colspan(n *html.Node) int {
	for _, a := range n.Attr {
		if a.Key == "colspan" {
			if v, err := strconv.Atoi(a.Val); err == nil && v > 1 {
				return v
			}
		}
	}
	return 1
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		if n.Type == html.ElementNode && n.Data == "br" {
			buf.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}
