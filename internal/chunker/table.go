package chunker

import "strings"

// continuationWindow is how many leading non-blank lines IsTableContinuation inspects.
const continuationWindow = 5

// IsHeading reports whether the trimmed line starts with a markdown heading marker.
func IsHeading(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "#")
}

// HeadingText strips the heading markers and surrounding whitespace.
func HeadingText(line string) string {
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
}

// IsTableRow reports whether the trimmed line starts with a pipe and has at least one more.
func IsTableRow(line string) bool {
	t := strings.TrimSpace(line)
	return strings.HasPrefix(t, "|") && strings.Contains(t[1:], "|")
}

// IsTableSeparator reports whether line is a header/body separator such as |---|:--:|.
// Only pipes, dashes, colons and whitespace may appear, the first cell must not be
// empty, and at least one dash is required.
func IsTableSeparator(line string) bool {
	t := strings.TrimSpace(line)
	if !IsTableRow(t) {
		return false
	}
	// First cell: between the leading pipe and the next one.
	end := strings.Index(t[1:], "|")
	if end == 0 {
		return false
	}
	hasDash := false
	for _, r := range t {
		switch r {
		case '|', ':', ' ', '\t':
		case '-':
			hasDash = true
		default:
			return false
		}
	}
	return hasDash
}

// IsTableHeader reports whether line is a table row immediately followed by a separator.
func IsTableHeader(line, next string) bool {
	return IsTableRow(line) && IsTableSeparator(next)
}

// ExtractTableHeader returns the first "header\nseparator" pair in text. Scanning stops
// at the first table row that does not open such a pair.
func ExtractTableHeader(text string) (string, bool) {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if !IsTableRow(line) {
			continue
		}
		if i+1 < len(lines) && IsTableSeparator(lines[i+1]) {
			return line + "\n" + lines[i+1], true
		}
		return "", false
	}
	return "", false
}

// IsTableContinuation reports whether text opens with table data rows that lack their
// own header and separator, meaning the header lives on an earlier page.
func IsTableContinuation(text string) bool {
	var rows []string
	seen := 0
	for _, line := range strings.Split(text, "\n") {
		if seen >= continuationWindow {
			break
		}
		t := strings.TrimSpace(line)
		if t == "" {
			continue
		}
		seen++
		if seen == 1 && IsHeading(t) {
			return false
		}
		if !IsTableRow(t) {
			break
		}
		rows = append(rows, t)
	}
	return len(rows) >= 2 && !IsTableSeparator(rows[1])
}
