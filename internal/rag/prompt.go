package rag

import (
	"fmt"
	"strings"

	"github.com/dgallion1/budgetqa/internal/index"
)

// SourceSeparator sits between context blocks.
const SourceSeparator = "\n\n---\n\n"

const SystemPrompt = `You are a helpful assistant analyzing a construction infrastructure budget document.

Answer questions using ONLY the context provided from the document.

Guidelines:
1. Cite page numbers whenever you use specific information (e.g. "According to page 45...").
2. When information comes from a table, mention the table columns it was read from.
3. If the answer is not in the provided context, say: "I couldn't find this information in the provided document sections."
4. Be precise with numbers, units and financial figures.
5. If the context is only partially relevant, say what you found and what may be missing.

Structure the response as:
- A direct answer to the question
- Supporting details from the document
- Page references for verification`

// BuildContext renders retrieved hits as numbered source blocks:
//
//	[Source 1: Pages 40-42 - 第三章]
//	[Table columns: | 项目 | 单价 |...]
//	<chunk text>
func BuildContext(hits []index.Hit) string {
	parts := make([]string, 0, len(hits))
	for i, h := range hits {
		var b strings.Builder
		fmt.Fprintf(&b, "[Source %d: %s", i+1, h.Chunk.PageRange())
		if h.Chunk.Section != "" {
			b.WriteString(" - " + h.Chunk.Section)
		}
		b.WriteString("]")
		if h.Chunk.HasTableHeader() {
			b.WriteString("\n[Table columns: " + h.Chunk.Header() + "]")
		}
		b.WriteString("\n" + h.Chunk.Text)
		parts = append(parts, b.String())
	}
	return strings.Join(parts, SourceSeparator)
}

// BuildUserMessage wraps the context and the question.
func BuildUserMessage(contextText, question string) string {
	return "Context from the construction budget document:\n\n" +
		contextText +
		"\n\n---\n\nQuestion: " + question +
		"\n\nPlease provide a comprehensive answer based on the context above."
}
