package chunker

import "github.com/dgallion1/budgetqa/internal/document"

// MergePages folds pages that continue a table from the previous page into one group.
// Every input page lands in exactly one group, in order.
func MergePages(pages []document.Page) []document.PageGroup {
	if len(pages) == 0 {
		return nil
	}

	merged := make([]document.PageGroup, 0, len(pages))
	var pending *document.PageGroup

	for _, page := range pages {
		if pending != nil && IsTableContinuation(page.Text) {
			pending.Append(page)
			continue
		}
		if pending != nil {
			merged = append(merged, *pending)
		}
		g := document.GroupFromPage(page)
		pending = &g
	}
	if pending != nil {
		merged = append(merged, *pending)
	}

	return merged
}
