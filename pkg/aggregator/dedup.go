package aggregator

import (
	"sort"

	"keyword-harvester/pkg/expansion"
)

// Dedupe keeps the first occurrence of every suggestion text, walking raw
// in generation order. Suggestions are compared exactly, case included.
// raw is not modified.
func Dedupe(raw []RawSuggestion) []ResultItem {
	ordered := make([]RawSuggestion, len(raw))
	copy(ordered, raw)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Index < ordered[j].Index
	})

	seen := make(map[string]struct{}, len(ordered))
	results := make([]ResultItem, 0, len(ordered))
	for _, s := range ordered {
		if _, dup := seen[s.Suggestion]; dup {
			continue
		}
		seen[s.Suggestion] = struct{}{}
		results = append(results, ResultItem{
			Category:   s.Category,
			Suggestion: s.Suggestion,
			Query:      s.Query,
		})
	}
	return results
}

// Summarize counts results per category, largest first. Equal counts keep
// category emission order.
func Summarize(results []ResultItem) []CategorySummary {
	counts := make(map[expansion.Category]int)
	for _, item := range results {
		counts[item.Category]++
	}

	rank := make(map[expansion.Category]int)
	for i, category := range expansion.Categories() {
		rank[category] = i
	}

	summary := make([]CategorySummary, 0, len(counts))
	for category, count := range counts {
		summary = append(summary, CategorySummary{Category: category, Count: count})
	}

	sort.Slice(summary, func(i, j int) bool {
		if summary[i].Count != summary[j].Count {
			return summary[i].Count > summary[j].Count
		}
		ri, iKnown := rank[summary[i].Category]
		rj, jKnown := rank[summary[j].Category]
		if iKnown != jKnown {
			return iKnown
		}
		if ri != rj {
			return ri < rj
		}
		return summary[i].Category < summary[j].Category
	})
	return summary
}
