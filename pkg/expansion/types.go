package expansion

import (
	"fmt"
	"strings"
)

// Category labels the expansion strategy that produced a query
type Category string

const (
	CategoryBase     Category = "Base"
	CategoryTemporal Category = "Temporal"
	CategoryAlphabet Category = "Alphabet"
	CategoryNumeric  Category = "Numeric"
	CategoryQuestion Category = "Question"
)

// Categories lists every category in emission order
func Categories() []Category {
	return []Category{CategoryBase, CategoryTemporal, CategoryAlphabet, CategoryNumeric, CategoryQuestion}
}

// TemporalPolicy selects which date-based variants are generated
type TemporalPolicy string

const (
	// TemporalCurrent adds the current month name and the current year
	TemporalCurrent TemporalPolicy = "current"
	// TemporalFull adds all twelve month names followed by the current,
	// previous and next year
	TemporalFull TemporalPolicy = "full"
)

// DefaultTemporalPolicy is the policy used when none is configured
const DefaultTemporalPolicy = TemporalCurrent

// ParseTemporalPolicy validates a configured policy name
func ParseTemporalPolicy(s string) (TemporalPolicy, error) {
	switch TemporalPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultTemporalPolicy, nil
	case TemporalCurrent:
		return TemporalCurrent, nil
	case TemporalFull:
		return TemporalFull, nil
	}
	return "", fmt.Errorf("unknown temporal policy %q", s)
}

// Group is one category with its queries in generation order
type Group struct {
	Category Category
	Queries  []string
}

// Expansion is the ordered mapping of category to queries
type Expansion []Group

// Variant is one generated query with its position in the whole expansion
type Variant struct {
	Index    int
	Category Category
	Query    string
}

// Variants flattens the expansion, numbering queries in generation order
func (e Expansion) Variants() []Variant {
	variants := make([]Variant, 0, e.Len())
	for _, group := range e {
		for _, query := range group.Queries {
			variants = append(variants, Variant{
				Index:    len(variants),
				Category: group.Category,
				Query:    query,
			})
		}
	}
	return variants
}

// Len returns the total number of queries
func (e Expansion) Len() int {
	n := 0
	for _, group := range e {
		n += len(group.Queries)
	}
	return n
}

// Queries returns the queries of a category, or nil if it is absent
func (e Expansion) Queries(category Category) []string {
	for _, group := range e {
		if group.Category == category {
			return group.Queries
		}
	}
	return nil
}
