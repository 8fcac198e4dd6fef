// Package expansion turns a seed keyword into the deterministic set of query
// variants sent to the autocomplete endpoint.
package expansion

import (
	"strconv"
	"time"

	"keyword-harvester/pkg/locale"
)

const numericSuffixes = 10

// Generator builds expansions from the locale tables. It holds no mutable
// state and is safe for concurrent use.
type Generator struct {
	tables *locale.Tables
	policy TemporalPolicy
	now    func() time.Time
}

// GeneratorOption customizes a Generator
type GeneratorOption func(*Generator)

// WithClock overrides the wall clock used for temporal variants
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) {
		g.now = now
	}
}

// WithTemporalPolicy overrides DefaultTemporalPolicy
func WithTemporalPolicy(policy TemporalPolicy) GeneratorOption {
	return func(g *Generator) {
		g.policy = policy
	}
}

// NewGenerator creates a generator over the given tables
func NewGenerator(tables *locale.Tables, opts ...GeneratorOption) *Generator {
	g := &Generator{
		tables: tables,
		policy: DefaultTemporalPolicy,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Policy returns the temporal policy in effect
func (g *Generator) Policy() TemporalPolicy {
	return g.policy
}

// Generate expands keyword into Base, Temporal, Alphabet, Numeric and
// Question groups, in that order. The keyword must already be validated as
// non-empty. country is accepted for symmetry with the outbound call; the
// region remap happens when the request is built, not here.
func (g *Generator) Generate(keyword, language, country string) Expansion {
	lang := g.tables.Resolve(language)
	now := g.now()

	return Expansion{
		{Category: CategoryBase, Queries: []string{keyword}},
		{Category: CategoryTemporal, Queries: g.temporal(keyword, lang, now)},
		{Category: CategoryAlphabet, Queries: alphabet(keyword)},
		{Category: CategoryNumeric, Queries: numeric(keyword)},
		{Category: CategoryQuestion, Queries: questions(keyword, lang)},
	}
}

func (g *Generator) temporal(keyword string, lang locale.Language, now time.Time) []string {
	year := now.Year()

	if g.policy == TemporalFull {
		queries := make([]string, 0, len(lang.Months)+3)
		for _, month := range lang.Months {
			queries = append(queries, keyword+" "+month)
		}
		for _, y := range []int{year, year - 1, year + 1} {
			queries = append(queries, keyword+" "+strconv.Itoa(y))
		}
		return queries
	}

	return []string{
		keyword + " " + lang.Months[int(now.Month())-1],
		keyword + " " + strconv.Itoa(year),
	}
}

func alphabet(keyword string) []string {
	queries := make([]string, 0, 26)
	for c := 'a'; c <= 'z'; c++ {
		queries = append(queries, keyword+" "+string(c))
	}
	return queries
}

func numeric(keyword string) []string {
	queries := make([]string, 0, numericSuffixes)
	for n := 1; n <= numericSuffixes; n++ {
		queries = append(queries, keyword+" "+strconv.Itoa(n))
	}
	return queries
}

func questions(keyword string, lang locale.Language) []string {
	queries := make([]string, 0, len(lang.Questions))
	for _, q := range lang.Questions {
		queries = append(queries, q+" "+keyword)
	}
	return queries
}
