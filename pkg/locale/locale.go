// Package locale holds the immutable month, question and region tables used
// to localize query expansion.
package locale

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed locales.yaml
var defaultTables []byte

// Language is one localized expansion table
type Language struct {
	Code      string   `yaml:"-"`
	Name      string   `yaml:"name"`
	Months    []string `yaml:"months"`
	Questions []string `yaml:"questions"`
}

// Option is a selectable entry for clients building a form
type Option struct {
	Code string `yaml:"code" json:"code"`
	Name string `yaml:"name" json:"name"`
}

type tablesFile struct {
	Fallback            string               `yaml:"fallback"`
	Aliases             map[string]string    `yaml:"aliases"`
	RegionOverrides     map[string]string    `yaml:"region_overrides"`
	Languages           map[string]*Language `yaml:"languages"`
	SelectableLanguages []Option             `yaml:"selectable_languages"`
	Countries           map[string]string    `yaml:"countries"`
}

// Tables is the read-only view over the locale configuration. Callers get
// copies of every slice so the tables cannot be mutated after loading.
type Tables struct {
	fallback        string
	aliases         map[string]string
	regionOverrides map[string]string
	languages       map[string]*Language
	selectable      []Option
	countries       []Option
}

var (
	defaultOnce sync.Once
	defaultTbl  *Tables
	defaultErr  error
)

// Default returns the embedded tables, parsed once per process
func Default() *Tables {
	defaultOnce.Do(func() {
		defaultTbl, defaultErr = Parse(defaultTables)
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("embedded locale tables are invalid: %v", defaultErr))
	}
	return defaultTbl
}

// Load reads tables from a YAML file. An empty path returns the embedded tables.
func Load(path string) (*Tables, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read locale tables: %w", err)
	}
	return Parse(data)
}

// Parse builds tables from YAML bytes
func Parse(data []byte) (*Tables, error) {
	var file tablesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse locale tables: %w", err)
	}

	t := &Tables{
		fallback:        normalize(file.Fallback),
		aliases:         make(map[string]string, len(file.Aliases)),
		regionOverrides: make(map[string]string, len(file.RegionOverrides)),
		languages:       make(map[string]*Language, len(file.Languages)),
		selectable:      append([]Option(nil), file.SelectableLanguages...),
	}

	for code, lang := range file.Languages {
		if lang == nil {
			return nil, fmt.Errorf("language %q has no table", code)
		}
		if len(lang.Months) != 12 {
			return nil, fmt.Errorf("language %q must define 12 months, got %d", code, len(lang.Months))
		}
		if len(lang.Questions) == 0 {
			return nil, fmt.Errorf("language %q must define at least one question", code)
		}
		lang.Code = normalize(code)
		t.languages[lang.Code] = lang
	}
	if _, ok := t.languages[t.fallback]; !ok {
		return nil, fmt.Errorf("fallback language %q is not defined", file.Fallback)
	}

	for alias, target := range file.Aliases {
		if _, ok := t.languages[normalize(target)]; !ok {
			return nil, fmt.Errorf("alias %q points to unknown language %q", alias, target)
		}
		t.aliases[normalize(alias)] = normalize(target)
	}
	for from, to := range file.RegionOverrides {
		t.regionOverrides[normalize(from)] = normalize(to)
	}

	for code, name := range file.Countries {
		t.countries = append(t.countries, Option{Code: normalize(code), Name: name})
	}
	sort.Slice(t.countries, func(i, j int) bool {
		return t.countries[i].Name < t.countries[j].Name
	})

	return t, nil
}

// Resolve returns the table for a language code, following aliases and
// falling back to the default table for unsupported codes
func (t *Tables) Resolve(language string) Language {
	code := normalize(language)
	if target, ok := t.aliases[code]; ok {
		code = target
	}
	lang, ok := t.languages[code]
	if !ok {
		lang = t.languages[t.fallback]
	}
	return Language{
		Code:      lang.Code,
		Name:      lang.Name,
		Months:    append([]string(nil), lang.Months...),
		Questions: append([]string(nil), lang.Questions...),
	}
}

// Supported reports whether the code resolves to a table without falling back
func (t *Tables) Supported(language string) bool {
	code := normalize(language)
	if target, ok := t.aliases[code]; ok {
		code = target
	}
	_, ok := t.languages[code]
	return ok
}

// Region maps a country to the region code sent upstream
func (t *Tables) Region(country string) string {
	code := normalize(country)
	if region, ok := t.regionOverrides[code]; ok {
		return region
	}
	return code
}

// Languages lists the selectable languages in declaration order
func (t *Tables) Languages() []Option {
	return append([]Option(nil), t.selectable...)
}

// Countries lists known countries sorted by display name
func (t *Tables) Countries() []Option {
	return append([]Option(nil), t.countries...)
}

func normalize(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
