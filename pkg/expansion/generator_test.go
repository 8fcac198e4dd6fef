package expansion

import (
	"reflect"
	"testing"
	"time"

	"keyword-harvester/pkg/locale"
)

func fixedClock() time.Time {
	return time.Date(2026, time.October, 18, 12, 0, 0, 0, time.UTC)
}

func TestGenerateBaseIsKeyword(t *testing.T) {
	g := NewGenerator(locale.Default(), WithClock(fixedClock))

	for _, lang := range []string{"es", "es-419", "en", "pr", "pt", "xx"} {
		t.Run(lang, func(t *testing.T) {
			exp := g.Generate("pizza", lang, "us")
			base := exp.Queries(CategoryBase)
			if !reflect.DeepEqual(base, []string{"pizza"}) {
				t.Errorf("Base = %v, want [pizza]", base)
			}
		})
	}
}

func TestGenerateCategoryOrder(t *testing.T) {
	g := NewGenerator(locale.Default(), WithClock(fixedClock))
	exp := g.Generate("pizza", "en", "us")

	var got []Category
	for _, group := range exp {
		got = append(got, group.Category)
	}
	if !reflect.DeepEqual(got, Categories()) {
		t.Errorf("Category order = %v, want %v", got, Categories())
	}
}

func TestGenerateEnglishCurrentPolicy(t *testing.T) {
	g := NewGenerator(locale.Default(), WithClock(fixedClock))
	exp := g.Generate("pizza", "en", "us")

	if exp.Len() != 46 {
		t.Errorf("Expected 46 variants, got %d", exp.Len())
	}

	temporal := exp.Queries(CategoryTemporal)
	if !reflect.DeepEqual(temporal, []string{"pizza october", "pizza 2026"}) {
		t.Errorf("Temporal = %v", temporal)
	}

	alpha := exp.Queries(CategoryAlphabet)
	if len(alpha) != 26 {
		t.Fatalf("Expected 26 alphabet variants, got %d", len(alpha))
	}
	if alpha[0] != "pizza a" || alpha[25] != "pizza z" {
		t.Errorf("Alphabet bounds = %q .. %q", alpha[0], alpha[25])
	}

	nums := exp.Queries(CategoryNumeric)
	if len(nums) != 10 || nums[0] != "pizza 1" || nums[9] != "pizza 10" {
		t.Errorf("Numeric = %v", nums)
	}

	questions := exp.Queries(CategoryQuestion)
	if len(questions) != 7 || questions[0] != "how pizza" || questions[6] != "which pizza" {
		t.Errorf("Question = %v", questions)
	}
}

func TestGenerateLocalizesMonths(t *testing.T) {
	g := NewGenerator(locale.Default(), WithClock(fixedClock))

	tests := map[string]string{
		"es":     "receta octubre",
		"es-419": "receta octubre",
		"pr":     "receta outubro",
		"en":     "receta october",
		"fr":     "receta octubre",
	}
	for lang, want := range tests {
		got := g.Generate("receta", lang, "ar").Queries(CategoryTemporal)[0]
		if got != want {
			t.Errorf("language %q: month variant = %q, want %q", lang, got, want)
		}
	}
}

func TestGenerateFullPolicy(t *testing.T) {
	g := NewGenerator(locale.Default(), WithClock(fixedClock), WithTemporalPolicy(TemporalFull))
	temporal := g.Generate("pizza", "en", "us").Queries(CategoryTemporal)

	if len(temporal) != 15 {
		t.Fatalf("Expected 15 temporal variants, got %d", len(temporal))
	}
	if temporal[0] != "pizza january" || temporal[11] != "pizza december" {
		t.Errorf("Month bounds = %q .. %q", temporal[0], temporal[11])
	}
	if !reflect.DeepEqual(temporal[12:], []string{"pizza 2026", "pizza 2025", "pizza 2027"}) {
		t.Errorf("Years = %v", temporal[12:])
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	g := NewGenerator(locale.Default(), WithClock(fixedClock))
	a := g.Generate("café", "es", "ar")
	b := g.Generate("café", "es", "ar")
	if !reflect.DeepEqual(a, b) {
		t.Error("Expected identical expansions for identical inputs")
	}
}

func TestVariantsIndexedInOrder(t *testing.T) {
	g := NewGenerator(locale.Default(), WithClock(fixedClock))
	variants := g.Generate("pizza", "en", "us").Variants()

	if len(variants) != 46 {
		t.Fatalf("Expected 46 variants, got %d", len(variants))
	}
	for i, v := range variants {
		if v.Index != i {
			t.Fatalf("variant %d has index %d", i, v.Index)
		}
	}
	if variants[0].Category != CategoryBase || variants[1].Category != CategoryTemporal {
		t.Errorf("Unexpected leading categories %q, %q", variants[0].Category, variants[1].Category)
	}
	if variants[3].Query != "pizza a" || variants[3].Category != CategoryAlphabet {
		t.Errorf("variants[3] = %+v", variants[3])
	}
}

func TestParseTemporalPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    TemporalPolicy
		wantErr bool
	}{
		{"", DefaultTemporalPolicy, false},
		{"current", TemporalCurrent, false},
		{"FULL", TemporalFull, false},
		{"weekly", "", true},
	}
	for _, tt := range tests {
		got, err := ParseTemporalPolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTemporalPolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTemporalPolicy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
