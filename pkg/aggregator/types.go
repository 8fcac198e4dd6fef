package aggregator

import (
	"errors"
	"fmt"
	"strings"

	"keyword-harvester/pkg/expansion"
	"keyword-harvester/pkg/storage"
)

// ErrValidation matches every request validation failure
var ErrValidation = errors.New("invalid request")

// ValidationError names the request field that failed validation
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Request is one aggregation request
type Request struct {
	Keyword  string `json:"keyword"`
	Country  string `json:"country"`
	Language string `json:"language"`
}

// Normalize trims surrounding whitespace from every field
func (r Request) Normalize() Request {
	return Request{
		Keyword:  strings.TrimSpace(r.Keyword),
		Country:  strings.TrimSpace(r.Country),
		Language: strings.TrimSpace(r.Language),
	}
}

// Validate reports the first empty field
func (r Request) Validate() error {
	switch {
	case strings.TrimSpace(r.Keyword) == "":
		return &ValidationError{Field: "keyword"}
	case strings.TrimSpace(r.Country) == "":
		return &ValidationError{Field: "country"}
	case strings.TrimSpace(r.Language) == "":
		return &ValidationError{Field: "language"}
	}
	return nil
}

// RawSuggestion is one suggestion as returned for one variant, before dedup
type RawSuggestion struct {
	Index      int
	Category   expansion.Category
	Query      string
	Suggestion string
}

// ResultItem is a unique suggestion labelled with the first category that
// produced it
type ResultItem struct {
	Category   expansion.Category `json:"category"`
	Suggestion string             `json:"suggestion"`
	Query      string             `json:"query"`
}

// CategorySummary counts results per category
type CategorySummary struct {
	Category expansion.Category `json:"category"`
	Count    int                `json:"count"`
}

// Response is the outcome of one aggregation
type Response struct {
	Results []ResultItem      `json:"results"`
	Summary []CategorySummary `json:"summary"`
	Total   int               `json:"total"`
}

// Rows converts the results for the CSV writer
func (r *Response) Rows() []storage.ResultRow {
	rows := make([]storage.ResultRow, 0, len(r.Results))
	for _, item := range r.Results {
		rows = append(rows, storage.ResultRow{
			Category:   string(item.Category),
			Suggestion: item.Suggestion,
		})
	}
	return rows
}
