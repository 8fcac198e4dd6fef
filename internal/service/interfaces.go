package service

import (
	"context"
	"io"

	"keyword-harvester/pkg/aggregator"
	"keyword-harvester/pkg/locale"
)

// SuggestionService runs keyword aggregations
type SuggestionService interface {
	Aggregate(ctx context.Context, req aggregator.Request) (*aggregator.Response, error)
}

// ExportService renders stored search logs behind a shared secret
type ExportService interface {
	Authorize(secret string) error
	ExportLogs(ctx context.Context, w io.Writer) (int, error)
}

// LocaleService lists the selectable languages and countries
type LocaleService interface {
	Languages() []locale.Option
	Countries() []locale.Option
}
