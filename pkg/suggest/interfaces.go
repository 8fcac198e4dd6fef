package suggest

import (
	"context"
	"fmt"
	"strings"
)

// Mode is the response encoding selected by the client tag
type Mode string

const (
	// ModeList is a JSON array whose second element holds the suggestions
	ModeList Mode = "list"
	// ModeDocument is the legacy Latin-1 XML document
	ModeDocument Mode = "document"
)

var clientModes = map[string]Mode{
	"chrome":  ModeList,
	"firefox": ModeList,
	"toolbar": ModeDocument,
}

// ModeForClient returns the response mode for a client tag
func ModeForClient(client string) (Mode, error) {
	mode, ok := clientModes[strings.ToLower(strings.TrimSpace(client))]
	if !ok {
		return "", fmt.Errorf("unsupported client tag %q", client)
	}
	return mode, nil
}

// Fetcher returns the suggestions for one query. Implementations never fail
// to the caller: every error becomes an empty list.
type Fetcher interface {
	Fetch(ctx context.Context, query, language, region string) []string
}

// FetcherFunc adapts a function to Fetcher
type FetcherFunc func(ctx context.Context, query, language, region string) []string

func (f FetcherFunc) Fetch(ctx context.Context, query, language, region string) []string {
	return f(ctx, query, language, region)
}
