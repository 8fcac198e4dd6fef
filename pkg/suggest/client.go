// Package suggest queries the external autocomplete endpoint and normalizes
// both of its response encodings into plain suggestion lists.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"

	"keyword-harvester/pkg/logger"
	"keyword-harvester/pkg/metrics"
)

const (
	DefaultEndpoint  = "https://suggestqueries.google.com/complete/search"
	DefaultClient    = "chrome"
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Config holds the outbound request settings
type Config struct {
	Endpoint  string        `mapstructure:"endpoint"`
	Client    string        `mapstructure:"client"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// DefaultConfig returns the settings used by the hosted endpoint
func DefaultConfig() Config {
	return Config{
		Endpoint:  DefaultEndpoint,
		Client:    DefaultClient,
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
	}
}

// Doer is the subset of *fasthttp.Client the fetcher uses
type Doer interface {
	DoTimeout(req *fasthttp.Request, resp *fasthttp.Response, timeout time.Duration) error
}

// FetchError describes why a single query produced no suggestions
type FetchError struct {
	Query   string
	Outcome string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %q: %s: %v", e.Query, e.Outcome, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Client performs one best-effort request per query
type Client struct {
	config Config
	mode   Mode
	http   Doer
	log    *logger.Logger
}

// NewClient creates a fetcher for the configured endpoint and client tag
func NewClient(config Config) (*Client, error) {
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	if config.Client == "" {
		config.Client = DefaultClient
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}

	mode, err := ModeForClient(config.Client)
	if err != nil {
		return nil, err
	}

	return &Client{
		config: config,
		mode:   mode,
		http: &fasthttp.Client{
			ReadTimeout:              config.Timeout,
			WriteTimeout:             config.Timeout,
			NoDefaultUserAgentHeader: true,
		},
		log: logger.GetLogger().WithField("component", "suggest_client"),
	}, nil
}

// SetHTTPClient allows injection of a different transport
func (c *Client) SetHTTPClient(doer Doer) {
	c.http = doer
}

// Mode returns the response mode selected by the client tag
func (c *Client) Mode() Mode {
	return c.mode
}

// Fetch implements Fetcher. Failures are logged and counted, never returned.
func (c *Client) Fetch(ctx context.Context, query, language, region string) []string {
	start := time.Now()
	suggestions, err := c.FetchWithError(ctx, query, language, region)
	duration := time.Since(start)

	if err != nil {
		outcome := metrics.OutcomeTransport
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) {
			outcome = fetchErr.Outcome
		}
		metrics.ObserveFetch(string(c.mode), outcome, duration)
		c.log.WithError(err).WithFields(map[string]interface{}{
			"query":    query,
			"hl":       language,
			"gl":       region,
			"outcome":  outcome,
			"duration": duration.String(),
		}).Warn("Suggestion fetch failed")
		return []string{}
	}

	metrics.ObserveFetch(string(c.mode), metrics.OutcomeOK, duration)
	c.log.WithFields(map[string]interface{}{
		"query": query,
		"count": len(suggestions),
	}).Debug("Suggestion fetch completed")
	return suggestions
}

// FetchWithError performs the request and reports the failure reason
func (c *Client) FetchWithError(ctx context.Context, query, language, region string) ([]string, error) {
	timeout, err := c.requestTimeout(ctx)
	if err != nil {
		return nil, &FetchError{Query: query, Outcome: metrics.OutcomeTimeout, Err: err}
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	c.buildRequest(req, query, language, region)

	if err := c.http.DoTimeout(req, resp, timeout); err != nil {
		outcome := metrics.OutcomeTransport
		if errors.Is(err, fasthttp.ErrTimeout) {
			outcome = metrics.OutcomeTimeout
		}
		return nil, &FetchError{Query: query, Outcome: outcome, Err: fmt.Errorf("request failed: %w", err)}
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, &FetchError{Query: query, Outcome: metrics.OutcomeStatus, Err: fmt.Errorf("HTTP %d", resp.StatusCode())}
	}

	suggestions, err := Decode(c.mode, resp.Body(), string(resp.Header.ContentType()))
	if err != nil {
		return nil, &FetchError{Query: query, Outcome: metrics.OutcomeDecode, Err: err}
	}
	return suggestions, nil
}

func (c *Client) buildRequest(req *fasthttp.Request, query, language, region string) {
	req.SetRequestURI(c.config.Endpoint)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.SetUserAgent(c.config.UserAgent)
	req.Header.Set("Accept", "application/json, text/xml;q=0.9, */*;q=0.8")

	args := req.URI().QueryArgs()
	args.Set("client", c.config.Client)
	args.Set("hl", language)
	args.Set("gl", region)
	args.Set("q", query)
}

// requestTimeout bounds the call by the configured timeout and the context deadline
func (c *Client) requestTimeout(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	timeout := c.config.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, context.DeadlineExceeded
		}
		if remaining < timeout {
			timeout = remaining
		}
	}
	return timeout, nil
}
