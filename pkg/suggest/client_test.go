package suggest

import (
	"context"
	"errors"
	"net"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

type capturedRequest struct {
	client, hl, gl, q string
}

// startServer serves handler on an in-memory listener and returns a client dialing it
func startServer(t *testing.T, handler fasthttp.RequestHandler) *fasthttp.Client {
	t.Helper()

	ln := fasthttputil.NewInmemoryListener()
	server := &fasthttp.Server{Handler: handler}
	go func() {
		_ = server.Serve(ln)
	}()
	t.Cleanup(func() {
		_ = ln.Close()
	})

	return &fasthttp.Client{
		Dial: func(addr string) (net.Conn, error) {
			return ln.Dial()
		},
	}
}

func newTestClient(t *testing.T, clientTag string, handler fasthttp.RequestHandler) *Client {
	t.Helper()

	c, err := NewClient(Config{
		Endpoint: "http://suggest.test/complete/search",
		Client:   clientTag,
		Timeout:  2 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	c.SetHTTPClient(startServer(t, handler))
	return c
}

func TestClientFetchListMode(t *testing.T) {
	var mu sync.Mutex
	var got capturedRequest

	c := newTestClient(t, "chrome", func(ctx *fasthttp.RequestCtx) {
		args := ctx.QueryArgs()
		mu.Lock()
		got = capturedRequest{
			client: string(args.Peek("client")),
			hl:     string(args.Peek("hl")),
			gl:     string(args.Peek("gl")),
			q:      string(args.Peek("q")),
		}
		mu.Unlock()
		ctx.SetContentType("application/json; charset=UTF-8")
		ctx.SetBodyString(`["pizza a",["pizza azteca","pizza al taglio"]]`)
	})

	suggestions := c.Fetch(context.Background(), "pizza a", "es", "us")
	want := []string{"pizza azteca", "pizza al taglio"}
	if !reflect.DeepEqual(suggestions, want) {
		t.Errorf("Fetch() = %v, want %v", suggestions, want)
	}

	mu.Lock()
	defer mu.Unlock()
	wantReq := capturedRequest{client: "chrome", hl: "es", gl: "us", q: "pizza a"}
	if got != wantReq {
		t.Errorf("Request params = %+v, want %+v", got, wantReq)
	}
}

func TestClientFetchDocumentMode(t *testing.T) {
	c := newTestClient(t, "toolbar", func(ctx *fasthttp.RequestCtx) {
		ctx.SetContentType("text/xml; charset=ISO-8859-1")
		ctx.SetBody([]byte("<?xml version=\"1.0\"?><toplevel>" +
			"<CompleteSuggestion><suggestion data=\"a\xf1o nuevo\"/></CompleteSuggestion>" +
			"</toplevel>"))
	})

	if c.Mode() != ModeDocument {
		t.Fatalf("Expected document mode, got %q", c.Mode())
	}

	suggestions := c.Fetch(context.Background(), "año", "es", "ar")
	if !reflect.DeepEqual(suggestions, []string{"año nuevo"}) {
		t.Errorf("Fetch() = %q, want [año nuevo]", suggestions)
	}
}

func TestClientFetchFailuresReturnEmpty(t *testing.T) {
	tests := []struct {
		name        string
		handler     fasthttp.RequestHandler
		wantOutcome string
	}{
		{
			name: "non-200 status",
			handler: func(ctx *fasthttp.RequestCtx) {
				ctx.SetStatusCode(fasthttp.StatusTooManyRequests)
			},
			wantOutcome: "bad_status",
		},
		{
			name: "garbage body",
			handler: func(ctx *fasthttp.RequestCtx) {
				ctx.SetBodyString("<html>captcha</html>")
			},
			wantOutcome: "decode_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, "chrome", tt.handler)

			if got := c.Fetch(context.Background(), "pizza", "en", "us"); len(got) != 0 {
				t.Errorf("Expected empty list, got %v", got)
			}

			_, err := c.FetchWithError(context.Background(), "pizza", "en", "us")
			var fetchErr *FetchError
			if !errors.As(err, &fetchErr) {
				t.Fatalf("Expected *FetchError, got %v", err)
			}
			if fetchErr.Outcome != tt.wantOutcome {
				t.Errorf("Outcome = %q, want %q", fetchErr.Outcome, tt.wantOutcome)
			}
		})
	}
}

func TestClientFetchHonorsContext(t *testing.T) {
	c := newTestClient(t, "chrome", func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString(`["pizza",["pizza hut"]]`)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchWithError(ctx, "pizza", "en", "us")
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) || fetchErr.Outcome != "timeout" {
		t.Fatalf("Expected timeout outcome for cancelled context, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected wrapped context.Canceled, got %v", err)
	}
}

func TestClientFetchSlowServerTimesOut(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	c := newTestClient(t, "chrome", func(ctx *fasthttp.RequestCtx) {
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
		ctx.SetBodyString(`["pizza",["late"]]`)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	got := c.Fetch(ctx, "pizza", "en", "us")
	if len(got) != 0 {
		t.Errorf("Expected empty list on timeout, got %v", got)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Fetch took %v, expected it to respect the context deadline", elapsed)
	}
}

func TestNewClientRejectsUnknownTag(t *testing.T) {
	if _, err := NewClient(Config{Client: "mystery"}); err == nil {
		t.Error("Expected error for unknown client tag")
	}
}
