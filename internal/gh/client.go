package gh

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/go-github/v81/github"
	"golang.org/x/oauth2"

	"reporanger/internal/ratelimit"
)

type Client struct {
	Client *github.Client
	HTTP   *http.Client
	Budget *ratelimit.Budget
}

type options struct {
	verbose bool
	// writer controls where verbose HTTP logs go (typically stderr) so
	// structured output on stdout stays clean and tests can capture logs.
	writer io.Writer
	budget *ratelimit.Budget
}

type Option func(*options)

func WithVerbose(enabled bool, writer io.Writer) Option {
	return func(o *options) {
		o.verbose = enabled
		o.writer = writer
	}
}

// WithBudget gates every outbound request on the given rate budget and feeds
// every response back into it, regardless of which endpoint was called.
func WithBudget(b *ratelimit.Budget) Option {
	return func(o *options) {
		o.budget = b
	}
}

// budgetRoundTripper reserves one slot from the budget before each request
// and reports the response quota headers back afterwards.
type budgetRoundTripper struct {
	base   http.RoundTripper
	budget *ratelimit.Budget
}

func (t *budgetRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.budget.Acquire(req.Context(), 1); err != nil {
		return nil, err
	}
	resp, err := t.base.RoundTrip(req)
	if resp != nil {
		t.budget.UpdateFromResponse(resp)
	}
	return resp, err
}

// loggingRoundTripper emits one line per request and response (including
// latency) when verbose logging is enabled.
type loggingRoundTripper struct {
	base http.RoundTripper
	w    io.Writer
}

func (t *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	if t.w != nil {
		_, _ = fmt.Fprintf(t.w, "[verbose] github api: %s %s\n", req.Method, req.URL.String())
	}
	resp, err := t.base.RoundTrip(req)
	dur := time.Since(start)
	if t.w != nil {
		if err != nil {
			_, _ = fmt.Fprintf(t.w, "[verbose] github api: error after %s: %v\n", dur.Truncate(time.Millisecond), err)
		} else {
			_, _ = fmt.Fprintf(t.w, "[verbose] github api: %d %s (%s)\n", resp.StatusCode, http.StatusText(resp.StatusCode), dur.Truncate(time.Millisecond))
		}
	}
	return resp, err
}

func NewClient(ctx context.Context, token string, opts ...Option) (*Client, error) {
	if ctx == nil {
		return nil, fmt.Errorf("github client: ctx is nil")
	}

	o := &options{}
	for _, apply := range opts {
		if apply != nil {
			apply(o)
		}
	}
	if o.verbose && o.writer == nil {
		o.writer = os.Stderr
	}

	transport := http.DefaultTransport
	if o.budget != nil {
		transport = &budgetRoundTripper{base: transport, budget: o.budget}
	}
	if o.verbose {
		transport = &loggingRoundTripper{base: transport, w: o.writer}
	}
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		transport = &oauth2.Transport{Source: ts, Base: transport}
	}
	// Always provide an http.Client so the wrappers apply even without a token.
	tc := &http.Client{Transport: transport}

	return &Client{
		Client: github.NewClient(tc),
		HTTP:   tc,
		Budget: o.budget,
	}, nil
}
