// Package propublica fetches organization details from the ProPublica
// Nonprofit Explorer API.
package propublica

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/orgenrich/internal/logging"
)

const (
	DefaultBaseURL        = "https://projects.propublica.org/nonprofits/api/v2/organizations"
	DefaultFilingBaseURL  = "https://projects.propublica.org/nonprofits/organizations"
	DefaultTimeout        = 30 * time.Second
	DefaultMaxConcurrency = 16
)

// ErrLookup wraps every per-EIN failure: transport errors, non-200
// responses and undecodable bodies.
var ErrLookup = errors.New("lookup failed")

// Client performs EIN lookups.
type Client struct {
	baseURL       string
	filingBaseURL string
	concurrency   int
	httpClient    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u = strings.TrimSpace(u); u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithFilingBaseURL overrides the base of the synthesized filing link.
func WithFilingBaseURL(u string) Option {
	return func(c *Client) {
		if u = strings.TrimSpace(u); u != "" {
			c.filingBaseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithConcurrency caps the number of requests in flight during FetchAll.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// New creates a client with the given options applied over the defaults.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:       DefaultBaseURL,
		filingBaseURL: DefaultFilingBaseURL,
		concurrency:   DefaultMaxConcurrency,
		httpClient:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FilingURL returns the full-filing page for ein. It is never fetched.
func (c *Client) FilingURL(ein string) string {
	return c.filingBaseURL + "/" + url.PathEscape(ein) + "/full"
}

// Lookup fetches one organization.
func (c *Client) Lookup(ctx context.Context, ein string) (*Organization, error) {
	endpoint := c.baseURL + "/" + url.PathEscape(ein) + ".json"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request for %s: %v", ErrLookup, ein, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("%w: %s (latency=%v): %v", ErrLookup, ein, latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d (latency=%v)", ErrLookup, ein, resp.StatusCode, latency)
	}

	var payload response
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrLookup, ein, err)
	}

	org := payload.Organization.toOrganization(ein)
	org.FilingURL = c.FilingURL(ein)
	return org, nil
}

// Outcome is the result of one lookup. Exactly one of Org and Err is set.
type Outcome struct {
	EIN string
	Org *Organization
	Err error
}

// Found reports whether the lookup produced data.
func (o Outcome) Found() bool {
	return o.Err == nil && o.Org != nil
}

// Batch holds one Outcome per requested EIN.
type Batch []Outcome

// Results returns the successful lookups keyed by EIN.
func (b Batch) Results() map[string]*Organization {
	out := make(map[string]*Organization, len(b))
	for _, o := range b {
		if o.Found() {
			out[o.EIN] = o.Org
		}
	}
	return out
}

// Misses returns the number of failed lookups.
func (b Batch) Misses() int {
	n := 0
	for _, o := range b {
		if !o.Found() {
			n++
		}
	}
	return n
}

// Eligible reports whether ein can be looked up: non-empty and not the
// NotAvailable marker.
func Eligible(ein string) bool {
	ein = strings.TrimSpace(ein)
	return ein != "" && ein != NotAvailable
}

// FetchAll looks up every distinct eligible EIN concurrently, at most the
// configured number at a time, and waits for all of them. Individual
// failures are recorded in their Outcome; FetchAll itself never fails.
func (c *Client) FetchAll(ctx context.Context, eins []string) Batch {
	seen := make(map[string]bool, len(eins))
	var todo []string
	for _, ein := range eins {
		if Eligible(ein) && !seen[ein] {
			seen[ein] = true
			todo = append(todo, ein)
		}
	}

	batch := make(Batch, len(todo))
	logger := logging.FromContext(ctx)

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, ein := range todo {
		g.Go(func() error {
			org, err := c.Lookup(ctx, ein)
			if err != nil {
				logger.Debug("lookup miss", "ein", ein, "error", err)
			}
			batch[i] = Outcome{EIN: ein, Org: org, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	logger.Info("lookups complete", "requested", len(todo), "found", len(todo)-batch.Misses())
	return batch
}
