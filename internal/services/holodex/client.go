// Package holodex is a client for the upstream video-catalog API.
//
// The sync pipeline lists a channel's past streams page by page, including
// the mentions list. The API also exposes a pass-through Proxy for
// browser clients (see proxy.go).
package holodex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Shimizu-Technology/holo-search-api/internal/models"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://holodex.net/api/v2"

// DefaultStaticsURL serves channel avatars.
const DefaultStaticsURL = "https://holodex.net/statics"

var (
	// ErrThrottled means the upstream answered 429; the same page may be retried.
	ErrThrottled = errors.New("upstream throttled the request")

	// ErrUpstream covers every other failed fetch: bad status or malformed payload.
	ErrUpstream = errors.New("upstream fetch failed")
)

// StatusError carries a non-success status code. It matches ErrUpstream
// with errors.Is.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream returned %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Body)
}

// Is lets errors.Is(err, ErrUpstream) recognise status failures.
func (e *StatusError) Is(target error) bool { return target == ErrUpstream }

// Client fetches video pages from the upstream API.
type Client struct {
	baseURL    string
	staticsURL string
	apiKey     string // default key when a request brings none
	httpClient *http.Client
	limiter    *rate.Limiter // nil = no client-side pacing
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithStaticsURL replaces DefaultStaticsURL.
func WithStaticsURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.staticsURL = strings.TrimRight(u, "/")
		}
	}
}

// WithRateLimit paces requests to rps requests per second across all
// channel workers sharing this client.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			burst := int(rps)
			if burst < 1 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// New creates a client. An empty baseURL uses DefaultBaseURL.
func New(baseURL, apiKey string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		staticsURL: DefaultStaticsURL,
		apiKey:     apiKey,
		// Always configure timeouts on HTTP clients; the default has none.
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Page is one listing page as the upstream sent it.
type Page struct {
	Videos []models.Video
	// Skipped counts records dropped because they could not be decoded.
	Skipped int
}

// Len is the number of records the upstream returned, decodable or not.
// The end-of-history check compares it against the requested page size.
func (p Page) Len() int { return len(p.Videos) + p.Skipped }

// wait blocks on the client-side limiter, if any.
func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// FetchPage lists one page of a channel's past streams, newest first.
//
// An empty page means the end of the channel's history. A 429 response
// returns ErrThrottled; any other non-200 returns a *StatusError.
func (c *Client) FetchPage(ctx context.Context, apiKey, channelID string, limit, offset int) (Page, error) {
	if err := c.wait(ctx); err != nil {
		return Page{}, err
	}

	q := url.Values{}
	q.Set("channel_id", channelID)
	q.Set("status", "past,missing")
	q.Set("type", "stream")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	q.Set("include", "mentions")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/videos?"+q.Encode(), nil)
	if err != nil {
		return Page{}, fmt.Errorf("failed to create request: %w", err)
	}
	if apiKey == "" {
		apiKey = c.apiKey
	}
	if apiKey != "" {
		req.Header.Set("X-APIKEY", apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Page{}, fmt.Errorf("%w: reading body: %v", ErrUpstream, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return Page{}, ErrThrottled
	case resp.StatusCode != http.StatusOK:
		return Page{}, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}

	return decodePage(body, channelID, offset)
}

// decodePage keeps each element's raw bytes so the stored payload is
// exactly what the upstream sent. A record that cannot be projected is
// logged and skipped; only a body that is not a JSON array fails the page.
func decodePage(body []byte, channelID string, offset int) (Page, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return Page{}, fmt.Errorf("%w: malformed page: %v", ErrUpstream, err)
	}

	page := Page{Videos: make([]models.Video, 0, len(items))}
	for i, raw := range items {
		v, err := models.DecodeVideo(raw)
		if err != nil {
			log.Printf("⚠️  Skipping video %d at offset %d for %s: %v", i, offset, channelID, err)
			page.Skipped++
			continue
		}
		page.Videos = append(page.Videos, *v)
	}
	return page, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
