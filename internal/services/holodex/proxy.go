package holodex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// maxImageBytes caps a proxied avatar.
const maxImageBytes = 5 << 20

// ErrBadPath rejects proxy paths that would leave the API root.
var ErrBadPath = errors.New("invalid upstream path")

// ErrImageNotFound means the upstream had no avatar for the channel.
var ErrImageNotFound = errors.New("channel image not found")

// ProxyResponse is an upstream reply ready to be relayed to the caller.
type ProxyResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
	Cached      bool
}

// Proxy relays browser requests to the upstream API so the frontend can
// use features the local mirror does not cover.
//
// Successful GET replies are kept in a bounded TTL cache keyed by method,
// path, and query.
type Proxy struct {
	client *Client
	cache  *expirable.LRU[string, []byte]
}

// NewProxy wraps a client. size <= 0 or ttl <= 0 disables caching.
func NewProxy(c *Client, size int, ttl time.Duration) *Proxy {
	p := &Proxy{client: c}
	if size > 0 && ttl > 0 {
		p.cache = expirable.NewLRU[string, []byte](size, nil, ttl)
	}
	return p
}

// CacheLen reports how many replies are cached.
func (p *Proxy) CacheLen() int {
	if p.cache == nil {
		return 0
	}
	return p.cache.Len()
}

// Forward sends method to the upstream at apiPath?rawQuery with the
// caller's key. The server's own key is never attached: callers spend
// their own quota.
//
// Empty or non-JSON bodies come back as an empty JSON array with the
// upstream status code.
func (p *Proxy) Forward(ctx context.Context, method, apiPath, rawQuery, apiKey string, body []byte) (*ProxyResponse, error) {
	clean, err := cleanPath(apiPath)
	if err != nil {
		return nil, err
	}

	key := method + ":" + clean + "?" + rawQuery
	if method == http.MethodGet && p.cache != nil {
		if cached, ok := p.cache.Get(key); ok {
			return &ProxyResponse{StatusCode: http.StatusOK, ContentType: "application/json", Body: cached, Cached: true}, nil
		}
	}

	target := p.client.baseURL + clean
	if rawQuery != "" {
		target += "?" + rawQuery
	}

	var reader io.Reader
	if method == http.MethodPost {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if apiKey != "" {
		req.Header.Set("X-APIKEY", apiKey)
	}
	req.Header.Set("Accept", "application/json")
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}

	if err := p.client.wait(ctx); err != nil {
		return nil, err
	}
	resp, err := p.client.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrUpstream, err)
	}

	out := &ProxyResponse{StatusCode: resp.StatusCode, ContentType: "application/json", Body: data}
	if len(data) == 0 || !json.Valid(data) {
		out.Body = []byte("[]")
		return out, nil
	}
	if method == http.MethodGet && resp.StatusCode == http.StatusOK && p.cache != nil {
		p.cache.Add(key, data)
	}
	return out, nil
}

// ChannelImage fetches a channel avatar. Any non-200 reply maps to
// ErrImageNotFound.
func (p *Proxy) ChannelImage(ctx context.Context, channelID string) (*ProxyResponse, error) {
	if channelID == "" || strings.ContainsAny(channelID, "/\\") || channelID == "." || channelID == ".." {
		return nil, ErrBadPath
	}

	target := p.client.staticsURL + "/channelImg/" + url.PathEscape(channelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ErrImageNotFound
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading image: %v", ErrUpstream, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return &ProxyResponse{StatusCode: http.StatusOK, ContentType: contentType, Body: data}, nil
}

// cleanPath normalizes a wildcard route path and refuses anything that
// climbs out of the API root.
func cleanPath(p string) (string, error) {
	if p == "" || p == "/" || strings.Contains(p, "..") || strings.Contains(p, "\\") {
		return "", ErrBadPath
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p), nil
}
