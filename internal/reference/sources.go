package reference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/p-n-ai/pai-curriculum/internal/platform/cache"
)

// HTTPSource reads lists from the dashboard API at <baseURL>/<kind>.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// HTTPOption configures an HTTPSource.
type HTTPOption func(*HTTPSource)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		s.client = client
	}
}

// NewHTTPSource creates a source for baseURL.
func NewHTTPSource(baseURL string, timeout time.Duration, opts ...HTTPOption) *HTTPSource {
	s := &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HTTPSource) Name() string { return "http" }

// List accepts either a bare JSON array or an {"items": [...]} envelope.
func (s *HTTPSource) List(ctx context.Context, kind Kind) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/"+url.PathEscape(string(kind)), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reference api error (status %d): %s", resp.StatusCode, string(body))
	}

	var items []Item
	if err := json.Unmarshal(body, &items); err == nil {
		return items, nil
	}
	var envelope struct {
		Items []Item `json:"items"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return envelope.Items, nil
}

// CachedSource keeps another source's lists in redis for ttl so every
// instance shares one copy.
type CachedSource struct {
	next  Source
	cache *cache.Cache
	ttl   time.Duration
}

// NewCachedSource wraps next.
func NewCachedSource(next Source, c *cache.Cache, ttl time.Duration) *CachedSource {
	return &CachedSource{next: next, cache: c, ttl: ttl}
}

func (s *CachedSource) Name() string { return s.next.Name() + "+cache" }

func (s *CachedSource) List(ctx context.Context, kind Kind) ([]Item, error) {
	key := "reference:" + string(kind)

	var items []Item
	err := s.cache.GetJSON(ctx, key, &items)
	if err == nil {
		return items, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		slog.Warn("reference cache read failed", "kind", kind, "error", err)
	}

	items, err = s.next.List(ctx, kind)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetJSON(ctx, key, items, s.ttl); err != nil {
		slog.Warn("reference cache write failed", "kind", kind, "error", err)
	}
	return items, nil
}
