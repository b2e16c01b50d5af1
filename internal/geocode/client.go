// Package geocode implements the catalog.Geocoder interface against a
// Nominatim-compatible search endpoint. The public service allows one
// request per second; the client self-throttles slightly below that and
// blocks concurrent lookups until the interval has passed.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/raceatlas/raceatlas/pkg/catalog"
	"github.com/raceatlas/raceatlas/pkg/errors"
	"github.com/raceatlas/raceatlas/pkg/logging"
)

const (
	// DefaultBaseURL is the public Nominatim instance.
	DefaultBaseURL = "https://nominatim.openstreetmap.org"

	// DefaultMinInterval spaces requests at just over one per second,
	// the public instance's documented limit.
	DefaultMinInterval = 1100 * time.Millisecond

	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "raceatlas/1.0"
)

// Client is a throttled Nominatim client.
type Client struct {
	baseURL     string
	userAgent   string
	minInterval time.Duration
	httpClient  *http.Client

	mu   sync.Mutex
	last time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different Nominatim instance.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithMinInterval overrides the request spacing, used by tests and by
// self-hosted instances without a rate limit.
func WithMinInterval(d time.Duration) Option {
	return func(c *Client) { c.minInterval = d }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// New creates a throttled geocoding client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		userAgent:   defaultUserAgent,
		minInterval: DefaultMinInterval,
		httpClient:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// result is the subset of the Nominatim response the client reads.
// Coordinates come back as strings on the wire.
type result struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Lookup resolves a free-text place query to coordinates. A query with
// no match returns a not-found error. The call blocks until the
// throttle interval since the previous request has passed.
func (c *Client) Lookup(ctx context.Context, query string) (*catalog.Coordinates, error) {
	c.throttle()

	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, errors.NewConfigError("geocode", "building search request", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("nominatim lookup for %q: %w", query, errors.ErrTimeout)
		}
		return nil, errors.WrapAPI("nominatim", 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewAPIError("nominatim", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WrapAPI("nominatim", resp.StatusCode, err)
	}

	var results []result
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, errors.WrapAPI("nominatim", resp.StatusCode, err)
	}
	if len(results) == 0 {
		return nil, errors.NewNotFoundError("place", query)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, errors.WrapAPI("nominatim", resp.StatusCode, err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, errors.WrapAPI("nominatim", resp.StatusCode, err)
	}

	logging.Ctx(ctx).Debug().Str("query", query).Float64("lat", lat).Float64("lon", lon).Msg("geocoded")
	return &catalog.Coordinates{Latitude: lat, Longitude: lon}, nil
}

// isTimeout reports whether a transport error was a timeout, either the
// client's own deadline or the request context expiring.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// throttle blocks until the minimum interval since the last request has
// passed. The lock is held through the wait so concurrent lookups queue
// up instead of bursting.
func (c *Client) throttle() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if wait := c.minInterval - time.Since(c.last); wait > 0 {
		time.Sleep(wait)
	}
	c.last = time.Now()
}
