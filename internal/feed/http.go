package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/parent-watch/internal/geo"
	"github.com/sells-group/parent-watch/internal/resilience"
)

// HTTPFeed fetches positions from the location API:
// GET {base}/api/location/{subject} returning {"lat": .., "lng": ..}.
type HTTPFeed struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      resilience.RetryPolicy
}

// Option configures an HTTPFeed.
type Option func(*HTTPFeed)

// WithToken sets the bearer token.
func WithToken(token string) Option {
	return func(f *HTTPFeed) { f.token = token }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(f *HTTPFeed) { f.httpClient = hc }
}

// WithRateLimit caps requests per second across all subjects.
func WithRateLimit(rps float64) Option {
	return func(f *HTTPFeed) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetry sets the retry policy for transient failures.
func WithRetry(p resilience.RetryPolicy) Option {
	return func(f *HTTPFeed) { f.retry = p }
}

// NewHTTPFeed creates an HTTPFeed rooted at baseURL.
func NewHTTPFeed(baseURL string, opts ...Option) *HTTPFeed {
	f := &HTTPFeed{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(5, 5),
		retry:      resilience.DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.retry.OnRetry == nil {
		f.retry.OnRetry = resilience.RetryLogger("feed.http", "position")
	}
	return f
}

type locationResponse struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// Position implements Feed.
func (f *HTTPFeed) Position(ctx context.Context, subject string) (geo.Coordinate, error) {
	return resilience.RetryValue(ctx, f.retry, func(ctx context.Context) (geo.Coordinate, error) {
		if err := f.limiter.Wait(ctx); err != nil {
			return geo.Coordinate{}, eris.Wrap(err, "feed: rate limit wait")
		}
		return f.fetch(ctx, subject)
	})
}

func (f *HTTPFeed) fetch(ctx context.Context, subject string) (geo.Coordinate, error) {
	endpoint := f.baseURL + "/api/location/" + url.PathEscape(subject)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return geo.Coordinate{}, eris.Wrap(err, "feed: create request")
	}
	req.Header.Set("Accept", "application/json")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return geo.Coordinate{}, eris.Wrapf(err, "feed: get location %s", subject)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNotFound {
		return geo.Coordinate{}, eris.Wrapf(ErrUnknownSubject, "feed: %q", subject)
	}
	if err := resilience.CheckStatus("feed: get location", resp.StatusCode); err != nil {
		return geo.Coordinate{}, err
	}

	var body locationResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return geo.Coordinate{}, eris.Wrap(err, "feed: decode location")
	}
	if body.Lat == nil || body.Lng == nil {
		return geo.Coordinate{}, eris.Errorf("feed: location for %q missing lat/lng", subject)
	}

	c := geo.Coordinate{Latitude: *body.Lat, Longitude: *body.Lng}
	if err := c.Validate(); err != nil {
		return geo.Coordinate{}, eris.Wrapf(err, "feed: location for %q", subject)
	}
	return c, nil
}
