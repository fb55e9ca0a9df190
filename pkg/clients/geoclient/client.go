// Package geoclient is a geocoding client for Nominatim-compatible search APIs.
package geoclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-dispatch/pkg/geo"
)

const (
	DefaultBaseURL         = "https://nominatim.openstreetmap.org"
	DefaultMaxRetries      = 3
	DefaultRequestInterval = time.Second
	DefaultRetryBackoff    = 200 * time.Millisecond
	DefaultCacheTTL        = 24 * time.Hour

	userAgent = "volunteer-dispatch/1.0"
)

// Config controls the remote endpoint and request pacing
type Config struct {
	BaseURL         string
	APIKey          string
	MaxRetries      int
	RequestInterval time.Duration
	// RetryBackoff is the wait before the second attempt; it doubles after each failure
	RetryBackoff time.Duration
	CacheTTL     time.Duration
}

// Client implements geo.Geocoder against a /search endpoint.
// Requests are spaced at least RequestInterval apart and results are cached.
type Client struct {
	cfg        Config
	httpClient *http.Client
	cache      *cache.Cache
	logger     *zap.Logger

	requestMutex    sync.Mutex
	lastRequestTime time.Time
}

var _ geo.Geocoder = (*Client)(nil)

// NewClient creates a geocoding client. Zero config values take their defaults.
func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RequestInterval < 0 {
		cfg.RequestInterval = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		cache:      cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		logger:     logger,
	}
}

type searchResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// retryableError marks a failure worth another attempt
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Geocode resolves address to coordinates, retrying transport failures and
// server errors up to MaxRetries attempts with exponential backoff.
// geo.ErrNoMatch is not retried.
func (c *Client) Geocode(ctx context.Context, address string) (geo.Coordinates, error) {
	key := cacheKey(address)
	if key == "" {
		return geo.Coordinates{}, fmt.Errorf("empty address: %w", geo.ErrNoMatch)
	}
	if cached, ok := c.cache.Get(key); ok {
		c.logger.Debug("Geocode cache hit", zap.String("address", address))
		return cached.(geo.Coordinates), nil
	}

	var lastErr error
	backoff := c.cfg.RetryBackoff
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, backoff); err != nil {
				return geo.Coordinates{}, err
			}
			backoff *= 2
		}

		coords, err := c.search(ctx, address)
		if err == nil {
			c.cache.SetDefault(key, coords)
			c.logger.Debug("Geocoded address",
				zap.String("address", address),
				zap.Float64("latitude", coords.Latitude),
				zap.Float64("longitude", coords.Longitude),
				zap.Int("attempt", attempt))
			return coords, nil
		}

		if _, ok := err.(*retryableError); !ok {
			return geo.Coordinates{}, err
		}
		lastErr = err
		c.logger.Warn("Geocode attempt failed",
			zap.String("address", address),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	return geo.Coordinates{}, fmt.Errorf("failed to geocode %q after %d attempts: %w", address, c.cfg.MaxRetries, lastErr)
}

func (c *Client) search(ctx context.Context, address string) (geo.Coordinates, error) {
	if err := c.throttle(ctx); err != nil {
		return geo.Coordinates{}, err
	}

	query := url.Values{}
	query.Set("q", address)
	query.Set("format", "json")
	query.Set("limit", "1")
	if c.cfg.APIKey != "" {
		query.Set("key", c.cfg.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/search?"+query.Encode(), nil)
	if err != nil {
		return geo.Coordinates{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return geo.Coordinates{}, ctx.Err()
		}
		return geo.Coordinates{}, &retryableError{fmt.Errorf("failed to query geocoder: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		io.Copy(io.Discard, resp.Body)
		return geo.Coordinates{}, &retryableError{fmt.Errorf("geocoder returned status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return geo.Coordinates{}, fmt.Errorf("geocoder returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return geo.Coordinates{}, fmt.Errorf("failed to decode geocoder response: %w", err)
	}
	if len(results) == 0 {
		return geo.Coordinates{}, fmt.Errorf("%q: %w", address, geo.ErrNoMatch)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return geo.Coordinates{}, fmt.Errorf("invalid latitude %q: %w", results[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return geo.Coordinates{}, fmt.Errorf("invalid longitude %q: %w", results[0].Lon, err)
	}
	return geo.Coordinates{Latitude: lat, Longitude: lon}, nil
}

// throttle blocks until RequestInterval has passed since the previous request
func (c *Client) throttle(ctx context.Context) error {
	c.requestMutex.Lock()
	defer c.requestMutex.Unlock()

	if !c.lastRequestTime.IsZero() {
		elapsed := time.Since(c.lastRequestTime)
		if elapsed < c.cfg.RequestInterval {
			timer := time.NewTimer(c.cfg.RequestInterval - elapsed)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	c.lastRequestTime = time.Now()
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func cacheKey(address string) string {
	return strings.ToLower(strings.Join(strings.Fields(address), " "))
}
