package pricefeed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"
)

const (
	defaultRetryAttempts   = 3
	defaultRetryBaseDelay  = 250 * time.Millisecond
	defaultRetryMaxBackoff = 2 * time.Second
)

// FetchError marks a transient price-feed failure. The poll loop treats
// it as a missed tick, never as fatal.
type FetchError struct {
	Pair string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("price fetch for %s failed: %v", e.Pair, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

type cachedPrice struct {
	price     float64
	fetchedAt time.Time
}

// Client reads spot prices from the feed API with a short TTL cache in
// front. Reads are idempotent, so resty's retry policy applies here
// (unlike relay submissions).
type Client struct {
	http *resty.Client
	ttl  time.Duration

	mu    sync.Mutex
	cache map[string]cachedPrice
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code == 408 || code == 429 || (code >= 500 && code <= 599)
}

func NewClient(cfg Config) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.FetchTimeout).
		SetRetryCount(defaultRetryAttempts - 1).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	return &Client{
		http:  httpClient,
		ttl:   cfg.CacheTTL,
		cache: make(map[string]cachedPrice),
	}
}

type priceResponse struct {
	Pair      string  `json:"pair"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
}

// Price returns the current price for a pair, serving from cache while
// the TTL holds.
func (c *Client) Price(ctx context.Context, pair string) (float64, error) {
	if price, ok := c.cached(pair); ok {
		return price, nil
	}

	var out priceResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("pair", pair).
		SetResult(&out).
		Get("/prices")
	if err != nil {
		return 0, &FetchError{Pair: pair, Err: err}
	}
	if resp.IsError() {
		return 0, &FetchError{Pair: pair, Err: fmt.Errorf("http status %d", resp.StatusCode())}
	}
	if out.Price <= 0 {
		return 0, &FetchError{Pair: pair, Err: fmt.Errorf("non-positive price %f", out.Price)}
	}

	c.put(pair, out.Price)

	logger.WithFields(map[string]interface{}{
		"pair":  pair,
		"price": out.Price,
	}).Debug("Price fetched")

	return out.Price, nil
}

func (c *Client) cached(pair string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[pair]
	if !ok || time.Since(entry.fetchedAt) >= c.ttl {
		return 0, false
	}
	return entry.price, true
}

// put stores a price in the cache. The websocket stream uses it to keep
// the cache warm between poll ticks.
func (c *Client) put(pair string, price float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[pair] = cachedPrice{price: price, fetchedAt: time.Now()}
}
