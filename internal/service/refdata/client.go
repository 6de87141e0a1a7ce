package refdata

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"mmlens/internal/domain/models"
	domrepo "mmlens/internal/domain/repository"
	pkgcache "mmlens/pkg/cache"
	xhttp "mmlens/pkg/http"
	applogger "mmlens/pkg/logger"
)

// Client implements ReferenceData against the vendor's REST API. Responses
// change at most daily, so every call is cached; the vendor enforces a strict
// request quota, so outbound calls go through a shared limiter.
type Client struct {
	http    *xhttp.Client
	baseURL string
	apiKey  string
	limiter *rate.Limiter
	cache   pkgcache.Service
	ttl     time.Duration
	l       *applogger.Logger
}

func NewClient(http *xhttp.Client, baseURL, apiKey string, rps float64, burst int) *Client {
	return &Client{
		http:    http,
		baseURL: baseURL,
		apiKey:  apiKey,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		ttl:     6 * time.Hour,
	}
}

// SetCache injects the response cache.
func (c *Client) SetCache(cache pkgcache.Service) { c.cache = cache }

// SetLogger injects a structured logger.
func (c *Client) SetLogger(l *applogger.Logger) { c.l = l }

var _ domrepo.ReferenceData = (*Client)(nil)

// get fetches path with query params, going through cache and limiter.
func (c *Client) get(ctx context.Context, cacheKey, path string, params map[string][]string, dest interface{}) error {
	if c.cache != nil {
		if body, err := c.cache.Get(ctx, cacheKey); err == nil {
			return json.Unmarshal([]byte(body), dest)
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("refdata limiter: %w", err)
	}

	var raw []byte
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + path,
		Headers:     map[string]string{"Authorization": "Bearer " + c.apiKey},
		QueryParams: params,
	}, &raw)
	if err != nil {
		if c.l != nil {
			c.l.Warn("refdata request failed", applogger.String("path", path), applogger.Error(err))
		}
		return err
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("refdata decode %s: %w", path, err)
	}
	if c.cache != nil {
		_ = c.cache.Set(ctx, cacheKey, string(raw), c.ttl)
	}
	return nil
}

func (c *Client) TopConstituents(ctx context.Context, etf string, n int) ([]models.ETFConstituent, error) {
	var out []models.ETFConstituent
	key := "refdata:constituents:" + etf + ":" + strconv.Itoa(n)
	err := c.get(ctx, key, "/v1/etf/constituents", map[string][]string{
		"etf":   {etf},
		"limit": {strconv.Itoa(n)},
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) EventsAround(ctx context.Context, date time.Time, windowDays int) ([]models.CalendarEvent, error) {
	d := date.Format("2006-01-02")
	var out []models.CalendarEvent
	key := "refdata:events:" + d + ":" + strconv.Itoa(windowDays)
	err := c.get(ctx, key, "/v1/calendar/events", map[string][]string{
		"date":   {d},
		"window": {strconv.Itoa(windowDays)},
	}, &out)
	if err != nil {
		return nil, err
	}
	return append(out, staticMacroEvents(date, windowDays)...), nil
}

func (c *Client) TopByOptionsVolume(ctx context.Context, date time.Time, n int) ([]string, error) {
	d := date.Format("2006-01-02")
	var out []string
	key := "refdata:options:" + d + ":" + strconv.Itoa(n)
	err := c.get(ctx, key, "/v1/options/volume/top", map[string][]string{
		"date":  {d},
		"limit": {strconv.Itoa(n)},
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ScanUniverse(ctx context.Context, date time.Time) ([]string, error) {
	d := date.Format("2006-01-02")
	var out []string
	key := "refdata:scan:" + d
	err := c.get(ctx, key, "/v1/universe/scan", map[string][]string{
		"date": {d},
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}
