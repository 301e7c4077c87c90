// Package worldpop provides access to gridded population data: a zonal
// statistics client for polygon population sums, and a raster mirror
// downloader.
package worldpop

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"golang.org/x/time/rate"

	"github.com/metrowaste/zoneplanner/internal/resilience"
)

// ErrUnavailable indicates the population raster could not be queried
// or returned no data. Callers fall back to the density heuristic.
var ErrUnavailable = eris.New("worldpop: source unavailable")

// Source sums a gridded population raster over a polygon.
type Source interface {
	ZonalSum(ctx context.Context, polygon *geom.Polygon) (float64, error)
}

// Option configures the zonal statistics client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.hc = hc }
}

// WithRateLimit caps request throughput against the hosted service.
func WithRateLimit(perSec float64, burst int) Option {
	return func(c *httpClient) { c.limiter = rate.NewLimiter(rate.Limit(perSec), burst) }
}

// WithRetry overrides the retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) { c.retry = cfg }
}

type httpClient struct {
	baseURL string
	dataset string
	hc      *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates a zonal statistics client for the given dataset
// (e.g. "ppp_2020_1km_aggregated").
func NewClient(baseURL, dataset string, opts ...Option) Source {
	c := &httpClient{
		baseURL: baseURL,
		dataset: dataset,
		hc:      &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(2), 2),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type zonalRequest struct {
	Dataset  string          `json:"dataset"`
	Geometry json.RawMessage `json:"geometry"`
}

type zonalResponse struct {
	Sum   *float64 `json:"sum"`
	Error string   `json:"error,omitempty"`
}

// ZonalSum posts the polygon to the zonal statistics endpoint and
// returns the population sum of raster cells inside it.
func (c *httpClient) ZonalSum(ctx context.Context, polygon *geom.Polygon) (float64, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, eris.Wrap(ErrUnavailable, err.Error())
		}
	}

	gj, err := geojson.Marshal(polygon)
	if err != nil {
		return 0, eris.Wrap(ErrUnavailable, "encode polygon: "+err.Error())
	}
	payload, err := json.Marshal(zonalRequest{Dataset: c.dataset, Geometry: gj})
	if err != nil {
		return 0, eris.Wrap(ErrUnavailable, "encode request: "+err.Error())
	}

	var body []byte
	err = resilience.Do(ctx, c.retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/zonalstats", bytes.NewReader(payload))
		if err != nil {
			return eris.Wrap(err, "worldpop: build request")
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.hc.Do(req)
		if err != nil {
			return eris.Wrap(err, "worldpop: request")
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			err := eris.Errorf("worldpop: status %d", resp.StatusCode)
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return resilience.NewTransientError(err, resp.StatusCode)
			}
			return err
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return eris.Wrap(err, "worldpop: read body")
		}
		return nil
	})
	if err != nil {
		return 0, eris.Wrap(ErrUnavailable, err.Error())
	}

	var zr zonalResponse
	if err := json.Unmarshal(body, &zr); err != nil {
		return 0, eris.Wrap(ErrUnavailable, "decode response: "+err.Error())
	}
	if zr.Error != "" {
		return 0, eris.Wrap(ErrUnavailable, zr.Error)
	}
	if zr.Sum == nil {
		return 0, eris.Wrap(ErrUnavailable, "no data for polygon")
	}

	return *zr.Sum, nil
}
