// Package footprints provides a client for hosted building-footprint
// services (detected building outlines with confidence scores).
package footprints

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/metrowaste/zoneplanner/internal/geo"
	"github.com/metrowaste/zoneplanner/internal/resilience"
)

// ErrUnavailable indicates the footprint service could not serve the
// query. Callers degrade to zero counts rather than failing the analysis.
var ErrUnavailable = eris.New("footprints: source unavailable")

// Footprint is a single detected building outline. Confidence is
// normalized to [0,1] at ingestion; records with no upstream confidence
// field carry 1.0.
type Footprint struct {
	Polygon    *geom.Polygon
	Confidence float64
}

// Source queries building footprints whose extent intersects a bounding
// box. Implementations must tolerate empty results.
type Source interface {
	QueryFootprints(ctx context.Context, bbox geo.BBox) ([]Footprint, error)
}

// Option configures the HTTP client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

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
	apiKey  string
	hc      *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates a footprint service client.
func NewClient(baseURL, apiKey string, opts ...Option) Source {
	c := &httpClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		hc:      &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(5), 5),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// feature mirrors the service's GeoJSON-ish response records. Geometry
// stays raw until after the confidence normalization step.
type feature struct {
	Geometry   json.RawMessage            `json:"geometry"`
	Properties map[string]json.RawMessage `json:"properties"`
}

type queryResponse struct {
	Features []feature `json:"features"`
}

// confidenceKeys lists the upstream property names observed across
// footprint providers, in priority order. Normalization happens here,
// once, so the classifier only ever sees the canonical field.
var confidenceKeys = []string{"confidence", "confidence_score", "score", "areaConfidence"}

func (c *httpClient) QueryFootprints(ctx context.Context, bbox geo.BBox) ([]Footprint, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(ErrUnavailable, err.Error())
		}
	}

	q := url.Values{}
	q.Set("min_lng", fmt.Sprintf("%.8f", bbox.MinLng))
	q.Set("min_lat", fmt.Sprintf("%.8f", bbox.MinLat))
	q.Set("max_lng", fmt.Sprintf("%.8f", bbox.MaxLng))
	q.Set("max_lat", fmt.Sprintf("%.8f", bbox.MaxLat))
	reqURL := c.baseURL + "/v1/footprints?" + q.Encode()

	var body []byte
	err := resilience.Do(ctx, c.retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return eris.Wrap(err, "footprints: build request")
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.hc.Do(req)
		if err != nil {
			return eris.Wrap(err, "footprints: request")
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			err := eris.Errorf("footprints: status %d", resp.StatusCode)
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return resilience.NewTransientError(err, resp.StatusCode)
			}
			return err
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return eris.Wrap(err, "footprints: read body")
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(ErrUnavailable, err.Error())
	}

	var qr queryResponse
	if err := json.Unmarshal(body, &qr); err != nil {
		return nil, eris.Wrap(ErrUnavailable, "decode response: "+err.Error())
	}

	fps := make([]Footprint, 0, len(qr.Features))
	var skipped int
	for _, f := range qr.Features {
		fp, ok := normalizeFeature(f)
		if !ok {
			skipped++
			continue
		}
		fps = append(fps, fp)
	}
	if skipped > 0 {
		zap.L().Debug("footprints: skipped malformed records", zap.Int("skipped", skipped))
	}

	return fps, nil
}

// normalizeFeature decodes one record, mapping any known upstream
// confidence property onto the canonical Confidence field.
func normalizeFeature(f feature) (Footprint, bool) {
	if len(f.Geometry) == 0 {
		return Footprint{}, false
	}

	var g geom.T
	if err := geojson.Unmarshal(f.Geometry, &g); err != nil {
		return Footprint{}, false
	}
	poly, ok := g.(*geom.Polygon)
	if !ok || poly.NumLinearRings() == 0 || len(poly.LinearRing(0).FlatCoords()) < 6 {
		return Footprint{}, false
	}

	confidence := 1.0
	for _, key := range confidenceKeys {
		raw, ok := f.Properties[key]
		if !ok {
			continue
		}
		var v float64
		if err := json.Unmarshal(raw, &v); err == nil {
			confidence = v
			break
		}
	}

	return Footprint{Polygon: poly, Confidence: confidence}, true
}
