package classify

import (
	"context"
	"math"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/metrowaste/zoneplanner/internal/geo"
	"github.com/metrowaste/zoneplanner/pkg/footprints"
)

// Options holds the classifier's tunable filters and correction factors.
type Options struct {
	// AreaFactor shrinks raw footprint areas to compensate for
	// systematic outline overestimation by detection models.
	AreaFactor float64

	// CountFactor discounts the raw total for suspected double-counting
	// at tile boundaries.
	CountFactor float64

	// MinConfidence drops low-reliability detections.
	MinConfidence float64

	// MinSizeM2 and MaxSizeM2 bound adjusted areas, excluding
	// digitization noise and merged-block artifacts.
	MinSizeM2 float64
	MaxSizeM2 float64

	Bounds []Bound
}

// DefaultOptions returns the stock classifier configuration.
func DefaultOptions() Options {
	return Options{
		AreaFactor:    0.9,
		CountFactor:   0.98,
		MinConfidence: 0.75,
		MinSizeM2:     10,
		MaxSizeM2:     30000,
		Bounds:        DefaultBounds(),
	}
}

// Counts is the classification result for one zone.
type Counts struct {
	// Total is the adjusted building count: round(raw * CountFactor).
	Total int `json:"total"`

	// ByClass maps every class to its raw per-class count. All classes
	// are present, zero-valued when empty.
	ByClass map[Class]int `json:"by_type"`

	// Raw is the unadjusted count of classified footprints.
	Raw int `json:"raw"`

	// Degraded is set when the footprint source failed and the counts
	// are all-zero placeholders rather than observations.
	Degraded bool `json:"degraded"`
}

// ZeroCounts returns an all-zero Counts with every class key present.
func ZeroCounts() Counts {
	byClass := make(map[Class]int, len(Classes))
	for _, c := range Classes {
		byClass[c] = 0
	}
	return Counts{ByClass: byClass}
}

// Classifier counts and buckets buildings inside a zone.
type Classifier struct {
	src  footprints.Source
	opts Options
}

// NewClassifier creates a Classifier over a footprint source.
func NewClassifier(src footprints.Source, opts Options) *Classifier {
	if opts.AreaFactor == 0 {
		opts = DefaultOptions()
	}
	return &Classifier{src: src, opts: opts}
}

// Classify queries footprints intersecting the zone's bounding box,
// filters them, and buckets the survivors by adjusted area.
//
// A building counts as inside the zone only when its centroid falls
// within the zone polygon; overlap with the boundary alone is not
// enough. This keeps buildings straddling a shared edge from being
// counted in two zones.
//
// Source failures never propagate: the result is zero counts with
// Degraded set, and downstream stages proceed.
func (c *Classifier) Classify(ctx context.Context, zonePoly *geom.Polygon) Counts {
	counts := ZeroCounts()

	fps, err := c.src.QueryFootprints(ctx, geo.Bounds(zonePoly))
	if err != nil {
		zap.L().Warn("classify: footprint source unavailable, using zero counts",
			zap.Error(err),
		)
		counts.Degraded = true
		return counts
	}

	for _, fp := range fps {
		if fp.Polygon == nil {
			continue
		}

		adjusted := geo.AreaM2(fp.Polygon) * c.opts.AreaFactor

		centroid := geo.Centroid(fp.Polygon)
		if !geo.Contains(zonePoly, centroid[0], centroid[1]) {
			continue
		}
		if fp.Confidence < c.opts.MinConfidence {
			continue
		}
		if adjusted < c.opts.MinSizeM2 || adjusted > c.opts.MaxSizeM2 {
			continue
		}

		class, ok := ClassFor(c.opts.Bounds, adjusted)
		if !ok {
			continue
		}
		counts.ByClass[class]++
		counts.Raw++
	}

	counts.Total = AdjustTotal(counts.Raw, c.opts.CountFactor)

	zap.L().Debug("classify: zone classified",
		zap.Int("raw", counts.Raw),
		zap.Int("total", counts.Total),
	)
	return counts
}

// AdjustTotal applies the tile-boundary double-counting correction:
// round(raw * factor) to the nearest integer.
func AdjustTotal(raw int, factor float64) int {
	return int(math.Round(float64(raw) * factor))
}
