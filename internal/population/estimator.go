// Package population estimates zone population from a gridded raster,
// with a density heuristic fallback.
package population

import (
	"context"
	"math"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/metrowaste/zoneplanner/pkg/worldpop"
)

// Provenance records which method produced an estimate, so degraded
// numbers are never presented as authoritative.
type Provenance string

const (
	// ProvenanceRaster means the estimate came from a zonal sum over
	// the gridded population raster.
	ProvenanceRaster Provenance = "raster"

	// ProvenanceHeuristic means the raster was unavailable and the
	// estimate is area x regional average density. Low confidence.
	ProvenanceHeuristic Provenance = "heuristic"
)

// Estimate is a zone's population estimate.
type Estimate struct {
	Total      float64    `json:"total"`
	Density    float64    `json:"density"` // people per km²
	Provenance Provenance `json:"provenance"`
}

// Options holds the fallback heuristic's constants. The defaults are
// rough regional approximations, not validated model constants; treat
// them as placeholders until domain experts confirm them.
type Options struct {
	// FallbackDensity is the assumed average density in people/km².
	FallbackDensity float64

	// LargeZoneKM2 is the area above which the density discount kicks
	// in, approximating non-residential land use in large zones.
	LargeZoneKM2 float64

	// LargeZoneFactor is the density multiplier for large zones.
	LargeZoneFactor float64
}

// DefaultOptions returns the stock heuristic configuration.
func DefaultOptions() Options {
	return Options{
		FallbackDensity: 4800,
		LargeZoneKM2:    10,
		LargeZoneFactor: 0.8,
	}
}

// Estimator computes zone population totals and densities.
type Estimator struct {
	src  worldpop.Source
	opts Options
}

// NewEstimator creates an Estimator. src may be nil, in which case
// every estimate uses the heuristic.
func NewEstimator(src worldpop.Source, opts Options) *Estimator {
	if opts.FallbackDensity == 0 {
		opts = DefaultOptions()
	}
	return &Estimator{src: src, opts: opts}
}

// Estimate returns the zone's population. The raster zonal sum is
// preferred; on any source failure the area-density heuristic takes
// over and the result is tagged ProvenanceHeuristic. Errors never
// propagate past this point.
func (e *Estimator) Estimate(ctx context.Context, polygon *geom.Polygon, areaKM2 float64) Estimate {
	if e.src != nil {
		total, err := e.src.ZonalSum(ctx, polygon)
		if err == nil && !math.IsNaN(total) && total >= 0 {
			return Estimate{
				Total:      total,
				Density:    density(total, areaKM2),
				Provenance: ProvenanceRaster,
			}
		}
		zap.L().Warn("population: raster unavailable, using density heuristic",
			zap.Float64("area_km2", areaKM2),
			zap.Error(err),
		)
	}

	return e.heuristic(areaKM2)
}

// heuristic estimates population as area x average density, discounting
// density for zones above the large-zone threshold to approximate
// parks, roads, and other non-residential land.
func (e *Estimator) heuristic(areaKM2 float64) Estimate {
	if areaKM2 < 0 || math.IsNaN(areaKM2) {
		areaKM2 = 0
	}

	d := e.opts.FallbackDensity
	if areaKM2 > e.opts.LargeZoneKM2 {
		d *= e.opts.LargeZoneFactor
	}
	total := areaKM2 * d

	return Estimate{
		Total:      total,
		Density:    density(total, areaKM2),
		Provenance: ProvenanceHeuristic,
	}
}

// density divides total by area, treating a zero-area zone as 1 km²
// for this calculation only so it cannot divide by zero.
func density(total, areaKM2 float64) float64 {
	if areaKM2 <= 0 {
		areaKM2 = 1
	}
	return total / areaKM2
}
