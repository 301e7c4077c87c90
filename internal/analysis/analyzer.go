// Package analysis orchestrates the per-zone pipeline: registry read,
// building classification, population estimation, and waste/financial
// projection. Results are recomputed fresh on every call; nothing is
// cached.
package analysis

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/metrowaste/zoneplanner/internal/classify"
	"github.com/metrowaste/zoneplanner/internal/geo"
	"github.com/metrowaste/zoneplanner/internal/population"
	"github.com/metrowaste/zoneplanner/internal/project"
	"github.com/metrowaste/zoneplanner/internal/zone"
)

// Result is a zone's complete analysis. It is ephemeral: constructed
// per request and never persisted.
type Result struct {
	ZoneName   string              `json:"zone_name"`
	AreaKM2    float64             `json:"area_km2"`
	Buildings  classify.Counts     `json:"buildings"`
	Population population.Estimate `json:"population"`
	Waste      project.Waste       `json:"waste"`
	Financial  project.Financial   `json:"financial"`

	// Degraded is set when any stage fell back (zero building counts or
	// heuristic population); the numbers are estimates, not
	// observations, and should be presented as such.
	Degraded bool `json:"degraded"`

	ComputedAt time.Time `json:"computed_at"`
}

// Analyzer runs the analysis pipeline over zones in a registry.
type Analyzer struct {
	reg        *zone.Registry
	classifier *classify.Classifier
	estimator  *population.Estimator
	rates      project.Rates
}

// NewAnalyzer wires the pipeline stages together.
func NewAnalyzer(reg *zone.Registry, classifier *classify.Classifier, estimator *population.Estimator, rates project.Rates) *Analyzer {
	return &Analyzer{
		reg:        reg,
		classifier: classifier,
		estimator:  estimator,
		rates:      rates,
	}
}

// AnalyzeZone computes a fresh Result for the named zone. The only
// error is an unknown zone name: data-source failures degrade the
// result instead of failing it.
func (a *Analyzer) AnalyzeZone(ctx context.Context, name string) (*Result, error) {
	z := a.reg.Get(name)
	if z == nil {
		return nil, eris.Wrap(zone.ErrNotFound, name)
	}

	areaKM2 := geo.AreaKM2(z.Geometry)

	counts := a.classifier.Classify(ctx, z.Geometry)
	pop := a.estimator.Estimate(ctx, z.Geometry, areaKM2)
	waste, financial := project.Project(counts, pop.Total, a.rates)

	res := &Result{
		ZoneName:   name,
		AreaKM2:    areaKM2,
		Buildings:  counts,
		Population: pop,
		Waste:      waste,
		Financial:  financial,
		Degraded:   counts.Degraded || pop.Provenance == population.ProvenanceHeuristic,
		ComputedAt: time.Now().UTC(),
	}

	zap.L().Info("analysis: zone analyzed",
		zap.String("zone", name),
		zap.Float64("area_km2", areaKM2),
		zap.Int("buildings", counts.Total),
		zap.Float64("population", pop.Total),
		zap.Bool("degraded", res.Degraded),
	)
	return res, nil
}

// AnalyzeAll analyzes every registered zone with bounded concurrency.
// Zone analyses are independent and share no mutable state, so they run
// in parallel; a zone that disappears mid-run (racing delete) is logged
// and skipped without affecting the others. Results follow registry
// order.
func (a *Analyzer) AnalyzeAll(ctx context.Context, maxConcurrent int) ([]*Result, error) {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}

	names := a.reg.List()
	results := make([]*Result, len(names))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			res, err := a.AnalyzeZone(ctx, name)
			if err != nil {
				if eris.Is(err, zone.ErrNotFound) {
					zap.L().Warn("analysis: zone vanished during batch", zap.String("zone", name))
					return nil
				}
				return err
			}
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "analysis: batch")
	}

	out := results[:0]
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out, nil
}
