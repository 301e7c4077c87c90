package analysis

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/metrowaste/zoneplanner/internal/classify"
	"github.com/metrowaste/zoneplanner/internal/geo"
	"github.com/metrowaste/zoneplanner/internal/population"
	"github.com/metrowaste/zoneplanner/internal/project"
	"github.com/metrowaste/zoneplanner/internal/zone"
	"github.com/metrowaste/zoneplanner/pkg/footprints"
	"github.com/metrowaste/zoneplanner/pkg/worldpop"
)

// downSource simulates both external sources being unreachable.
type downSource struct{}

func (downSource) QueryFootprints(context.Context, geo.BBox) ([]footprints.Footprint, error) {
	return nil, eris.Wrap(footprints.ErrUnavailable, "connection refused")
}

func (downSource) ZonalSum(context.Context, *geom.Polygon) (float64, error) {
	return 0, eris.Wrap(worldpopErr, "connection refused")
}

var worldpopErr = eris.New("zonal service down")

// liveRaster returns a fixed zonal sum.
type liveRaster struct{ sum float64 }

func (l liveRaster) ZonalSum(context.Context, *geom.Polygon) (float64, error) {
	return l.sum, nil
}

// kmRing is close to 1 km x 1 km at the equator (0.008993 deg ≈ 1 km).
var kmRing = [][2]float64{
	{0, 0}, {0.0089932, 0}, {0.0089932, 0.0089932}, {0, 0.0089932},
}

func newTestAnalyzer(t *testing.T, fp footprints.Source, wp worldpop.Source) (*Analyzer, *zone.Registry) {
	t.Helper()
	reg := zone.NewRegistry(nil)
	_, err := reg.Create(context.Background(), "ward-1", kmRing, "")
	require.NoError(t, err)

	return NewAnalyzer(
		reg,
		classify.NewClassifier(fp, classify.DefaultOptions()),
		population.NewEstimator(wp, population.DefaultOptions()),
		project.DefaultRates(),
	), reg
}

func TestAnalyzeZone_BothSourcesDown(t *testing.T) {
	a, _ := newTestAnalyzer(t, downSource{}, downSource{})

	res, err := a.AnalyzeZone(context.Background(), "ward-1")
	require.NoError(t, err, "pipeline must complete even with every source down")

	assert.True(t, res.Degraded)
	assert.InDelta(t, 1.0, res.AreaKM2, 0.01)

	// Buildings degrade to zero counts.
	assert.True(t, res.Buildings.Degraded)
	assert.Zero(t, res.Buildings.Total)

	// Population falls back to area x 4800.
	assert.Equal(t, population.ProvenanceHeuristic, res.Population.Provenance)
	assert.InDelta(t, 4800, res.Population.Total, 60)

	// No buildings: revenue zero, waste purely population-driven.
	assert.Zero(t, res.Financial.Revenue.Total)
	assert.InDelta(t, res.Population.Total*0.5, res.Waste.DailyKG, 1e-6)

	// Fixed expenses dominate: profit strongly negative.
	assert.Less(t, res.Financial.Profit, -400000.0)
}

func TestAnalyzeZone_RasterPrimaryNotDegraded(t *testing.T) {
	a, _ := newTestAnalyzer(t, emptySource{}, liveRaster{sum: 5200})

	res, err := a.AnalyzeZone(context.Background(), "ward-1")
	require.NoError(t, err)

	assert.False(t, res.Degraded)
	assert.Equal(t, population.ProvenanceRaster, res.Population.Provenance)
	assert.InDelta(t, 5200, res.Population.Total, 1e-9)
}

// emptySource succeeds with no footprints.
type emptySource struct{}

func (emptySource) QueryFootprints(context.Context, geo.BBox) ([]footprints.Footprint, error) {
	return nil, nil
}

func TestAnalyzeZone_UnknownZone(t *testing.T) {
	a, _ := newTestAnalyzer(t, emptySource{}, liveRaster{sum: 1})

	_, err := a.AnalyzeZone(context.Background(), "nowhere")
	require.Error(t, err)
	assert.True(t, eris.Is(err, zone.ErrNotFound))
}

func TestAnalyzeZone_FreshResultEachCall(t *testing.T) {
	a, _ := newTestAnalyzer(t, emptySource{}, liveRaster{sum: 100})

	r1, err := a.AnalyzeZone(context.Background(), "ward-1")
	require.NoError(t, err)
	r2, err := a.AnalyzeZone(context.Background(), "ward-1")
	require.NoError(t, err)

	assert.NotSame(t, r1, r2)
	assert.Equal(t, r1.Waste, r2.Waste)
	assert.Equal(t, r1.Financial, r2.Financial)
}

func TestAnalyzeAll_OrderAndIsolation(t *testing.T) {
	a, reg := newTestAnalyzer(t, emptySource{}, liveRaster{sum: 10})
	ctx := context.Background()
	for _, n := range []string{"ward-2", "ward-3"} {
		_, err := reg.Create(ctx, n, kmRing, "")
		require.NoError(t, err)
	}

	results, err := a.AnalyzeAll(ctx, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)

	names := make([]string, len(results))
	for i, r := range results {
		names[i] = r.ZoneName
	}
	assert.Equal(t, []string{"ward-1", "ward-2", "ward-3"}, names)
}

func TestAnalyzeAll_Empty(t *testing.T) {
	reg := zone.NewRegistry(nil)
	a := NewAnalyzer(
		reg,
		classify.NewClassifier(emptySource{}, classify.DefaultOptions()),
		population.NewEstimator(liveRaster{sum: 1}, population.DefaultOptions()),
		project.DefaultRates(),
	)

	results, err := a.AnalyzeAll(context.Background(), 4)
	require.NoError(t, err)
	assert.Empty(t, results)
}
