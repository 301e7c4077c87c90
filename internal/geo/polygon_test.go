package geo

import (
	"math"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unitSquare is roughly a 1.11 km x 1.11 km square at the equator.
var unitSquare = [][2]float64{
	{0, 0}, {0.01, 0}, {0.01, 0.01}, {0, 0.01},
}

func TestNewPolygon_ClosesRing(t *testing.T) {
	p, err := NewPolygon(unitSquare)
	require.NoError(t, err)

	coords := RingCoords(p)
	require.Len(t, coords, 5)
	assert.Equal(t, coords[0], coords[len(coords)-1])
}

func TestNewPolygon_AlreadyClosed(t *testing.T) {
	closed := append(append([][2]float64{}, unitSquare...), unitSquare[0])
	p, err := NewPolygon(closed)
	require.NoError(t, err)
	assert.Len(t, RingCoords(p), 5)
}

func TestNewPolygon_TooFewVertices(t *testing.T) {
	_, err := NewPolygon([][2]float64{{0, 0}, {1, 1}})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidGeometry))
}

func TestNewPolygon_DuplicateVerticesDegenerate(t *testing.T) {
	// Three points but only two unique.
	_, err := NewPolygon([][2]float64{{0, 0}, {1, 1}, {0, 0}})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidGeometry))
}

func TestAreaKM2_EquatorSquare(t *testing.T) {
	p, err := NewPolygon(unitSquare)
	require.NoError(t, err)

	// 0.01 deg ~ 1.1119 km at the equator, so ~1.2364 km^2.
	area := AreaKM2(p)
	assert.InDelta(t, 1.236, area, 0.01)
}

func TestAreaKM2_LatitudeShrinks(t *testing.T) {
	atEquator, err := NewPolygon(unitSquare)
	require.NoError(t, err)

	at60 := [][2]float64{{0, 60}, {0.01, 60}, {0.01, 60.01}, {0, 60.01}}
	atHigh, err := NewPolygon(at60)
	require.NoError(t, err)

	// cos(60 deg) = 0.5: same degree extent covers about half the area.
	ratio := AreaKM2(atHigh) / AreaKM2(atEquator)
	assert.InDelta(t, 0.5, ratio, 0.01)
}

func TestCentroid(t *testing.T) {
	p, err := NewPolygon(unitSquare)
	require.NoError(t, err)

	c := Centroid(p)
	assert.InDelta(t, 0.005, c[0], 1e-9)
	assert.InDelta(t, 0.005, c[1], 1e-9)
}

func TestContains(t *testing.T) {
	p, err := NewPolygon(unitSquare)
	require.NoError(t, err)

	assert.True(t, Contains(p, 0.005, 0.005))
	assert.False(t, Contains(p, 0.02, 0.005))
	assert.False(t, Contains(p, -0.001, 0.005))
}

func TestBounds(t *testing.T) {
	p, err := NewPolygon(unitSquare)
	require.NoError(t, err)

	b := Bounds(p)
	assert.Equal(t, BBox{MinLng: 0, MinLat: 0, MaxLng: 0.01, MaxLat: 0.01}, b)
}

func TestBBoxIntersects(t *testing.T) {
	a := BBox{MinLng: 0, MinLat: 0, MaxLng: 1, MaxLat: 1}
	b := BBox{MinLng: 0.5, MinLat: 0.5, MaxLng: 2, MaxLat: 2}
	c := BBox{MinLng: 1.5, MinLat: 1.5, MaxLng: 2, MaxLat: 2}

	assert.True(t, a.Intersects(b))
	assert.True(t, b.Intersects(a))
	assert.False(t, a.Intersects(c))
}

func TestAreaM2_RoundTripWithKM2(t *testing.T) {
	p, err := NewPolygon(unitSquare)
	require.NoError(t, err)
	assert.InDelta(t, AreaKM2(p)*1e6, AreaM2(p), 1e-6*AreaM2(p))
}

func TestRingCoords_NoNaN(t *testing.T) {
	p, err := NewPolygon(unitSquare)
	require.NoError(t, err)
	for _, c := range RingCoords(p) {
		assert.False(t, math.IsNaN(c[0]))
		assert.False(t, math.IsNaN(c[1]))
	}
}
