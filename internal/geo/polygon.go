// Package geo provides polygon primitives for zone geometry: validation,
// geodesic area, centroid, bounding box, and point containment.
package geo

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// ErrInvalidGeometry indicates a malformed or degenerate polygon ring.
var ErrInvalidGeometry = eris.New("geo: invalid geometry")

// Mean Earth radius in meters (IUGG).
const earthRadiusM = 6371008.8

// NewPolygon builds a closed lon/lat polygon from an ordered ring of
// [lng, lat] pairs. The ring is closed automatically if the last point
// differs from the first. Returns ErrInvalidGeometry if the ring has
// fewer than 3 unique vertices.
func NewPolygon(ring [][2]float64) (*geom.Polygon, error) {
	pts := ring
	// Drop an explicit closing point before counting unique vertices.
	if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}

	unique := make(map[[2]float64]struct{}, len(pts))
	for _, p := range pts {
		unique[p] = struct{}{}
	}
	if len(unique) < 3 {
		return nil, eris.Wrapf(ErrInvalidGeometry, "ring has %d unique vertices, need at least 3", len(unique))
	}

	coords := make([]geom.Coord, 0, len(pts)+1)
	for _, p := range pts {
		coords = append(coords, geom.Coord{p[0], p[1]})
	}
	coords = append(coords, geom.Coord{pts[0][0], pts[0][1]})

	poly := geom.NewPolygon(geom.XY)
	if _, err := poly.SetCoords([][]geom.Coord{coords}); err != nil {
		return nil, eris.Wrap(ErrInvalidGeometry, err.Error())
	}
	return poly.SetSRID(4326), nil
}

// RingCoords returns the exterior ring of a polygon as [lng, lat] pairs,
// including the closing point.
func RingCoords(p *geom.Polygon) [][2]float64 {
	flat := p.LinearRing(0).FlatCoords()
	out := make([][2]float64, 0, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		out = append(out, [2]float64{flat[i], flat[i+1]})
	}
	return out
}

// BBox is a geographic bounding box.
type BBox struct {
	MinLng float64 `json:"min_lng"`
	MinLat float64 `json:"min_lat"`
	MaxLng float64 `json:"max_lng"`
	MaxLat float64 `json:"max_lat"`
}

// Bounds returns the axis-aligned bounding box of a polygon.
func Bounds(p *geom.Polygon) BBox {
	b := p.Bounds()
	return BBox{
		MinLng: b.Min(0),
		MinLat: b.Min(1),
		MaxLng: b.Max(0),
		MaxLat: b.Max(1),
	}
}

// Intersects reports whether two bounding boxes overlap.
func (b BBox) Intersects(o BBox) bool {
	return b.MinLng <= o.MaxLng && o.MinLng <= b.MaxLng &&
		b.MinLat <= o.MaxLat && o.MinLat <= b.MaxLat
}

// AreaKM2 returns the geodesic area of a lon/lat polygon in square
// kilometers, computed on a sphere of mean Earth radius.
func AreaKM2(p *geom.Polygon) float64 {
	return AreaM2(p) / 1e6
}

// AreaM2 returns the geodesic area of a lon/lat polygon in square meters.
// Uses the spherical excess formula over the exterior ring; interior
// rings (holes) are subtracted.
func AreaM2(p *geom.Polygon) float64 {
	area := ringAreaM2(p.LinearRing(0).FlatCoords())
	for i := 1; i < p.NumLinearRings(); i++ {
		area -= ringAreaM2(p.LinearRing(i).FlatCoords())
	}
	if area < 0 {
		area = 0
	}
	return area
}

// ringAreaM2 computes the unsigned spherical area of a closed ring of
// interleaved lng/lat degrees.
func ringAreaM2(flat []float64) float64 {
	n := len(flat) / 2
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		lng1 := flat[2*i] * math.Pi / 180
		lat1 := flat[2*i+1] * math.Pi / 180
		lng2 := flat[2*j] * math.Pi / 180
		lat2 := flat[2*j+1] * math.Pi / 180
		sum += (lng2 - lng1) * (2 + math.Sin(lat1) + math.Sin(lat2))
	}
	return math.Abs(sum * earthRadiusM * earthRadiusM / 2)
}

// Centroid returns the area-weighted centroid of the polygon's exterior
// ring. Degenerate rings fall back to the vertex average.
func Centroid(p *geom.Polygon) geom.Coord {
	flat := p.LinearRing(0).FlatCoords()
	n := len(flat) / 2
	if n == 0 {
		return geom.Coord{0, 0}
	}

	var signed, cx, cy float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		x1, y1 := flat[2*i], flat[2*i+1]
		x2, y2 := flat[2*j], flat[2*j+1]
		cross := x1*y2 - x2*y1
		signed += cross
		cx += (x1 + x2) * cross
		cy += (y1 + y2) * cross
	}
	signed /= 2

	if math.Abs(signed) < 1e-12 {
		var sx, sy float64
		for i := 0; i < n; i++ {
			sx += flat[2*i]
			sy += flat[2*i+1]
		}
		return geom.Coord{sx / float64(n), sy / float64(n)}
	}

	f := 1 / (6 * signed)
	return geom.Coord{cx * f, cy * f}
}

// Contains reports whether a lon/lat point lies inside the polygon's
// exterior ring, using ray casting. Points exactly on the boundary are
// not guaranteed either way; callers relying on the centroid tie-break
// rule accept this.
func Contains(p *geom.Polygon, lng, lat float64) bool {
	flat := p.LinearRing(0).FlatCoords()
	n := len(flat) / 2
	if n < 3 {
		return false
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := flat[2*i], flat[2*i+1]
		xj, yj := flat[2*j], flat[2*j+1]
		if (yi > lat) != (yj > lat) &&
			lng < (xj-xi)*(lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}
