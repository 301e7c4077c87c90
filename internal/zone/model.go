// Package zone holds the zone model and the in-memory zone registry.
package zone

import (
	"time"

	"github.com/twpayne/go-geom"
)

// Zone is a user-drawn polygonal planning area. Zones form a forest:
// a zone may reference a parent by name and lists its children by name.
type Zone struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Geometry   *geom.Polygon `json:"-"`
	ParentZone string        `json:"parent_zone,omitempty"`
	SubZones   []string      `json:"sub_zones,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Clone returns a deep copy safe to hand to callers while the registry
// keeps mutating its own instance.
func (z *Zone) Clone() *Zone {
	if z == nil {
		return nil
	}
	cp := *z
	cp.SubZones = append([]string(nil), z.SubZones...)
	if z.Geometry != nil {
		cp.Geometry = geom.NewPolygonFlat(z.Geometry.Layout(), append([]float64(nil), z.Geometry.FlatCoords()...), append([]int(nil), z.Geometry.Ends()...)).SetSRID(z.Geometry.SRID())
	}
	return &cp
}
