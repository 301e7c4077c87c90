package export

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"

	"github.com/metrowaste/zoneplanner/internal/geo"
	"github.com/twpayne/go-geom"
)

// DBF field names are capped at 10 characters, so the shapefile carries
// an abbreviated subset of the shared schema.
func shapefileFields() []shp.Field {
	return []shp.Field{
		shp.StringField("name", 64),
		shp.FloatField("area_km2", 12, 4),
		shp.NumberField("bldg_total", 10),
		shp.FloatField("pop_total", 14, 0),
		shp.FloatField("pop_dens", 14, 0),
		shp.FloatField("waste_d_kg", 16, 2),
		shp.FloatField("waste_m_kg", 16, 2),
		shp.FloatField("waste_m_t", 14, 3),
		shp.FloatField("rev_total", 16, 2),
		shp.FloatField("exp_total", 16, 2),
		shp.FloatField("profit", 16, 2),
		shp.StringField("degraded", 5),
	}
}

// WriteShapefile writes a POLYGON shapefile (plus its .shx/.dbf
// sidecars) to path. Each zone becomes one shape with the abbreviated
// attribute row.
func WriteShapefile(path string, entries []Entry) error {
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return eris.Wrapf(err, "export: create shapefile %s", path)
	}
	defer w.Close()

	if err := w.SetFields(shapefileFields()); err != nil {
		return eris.Wrap(err, "export: set shapefile fields")
	}

	for n, e := range entries {
		w.Write(polygonShape(e.Zone.Geometry))

		res := e.Result
		attrs := []interface{}{
			res.ZoneName,
			res.AreaKM2,
			res.Buildings.Total,
			res.Population.Total,
			res.Population.Density,
			res.Waste.DailyKG,
			res.Waste.MonthlyKG,
			res.Waste.MonthlyKG / 1000,
			res.Financial.Revenue.Total,
			res.Financial.Expenses.Total,
			res.Financial.Profit,
			boolString(res.Degraded),
		}
		for f, v := range attrs {
			if err := w.WriteAttribute(n, f, v); err != nil {
				return eris.Wrapf(err, "export: write shapefile attribute for %s", res.ZoneName)
			}
		}
	}

	return nil
}

// polygonShape converts a zone ring to go-shp's polygon representation.
// Shapefile polygons want clockwise outer rings; geo.RingCoords yields
// whatever orientation the user drew, which readers tolerate for
// single-ring shapes.
func polygonShape(p *geom.Polygon) *shp.Polygon {
	ring := geo.RingCoords(p)
	points := make([]shp.Point, len(ring))
	for i, c := range ring {
		points[i] = shp.Point{X: c[0], Y: c[1]}
	}
	return (*shp.Polygon)(shp.NewPolyLine([][]shp.Point{points}))
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
