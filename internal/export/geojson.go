package export

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/metrowaste/zoneplanner/internal/analysis"
	"github.com/metrowaste/zoneplanner/internal/classify"
)

// WriteGeoJSON writes a FeatureCollection: zone geometry plus the
// analysis as feature properties. Properties carry native JSON types
// rather than the string forms the tabular writers use.
func WriteGeoJSON(w io.Writer, entries []Entry) error {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(entries))}

	for _, e := range entries {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         e.Zone.ID,
			Geometry:   e.Zone.Geometry,
			Properties: properties(e.Result),
		})
	}

	data, err := json.Marshal(&fc)
	if err != nil {
		return eris.Wrap(err, "export: marshal geojson")
	}
	_, err = w.Write(data)
	return eris.Wrap(err, "export: write geojson")
}

func properties(res *analysis.Result) map[string]interface{} {
	props := map[string]interface{}{
		"zone_name":             res.ZoneName,
		"area_km2":              res.AreaKM2,
		"buildings_total":       res.Buildings.Total,
		"population_total":      res.Population.Total,
		"population_density":    res.Population.Density,
		"population_provenance": string(res.Population.Provenance),
		"daily_waste_kg":        res.Waste.DailyKG,
		"monthly_waste_kg":      res.Waste.MonthlyKG,
		"monthly_waste_tons":    res.Waste.MonthlyKG / 1000,
		"revenue_total":         res.Financial.Revenue.Total,
		"expenses_fixed":        res.Financial.Expenses.Fixed,
		"expenses_collection":   res.Financial.Expenses.Collection,
		"expenses_disposal":     res.Financial.Expenses.Disposal,
		"expenses_total":        res.Financial.Expenses.Total,
		"profit":                res.Financial.Profit,
		"degraded":              res.Degraded,
	}
	for _, c := range classify.Classes {
		props["buildings_"+string(c)] = res.Buildings.ByClass[c]
	}
	return props
}
