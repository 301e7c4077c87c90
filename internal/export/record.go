// Package export serializes analysis results to interchange formats:
// flat CSV, XLSX workbooks, GeoJSON feature collections, and ESRI
// shapefiles. All writers share one flattened row schema so the same
// analysis reads identically regardless of format.
package export

import (
	"strconv"

	"github.com/metrowaste/zoneplanner/internal/analysis"
	"github.com/metrowaste/zoneplanner/internal/classify"
	"github.com/metrowaste/zoneplanner/internal/zone"
)

// Entry pairs a zone (for its geometry and metadata) with its analysis.
// Tabular writers only read the result; geographic writers need both.
type Entry struct {
	Zone   *zone.Zone
	Result *analysis.Result
}

// Header is the column order shared by the CSV and XLSX writers.
// Waste tonnage is derived here so every format agrees on it.
var Header = []string{
	"zone_name",
	"area_km2",
	"buildings_total",
	"buildings_residential_peri_urban",
	"buildings_residential_urban",
	"buildings_commercial_small",
	"buildings_commercial_medium",
	"buildings_commercial_large",
	"population_total",
	"population_density",
	"population_provenance",
	"daily_waste_kg",
	"monthly_waste_kg",
	"monthly_waste_tons",
	"revenue_total",
	"expenses_fixed",
	"expenses_collection",
	"expenses_disposal",
	"expenses_total",
	"profit",
	"degraded",
}

// Flatten turns a result into the shared row schema, one value per
// Header column.
func Flatten(res *analysis.Result) []string {
	row := make([]string, 0, len(Header))
	row = append(row,
		res.ZoneName,
		formatFloat(res.AreaKM2, 4),
		strconv.Itoa(res.Buildings.Total),
	)
	for _, c := range classify.Classes {
		row = append(row, strconv.Itoa(res.Buildings.ByClass[c]))
	}
	row = append(row,
		formatFloat(res.Population.Total, 0),
		formatFloat(res.Population.Density, 0),
		string(res.Population.Provenance),
		formatFloat(res.Waste.DailyKG, 2),
		formatFloat(res.Waste.MonthlyKG, 2),
		formatFloat(res.Waste.MonthlyKG/1000, 3),
		formatFloat(res.Financial.Revenue.Total, 2),
		formatFloat(res.Financial.Expenses.Fixed, 2),
		formatFloat(res.Financial.Expenses.Collection, 2),
		formatFloat(res.Financial.Expenses.Disposal, 2),
		formatFloat(res.Financial.Expenses.Total, 2),
		formatFloat(res.Financial.Profit, 2),
		strconv.FormatBool(res.Degraded),
	)
	return row
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}
