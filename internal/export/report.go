package export

import (
	"io"

	"github.com/rotisserie/eris"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/metrowaste/zoneplanner/internal/analysis"
	"github.com/metrowaste/zoneplanner/internal/classify"
)

var classLabels = map[classify.Class]string{
	classify.ResidentialPeriUrban: "Residential (peri-urban)",
	classify.ResidentialUrban:     "Residential (urban)",
	classify.CommercialSmall:      "Commercial (small)",
	classify.CommercialMedium:     "Commercial (medium)",
	classify.CommercialLarge:      "Commercial (large)",
}

// WriteReport prints a human-readable analysis summary with grouped
// thousands, the form the analyze command shows on stdout.
func WriteReport(w io.Writer, res *analysis.Result) error {
	p := message.NewPrinter(language.English)

	var err error
	write := func(format string, args ...interface{}) {
		if err != nil {
			return
		}
		_, err = p.Fprintf(w, format, args...)
	}

	write("Zone: %s\n", res.ZoneName)
	write("Area: %.2f km²\n", res.AreaKM2)
	if res.Degraded {
		write("NOTE: estimation degraded, one or more data sources were unavailable\n")
	}

	write("\nBuildings (%d total)\n", res.Buildings.Total)
	for _, c := range classify.Classes {
		write("  %-26s %d\n", classLabels[c], res.Buildings.ByClass[c])
	}

	write("\nPopulation: %.0f (%.0f per km², %s)\n",
		res.Population.Total, res.Population.Density, res.Population.Provenance)

	write("\nWaste\n")
	write("  Daily:   %.1f kg\n", res.Waste.DailyKG)
	write("  Monthly: %.1f kg (%.2f tons)\n", res.Waste.MonthlyKG, res.Waste.MonthlyKG/1000)

	write("\nFinancials (monthly)\n")
	write("  Revenue:    %12.2f\n", res.Financial.Revenue.Total)
	write("  Fixed:      %12.2f\n", res.Financial.Expenses.Fixed)
	write("  Collection: %12.2f\n", res.Financial.Expenses.Collection)
	write("  Disposal:   %12.2f\n", res.Financial.Expenses.Disposal)
	write("  Expenses:   %12.2f\n", res.Financial.Expenses.Total)
	write("  Profit:     %12.2f\n", res.Financial.Profit)

	return eris.Wrap(err, "export: write report")
}
