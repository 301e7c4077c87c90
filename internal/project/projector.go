// Package project computes waste-generation and financial projections
// from classified building counts and population totals. It is a pure
// function of its inputs: no I/O, no hidden state, deterministic.
package project

import (
	"math"

	"github.com/metrowaste/zoneplanner/internal/classify"
)

// Rates holds every model constant in one structure so planners can run
// what-if scenarios by swapping configurations.
type Rates struct {
	// ResidentialPerPersonKG is daily household waste per person in kg.
	// Residential waste is population-driven; residential building
	// counts deliberately do not appear in the waste model even though
	// they earn revenue.
	ResidentialPerPersonKG float64

	// DailyCommercialKG is daily waste per building for the commercial
	// classes, in kg.
	DailyCommercialKG map[classify.Class]float64

	// MonthlyRate is the collection fee billed per building per month,
	// for all five classes.
	MonthlyRate map[classify.Class]float64

	// CollectionPerTon and DisposalPerTon are hauling and tipping costs
	// per metric ton of monthly waste.
	CollectionPerTon float64
	DisposalPerTon   float64

	// FixedMonthlyExpense covers staff, depot, and equipment overhead.
	FixedMonthlyExpense float64
}

// DefaultRates returns placeholder rates for a mid-size municipality.
// All values are configuration, not validated tariffs.
func DefaultRates() Rates {
	return Rates{
		ResidentialPerPersonKG: 0.5,
		DailyCommercialKG: map[classify.Class]float64{
			classify.CommercialSmall:  8,
			classify.CommercialMedium: 25,
			classify.CommercialLarge:  60,
		},
		MonthlyRate: map[classify.Class]float64{
			classify.ResidentialPeriUrban: 200,
			classify.ResidentialUrban:     350,
			classify.CommercialSmall:      1000,
			classify.CommercialMedium:     2500,
			classify.CommercialLarge:      6000,
		},
		CollectionPerTon:    2500,
		DisposalPerTon:      1500,
		FixedMonthlyExpense: 500000,
	}
}

// Waste is the projected waste generation for one zone.
type Waste struct {
	DailyKG   float64 `json:"daily_kg"`
	MonthlyKG float64 `json:"monthly_kg"`
}

// Revenue is the monthly collection revenue split by building class.
type Revenue struct {
	ByClass map[classify.Class]float64 `json:"by_type"`
	Total   float64                    `json:"total"`
}

// Expenses is the monthly cost breakdown.
type Expenses struct {
	Fixed      float64 `json:"fixed"`
	Collection float64 `json:"collection"`
	Disposal   float64 `json:"disposal"`
	Total      float64 `json:"total"`
}

// Financial is the monthly revenue/expense/profit model for one zone.
type Financial struct {
	Revenue  Revenue  `json:"revenue"`
	Expenses Expenses `json:"expenses"`
	// Profit may be negative; it is never clamped.
	Profit float64 `json:"profit"`
}

const daysPerMonth = 30

// Project computes the waste and financial model. Missing class counts
// and NaN or negative population are treated as zero, so a degraded
// upstream stage can never poison the arithmetic.
func Project(counts classify.Counts, populationTotal float64, r Rates) (Waste, Financial) {
	pop := sanitize(populationTotal)

	daily := pop * r.ResidentialPerPersonKG
	for _, class := range classify.Commercial {
		daily += float64(counts.ByClass[class]) * r.DailyCommercialKG[class]
	}

	w := Waste{
		DailyKG:   daily,
		MonthlyKG: daily * daysPerMonth,
	}

	rev := Revenue{ByClass: make(map[classify.Class]float64, len(classify.Classes))}
	for _, class := range classify.Classes {
		amount := float64(counts.ByClass[class]) * r.MonthlyRate[class]
		rev.ByClass[class] = amount
		rev.Total += amount
	}

	monthlyTons := w.MonthlyKG / 1000
	exp := Expenses{
		Fixed:      r.FixedMonthlyExpense,
		Collection: monthlyTons * r.CollectionPerTon,
		Disposal:   monthlyTons * r.DisposalPerTon,
	}
	exp.Total = exp.Fixed + exp.Collection + exp.Disposal

	return w, Financial{
		Revenue:  rev,
		Expenses: exp,
		Profit:   rev.Total - exp.Total,
	}
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
