package project

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/metrowaste/zoneplanner/internal/classify"
)

func fixedCounts() classify.Counts {
	c := classify.ZeroCounts()
	c.ByClass[classify.CommercialSmall] = 2
	c.ByClass[classify.CommercialMedium] = 1
	c.ByClass[classify.CommercialLarge] = 0
	c.ByClass[classify.ResidentialPeriUrban] = 10
	c.ByClass[classify.ResidentialUrban] = 5
	c.Raw = 18
	c.Total = classify.AdjustTotal(c.Raw, 0.98)
	return c
}

func TestProject_WasteModel(t *testing.T) {
	w, _ := Project(fixedCounts(), 1000, DefaultRates())

	// daily = 1000*0.5 + 2*8 + 1*25 + 0*60 = 541 kg.
	assert.InDelta(t, 541, w.DailyKG, 1e-9)
	assert.InDelta(t, 16230, w.MonthlyKG, 1e-9)
}

func TestProject_ResidentialExcludedFromWaste(t *testing.T) {
	// Only population and commercial buildings drive waste; a pile of
	// residential buildings with zero population produces zero waste.
	c := classify.ZeroCounts()
	c.ByClass[classify.ResidentialPeriUrban] = 500
	c.ByClass[classify.ResidentialUrban] = 300

	w, f := Project(c, 0, DefaultRates())
	assert.Zero(t, w.DailyKG)
	// ...but those same buildings still earn revenue.
	assert.InDelta(t, 500*200+300*350, f.Revenue.Total, 1e-9)
}

func TestProject_FinancialModel(t *testing.T) {
	_, f := Project(fixedCounts(), 1000, DefaultRates())

	// revenue = 10*200 + 5*350 + 2*1000 + 1*2500 + 0*6000 = 8250.
	assert.InDelta(t, 8250, f.Revenue.Total, 1e-9)
	assert.InDelta(t, 2000, f.Revenue.ByClass[classify.ResidentialPeriUrban], 1e-9)
	assert.InDelta(t, 1750, f.Revenue.ByClass[classify.ResidentialUrban], 1e-9)

	// monthly waste = 16230 kg = 16.23 t.
	// collection = 16.23*2500 = 40575; disposal = 16.23*1500 = 24345.
	assert.InDelta(t, 40575, f.Expenses.Collection, 1e-9)
	assert.InDelta(t, 24345, f.Expenses.Disposal, 1e-9)
	assert.InDelta(t, 500000+40575+24345, f.Expenses.Total, 1e-9)

	// Profit is negative and not clamped.
	assert.InDelta(t, 8250-564920, f.Profit, 1e-9)
	assert.Negative(t, f.Profit)
}

func TestProject_Deterministic(t *testing.T) {
	counts := fixedCounts()
	rates := DefaultRates()

	w1, f1 := Project(counts, 1000, rates)
	w2, f2 := Project(counts, 1000, rates)

	assert.Equal(t, w1, w2)
	assert.Equal(t, f1, f2)
}

func TestProject_GuardsUndefinedInputs(t *testing.T) {
	rates := DefaultRates()

	// Counts with a nil map: every lookup reads zero.
	var counts classify.Counts
	w, f := Project(counts, math.NaN(), rates)
	assert.Zero(t, w.DailyKG)
	assert.Zero(t, f.Revenue.Total)
	assert.False(t, math.IsNaN(f.Profit))
	assert.InDelta(t, -rates.FixedMonthlyExpense, f.Profit, 1e-9)

	_, f = Project(counts, math.Inf(1), rates)
	assert.False(t, math.IsNaN(f.Profit))

	w, _ = Project(counts, -50, rates)
	assert.Zero(t, w.DailyKG)
}

func TestProject_ZeroEverything(t *testing.T) {
	w, f := Project(classify.ZeroCounts(), 0, DefaultRates())
	assert.Zero(t, w.MonthlyKG)
	assert.Zero(t, f.Revenue.Total)
	assert.InDelta(t, -500000, f.Profit, 1e-9)
}
