// Package classify buckets detected building footprints into area-based
// building classes for waste planning.
package classify

// Class is an area-based building category.
type Class string

const (
	ResidentialPeriUrban Class = "residential_peri_urban"
	ResidentialUrban     Class = "residential_urban"
	CommercialSmall      Class = "commercial_small"
	CommercialMedium     Class = "commercial_medium"
	CommercialLarge      Class = "commercial_large"
)

// Classes lists all classes in increasing area order.
var Classes = []Class{
	ResidentialPeriUrban,
	ResidentialUrban,
	CommercialSmall,
	CommercialMedium,
	CommercialLarge,
}

// Commercial lists the classes that contribute directly to waste
// generation. Residential waste is population-driven, so residential
// classes are deliberately absent here while still earning revenue.
var Commercial = []Class{CommercialSmall, CommercialMedium, CommercialLarge}

// Bound is one class's adjusted-area interval in square meters,
// half-open [Min, Max) so a boundary value lands in the class that
// starts at it.
type Bound struct {
	Class Class
	MinM2 float64
	MaxM2 float64
}

// DefaultBounds returns the class intervals. They are contiguous and
// gap-free over [MinBuildingSize, MaxBuildingSize), so every surviving
// footprint matches exactly one class.
func DefaultBounds() []Bound {
	return []Bound{
		{ResidentialPeriUrban, 10, 80},
		{ResidentialUrban, 80, 150},
		{CommercialSmall, 150, 500},
		{CommercialMedium, 500, 1500},
		{CommercialLarge, 1500, 30000},
	}
}

// ClassFor returns the class whose [Min, Max) interval contains the
// adjusted area, or false when the area falls outside every interval.
func ClassFor(bounds []Bound, adjustedAreaM2 float64) (Class, bool) {
	for _, b := range bounds {
		if adjustedAreaM2 >= b.MinM2 && adjustedAreaM2 < b.MaxM2 {
			return b.Class, true
		}
	}
	return "", false
}
