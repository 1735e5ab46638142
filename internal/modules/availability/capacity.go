package availability

import "tablebooking/internal/domain"

// Fits reports whether party sits within the table's own capacity range.
func Fits(t *domain.Table, party int) bool {
	return party >= t.CapacityMin && party <= t.CapacityMax
}

// Combinable requires each table to list the other.
func Combinable(a, b *domain.Table) bool {
	if a == nil || b == nil || a.ID == b.ID {
		return false
	}
	return a.CanCombineWith(b.Number) && b.CanCombineWith(a.Number)
}

// CombinedRange is [min of minimums, sum of maximums].
func CombinedRange(a, b *domain.Table) (int, int) {
	lo := a.CapacityMin
	if b.CapacityMin < lo {
		lo = b.CapacityMin
	}
	return lo, a.CapacityMax + b.CapacityMax
}

// FitsCombined reports whether party fits the merged pair. Non-combinable
// pairs never fit.
func FitsCombined(a, b *domain.Table, party int) bool {
	if !Combinable(a, b) {
		return false
	}
	lo, hi := CombinedRange(a, b)
	return party >= lo && party <= hi
}
