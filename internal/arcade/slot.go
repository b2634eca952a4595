package arcade

import "slices"

// NextPosition returns the smallest positive slot not present in positions.
// Callers pass positions in ascending order; unsorted, duplicated or
// non-positive entries are tolerated.
func NextPosition(positions []int) int {
	sorted := positions
	if !slices.IsSorted(positions) {
		sorted = slices.Clone(positions)
		slices.Sort(sorted)
	}
	next := 1
	for _, p := range sorted {
		if p < next {
			continue
		}
		if p != next {
			break
		}
		next++
	}
	return next
}
