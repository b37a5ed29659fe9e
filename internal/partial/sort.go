package partial

import "sort"

// MixedExistenceOrder sorts delta keys into processing order: existing
// positive IDs ascending, then negative placeholder IDs descending (-1
// before -2). Every tier uses this one comparator so remap tables are
// fully populated before dependents consult them.
func MixedExistenceOrder(ids []int64) []int64 {
	out := append([]int64(nil), ids...)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a > 0) != (b > 0) {
			return a > 0
		}
		if a > 0 {
			return a < b
		}
		return a > b
	})
	return out
}
