// Package diff computes minimal field-level deltas between two map-shaped
// entity snapshots.
package diff

import "reflect"

// MapDiff compares two nested string-keyed maps and returns the minimal
// delta turning old into new, plus the previous values of overwritten
// leaves.
//
// Keys only in new land fully in delta with no previous entry. Keys with
// equal values are omitted. When both values are maps the diff recurses
// and empty nested deltas are dropped; otherwise the new value goes into
// delta and the old one into previous. Keys only in old are never
// mentioned: a delta cannot express removal of a sub-key, nested
// structures are replaced at the leaf level only.
func MapDiff(old, new map[string]any) (delta, previous map[string]any) {
	delta = make(map[string]any)
	previous = make(map[string]any)
	for key, newValue := range new {
		oldValue, existed := old[key]
		if !existed {
			delta[key] = newValue
			continue
		}
		if reflect.DeepEqual(oldValue, newValue) {
			continue
		}
		oldMap, oldIsMap := oldValue.(map[string]any)
		newMap, newIsMap := newValue.(map[string]any)
		if oldIsMap && newIsMap {
			nestedDelta, nestedPrevious := MapDiff(oldMap, newMap)
			if len(nestedDelta) > 0 {
				delta[key] = nestedDelta
				previous[key] = nestedPrevious
			}
			continue
		}
		delta[key] = newValue
		previous[key] = oldValue
	}
	return delta, previous
}
