package diff

import (
	"reflect"
	"testing"
)

func TestMapDiffNewKeys(t *testing.T) {
	delta, previous := MapDiff(
		map[string]any{"a": 1},
		map[string]any{"a": 1, "b": 2},
	)
	if !reflect.DeepEqual(delta, map[string]any{"b": 2}) {
		t.Fatalf("unexpected delta: %v", delta)
	}
	if len(previous) != 0 {
		t.Fatalf("new keys must not produce previous entries: %v", previous)
	}
}

func TestMapDiffEqualValuesOmitted(t *testing.T) {
	delta, previous := MapDiff(
		map[string]any{"a": 1, "b": "x"},
		map[string]any{"a": 1, "b": "x"},
	)
	if len(delta) != 0 || len(previous) != 0 {
		t.Fatalf("identical maps must diff empty, got %v / %v", delta, previous)
	}
}

func TestMapDiffChangedLeaf(t *testing.T) {
	delta, previous := MapDiff(
		map[string]any{"a": 1},
		map[string]any{"a": 2},
	)
	if !reflect.DeepEqual(delta, map[string]any{"a": 2}) {
		t.Fatalf("unexpected delta: %v", delta)
	}
	if !reflect.DeepEqual(previous, map[string]any{"a": 1}) {
		t.Fatalf("unexpected previous: %v", previous)
	}
}

func TestMapDiffRecursesIntoNestedMaps(t *testing.T) {
	old := map[string]any{
		"parts": map[string]any{
			"1": map[string]any{"status": float64(2), "lodgement_id": nil},
			"2": map[string]any{"status": float64(2)},
		},
	}
	new := map[string]any{
		"parts": map[string]any{
			"1": map[string]any{"status": float64(3), "lodgement_id": nil},
			"2": map[string]any{"status": float64(2)},
		},
	}
	delta, previous := MapDiff(old, new)
	wantDelta := map[string]any{
		"parts": map[string]any{
			"1": map[string]any{"status": float64(3)},
		},
	}
	wantPrevious := map[string]any{
		"parts": map[string]any{
			"1": map[string]any{"status": float64(2)},
		},
	}
	if !reflect.DeepEqual(delta, wantDelta) {
		t.Fatalf("unexpected delta: %v", delta)
	}
	if !reflect.DeepEqual(previous, wantPrevious) {
		t.Fatalf("unexpected previous: %v", previous)
	}
}

func TestMapDiffEmptyNestedDeltaDropped(t *testing.T) {
	delta, _ := MapDiff(
		map[string]any{"nested": map[string]any{"a": 1, "b": 2}},
		map[string]any{"nested": map[string]any{"a": 1}},
	)
	if len(delta) != 0 {
		t.Fatalf("removal of a sub-key must not be expressible, got %v", delta)
	}
}

func TestMapDiffOldOnlyKeysNeverMentioned(t *testing.T) {
	delta, previous := MapDiff(
		map[string]any{"a": 1, "gone": true},
		map[string]any{"a": 1},
	)
	if len(delta) != 0 || len(previous) != 0 {
		t.Fatalf("old-only keys must be ignored, got %v / %v", delta, previous)
	}
}

func TestMapDiffTypeChangeIsLeafReplacement(t *testing.T) {
	delta, previous := MapDiff(
		map[string]any{"v": map[string]any{"a": 1}},
		map[string]any{"v": "scalar"},
	)
	if !reflect.DeepEqual(delta, map[string]any{"v": "scalar"}) {
		t.Fatalf("unexpected delta: %v", delta)
	}
	if !reflect.DeepEqual(previous, map[string]any{"v": map[string]any{"a": 1}}) {
		t.Fatalf("unexpected previous: %v", previous)
	}
}
