package partial

import (
	"encoding/json"
	"testing"
)

func TestOptionalIDTriState(t *testing.T) {
	var patch LodgementPatch
	// Absent: the reference keeps its current value.
	if err := json.Unmarshal([]byte(`{"title":"A"}`), &patch); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if patch.GroupID.Defined {
		t.Fatalf("absent key parsed as defined")
	}

	// Explicit null clears the reference.
	patch = LodgementPatch{}
	if err := json.Unmarshal([]byte(`{"group_id":null}`), &patch); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !patch.GroupID.Defined || patch.GroupID.Value != nil {
		t.Fatalf("null not parsed as clear: %+v", patch.GroupID)
	}

	// Concrete value, including negative placeholders.
	patch = LodgementPatch{}
	if err := json.Unmarshal([]byte(`{"group_id":-3}`), &patch); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !patch.GroupID.Defined || patch.GroupID.Value == nil || *patch.GroupID.Value != -3 {
		t.Fatalf("value not parsed: %+v", patch.GroupID)
	}

	if err := json.Unmarshal([]byte(`{"group_id":"x"}`), &patch); err == nil {
		t.Fatalf("non-numeric reference accepted")
	}
}

func TestDeltaRoundTrip(t *testing.T) {
	raw := []byte(`{
		"EVENT_SCHEMA_VERSION": {"major": 2, "minor": 3},
		"summary": "orga offline edits",
		"lodgements": {
			"-1": {"title": "Attic", "group_id": -2},
			"7": null
		}
	}`)
	var delta Delta
	if err := json.Unmarshal(raw, &delta); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if delta.Version.Major != 2 || delta.Version.Minor != 3 {
		t.Fatalf("version not parsed: %+v", delta.Version)
	}
	if delta.Summary != "orga offline edits" {
		t.Fatalf("summary lost")
	}
	if patch := delta.Lodgements[-1]; patch == nil || *patch.Title != "Attic" {
		t.Fatalf("creation patch lost: %+v", patch)
	}
	if patch, ok := delta.Lodgements[7]; !ok || patch != nil {
		t.Fatalf("deletion marker lost: %v %v", patch, ok)
	}
}
