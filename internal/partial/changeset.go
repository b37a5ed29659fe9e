package partial

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// ChangeSet accumulates the applied delta (or its mirrored previous
// state) per category. A nil entry marks a deletion; a full map marks a
// creation; a partial map marks an update.
type ChangeSet struct {
	LodgementGroups map[int64]map[string]any `json:"lodgement_groups,omitempty"`
	Lodgements      map[int64]map[string]any `json:"lodgements,omitempty"`
	Courses         map[int64]map[string]any `json:"courses,omitempty"`
	Registrations   map[int64]map[string]any `json:"registrations,omitempty"`
}

// Empty reports whether no entity was touched.
func (c ChangeSet) Empty() bool {
	return len(c.LodgementGroups) == 0 && len(c.Lodgements) == 0 &&
		len(c.Courses) == 0 && len(c.Registrations) == 0
}

func (c *ChangeSet) category(name string) *map[int64]map[string]any {
	switch name {
	case "lodgement_groups":
		return &c.LodgementGroups
	case "lodgements":
		return &c.Lodgements
	case "courses":
		return &c.Courses
	case "registrations":
		return &c.Registrations
	}
	panic(fmt.Sprintf("unknown change set category %q", name))
}

func (c *ChangeSet) record(category string, id int64, entry map[string]any) {
	bucket := c.category(category)
	if *bucket == nil {
		*bucket = make(map[int64]map[string]any)
	}
	(*bucket)[id] = entry
}

// Outcome is the result of a partial import: the transaction token and
// the applied delta with its mirrored previous state for undo/audit.
type Outcome struct {
	Token    string    `json:"token"`
	Delta    ChangeSet `json:"delta"`
	Previous ChangeSet `json:"previous"`
}

// Token computes the deterministic content hash over the canonical JSON
// serialization of the accumulated (delta, previous) pair. Identical
// outcomes hash identically; any structural difference changes the token.
func Token(delta, previous ChangeSet) (string, error) {
	payload, err := json.Marshal(struct {
		Delta    ChangeSet `json:"delta"`
		Previous ChangeSet `json:"previous"`
	}{Delta: delta, Previous: previous})
	if err != nil {
		return "", fmt.Errorf("serialize change set: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
