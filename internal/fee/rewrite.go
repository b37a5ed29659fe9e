package fee

import (
	"fmt"

	"eventcore/internal/condition"
	"eventcore/pkg/domain"
)

// RewritePartShortname re-serializes every fee condition referencing the
// old part shortname so it references the new one. Conditions that do not
// mention the part are returned unchanged, byte for byte. Renaming a part
// must not corrupt the semantics of stored conditions.
func RewritePartShortname(fees []domain.EventFee, oldName, newName string) ([]domain.EventFee, error) {
	out := make([]domain.EventFee, len(fees))
	for i, f := range fees {
		out[i] = f
		if f.Condition == "" {
			continue
		}
		node, err := condition.Parse(f.Condition)
		if err != nil {
			return nil, fmt.Errorf("fee %d condition: %w", f.ID, err)
		}
		_, parts := condition.ReferencedNames(node)
		referenced := false
		for _, name := range parts {
			if name == oldName {
				referenced = true
				break
			}
		}
		if !referenced {
			continue
		}
		out[i].Condition = condition.Serialize(node, map[string]string{oldName: newName})
	}
	return out, nil
}

// ReferencedConditionNames aggregates the field and part names referenced
// by any of the event's fee conditions, for dependency tracking before a
// field or part is renamed or deleted.
func ReferencedConditionNames(fees []domain.EventFee) (fields, parts map[string][]int64, err error) {
	fields = make(map[string][]int64)
	parts = make(map[string][]int64)
	for _, f := range fees {
		if f.Condition == "" {
			continue
		}
		node, err := condition.Parse(f.Condition)
		if err != nil {
			return nil, nil, fmt.Errorf("fee %d condition: %w", f.ID, err)
		}
		fs, ps := condition.ReferencedNames(node)
		for _, name := range fs {
			fields[name] = append(fields[name], f.ID)
		}
		for _, name := range ps {
			parts[name] = append(parts[name], f.ID)
		}
	}
	return fields, parts, nil
}
