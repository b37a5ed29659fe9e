package partial

import (
	"eventcore/pkg/domain"
)

// Remapper translates negative placeholder IDs to the real IDs assigned
// by the store during this import. Each placeholder is resolved exactly
// once; all forward references within the payload are rewritten through
// the same table.
type Remapper struct {
	tables map[domain.EntityType]map[int64]int64
}

// NewRemapper constructs an empty remapper.
func NewRemapper() *Remapper {
	return &Remapper{tables: make(map[domain.EntityType]map[int64]int64)}
}

// Record stores the placeholder → real mapping for a created entity.
func (r *Remapper) Record(entity domain.EntityType, placeholder, real int64) {
	table, ok := r.tables[entity]
	if !ok {
		table = make(map[int64]int64)
		r.tables[entity] = table
	}
	table[placeholder] = real
}

// Resolve translates an ID: positive IDs pass through, negative IDs are
// looked up in the table populated by earlier creations.
func (r *Remapper) Resolve(entity domain.EntityType, id int64) (int64, bool) {
	if id > 0 {
		return id, true
	}
	real, ok := r.tables[entity][id]
	return real, ok
}

// ResolveRef translates an optional foreign-key reference in place.
func (r *Remapper) ResolveRef(entity domain.EntityType, ref *int64) (*int64, error) {
	if ref == nil {
		return nil, nil
	}
	real, ok := r.Resolve(entity, *ref)
	if !ok {
		return nil, domain.ReferentialIntegrityError{Entity: entity, ID: *ref, Where: "import payload"}
	}
	return &real, nil
}
