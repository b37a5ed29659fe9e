package partial

import (
	"errors"
	"testing"

	"eventcore/pkg/domain"
)

func TestRemapperResolvesPlaceholders(t *testing.T) {
	r := NewRemapper()
	r.Record(domain.EntityCourse, -1, 42)

	if got, ok := r.Resolve(domain.EntityCourse, -1); !ok || got != 42 {
		t.Fatalf("placeholder not resolved: %d %v", got, ok)
	}
	// Positive IDs pass through untouched.
	if got, ok := r.Resolve(domain.EntityCourse, 7); !ok || got != 7 {
		t.Fatalf("positive ID mangled: %d %v", got, ok)
	}
	if _, ok := r.Resolve(domain.EntityCourse, -2); ok {
		t.Fatalf("unknown placeholder resolved")
	}
	// Tables are per entity type.
	if _, ok := r.Resolve(domain.EntityLodgement, -1); ok {
		t.Fatalf("placeholder leaked across entity types")
	}
}

func TestResolveRef(t *testing.T) {
	r := NewRemapper()
	r.Record(domain.EntityLodgementGroup, -3, 9)

	if ref, err := r.ResolveRef(domain.EntityLodgementGroup, nil); err != nil || ref != nil {
		t.Fatalf("nil ref should stay nil: %v %v", ref, err)
	}
	id := int64(-3)
	ref, err := r.ResolveRef(domain.EntityLodgementGroup, &id)
	if err != nil || ref == nil || *ref != 9 {
		t.Fatalf("placeholder ref not remapped: %v %v", ref, err)
	}
	unknown := int64(-99)
	_, err = r.ResolveRef(domain.EntityLodgementGroup, &unknown)
	var integrity domain.ReferentialIntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("expected referential integrity error, got %v", err)
	}
}
