package partial

import (
	"encoding/json"
	"strconv"

	"eventcore/pkg/domain"

	"github.com/shopspring/decimal"
)

// OptionalID is a tri-state foreign-key reference inside a patch: absent
// (keep the current value), explicit null (clear the reference) or a
// concrete ID. Negative IDs refer to entities created by the same payload.
type OptionalID struct {
	Defined bool
	Value   *int64
}

// Ref returns a defined reference value.
func Ref(id int64) OptionalID {
	return OptionalID{Defined: true, Value: &id}
}

// Null returns an explicit clear-the-reference value.
func Null() OptionalID {
	return OptionalID{Defined: true}
}

// UnmarshalJSON marks the reference as defined; JSON null clears it.
func (o *OptionalID) UnmarshalJSON(data []byte) error {
	o.Defined = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	id, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return err
	}
	o.Value = &id
	return nil
}

// MarshalJSON renders the reference; undefined values marshal as null,
// callers omit them via map semantics.
func (o OptionalID) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}

// LodgementGroupPatch creates or updates a lodgement group.
type LodgementGroupPatch struct {
	Title *string `json:"title,omitempty"`
}

// LodgementPatch creates or updates a lodgement. GroupID may reference a
// group created by the same payload via its negative placeholder ID.
type LodgementPatch struct {
	Title              *string    `json:"title,omitempty"`
	GroupID            OptionalID `json:"group_id,omitzero"`
	RegularCapacity    *int       `json:"regular_capacity,omitempty"`
	CampingMatCapacity *int       `json:"camping_mat_capacity,omitempty"`
}

// CoursePatch creates or updates a course. Segments maps track IDs to
// whether the course is offered in that track; false removes the segment.
type CoursePatch struct {
	Title     *string        `json:"title,omitempty"`
	Shortname *string        `json:"shortname,omitempty"`
	Segments  map[int64]bool `json:"segments,omitempty"`
}

// RegistrationPartPatch updates the involvement of one event part.
type RegistrationPartPatch struct {
	Status       *domain.RegistrationPartStatus `json:"status,omitempty"`
	LodgementID  OptionalID                     `json:"lodgement_id,omitzero"`
	IsCampingMat *bool                          `json:"is_camping_mat,omitempty"`
}

// RegistrationTrackPatch updates course assignment and choices for one
// track.
type RegistrationTrackPatch struct {
	CourseID           OptionalID `json:"course_id,omitzero"`
	InstructorCourseID OptionalID `json:"course_instructor,omitzero"`
	Choices            *[]int64   `json:"choices,omitempty"`
}

// RegistrationPatch creates or updates a registration. PersonaID is
// required for creations and immutable afterwards. Fields is an overlay
// merged into the stored value bag. There deliberately is no way to patch
// AmountPaid: payment booking owns it.
type RegistrationPatch struct {
	PersonaID        *int64                           `json:"persona_id,omitempty"`
	IsMember         *bool                            `json:"is_member,omitempty"`
	Notes            *string                          `json:"notes,omitempty"`
	Parts            map[int64]RegistrationPartPatch  `json:"parts,omitempty"`
	Tracks           map[int64]RegistrationTrackPatch `json:"tracks,omitempty"`
	Fields           domain.FieldValues               `json:"fields,omitempty"`
	PersonalizedFees map[int64]decimal.Decimal        `json:"personalized_fees,omitempty"`
}

// Delta is a partial-import payload: per category, integer IDs (negative
// for creations) map to a patch, or to nil for an explicit deletion.
type Delta struct {
	Version         domain.SchemaVersion           `json:"EVENT_SCHEMA_VERSION"`
	Summary         string                         `json:"summary,omitempty"`
	LodgementGroups map[int64]*LodgementGroupPatch `json:"lodgement_groups,omitempty"`
	Lodgements      map[int64]*LodgementPatch      `json:"lodgements,omitempty"`
	Courses         map[int64]*CoursePatch         `json:"courses,omitempty"`
	Registrations   map[int64]*RegistrationPatch   `json:"registrations,omitempty"`
}
