// Package domain defines the persistent entities, value types, and error
// taxonomy of the event-fee and partial-import engine.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntityType identifies the type of record stored in the event domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityEvent identifies an event aggregate record.
	EntityEvent EntityType = "event"
	// EntityPart identifies an event part record.
	EntityPart EntityType = "part"
	// EntityPartGroup identifies a part group record.
	EntityPartGroup EntityType = "part_group"
	// EntityTrack identifies a course track record.
	EntityTrack EntityType = "track"
	// EntityFee identifies an event fee record.
	EntityFee EntityType = "fee"
	// EntityLodgementGroup identifies a lodgement group record.
	EntityLodgementGroup EntityType = "lodgement_group"
	// EntityLodgement identifies a lodgement record.
	EntityLodgement EntityType = "lodgement"
	// EntityCourse identifies a course record.
	EntityCourse EntityType = "course"
	// EntityRegistration identifies a registration record.
	EntityRegistration EntityType = "registration"
)

// RegistrationPartStatus enumerates the involvement of a registration in a
// single event part.
type RegistrationPartStatus int

// Canonical involvement statuses. The numeric values are part of the wire
// format of import payloads and must stay stable.
const (
	StatusNotApplied  RegistrationPartStatus = -1
	StatusApplied     RegistrationPartStatus = 1
	StatusParticipant RegistrationPartStatus = 2
	StatusWaitlist    RegistrationPartStatus = 3
	StatusGuest       RegistrationPartStatus = 4
	StatusCancelled   RegistrationPartStatus = 5
	StatusRejected    RegistrationPartStatus = 6
)

// IsInvolved reports whether the registration takes part in the event part
// in any active capacity.
func (s RegistrationPartStatus) IsInvolved() bool {
	switch s {
	case StatusApplied, StatusParticipant, StatusWaitlist, StatusGuest:
		return true
	default:
		return false
	}
}

// HasToPay reports whether the involvement makes the registration liable
// for the part's fee. Guests are involved but exempt.
func (s RegistrationPartStatus) HasToPay() bool {
	switch s {
	case StatusApplied, StatusParticipant, StatusWaitlist:
		return true
	default:
		return false
	}
}

// IsPresent reports whether the person is physically attending the part.
func (s RegistrationPartStatus) IsPresent() bool {
	return s == StatusParticipant || s == StatusGuest
}

// PartGroupConstraint classifies the semantics of a part group.
type PartGroupConstraint string

const (
	// ConstraintMEP marks a group whose parts are mutually exclusive for
	// participants: a registration is billed for at most one of them.
	ConstraintMEP PartGroupConstraint = "mutually_exclusive_participants"
	// ConstraintStatistic marks a purely informational grouping.
	ConstraintStatistic PartGroupConstraint = "statistic"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Event is the aggregate root owning parts, tracks, fees, lodgements,
// courses and registrations.
type Event struct {
	Base
	Title              string                     `json:"title"`
	Shortname          string                     `json:"shortname"`
	NonmemberSurcharge decimal.Decimal            `json:"nonmember_surcharge"`
	Fields             map[string]FieldDefinition `json:"fields"`
}

// EventPart is a time-bounded subdivision of an event.
type EventPart struct {
	Base
	EventID   int64           `json:"event_id"`
	Title     string          `json:"title"`
	Shortname string          `json:"shortname"`
	Begin     time.Time       `json:"begin"`
	End       time.Time       `json:"end"`
	Fee       decimal.Decimal `json:"fee"`
}

// PartGroup is a named set of parts carrying a constraint.
type PartGroup struct {
	Base
	EventID    int64               `json:"event_id"`
	Title      string              `json:"title"`
	Shortname  string              `json:"shortname"`
	Constraint PartGroupConstraint `json:"constraint"`
	PartIDs    []int64             `json:"part_ids"`
}

// EventTrack is a course track within an event part.
type EventTrack struct {
	Base
	PartID     int64  `json:"part_id"`
	Title      string `json:"title"`
	Shortname  string `json:"shortname"`
	MinChoices int    `json:"min_choices"`
	NumChoices int    `json:"num_choices"`
}

// EventFee is a fee component of an event. An empty Condition means the fee
// applies unconditionally; a non-nil PartID binds the amount to that part's
// fee computation, a nil PartID makes it part-independent.
type EventFee struct {
	Base
	EventID   int64           `json:"event_id"`
	Title     string          `json:"title"`
	Amount    decimal.Decimal `json:"amount"`
	Condition string          `json:"condition"`
	PartID    *int64          `json:"part_id"`
}

// LodgementGroup clusters lodgements, e.g. a building wing.
type LodgementGroup struct {
	Base
	EventID int64  `json:"event_id"`
	Title   string `json:"title"`
}

// Lodgement is a single housing unit of an event.
type Lodgement struct {
	Base
	EventID            int64  `json:"event_id"`
	GroupID            *int64 `json:"group_id"`
	Title              string `json:"title"`
	RegularCapacity    int    `json:"regular_capacity"`
	CampingMatCapacity int    `json:"camping_mat_capacity"`
}

// Course is offered in one or more tracks (its segments).
type Course struct {
	Base
	EventID    int64   `json:"event_id"`
	Title      string  `json:"title"`
	Shortname  string  `json:"shortname"`
	SegmentIDs []int64 `json:"segment_ids"`
}

// RegistrationPart captures the involvement of a registration in one part.
type RegistrationPart struct {
	Status       RegistrationPartStatus `json:"status"`
	LodgementID  *int64                 `json:"lodgement_id"`
	IsCampingMat bool                   `json:"is_camping_mat"`
}

// RegistrationTrack captures course assignment and choices for one track.
type RegistrationTrack struct {
	CourseID           *int64  `json:"course_id"`
	InstructorCourseID *int64  `json:"course_instructor"`
	Choices            []int64 `json:"choices"`
}

// Registration ties a persona to an event. AmountOwed is derived by the fee
// calculator; AmountPaid is owned by payment booking and never written by
// the import engine.
type Registration struct {
	Base
	EventID          int64                       `json:"event_id"`
	PersonaID        int64                       `json:"persona_id"`
	IsMember         bool                        `json:"is_member"`
	Notes            *string                     `json:"notes,omitempty"`
	Parts            map[int64]RegistrationPart  `json:"parts"`
	Tracks           map[int64]RegistrationTrack `json:"tracks"`
	Fields           FieldValues                 `json:"fields"`
	PersonalizedFees map[int64]decimal.Decimal   `json:"personalized_fees,omitempty"`
	AmountOwed       decimal.Decimal             `json:"amount_owed"`
	AmountPaid       decimal.Decimal             `json:"amount_paid"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported mutations captured in the audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// SchemaVersion tags import payloads with the exporting schema generation.
type SchemaVersion struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
}

// CurrentSchemaVersion is the schema generation this server speaks.
var CurrentSchemaVersion = SchemaVersion{Major: 2, Minor: 3}

// Compatible reports whether a payload tagged with v may be imported: the
// major version must match and the minor version must not exceed ours.
func (v SchemaVersion) Compatible(server SchemaVersion) bool {
	return v.Major == server.Major && v.Minor <= server.Minor
}
