package domain

import "context"

// Transaction exposes the domain operations a persistence implementation
// must support within an atomic scope. Deletions accept the names of
// dependent relations the caller allows to be cascaded; any remaining
// blocker aborts with a ConstraintViolationError.
type Transaction interface {
	Snapshot() TransactionView

	CreateEvent(Event) (Event, error)
	UpdateEvent(id int64, mutator func(*Event) error) (Event, error)
	FindEvent(id int64) (Event, bool)

	CreatePart(EventPart) (EventPart, error)
	UpdatePart(id int64, mutator func(*EventPart) error) (EventPart, error)
	ListParts(eventID int64) []EventPart

	CreatePartGroup(PartGroup) (PartGroup, error)
	ListPartGroups(eventID int64) []PartGroup

	CreateTrack(EventTrack) (EventTrack, error)
	ListTracks(eventID int64) []EventTrack

	CreateFee(EventFee) (EventFee, error)
	UpdateFee(id int64, mutator func(*EventFee) error) (EventFee, error)
	ListFees(eventID int64) []EventFee

	CreateLodgementGroup(LodgementGroup) (LodgementGroup, error)
	UpdateLodgementGroup(id int64, mutator func(*LodgementGroup) error) (LodgementGroup, error)
	DeleteLodgementGroup(id int64, cascade []string) error
	FindLodgementGroup(id int64) (LodgementGroup, bool)
	ListLodgementGroups(eventID int64) []LodgementGroup

	CreateLodgement(Lodgement) (Lodgement, error)
	UpdateLodgement(id int64, mutator func(*Lodgement) error) (Lodgement, error)
	DeleteLodgement(id int64, cascade []string) error
	FindLodgement(id int64) (Lodgement, bool)
	ListLodgements(eventID int64) []Lodgement

	CreateCourse(Course) (Course, error)
	UpdateCourse(id int64, mutator func(*Course) error) (Course, error)
	DeleteCourse(id int64, cascade []string) error
	FindCourse(id int64) (Course, bool)
	ListCourses(eventID int64) []Course

	CreateRegistration(Registration) (Registration, error)
	UpdateRegistration(id int64, mutator func(*Registration) error) (Registration, error)
	DeleteRegistration(id int64) error
	FindRegistration(id int64) (Registration, bool)
	ListRegistrations(eventID int64) []Registration
}

// TransactionView provides read-only access to snapshot data.
type TransactionView interface {
	FindEvent(id int64) (Event, bool)
	ListParts(eventID int64) []EventPart
	ListPartGroups(eventID int64) []PartGroup
	ListTracks(eventID int64) []EventTrack
	ListFees(eventID int64) []EventFee
	ListLodgementGroups(eventID int64) []LodgementGroup
	ListLodgements(eventID int64) []Lodgement
	ListCourses(eventID int64) []Course
	FindRegistration(id int64) (Registration, bool)
	ListRegistrations(eventID int64) []Registration
}

// PersistentStore is a minimal abstraction over durable backends. A
// transaction commits only when fn returns nil; returning ErrRollback
// discards the state without reporting an error, which is how dry-run
// imports preview their effects. The accumulated Change records of a
// committed transaction are returned for auditing.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) ([]Change, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetEvent(id int64) (Event, bool)
	GetRegistration(id int64) (Registration, bool)
	ListRegistrations(eventID int64) []Registration
	ListLodgements(eventID int64) []Lodgement
	ListCourses(eventID int64) []Course
}
