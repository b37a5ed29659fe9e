// Package memory provides an in-memory implementation of the event
// persistence store used for tests and ephemeral environments. Durable
// backends embed it and snapshot its committed state.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"eventcore/pkg/domain"

	"github.com/shopspring/decimal"
)

// Compile-time contract assertion.
var _ domain.PersistentStore = (*Store)(nil)

type memoryState struct {
	seq             int64
	events          map[int64]domain.Event
	parts           map[int64]domain.EventPart
	partGroups      map[int64]domain.PartGroup
	tracks          map[int64]domain.EventTrack
	fees            map[int64]domain.EventFee
	lodgementGroups map[int64]domain.LodgementGroup
	lodgements      map[int64]domain.Lodgement
	courses         map[int64]domain.Course
	registrations   map[int64]domain.Registration
}

// Snapshot captures a point-in-time clone of the store state for durable
// backends.
type Snapshot struct {
	Seq             int64                           `json:"seq"`
	Events          map[int64]domain.Event          `json:"events"`
	Parts           map[int64]domain.EventPart      `json:"parts"`
	PartGroups      map[int64]domain.PartGroup      `json:"part_groups"`
	Tracks          map[int64]domain.EventTrack     `json:"tracks"`
	Fees            map[int64]domain.EventFee       `json:"fees"`
	LodgementGroups map[int64]domain.LodgementGroup `json:"lodgement_groups"`
	Lodgements      map[int64]domain.Lodgement      `json:"lodgements"`
	Courses         map[int64]domain.Course         `json:"courses"`
	Registrations   map[int64]domain.Registration   `json:"registrations"`
}

func newMemoryState() memoryState {
	return memoryState{
		events:          make(map[int64]domain.Event),
		parts:           make(map[int64]domain.EventPart),
		partGroups:      make(map[int64]domain.PartGroup),
		tracks:          make(map[int64]domain.EventTrack),
		fees:            make(map[int64]domain.EventFee),
		lodgementGroups: make(map[int64]domain.LodgementGroup),
		lodgements:      make(map[int64]domain.Lodgement),
		courses:         make(map[int64]domain.Course),
		registrations:   make(map[int64]domain.Registration),
	}
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	cloned.seq = s.seq
	for k, v := range s.events {
		cloned.events[k] = cloneEvent(v)
	}
	for k, v := range s.parts {
		cloned.parts[k] = v
	}
	for k, v := range s.partGroups {
		cloned.partGroups[k] = clonePartGroup(v)
	}
	for k, v := range s.tracks {
		cloned.tracks[k] = v
	}
	for k, v := range s.fees {
		cloned.fees[k] = v
	}
	for k, v := range s.lodgementGroups {
		cloned.lodgementGroups[k] = v
	}
	for k, v := range s.lodgements {
		cloned.lodgements[k] = cloneLodgement(v)
	}
	for k, v := range s.courses {
		cloned.courses[k] = cloneCourse(v)
	}
	for k, v := range s.registrations {
		cloned.registrations[k] = cloneRegistration(v)
	}
	return cloned
}

func cloneEvent(e domain.Event) domain.Event {
	cp := e
	if e.Fields != nil {
		cp.Fields = make(map[string]domain.FieldDefinition, len(e.Fields))
		for k, v := range e.Fields {
			cp.Fields[k] = v
		}
	}
	return cp
}

func clonePartGroup(g domain.PartGroup) domain.PartGroup {
	cp := g
	cp.PartIDs = append([]int64(nil), g.PartIDs...)
	return cp
}

func cloneLodgement(l domain.Lodgement) domain.Lodgement {
	cp := l
	if l.GroupID != nil {
		groupID := *l.GroupID
		cp.GroupID = &groupID
	}
	return cp
}

func cloneCourse(c domain.Course) domain.Course {
	cp := c
	cp.SegmentIDs = append([]int64(nil), c.SegmentIDs...)
	return cp
}

func cloneRegistration(r domain.Registration) domain.Registration {
	cp := r
	if r.Notes != nil {
		notes := *r.Notes
		cp.Notes = &notes
	}
	cp.Parts = make(map[int64]domain.RegistrationPart, len(r.Parts))
	for k, v := range r.Parts {
		if v.LodgementID != nil {
			lodgementID := *v.LodgementID
			v.LodgementID = &lodgementID
		}
		cp.Parts[k] = v
	}
	cp.Tracks = make(map[int64]domain.RegistrationTrack, len(r.Tracks))
	for k, v := range r.Tracks {
		if v.CourseID != nil {
			courseID := *v.CourseID
			v.CourseID = &courseID
		}
		if v.InstructorCourseID != nil {
			courseID := *v.InstructorCourseID
			v.InstructorCourseID = &courseID
		}
		v.Choices = append([]int64(nil), v.Choices...)
		cp.Tracks[k] = v
	}
	cp.Fields = r.Fields.Clone()
	if r.PersonalizedFees != nil {
		cp.PersonalizedFees = make(map[int64]decimal.Decimal, len(r.PersonalizedFees))
		for k, v := range r.PersonalizedFees {
			cp.PersonalizedFees[k] = v
		}
	}
	return cp
}

// Store provides an in-memory transactional store for the event domain.
type Store struct {
	mu    sync.RWMutex
	state memoryState
	nowFn func() time.Time
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{
		state: newMemoryState(),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the clock, for tests.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.nowFn = fn
}

// ExportState returns a deep snapshot of the committed state.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cloned := s.state.clone()
	return Snapshot{
		Seq:             cloned.seq,
		Events:          cloned.events,
		Parts:           cloned.parts,
		PartGroups:      cloned.partGroups,
		Tracks:          cloned.tracks,
		Fees:            cloned.fees,
		LodgementGroups: cloned.lodgementGroups,
		Lodgements:      cloned.lodgements,
		Courses:         cloned.courses,
		Registrations:   cloned.registrations,
	}
}

// ImportState replaces the committed state with the snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := newMemoryState()
	state.seq = snapshot.Seq
	for k, v := range snapshot.Events {
		state.events[k] = cloneEvent(v)
	}
	for k, v := range snapshot.Parts {
		state.parts[k] = v
	}
	for k, v := range snapshot.PartGroups {
		state.partGroups[k] = clonePartGroup(v)
	}
	for k, v := range snapshot.Tracks {
		state.tracks[k] = v
	}
	for k, v := range snapshot.Fees {
		state.fees[k] = v
	}
	for k, v := range snapshot.LodgementGroups {
		state.lodgementGroups[k] = v
	}
	for k, v := range snapshot.Lodgements {
		state.lodgements[k] = cloneLodgement(v)
	}
	for k, v := range snapshot.Courses {
		state.courses[k] = cloneCourse(v)
	}
	for k, v := range snapshot.Registrations {
		state.registrations[k] = cloneRegistration(v)
	}
	s.state = state
}

// Transaction represents a mutation set applied to the store state. IDs
// are assigned from a sequence held inside the transactional state, so a
// rolled-back transaction leaves the sequence untouched and a dry-run
// followed by a real run mints identical IDs.
type Transaction struct {
	store   *Store
	state   memoryState
	changes []domain.Change
	now     time.Time
}

// RunInTransaction executes fn within a transactional copy of the store
// state. The copy is committed only when fn returns nil; returning
// domain.ErrRollback discards the copy without surfacing an error.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) ([]domain.Change, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}
	if err := fn(tx); err != nil {
		if errors.Is(err, domain.ErrRollback) {
			return nil, nil
		}
		return nil, err
	}
	s.state = tx.state
	return tx.changes, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(ctx context.Context, fn func(domain.TransactionView) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := s.state.clone()
	return fn(&view{state: &snapshot})
}

func (tx *Transaction) nextID() int64 {
	tx.state.seq++
	return tx.state.seq
}

func (tx *Transaction) recordChange(change domain.Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot exposes the transactional state read-only.
func (tx *Transaction) Snapshot() domain.TransactionView {
	return &view{state: &tx.state}
}
