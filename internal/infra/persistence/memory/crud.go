package memory

import (
	"fmt"
	"sort"

	"eventcore/pkg/domain"
)

// CreateEvent stores a new event within the transaction.
func (tx *Transaction) CreateEvent(e domain.Event) (domain.Event, error) {
	if e.ID == 0 {
		e.ID = tx.nextID()
	}
	if _, exists := tx.state.events[e.ID]; exists {
		return domain.Event{}, fmt.Errorf("event %d already exists", e.ID)
	}
	e.CreatedAt = tx.now
	e.UpdatedAt = tx.now
	if e.Fields == nil {
		e.Fields = map[string]domain.FieldDefinition{}
	}
	tx.state.events[e.ID] = cloneEvent(e)
	tx.recordChange(domain.Change{Entity: domain.EntityEvent, Action: domain.ActionCreate, After: cloneEvent(e)})
	return cloneEvent(e), nil
}

// UpdateEvent mutates an event using the provided mutator function.
func (tx *Transaction) UpdateEvent(id int64, mutator func(*domain.Event) error) (domain.Event, error) {
	current, ok := tx.state.events[id]
	if !ok {
		return domain.Event{}, domain.NotFoundError{Entity: domain.EntityEvent, ID: id}
	}
	before := cloneEvent(current)
	if err := mutator(&current); err != nil {
		return domain.Event{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.events[id] = cloneEvent(current)
	tx.recordChange(domain.Change{Entity: domain.EntityEvent, Action: domain.ActionUpdate, Before: before, After: cloneEvent(current)})
	return cloneEvent(current), nil
}

// FindEvent retrieves an event from the transactional state.
func (tx *Transaction) FindEvent(id int64) (domain.Event, bool) {
	e, ok := tx.state.events[id]
	if !ok {
		return domain.Event{}, false
	}
	return cloneEvent(e), true
}

// CreatePart stores a new event part.
func (tx *Transaction) CreatePart(p domain.EventPart) (domain.EventPart, error) {
	if p.ID == 0 {
		p.ID = tx.nextID()
	}
	if _, exists := tx.state.parts[p.ID]; exists {
		return domain.EventPart{}, fmt.Errorf("part %d already exists", p.ID)
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.parts[p.ID] = p
	tx.recordChange(domain.Change{Entity: domain.EntityPart, Action: domain.ActionCreate, After: p})
	return p, nil
}

// UpdatePart mutates an event part.
func (tx *Transaction) UpdatePart(id int64, mutator func(*domain.EventPart) error) (domain.EventPart, error) {
	current, ok := tx.state.parts[id]
	if !ok {
		return domain.EventPart{}, domain.NotFoundError{Entity: domain.EntityPart, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return domain.EventPart{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.parts[id] = current
	tx.recordChange(domain.Change{Entity: domain.EntityPart, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// ListParts returns the event's parts ordered by ID.
func (tx *Transaction) ListParts(eventID int64) []domain.EventPart {
	return listParts(&tx.state, eventID)
}

// CreatePartGroup stores a new part group.
func (tx *Transaction) CreatePartGroup(g domain.PartGroup) (domain.PartGroup, error) {
	if g.ID == 0 {
		g.ID = tx.nextID()
	}
	if _, exists := tx.state.partGroups[g.ID]; exists {
		return domain.PartGroup{}, fmt.Errorf("part group %d already exists", g.ID)
	}
	g.CreatedAt = tx.now
	g.UpdatedAt = tx.now
	tx.state.partGroups[g.ID] = clonePartGroup(g)
	tx.recordChange(domain.Change{Entity: domain.EntityPartGroup, Action: domain.ActionCreate, After: clonePartGroup(g)})
	return clonePartGroup(g), nil
}

// ListPartGroups returns the event's part groups ordered by ID.
func (tx *Transaction) ListPartGroups(eventID int64) []domain.PartGroup {
	return listPartGroups(&tx.state, eventID)
}

// CreateTrack stores a new course track.
func (tx *Transaction) CreateTrack(t domain.EventTrack) (domain.EventTrack, error) {
	if t.ID == 0 {
		t.ID = tx.nextID()
	}
	if _, exists := tx.state.tracks[t.ID]; exists {
		return domain.EventTrack{}, fmt.Errorf("track %d already exists", t.ID)
	}
	t.CreatedAt = tx.now
	t.UpdatedAt = tx.now
	tx.state.tracks[t.ID] = t
	tx.recordChange(domain.Change{Entity: domain.EntityTrack, Action: domain.ActionCreate, After: t})
	return t, nil
}

// ListTracks returns the event's tracks ordered by ID.
func (tx *Transaction) ListTracks(eventID int64) []domain.EventTrack {
	return listTracks(&tx.state, eventID)
}

// CreateFee stores a new event fee.
func (tx *Transaction) CreateFee(f domain.EventFee) (domain.EventFee, error) {
	if f.ID == 0 {
		f.ID = tx.nextID()
	}
	if _, exists := tx.state.fees[f.ID]; exists {
		return domain.EventFee{}, fmt.Errorf("fee %d already exists", f.ID)
	}
	f.CreatedAt = tx.now
	f.UpdatedAt = tx.now
	tx.state.fees[f.ID] = f
	tx.recordChange(domain.Change{Entity: domain.EntityFee, Action: domain.ActionCreate, After: f})
	return f, nil
}

// UpdateFee mutates an event fee, e.g. to rewrite its condition after a
// part rename.
func (tx *Transaction) UpdateFee(id int64, mutator func(*domain.EventFee) error) (domain.EventFee, error) {
	current, ok := tx.state.fees[id]
	if !ok {
		return domain.EventFee{}, domain.NotFoundError{Entity: domain.EntityFee, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return domain.EventFee{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.fees[id] = current
	tx.recordChange(domain.Change{Entity: domain.EntityFee, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// ListFees returns the event's fees ordered by ID.
func (tx *Transaction) ListFees(eventID int64) []domain.EventFee {
	return listFees(&tx.state, eventID)
}

// CreateLodgementGroup stores a new lodgement group.
func (tx *Transaction) CreateLodgementGroup(g domain.LodgementGroup) (domain.LodgementGroup, error) {
	if g.ID == 0 {
		g.ID = tx.nextID()
	}
	if _, exists := tx.state.lodgementGroups[g.ID]; exists {
		return domain.LodgementGroup{}, fmt.Errorf("lodgement group %d already exists", g.ID)
	}
	g.CreatedAt = tx.now
	g.UpdatedAt = tx.now
	tx.state.lodgementGroups[g.ID] = g
	tx.recordChange(domain.Change{Entity: domain.EntityLodgementGroup, Action: domain.ActionCreate, After: g})
	return g, nil
}

// UpdateLodgementGroup mutates a lodgement group.
func (tx *Transaction) UpdateLodgementGroup(id int64, mutator func(*domain.LodgementGroup) error) (domain.LodgementGroup, error) {
	current, ok := tx.state.lodgementGroups[id]
	if !ok {
		return domain.LodgementGroup{}, domain.NotFoundError{Entity: domain.EntityLodgementGroup, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return domain.LodgementGroup{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.lodgementGroups[id] = current
	tx.recordChange(domain.Change{Entity: domain.EntityLodgementGroup, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteLodgementGroup removes a lodgement group. The "lodgements"
// cascade unlinks remaining member lodgements; without it any member
// lodgement blocks the deletion.
func (tx *Transaction) DeleteLodgementGroup(id int64, cascade []string) error {
	current, ok := tx.state.lodgementGroups[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityLodgementGroup, ID: id}
	}
	allowed := cascadeSet(cascade)
	var members []int64
	for lodgementID, lodgement := range tx.state.lodgements {
		if lodgement.GroupID != nil && *lodgement.GroupID == id {
			members = append(members, lodgementID)
		}
	}
	if len(members) > 0 && !allowed["lodgements"] {
		return domain.ConstraintViolationError{Entity: domain.EntityLodgementGroup, ID: id, Blocker: "lodgements"}
	}
	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
	for _, lodgementID := range members {
		if _, err := tx.UpdateLodgement(lodgementID, func(l *domain.Lodgement) error {
			l.GroupID = nil
			return nil
		}); err != nil {
			return err
		}
	}
	delete(tx.state.lodgementGroups, id)
	tx.recordChange(domain.Change{Entity: domain.EntityLodgementGroup, Action: domain.ActionDelete, Before: current})
	return nil
}

// FindLodgementGroup retrieves a lodgement group.
func (tx *Transaction) FindLodgementGroup(id int64) (domain.LodgementGroup, bool) {
	g, ok := tx.state.lodgementGroups[id]
	return g, ok
}

// ListLodgementGroups returns the event's lodgement groups ordered by ID.
func (tx *Transaction) ListLodgementGroups(eventID int64) []domain.LodgementGroup {
	return listLodgementGroups(&tx.state, eventID)
}

// CreateLodgement stores a new lodgement.
func (tx *Transaction) CreateLodgement(l domain.Lodgement) (domain.Lodgement, error) {
	if l.ID == 0 {
		l.ID = tx.nextID()
	}
	if _, exists := tx.state.lodgements[l.ID]; exists {
		return domain.Lodgement{}, fmt.Errorf("lodgement %d already exists", l.ID)
	}
	l.CreatedAt = tx.now
	l.UpdatedAt = tx.now
	tx.state.lodgements[l.ID] = cloneLodgement(l)
	tx.recordChange(domain.Change{Entity: domain.EntityLodgement, Action: domain.ActionCreate, After: cloneLodgement(l)})
	return cloneLodgement(l), nil
}

// UpdateLodgement mutates a lodgement.
func (tx *Transaction) UpdateLodgement(id int64, mutator func(*domain.Lodgement) error) (domain.Lodgement, error) {
	current, ok := tx.state.lodgements[id]
	if !ok {
		return domain.Lodgement{}, domain.NotFoundError{Entity: domain.EntityLodgement, ID: id}
	}
	before := cloneLodgement(current)
	if err := mutator(&current); err != nil {
		return domain.Lodgement{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.lodgements[id] = cloneLodgement(current)
	tx.recordChange(domain.Change{Entity: domain.EntityLodgement, Action: domain.ActionUpdate, Before: before, After: cloneLodgement(current)})
	return cloneLodgement(current), nil
}

// DeleteLodgement removes a lodgement. The "inhabitants" cascade unlinks
// registration parts housed there; without it any inhabitant blocks.
func (tx *Transaction) DeleteLodgement(id int64, cascade []string) error {
	current, ok := tx.state.lodgements[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityLodgement, ID: id}
	}
	allowed := cascadeSet(cascade)
	var inhabitants []int64
	for regID, reg := range tx.state.registrations {
		for _, rp := range reg.Parts {
			if rp.LodgementID != nil && *rp.LodgementID == id {
				inhabitants = append(inhabitants, regID)
				break
			}
		}
	}
	if len(inhabitants) > 0 && !allowed["inhabitants"] {
		return domain.ConstraintViolationError{Entity: domain.EntityLodgement, ID: id, Blocker: "inhabitants"}
	}
	sort.Slice(inhabitants, func(i, j int) bool { return inhabitants[i] < inhabitants[j] })
	for _, regID := range inhabitants {
		if _, err := tx.UpdateRegistration(regID, func(reg *domain.Registration) error {
			for partID, rp := range reg.Parts {
				if rp.LodgementID != nil && *rp.LodgementID == id {
					rp.LodgementID = nil
					reg.Parts[partID] = rp
				}
			}
			return nil
		}); err != nil {
			return err
		}
	}
	delete(tx.state.lodgements, id)
	tx.recordChange(domain.Change{Entity: domain.EntityLodgement, Action: domain.ActionDelete, Before: cloneLodgement(current)})
	return nil
}

// FindLodgement retrieves a lodgement.
func (tx *Transaction) FindLodgement(id int64) (domain.Lodgement, bool) {
	l, ok := tx.state.lodgements[id]
	if !ok {
		return domain.Lodgement{}, false
	}
	return cloneLodgement(l), true
}

// ListLodgements returns the event's lodgements ordered by ID.
func (tx *Transaction) ListLodgements(eventID int64) []domain.Lodgement {
	return listLodgements(&tx.state, eventID)
}

// CreateCourse stores a new course.
func (tx *Transaction) CreateCourse(c domain.Course) (domain.Course, error) {
	if c.ID == 0 {
		c.ID = tx.nextID()
	}
	if _, exists := tx.state.courses[c.ID]; exists {
		return domain.Course{}, fmt.Errorf("course %d already exists", c.ID)
	}
	c.CreatedAt = tx.now
	c.UpdatedAt = tx.now
	tx.state.courses[c.ID] = cloneCourse(c)
	tx.recordChange(domain.Change{Entity: domain.EntityCourse, Action: domain.ActionCreate, After: cloneCourse(c)})
	return cloneCourse(c), nil
}

// UpdateCourse mutates a course.
func (tx *Transaction) UpdateCourse(id int64, mutator func(*domain.Course) error) (domain.Course, error) {
	current, ok := tx.state.courses[id]
	if !ok {
		return domain.Course{}, domain.NotFoundError{Entity: domain.EntityCourse, ID: id}
	}
	before := cloneCourse(current)
	if err := mutator(&current); err != nil {
		return domain.Course{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.courses[id] = cloneCourse(current)
	tx.recordChange(domain.Change{Entity: domain.EntityCourse, Action: domain.ActionUpdate, Before: before, After: cloneCourse(current)})
	return cloneCourse(current), nil
}

// DeleteCourse removes a course. "segments" clears the course's own track
// offerings, "attendees" and "instructors" unlink registration tracks.
// Course choices are never cascaded: a remaining choice blocks the
// deletion, because silently dropping a participant's ranked preference
// would corrupt course assignment input.
func (tx *Transaction) DeleteCourse(id int64, cascade []string) error {
	current, ok := tx.state.courses[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityCourse, ID: id}
	}
	allowed := cascadeSet(cascade)

	var attendees, instructors, choosers []int64
	for regID, reg := range tx.state.registrations {
		for _, rt := range reg.Tracks {
			if rt.CourseID != nil && *rt.CourseID == id {
				attendees = append(attendees, regID)
			}
			if rt.InstructorCourseID != nil && *rt.InstructorCourseID == id {
				instructors = append(instructors, regID)
			}
			for _, choice := range rt.Choices {
				if choice == id {
					choosers = append(choosers, regID)
					break
				}
			}
		}
	}
	if len(choosers) > 0 && !allowed["course_choices"] {
		return domain.ConstraintViolationError{Entity: domain.EntityCourse, ID: id, Blocker: "course_choices"}
	}
	if len(attendees) > 0 && !allowed["attendees"] {
		return domain.ConstraintViolationError{Entity: domain.EntityCourse, ID: id, Blocker: "attendees"}
	}
	if len(instructors) > 0 && !allowed["instructors"] {
		return domain.ConstraintViolationError{Entity: domain.EntityCourse, ID: id, Blocker: "instructors"}
	}
	if len(current.SegmentIDs) > 0 && !allowed["segments"] {
		return domain.ConstraintViolationError{Entity: domain.EntityCourse, ID: id, Blocker: "segments"}
	}

	affected := map[int64]bool{}
	for _, regID := range attendees {
		affected[regID] = true
	}
	for _, regID := range instructors {
		affected[regID] = true
	}
	for _, regID := range choosers {
		affected[regID] = true
	}
	ids := make([]int64, 0, len(affected))
	for regID := range affected {
		ids = append(ids, regID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, regID := range ids {
		if _, err := tx.UpdateRegistration(regID, func(reg *domain.Registration) error {
			for trackID, rt := range reg.Tracks {
				if rt.CourseID != nil && *rt.CourseID == id {
					rt.CourseID = nil
				}
				if rt.InstructorCourseID != nil && *rt.InstructorCourseID == id {
					rt.InstructorCourseID = nil
				}
				if allowed["course_choices"] {
					kept := rt.Choices[:0]
					for _, choice := range rt.Choices {
						if choice != id {
							kept = append(kept, choice)
						}
					}
					rt.Choices = kept
				}
				reg.Tracks[trackID] = rt
			}
			return nil
		}); err != nil {
			return err
		}
	}
	delete(tx.state.courses, id)
	tx.recordChange(domain.Change{Entity: domain.EntityCourse, Action: domain.ActionDelete, Before: cloneCourse(current)})
	return nil
}

// FindCourse retrieves a course.
func (tx *Transaction) FindCourse(id int64) (domain.Course, bool) {
	c, ok := tx.state.courses[id]
	if !ok {
		return domain.Course{}, false
	}
	return cloneCourse(c), true
}

// ListCourses returns the event's courses ordered by ID.
func (tx *Transaction) ListCourses(eventID int64) []domain.Course {
	return listCourses(&tx.state, eventID)
}

// CreateRegistration stores a new registration.
func (tx *Transaction) CreateRegistration(r domain.Registration) (domain.Registration, error) {
	if r.ID == 0 {
		r.ID = tx.nextID()
	}
	if _, exists := tx.state.registrations[r.ID]; exists {
		return domain.Registration{}, fmt.Errorf("registration %d already exists", r.ID)
	}
	r.CreatedAt = tx.now
	r.UpdatedAt = tx.now
	if r.Parts == nil {
		r.Parts = map[int64]domain.RegistrationPart{}
	}
	if r.Tracks == nil {
		r.Tracks = map[int64]domain.RegistrationTrack{}
	}
	tx.state.registrations[r.ID] = cloneRegistration(r)
	tx.recordChange(domain.Change{Entity: domain.EntityRegistration, Action: domain.ActionCreate, After: cloneRegistration(r)})
	return cloneRegistration(r), nil
}

// UpdateRegistration mutates a registration.
func (tx *Transaction) UpdateRegistration(id int64, mutator func(*domain.Registration) error) (domain.Registration, error) {
	current, ok := tx.state.registrations[id]
	if !ok {
		return domain.Registration{}, domain.NotFoundError{Entity: domain.EntityRegistration, ID: id}
	}
	before := cloneRegistration(current)
	working := cloneRegistration(current)
	if err := mutator(&working); err != nil {
		return domain.Registration{}, err
	}
	working.ID = id
	working.UpdatedAt = tx.now
	tx.state.registrations[id] = cloneRegistration(working)
	tx.recordChange(domain.Change{Entity: domain.EntityRegistration, Action: domain.ActionUpdate, Before: before, After: cloneRegistration(working)})
	return cloneRegistration(working), nil
}

// DeleteRegistration removes a registration together with its parts,
// tracks and choices, which exist only as part of their parent.
func (tx *Transaction) DeleteRegistration(id int64) error {
	current, ok := tx.state.registrations[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityRegistration, ID: id}
	}
	delete(tx.state.registrations, id)
	tx.recordChange(domain.Change{Entity: domain.EntityRegistration, Action: domain.ActionDelete, Before: cloneRegistration(current)})
	return nil
}

// FindRegistration retrieves a registration.
func (tx *Transaction) FindRegistration(id int64) (domain.Registration, bool) {
	r, ok := tx.state.registrations[id]
	if !ok {
		return domain.Registration{}, false
	}
	return cloneRegistration(r), true
}

// ListRegistrations returns the event's registrations ordered by ID.
func (tx *Transaction) ListRegistrations(eventID int64) []domain.Registration {
	return listRegistrations(&tx.state, eventID)
}

func cascadeSet(cascade []string) map[string]bool {
	out := make(map[string]bool, len(cascade))
	for _, relation := range cascade {
		out[relation] = true
	}
	return out
}
