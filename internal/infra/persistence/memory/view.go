package memory

import (
	"sort"

	"eventcore/pkg/domain"
)

// view adapts a memoryState to the read-only snapshot contract.
type view struct {
	state *memoryState
}

var _ domain.TransactionView = (*view)(nil)

func (v *view) FindEvent(id int64) (domain.Event, bool) {
	e, ok := v.state.events[id]
	if !ok {
		return domain.Event{}, false
	}
	return cloneEvent(e), true
}

func (v *view) ListParts(eventID int64) []domain.EventPart {
	return listParts(v.state, eventID)
}

func (v *view) ListPartGroups(eventID int64) []domain.PartGroup {
	return listPartGroups(v.state, eventID)
}

func (v *view) ListTracks(eventID int64) []domain.EventTrack {
	return listTracks(v.state, eventID)
}

func (v *view) ListFees(eventID int64) []domain.EventFee {
	return listFees(v.state, eventID)
}

func (v *view) ListLodgementGroups(eventID int64) []domain.LodgementGroup {
	return listLodgementGroups(v.state, eventID)
}

func (v *view) ListLodgements(eventID int64) []domain.Lodgement {
	return listLodgements(v.state, eventID)
}

func (v *view) ListCourses(eventID int64) []domain.Course {
	return listCourses(v.state, eventID)
}

func (v *view) FindRegistration(id int64) (domain.Registration, bool) {
	r, ok := v.state.registrations[id]
	if !ok {
		return domain.Registration{}, false
	}
	return cloneRegistration(r), true
}

func (v *view) ListRegistrations(eventID int64) []domain.Registration {
	return listRegistrations(v.state, eventID)
}

func listParts(state *memoryState, eventID int64) []domain.EventPart {
	out := make([]domain.EventPart, 0)
	for _, p := range state.parts {
		if p.EventID == eventID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func listPartGroups(state *memoryState, eventID int64) []domain.PartGroup {
	out := make([]domain.PartGroup, 0)
	for _, g := range state.partGroups {
		if g.EventID == eventID {
			out = append(out, clonePartGroup(g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// listTracks resolves event membership through the owning part.
func listTracks(state *memoryState, eventID int64) []domain.EventTrack {
	partIDs := make(map[int64]bool)
	for id, p := range state.parts {
		if p.EventID == eventID {
			partIDs[id] = true
		}
	}
	out := make([]domain.EventTrack, 0)
	for _, t := range state.tracks {
		if partIDs[t.PartID] {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func listFees(state *memoryState, eventID int64) []domain.EventFee {
	out := make([]domain.EventFee, 0)
	for _, f := range state.fees {
		if f.EventID == eventID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func listLodgementGroups(state *memoryState, eventID int64) []domain.LodgementGroup {
	out := make([]domain.LodgementGroup, 0)
	for _, g := range state.lodgementGroups {
		if g.EventID == eventID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func listLodgements(state *memoryState, eventID int64) []domain.Lodgement {
	out := make([]domain.Lodgement, 0)
	for _, l := range state.lodgements {
		if l.EventID == eventID {
			out = append(out, cloneLodgement(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func listCourses(state *memoryState, eventID int64) []domain.Course {
	out := make([]domain.Course, 0)
	for _, c := range state.courses {
		if c.EventID == eventID {
			out = append(out, cloneCourse(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func listRegistrations(state *memoryState, eventID int64) []domain.Registration {
	out := make([]domain.Registration, 0)
	for _, r := range state.registrations {
		if r.EventID == eventID {
			out = append(out, cloneRegistration(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetEvent reads a committed event outside any transaction.
func (s *Store) GetEvent(id int64) (domain.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.state.events[id]
	if !ok {
		return domain.Event{}, false
	}
	return cloneEvent(e), true
}

// GetRegistration reads a committed registration outside any transaction.
func (s *Store) GetRegistration(id int64) (domain.Registration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.state.registrations[id]
	if !ok {
		return domain.Registration{}, false
	}
	return cloneRegistration(r), true
}

// ListRegistrations reads the committed registrations of an event.
func (s *Store) ListRegistrations(eventID int64) []domain.Registration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listRegistrations(&s.state, eventID)
}

// ListLodgements reads the committed lodgements of an event.
func (s *Store) ListLodgements(eventID int64) []domain.Lodgement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listLodgements(&s.state, eventID)
}

// ListCourses reads the committed courses of an event.
func (s *Store) ListCourses(eventID int64) []domain.Course {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listCourses(&s.state, eventID)
}
