// Package partial implements the delta-based reconciliation of externally
// edited event data: referential pre-checks, dependency-ordered
// application of deletions, creations and minimal updates, placeholder-ID
// remapping and the deterministic transaction token.
package partial

import (
	"fmt"
	"sort"

	"eventcore/internal/diff"
	"eventcore/internal/fee"
	"eventcore/pkg/domain"

	"github.com/shopspring/decimal"
)

// Run applies a delta to the event inside the supplied transaction and
// returns the resulting outcome. The caller owns the transaction
// boundary: returning an error (including a stale token) must discard
// the transaction, and dry-run callers roll back an otherwise successful
// run. expectedToken, when non-empty, is verified against the freshly
// computed token.
func Run(tx domain.Transaction, eventID int64, delta Delta, expectedToken string) (Outcome, error) {
	if !delta.Version.Compatible(domain.CurrentSchemaVersion) {
		return Outcome{}, domain.VersionMismatchError{Payload: delta.Version, Server: domain.CurrentSchemaVersion}
	}
	event, ok := tx.FindEvent(eventID)
	if !ok {
		return Outcome{}, domain.NotFoundError{Entity: domain.EntityEvent, ID: eventID}
	}

	run := &runner{
		tx:       tx,
		event:    event,
		remap:    NewRemapper(),
		partIDs:  make(map[int64]bool),
		trackIDs: make(map[int64]bool),
		feeIDs:   make(map[int64]bool),
	}
	for _, part := range tx.ListParts(eventID) {
		run.partIDs[part.ID] = true
	}
	for _, track := range tx.ListTracks(eventID) {
		run.trackIDs[track.ID] = true
	}
	for _, f := range tx.ListFees(eventID) {
		run.feeIDs[f.ID] = true
	}

	if err := run.precheck(delta); err != nil {
		return Outcome{}, err
	}
	if err := run.lodgementGroupTier(delta.LodgementGroups); err != nil {
		return Outcome{}, err
	}
	if err := run.lodgementTier(delta.Lodgements); err != nil {
		return Outcome{}, err
	}
	if err := run.courseTier(delta.Courses); err != nil {
		return Outcome{}, err
	}
	if err := run.registrationTier(delta.Registrations); err != nil {
		return Outcome{}, err
	}
	if err := run.recomputeFees(); err != nil {
		return Outcome{}, err
	}

	token, err := Token(run.delta, run.previous)
	if err != nil {
		return Outcome{}, err
	}
	if expectedToken != "" && expectedToken != token {
		return Outcome{}, domain.StaleTokenError{Expected: expectedToken, Computed: token}
	}
	return Outcome{Token: token, Delta: run.delta, Previous: run.previous}, nil
}

type runner struct {
	tx       domain.Transaction
	event    domain.Event
	remap    *Remapper
	delta    ChangeSet
	previous ChangeSet
	partIDs  map[int64]bool
	trackIDs map[int64]bool
	feeIDs   map[int64]bool
}

// precheck validates every foreign reference in the payload against the
// event's current snapshot and the payload's own creations before any
// mutation happens. A violation aborts the whole operation.
func (r *runner) precheck(delta Delta) error {
	// A positive reference must exist in the event and must not be
	// deleted by this very payload, or the deletion tier would leave a
	// dangling link behind.
	groupRefOK := func(id int64) bool {
		patch, present := delta.LodgementGroups[id]
		if id > 0 {
			if present && patch == nil {
				return false
			}
			group, ok := r.tx.FindLodgementGroup(id)
			return ok && group.EventID == r.event.ID
		}
		return present && patch != nil
	}
	lodgementRefOK := func(id int64) bool {
		patch, present := delta.Lodgements[id]
		if id > 0 {
			if present && patch == nil {
				return false
			}
			lodgement, ok := r.tx.FindLodgement(id)
			return ok && lodgement.EventID == r.event.ID
		}
		return present && patch != nil
	}
	courseRefOK := func(id int64) bool {
		patch, present := delta.Courses[id]
		if id > 0 {
			if present && patch == nil {
				return false
			}
			course, ok := r.tx.FindCourse(id)
			return ok && course.EventID == r.event.ID
		}
		return present && patch != nil
	}

	for id, patch := range delta.Lodgements {
		if patch == nil {
			continue
		}
		if patch.GroupID.Defined && patch.GroupID.Value != nil && !groupRefOK(*patch.GroupID.Value) {
			return domain.ReferentialIntegrityError{
				Entity: domain.EntityLodgementGroup,
				ID:     *patch.GroupID.Value,
				Where:  fmt.Sprintf("lodgement %d", id),
			}
		}
	}
	for id, patch := range delta.Courses {
		if patch == nil {
			continue
		}
		for trackID := range patch.Segments {
			if !r.trackIDs[trackID] {
				return domain.ReferentialIntegrityError{
					Entity: domain.EntityTrack,
					ID:     trackID,
					Where:  fmt.Sprintf("course %d segments", id),
				}
			}
		}
	}
	for id, patch := range delta.Registrations {
		if patch == nil {
			continue
		}
		where := fmt.Sprintf("registration %d", id)
		for partID, partPatch := range patch.Parts {
			if !r.partIDs[partID] {
				return domain.ReferentialIntegrityError{Entity: domain.EntityPart, ID: partID, Where: where + " parts"}
			}
			if partPatch.LodgementID.Defined && partPatch.LodgementID.Value != nil &&
				!lodgementRefOK(*partPatch.LodgementID.Value) {
				return domain.ReferentialIntegrityError{
					Entity: domain.EntityLodgement,
					ID:     *partPatch.LodgementID.Value,
					Where:  where + " parts",
				}
			}
		}
		for trackID, trackPatch := range patch.Tracks {
			if !r.trackIDs[trackID] {
				return domain.ReferentialIntegrityError{Entity: domain.EntityTrack, ID: trackID, Where: where + " tracks"}
			}
			refs := []OptionalID{trackPatch.CourseID, trackPatch.InstructorCourseID}
			for _, ref := range refs {
				if ref.Defined && ref.Value != nil && !courseRefOK(*ref.Value) {
					return domain.ReferentialIntegrityError{
						Entity: domain.EntityCourse,
						ID:     *ref.Value,
						Where:  where + " tracks",
					}
				}
			}
			if trackPatch.Choices != nil {
				for _, courseID := range *trackPatch.Choices {
					if !courseRefOK(courseID) {
						return domain.ReferentialIntegrityError{
							Entity: domain.EntityCourse,
							ID:     courseID,
							Where:  where + " course choices",
						}
					}
				}
			}
		}
		for feeID := range patch.PersonalizedFees {
			if !r.feeIDs[feeID] {
				return domain.ReferentialIntegrityError{Entity: domain.EntityFee, ID: feeID, Where: where + " personalized fees"}
			}
		}
	}
	return nil
}

func deltaKeys[P any](entries map[int64]*P) []int64 {
	ids := make([]int64, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	return MixedExistenceOrder(ids)
}

func (r *runner) lodgementGroupTier(entries map[int64]*LodgementGroupPatch) error {
	for _, id := range deltaKeys(entries) {
		patch := entries[id]
		if id > 0 {
			current, ok := r.tx.FindLodgementGroup(id)
			if !ok || current.EventID != r.event.ID {
				r.recordDeletion("lodgement_groups", id, nil)
				continue
			}
			if patch == nil {
				prev, err := exportLodgementGroup(current)
				if err != nil {
					return err
				}
				if err := r.tx.DeleteLodgementGroup(id, []string{"lodgements"}); err != nil {
					return err
				}
				r.recordDeletion("lodgement_groups", id, prev)
				continue
			}
			patched := current
			if patch.Title != nil {
				patched.Title = *patch.Title
			}
			changed, err := r.recordUpdate("lodgement_groups", id, current, patched, exportAnyLodgementGroup)
			if err != nil {
				return err
			}
			if changed {
				if _, err := r.tx.UpdateLodgementGroup(id, func(g *domain.LodgementGroup) error {
					*g = patched
					return nil
				}); err != nil {
					return err
				}
			}
			continue
		}
		if patch == nil {
			return domain.ValidationError{Field: "lodgement_groups", Reason: fmt.Sprintf("cannot delete placeholder %d", id)}
		}
		entity := domain.LodgementGroup{EventID: r.event.ID}
		if patch.Title != nil {
			entity.Title = *patch.Title
		}
		created, err := r.tx.CreateLodgementGroup(entity)
		if err != nil {
			return err
		}
		r.remap.Record(domain.EntityLodgementGroup, id, created.ID)
		if err := r.recordCreation("lodgement_groups", id, created, exportAnyLodgementGroup); err != nil {
			return err
		}
	}
	return nil
}

func (r *runner) lodgementTier(entries map[int64]*LodgementPatch) error {
	for _, id := range deltaKeys(entries) {
		patch := entries[id]
		if id > 0 {
			current, ok := r.tx.FindLodgement(id)
			if !ok || current.EventID != r.event.ID {
				r.recordDeletion("lodgements", id, nil)
				continue
			}
			if patch == nil {
				prev, err := exportLodgement(current)
				if err != nil {
					return err
				}
				if err := r.tx.DeleteLodgement(id, []string{"inhabitants"}); err != nil {
					return err
				}
				r.recordDeletion("lodgements", id, prev)
				continue
			}
			patched, err := r.applyLodgementPatch(current, *patch)
			if err != nil {
				return err
			}
			changed, err := r.recordUpdate("lodgements", id, current, patched, exportAnyLodgement)
			if err != nil {
				return err
			}
			if changed {
				if _, err := r.tx.UpdateLodgement(id, func(l *domain.Lodgement) error {
					*l = patched
					return nil
				}); err != nil {
					return err
				}
			}
			continue
		}
		if patch == nil {
			return domain.ValidationError{Field: "lodgements", Reason: fmt.Sprintf("cannot delete placeholder %d", id)}
		}
		entity, err := r.applyLodgementPatch(domain.Lodgement{EventID: r.event.ID}, *patch)
		if err != nil {
			return err
		}
		created, err := r.tx.CreateLodgement(entity)
		if err != nil {
			return err
		}
		r.remap.Record(domain.EntityLodgement, id, created.ID)
		if err := r.recordCreation("lodgements", id, created, exportAnyLodgement); err != nil {
			return err
		}
	}
	return nil
}

func (r *runner) applyLodgementPatch(current domain.Lodgement, patch LodgementPatch) (domain.Lodgement, error) {
	out := current
	if patch.Title != nil {
		out.Title = *patch.Title
	}
	if patch.GroupID.Defined {
		ref, err := r.remap.ResolveRef(domain.EntityLodgementGroup, patch.GroupID.Value)
		if err != nil {
			return domain.Lodgement{}, err
		}
		out.GroupID = ref
	}
	if patch.RegularCapacity != nil {
		out.RegularCapacity = *patch.RegularCapacity
	}
	if patch.CampingMatCapacity != nil {
		out.CampingMatCapacity = *patch.CampingMatCapacity
	}
	return out, nil
}

func (r *runner) courseTier(entries map[int64]*CoursePatch) error {
	for _, id := range deltaKeys(entries) {
		patch := entries[id]
		if id > 0 {
			current, ok := r.tx.FindCourse(id)
			if !ok || current.EventID != r.event.ID {
				r.recordDeletion("courses", id, nil)
				continue
			}
			if patch == nil {
				prev, err := exportCourse(current)
				if err != nil {
					return err
				}
				if err := r.tx.DeleteCourse(id, []string{"segments", "attendees", "instructors"}); err != nil {
					return err
				}
				r.recordDeletion("courses", id, prev)
				continue
			}
			patched := applyCoursePatch(current, *patch)
			changed, err := r.recordUpdate("courses", id, current, patched, exportAnyCourse)
			if err != nil {
				return err
			}
			if changed {
				if _, err := r.tx.UpdateCourse(id, func(c *domain.Course) error {
					*c = patched
					return nil
				}); err != nil {
					return err
				}
			}
			continue
		}
		if patch == nil {
			return domain.ValidationError{Field: "courses", Reason: fmt.Sprintf("cannot delete placeholder %d", id)}
		}
		entity := applyCoursePatch(domain.Course{EventID: r.event.ID}, *patch)
		created, err := r.tx.CreateCourse(entity)
		if err != nil {
			return err
		}
		r.remap.Record(domain.EntityCourse, id, created.ID)
		if err := r.recordCreation("courses", id, created, exportAnyCourse); err != nil {
			return err
		}
	}
	return nil
}

func applyCoursePatch(current domain.Course, patch CoursePatch) domain.Course {
	out := current
	if patch.Title != nil {
		out.Title = *patch.Title
	}
	if patch.Shortname != nil {
		out.Shortname = *patch.Shortname
	}
	if len(patch.Segments) > 0 {
		offered := make(map[int64]bool, len(current.SegmentIDs))
		for _, trackID := range current.SegmentIDs {
			offered[trackID] = true
		}
		for trackID, keep := range patch.Segments {
			if keep {
				offered[trackID] = true
			} else {
				delete(offered, trackID)
			}
		}
		out.SegmentIDs = sortedIDs(offered)
	}
	return out
}

func (r *runner) registrationTier(entries map[int64]*RegistrationPatch) error {
	personaToReg := make(map[int64]int64)
	for _, reg := range r.tx.ListRegistrations(r.event.ID) {
		personaToReg[reg.PersonaID] = reg.ID
	}
	for _, id := range deltaKeys(entries) {
		patch := entries[id]
		targetID := id
		if id < 0 {
			if patch == nil {
				return domain.ValidationError{Field: "registrations", Reason: fmt.Sprintf("cannot delete placeholder %d", id)}
			}
			if patch.PersonaID == nil {
				return domain.ValidationError{Field: "registrations", Reason: "persona_id is required for new registrations"}
			}
			// Duplicate suppression: a client retry may have created the
			// registration server-side already. Fold the creation into an
			// update of the existing registration.
			if existingID, ok := personaToReg[*patch.PersonaID]; ok {
				targetID = existingID
			} else {
				created, err := r.createRegistration(*patch)
				if err != nil {
					return err
				}
				personaToReg[created.PersonaID] = created.ID
				r.remap.Record(domain.EntityRegistration, id, created.ID)
				if err := r.recordCreation("registrations", id, created, exportAnyRegistration); err != nil {
					return err
				}
				continue
			}
		}

		current, ok := r.tx.FindRegistration(targetID)
		if !ok || current.EventID != r.event.ID {
			r.recordDeletion("registrations", targetID, nil)
			continue
		}
		if patch == nil {
			prev, err := exportRegistration(current)
			if err != nil {
				return err
			}
			if err := r.tx.DeleteRegistration(targetID); err != nil {
				return err
			}
			r.recordDeletion("registrations", targetID, prev)
			continue
		}
		patched, err := r.applyRegistrationPatch(current, *patch)
		if err != nil {
			return err
		}
		changed, err := r.recordUpdate("registrations", targetID, current, patched, exportAnyRegistration)
		if err != nil {
			return err
		}
		if changed {
			if _, err := r.tx.UpdateRegistration(targetID, func(reg *domain.Registration) error {
				*reg = patched
				return nil
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *runner) createRegistration(patch RegistrationPatch) (domain.Registration, error) {
	entity := domain.Registration{
		EventID:   r.event.ID,
		PersonaID: *patch.PersonaID,
		Parts:     make(map[int64]domain.RegistrationPart),
		Tracks:    make(map[int64]domain.RegistrationTrack),
		Fields:    domain.FieldValues{},
	}
	// Parts and tracks exist 1:1 with the event's structure from the
	// moment a registration is created.
	for partID := range r.partIDs {
		entity.Parts[partID] = domain.RegistrationPart{Status: domain.StatusNotApplied}
	}
	for trackID := range r.trackIDs {
		entity.Tracks[trackID] = domain.RegistrationTrack{}
	}
	entity, err := r.applyRegistrationPatch(entity, patch)
	if err != nil {
		return domain.Registration{}, err
	}
	return r.tx.CreateRegistration(entity)
}

func (r *runner) applyRegistrationPatch(current domain.Registration, patch RegistrationPatch) (domain.Registration, error) {
	out := current
	if patch.PersonaID != nil && current.PersonaID != 0 && *patch.PersonaID != current.PersonaID {
		return domain.Registration{}, domain.ValidationError{Field: "persona_id", Reason: "persona of a registration is immutable"}
	}
	if patch.IsMember != nil {
		out.IsMember = *patch.IsMember
	}
	if patch.Notes != nil {
		out.Notes = patch.Notes
	}

	out.Parts = make(map[int64]domain.RegistrationPart, len(current.Parts))
	for partID, rp := range current.Parts {
		out.Parts[partID] = rp
	}
	for partID, partPatch := range patch.Parts {
		rp := out.Parts[partID]
		if partPatch.Status != nil {
			rp.Status = *partPatch.Status
		}
		if partPatch.LodgementID.Defined {
			ref, err := r.remap.ResolveRef(domain.EntityLodgement, partPatch.LodgementID.Value)
			if err != nil {
				return domain.Registration{}, err
			}
			rp.LodgementID = ref
		}
		if partPatch.IsCampingMat != nil {
			rp.IsCampingMat = *partPatch.IsCampingMat
		}
		out.Parts[partID] = rp
	}

	out.Tracks = make(map[int64]domain.RegistrationTrack, len(current.Tracks))
	for trackID, rt := range current.Tracks {
		out.Tracks[trackID] = rt
	}
	for trackID, trackPatch := range patch.Tracks {
		rt := out.Tracks[trackID]
		if trackPatch.CourseID.Defined {
			ref, err := r.remap.ResolveRef(domain.EntityCourse, trackPatch.CourseID.Value)
			if err != nil {
				return domain.Registration{}, err
			}
			rt.CourseID = ref
		}
		if trackPatch.InstructorCourseID.Defined {
			ref, err := r.remap.ResolveRef(domain.EntityCourse, trackPatch.InstructorCourseID.Value)
			if err != nil {
				return domain.Registration{}, err
			}
			rt.InstructorCourseID = ref
		}
		if trackPatch.Choices != nil {
			choices := make([]int64, len(*trackPatch.Choices))
			for i, courseID := range *trackPatch.Choices {
				real, ok := r.remap.Resolve(domain.EntityCourse, courseID)
				if !ok {
					return domain.Registration{}, domain.ReferentialIntegrityError{
						Entity: domain.EntityCourse, ID: courseID, Where: "course choices",
					}
				}
				choices[i] = real
			}
			rt.Choices = choices
		}
		out.Tracks[trackID] = rt
	}

	if len(patch.Fields) > 0 {
		if err := domain.ValidateFieldValues(r.event.Fields, domain.FieldOnRegistration, patch.Fields); err != nil {
			return domain.Registration{}, err
		}
		out.Fields = current.Fields.Clone()
		if out.Fields == nil {
			out.Fields = domain.FieldValues{}
		}
		for name, value := range patch.Fields {
			out.Fields[name] = value
		}
	}
	if len(patch.PersonalizedFees) > 0 {
		out.PersonalizedFees = make(map[int64]decimal.Decimal, len(current.PersonalizedFees)+len(patch.PersonalizedFees))
		for feeID, amount := range current.PersonalizedFees {
			out.PersonalizedFees[feeID] = amount
		}
		for feeID, amount := range patch.PersonalizedFees {
			out.PersonalizedFees[feeID] = amount
		}
	}
	return out, nil
}

// recomputeFees recalculates the owed amount of every registration of the
// event after all tiers were applied. AmountPaid is never touched.
func (r *runner) recomputeFees() error {
	parts := r.tx.ListParts(r.event.ID)
	groups := r.tx.ListPartGroups(r.event.ID)
	fees := r.tx.ListFees(r.event.ID)
	for _, reg := range r.tx.ListRegistrations(r.event.ID) {
		owed, err := fee.Calculate(fee.Input{
			Event:        r.event,
			Parts:        parts,
			PartGroups:   groups,
			Fees:         fees,
			Registration: reg,
			IsMember:     reg.IsMember,
		})
		if err != nil {
			return err
		}
		if owed.Equal(reg.AmountOwed) {
			continue
		}
		if _, err := r.tx.UpdateRegistration(reg.ID, func(current *domain.Registration) error {
			current.AmountOwed = owed
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

func (r *runner) recordDeletion(category string, id int64, previous map[string]any) {
	r.delta.record(category, id, nil)
	r.previous.record(category, id, previous)
}

func (r *runner) recordCreation(category string, placeholderID int64, created any, export func(any) (map[string]any, error)) error {
	entry, err := export(created)
	if err != nil {
		return err
	}
	r.delta.record(category, placeholderID, entry)
	r.previous.record(category, placeholderID, nil)
	return nil
}

// recordUpdate diffs the current and patched export shapes, records a
// non-empty delta and reports whether the store must be updated.
func (r *runner) recordUpdate(category string, id int64, current, patched any, export func(any) (map[string]any, error)) (bool, error) {
	currentMap, err := export(current)
	if err != nil {
		return false, err
	}
	patchedMap, err := export(patched)
	if err != nil {
		return false, err
	}
	delta, previous := diff.MapDiff(currentMap, patchedMap)
	if len(delta) == 0 {
		return false, nil
	}
	r.delta.record(category, id, delta)
	r.previous.record(category, id, previous)
	return true, nil
}

func exportAnyLodgementGroup(v any) (map[string]any, error) {
	return exportLodgementGroup(v.(domain.LodgementGroup))
}

func exportAnyLodgement(v any) (map[string]any, error) {
	return exportLodgement(v.(domain.Lodgement))
}

func exportAnyCourse(v any) (map[string]any, error) {
	return exportCourse(v.(domain.Course))
}

func exportAnyRegistration(v any) (map[string]any, error) {
	return exportRegistration(v.(domain.Registration))
}

// sortedIDs keeps segment lists sorted so exports and diffs are
// deterministic.
func sortedIDs(set map[int64]bool) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
