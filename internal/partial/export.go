package partial

import (
	"encoding/json"
	"fmt"

	"eventcore/pkg/domain"
)

// Export shapes normalize entities to the wire representation the diff
// engine operates on: only client-editable fields, nested maps keyed by
// stringified IDs, all values passed through JSON so both sides of a diff
// use identical scalar types.

type lodgementGroupExport struct {
	Title string `json:"title"`
}

type lodgementExport struct {
	Title              string `json:"title"`
	GroupID            *int64 `json:"group_id"`
	RegularCapacity    int    `json:"regular_capacity"`
	CampingMatCapacity int    `json:"camping_mat_capacity"`
}

type courseExport struct {
	Title     string          `json:"title"`
	Shortname string          `json:"shortname"`
	Segments  map[string]bool `json:"segments"`
}

type registrationPartExport struct {
	Status       domain.RegistrationPartStatus `json:"status"`
	LodgementID  *int64                        `json:"lodgement_id"`
	IsCampingMat bool                          `json:"is_camping_mat"`
}

type registrationTrackExport struct {
	CourseID           *int64  `json:"course_id"`
	InstructorCourseID *int64  `json:"course_instructor"`
	Choices            []int64 `json:"choices"`
}

type registrationExport struct {
	PersonaID        int64                              `json:"persona_id"`
	IsMember         bool                               `json:"is_member"`
	Notes            *string                            `json:"notes"`
	Parts            map[string]registrationPartExport  `json:"parts"`
	Tracks           map[string]registrationTrackExport `json:"tracks"`
	Fields           domain.FieldValues                 `json:"fields"`
	PersonalizedFees map[string]string                  `json:"personalized_fees"`
}

func exportLodgementGroup(g domain.LodgementGroup) (map[string]any, error) {
	return toMap(lodgementGroupExport{Title: g.Title})
}

func exportLodgement(l domain.Lodgement) (map[string]any, error) {
	return toMap(lodgementExport{
		Title:              l.Title,
		GroupID:            l.GroupID,
		RegularCapacity:    l.RegularCapacity,
		CampingMatCapacity: l.CampingMatCapacity,
	})
}

func exportCourse(c domain.Course) (map[string]any, error) {
	segments := make(map[string]bool, len(c.SegmentIDs))
	for _, trackID := range c.SegmentIDs {
		segments[idKey(trackID)] = true
	}
	return toMap(courseExport{Title: c.Title, Shortname: c.Shortname, Segments: segments})
}

func exportRegistration(r domain.Registration) (map[string]any, error) {
	parts := make(map[string]registrationPartExport, len(r.Parts))
	for partID, rp := range r.Parts {
		parts[idKey(partID)] = registrationPartExport{
			Status:       rp.Status,
			LodgementID:  rp.LodgementID,
			IsCampingMat: rp.IsCampingMat,
		}
	}
	tracks := make(map[string]registrationTrackExport, len(r.Tracks))
	for trackID, rt := range r.Tracks {
		choices := rt.Choices
		if choices == nil {
			choices = []int64{}
		}
		tracks[idKey(trackID)] = registrationTrackExport{
			CourseID:           rt.CourseID,
			InstructorCourseID: rt.InstructorCourseID,
			Choices:            choices,
		}
	}
	fields := r.Fields
	if fields == nil {
		fields = domain.FieldValues{}
	}
	fees := make(map[string]string, len(r.PersonalizedFees))
	for feeID, amount := range r.PersonalizedFees {
		fees[idKey(feeID)] = amount.String()
	}
	return toMap(registrationExport{
		PersonaID:        r.PersonaID,
		IsMember:         r.IsMember,
		Notes:            r.Notes,
		Parts:            parts,
		Tracks:           tracks,
		Fields:           fields,
		PersonalizedFees: fees,
	})
}

func idKey(id int64) string {
	return fmt.Sprintf("%d", id)
}

// toMap round-trips a value through JSON so nested structures become
// map[string]any with normalized scalar types.
func toMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("export entity: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("export entity: %w", err)
	}
	return out, nil
}
