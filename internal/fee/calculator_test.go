package fee

import (
	"testing"
	"time"

	"eventcore/pkg/domain"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testEvent(surcharge string) domain.Event {
	return domain.Event{
		Base:               domain.Base{ID: 1},
		Title:              "Winter Academy",
		Shortname:          "wa",
		NonmemberSurcharge: dec(surcharge),
	}
}

func testPart(id int64, shortname, fee string) domain.EventPart {
	return domain.EventPart{
		Base:      domain.Base{ID: id},
		EventID:   1,
		Title:     shortname,
		Shortname: shortname,
		Begin:     time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC),
		Fee:       dec(fee),
	}
}

func participantIn(partIDs ...int64) map[int64]domain.RegistrationPart {
	parts := make(map[int64]domain.RegistrationPart, len(partIDs))
	for _, id := range partIDs {
		parts[id] = domain.RegistrationPart{Status: domain.StatusParticipant}
	}
	return parts
}

func TestCalculateSinglePartMember(t *testing.T) {
	in := Input{
		Event: testEvent("20"),
		Parts: []domain.EventPart{testPart(10, "P1", "50")},
		Registration: domain.Registration{
			Base:    domain.Base{ID: 100},
			EventID: 1,
			Parts:   participantIn(10),
		},
		IsMember: true,
	}
	got, err := Calculate(in)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if !got.Equal(dec("50")) {
		t.Fatalf("fee = %s, want 50", got)
	}
}

func TestCalculateNonmemberSurcharge(t *testing.T) {
	in := Input{
		Event: testEvent("20"),
		Parts: []domain.EventPart{testPart(10, "P1", "50")},
		Registration: domain.Registration{
			Base:    domain.Base{ID: 100},
			EventID: 1,
			Parts:   participantIn(10),
		},
		IsMember: false,
	}
	got, err := Calculate(in)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if !got.Equal(dec("70")) {
		t.Fatalf("fee = %s, want 70", got)
	}
}

func TestMEPChargesMaximumNotSum(t *testing.T) {
	group := domain.PartGroup{
		Base:       domain.Base{ID: 5},
		EventID:    1,
		Shortname:  "halves",
		Constraint: domain.ConstraintMEP,
		PartIDs:    []int64{10, 11},
	}
	in := Input{
		Event:      testEvent("0"),
		Parts:      []domain.EventPart{testPart(10, "A", "10"), testPart(11, "B", "15")},
		PartGroups: []domain.PartGroup{group},
		Registration: domain.Registration{
			Base:    domain.Base{ID: 100},
			EventID: 1,
			Parts:   participantIn(10, 11),
		},
		IsMember: true,
	}
	got, err := Calculate(in)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if !got.Equal(dec("15")) {
		t.Fatalf("fee = %s, want 15 (maximum of the exclusive parts)", got)
	}
}

func TestMEPWithUnconstrainedPart(t *testing.T) {
	group := domain.PartGroup{
		Base:       domain.Base{ID: 5},
		EventID:    1,
		Constraint: domain.ConstraintMEP,
		PartIDs:    []int64{10, 11},
	}
	in := Input{
		Event: testEvent("0"),
		Parts: []domain.EventPart{
			testPart(10, "A", "10"),
			testPart(11, "B", "15"),
			testPart(12, "C", "7"),
		},
		PartGroups: []domain.PartGroup{group},
		Registration: domain.Registration{
			Base:    domain.Base{ID: 100},
			EventID: 1,
			Parts:   participantIn(10, 11, 12),
		},
		IsMember: true,
	}
	got, err := Calculate(in)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if !got.Equal(dec("22")) {
		t.Fatalf("fee = %s, want 22 (7 unconstrained + 15 max)", got)
	}
}

func TestOverlappingMEPGroups(t *testing.T) {
	// B sits in both groups: any legal subset holds at most one of {A,B}
	// and at most one of {B,C}, so {A,C} (10+8=18) beats {B} (15).
	groups := []domain.PartGroup{
		{Base: domain.Base{ID: 5}, EventID: 1, Constraint: domain.ConstraintMEP, PartIDs: []int64{10, 11}},
		{Base: domain.Base{ID: 6}, EventID: 1, Constraint: domain.ConstraintMEP, PartIDs: []int64{11, 12}},
	}
	in := Input{
		Event: testEvent("0"),
		Parts: []domain.EventPart{
			testPart(10, "A", "10"),
			testPart(11, "B", "15"),
			testPart(12, "C", "8"),
		},
		PartGroups: groups,
		Registration: domain.Registration{
			Base:    domain.Base{ID: 100},
			EventID: 1,
			Parts:   participantIn(10, 11, 12),
		},
		IsMember: true,
	}
	got, err := Calculate(in)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if !got.Equal(dec("18")) {
		t.Fatalf("fee = %s, want 18", got)
	}
}

func TestGuestDoesNotPay(t *testing.T) {
	in := Input{
		Event: testEvent("0"),
		Parts: []domain.EventPart{testPart(10, "P1", "50")},
		Registration: domain.Registration{
			Base:    domain.Base{ID: 100},
			EventID: 1,
			Parts: map[int64]domain.RegistrationPart{
				10: {Status: domain.StatusGuest},
			},
		},
		IsMember: true,
	}
	got, err := Calculate(in)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("fee = %s, want 0 for guest", got)
	}
}

func TestConditionalFeeBoundToPart(t *testing.T) {
	partID := int64(10)
	in := Input{
		Event: testEvent("0"),
		Parts: []domain.EventPart{testPart(10, "P1", "50")},
		Fees: []domain.EventFee{
			{
				Base:      domain.Base{ID: 20},
				EventID:   1,
				Title:     "single room",
				Amount:    dec("30"),
				Condition: "field.solo",
				PartID:    &partID,
			},
		},
		Registration: domain.Registration{
			Base:    domain.Base{ID: 100},
			EventID: 1,
			Parts:   participantIn(10),
			Fields:  domain.FieldValues{"solo": true},
		},
		IsMember: true,
	}
	got, err := Calculate(in)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if !got.Equal(dec("80")) {
		t.Fatalf("fee = %s, want 80", got)
	}

	in.Registration.Fields = domain.FieldValues{"solo": false}
	got, err = Calculate(in)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if !got.Equal(dec("50")) {
		t.Fatalf("fee = %s, want 50 when condition is false", got)
	}
}

func TestPartIndependentDiscount(t *testing.T) {
	in := Input{
		Event: testEvent("0"),
		Parts: []domain.EventPart{testPart(10, "P1", "50")},
		Fees: []domain.EventFee{
			{
				Base:      domain.Base{ID: 21},
				EventID:   1,
				Title:     "instructor discount",
				Amount:    dec("-12.50"),
				Condition: "field.instructor",
			},
		},
		Registration: domain.Registration{
			Base:    domain.Base{ID: 100},
			EventID: 1,
			Parts:   participantIn(10),
			Fields:  domain.FieldValues{"instructor": true},
		},
		IsMember: true,
	}
	got, err := Calculate(in)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if !got.Equal(dec("37.50")) {
		t.Fatalf("fee = %s, want 37.50", got)
	}
}

func TestPersonalizedFeeOverride(t *testing.T) {
	in := Input{
		Event: testEvent("0"),
		Parts: []domain.EventPart{testPart(10, "P1", "50")},
		Fees: []domain.EventFee{
			{Base: domain.Base{ID: 22}, EventID: 1, Title: "donation", Amount: dec("5")},
		},
		Registration: domain.Registration{
			Base:             domain.Base{ID: 100},
			EventID:          1,
			Parts:            participantIn(10),
			PersonalizedFees: map[int64]decimal.Decimal{22: dec("40")},
		},
		IsMember: true,
	}
	got, err := Calculate(in)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if !got.Equal(dec("90")) {
		t.Fatalf("fee = %s, want 90 with personalized override", got)
	}
}

// Adding a payable constrained part never decreases the fee.
func TestFeeMonotonicity(t *testing.T) {
	group := domain.PartGroup{
		Base:       domain.Base{ID: 5},
		EventID:    1,
		Constraint: domain.ConstraintMEP,
		PartIDs:    []int64{10, 11, 12},
	}
	parts := []domain.EventPart{
		testPart(10, "A", "10"),
		testPart(11, "B", "25"),
		testPart(12, "C", "5"),
		testPart(13, "D", "40"),
	}
	base := Input{
		Event:      testEvent("0"),
		Parts:      parts,
		PartGroups: []domain.PartGroup{group},
		IsMember:   true,
	}
	prev := decimal.Zero
	payable := []int64{}
	for _, add := range []int64{10, 11, 12} {
		payable = append(payable, add)
		in := base
		in.Registration = domain.Registration{
			Base:    domain.Base{ID: 100},
			EventID: 1,
			Parts:   participantIn(append([]int64{13}, payable...)...),
		}
		got, err := Calculate(in)
		if err != nil {
			t.Fatalf("calculate: %v", err)
		}
		if got.LessThan(prev) {
			t.Fatalf("fee decreased from %s to %s after adding part %d", prev, got, add)
		}
		prev = got
	}
}

func TestConstrainedPartBoundEnforced(t *testing.T) {
	partIDs := make([]int64, MaxConstrainedParts+1)
	parts := make([]domain.EventPart, 0, len(partIDs))
	for i := range partIDs {
		partIDs[i] = int64(100 + i)
		parts = append(parts, testPart(partIDs[i], "P", "1"))
	}
	group := domain.PartGroup{
		Base:       domain.Base{ID: 5},
		EventID:    1,
		Constraint: domain.ConstraintMEP,
		PartIDs:    partIDs,
	}
	in := Input{
		Event:      testEvent("0"),
		Parts:      parts,
		PartGroups: []domain.PartGroup{group},
		Registration: domain.Registration{
			Base:    domain.Base{ID: 100},
			EventID: 1,
			Parts:   participantIn(partIDs...),
		},
		IsMember: true,
	}
	if _, err := Calculate(in); err == nil {
		t.Fatalf("expected error above the constrained-part bound")
	}
}

func TestRewritePartShortname(t *testing.T) {
	partID := int64(10)
	fees := []domain.EventFee{
		{Base: domain.Base{ID: 1}, Condition: "part.1H and field.solo", PartID: &partID, Amount: dec("5")},
		{Base: domain.Base{ID: 2}, Condition: "field.solo", Amount: dec("3")},
		{Base: domain.Base{ID: 3}, Amount: dec("1")},
	}
	out, err := RewritePartShortname(fees, "1H", "FirstHalf")
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if out[0].Condition != "part.FirstHalf and field.solo" {
		t.Fatalf("unexpected rewritten condition %q", out[0].Condition)
	}
	if out[1].Condition != "field.solo" {
		t.Fatalf("untouched condition changed: %q", out[1].Condition)
	}
	if out[2].Condition != "" {
		t.Fatalf("empty condition changed: %q", out[2].Condition)
	}
}

func TestReferencedConditionNames(t *testing.T) {
	fees := []domain.EventFee{
		{Base: domain.Base{ID: 1}, Condition: "part.1H and field.solo"},
		{Base: domain.Base{ID: 2}, Condition: "field.solo or field.veg"},
	}
	fields, parts, err := ReferencedConditionNames(fees)
	if err != nil {
		t.Fatalf("referenced names: %v", err)
	}
	if len(fields["solo"]) != 2 || len(fields["veg"]) != 1 {
		t.Fatalf("unexpected field references: %v", fields)
	}
	if len(parts["1H"]) != 1 {
		t.Fatalf("unexpected part references: %v", parts)
	}
}
