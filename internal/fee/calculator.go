// Package fee computes the amount owed by a registration from part fees,
// conditional fee components and mutual-exclusion part groups.
package fee

import (
	"fmt"

	"eventcore/internal/condition"
	"eventcore/pkg/domain"

	"github.com/shopspring/decimal"
)

// MaxConstrainedParts bounds the number of payable parts subject to
// mutual-exclusion groups. The legal-subset search enumerates the power
// set of these parts, so the bound keeps the search tractable. Real
// events have single-digit part counts.
const MaxConstrainedParts = 20

// Input bundles the event data needed to price one registration.
type Input struct {
	Event        domain.Event
	Parts        []domain.EventPart
	PartGroups   []domain.PartGroup
	Fees         []domain.EventFee
	Registration domain.Registration
	IsMember     bool
}

// Calculate returns the total amount owed by the registration. Amounts may
// be negative (discounts); no currency rounding is applied here.
func Calculate(in Input) (decimal.Decimal, error) {
	partsByID := make(map[int64]domain.EventPart, len(in.Parts))
	involved := make(map[string]bool)
	for _, part := range in.Parts {
		partsByID[part.ID] = part
		if rp, ok := in.Registration.Parts[part.ID]; ok && rp.Status.IsInvolved() {
			involved[part.Shortname] = true
		}
	}
	ctx := condition.EvalContext{
		FieldTrue:    in.Registration.Fields.Bool,
		PartInvolved: func(shortname string) bool { return involved[shortname] },
		IsMember:     in.IsMember,
	}

	feesToPay := make(map[int64]decimal.Decimal)
	for partID, rp := range in.Registration.Parts {
		part, ok := partsByID[partID]
		if !ok || !rp.Status.HasToPay() {
			continue
		}
		feesToPay[partID] = part.Fee
	}

	total := decimal.Zero
	for _, f := range in.Fees {
		applies, err := applies(f, ctx)
		if err != nil {
			return decimal.Decimal{}, err
		}
		if !applies {
			continue
		}
		amount := f.Amount
		if override, ok := in.Registration.PersonalizedFees[f.ID]; ok {
			amount = override
		}
		if f.PartID != nil {
			if current, ok := feesToPay[*f.PartID]; ok {
				feesToPay[*f.PartID] = current.Add(amount)
			}
			continue
		}
		total = total.Add(amount)
	}

	constrained := constrainedPartIDs(in.PartGroups, feesToPay)
	if len(constrained) > MaxConstrainedParts {
		return decimal.Decimal{}, fmt.Errorf("%d mutually exclusive payable parts exceed the supported maximum of %d",
			len(constrained), MaxConstrainedParts)
	}
	constrainedSet := make(map[int64]bool, len(constrained))
	for _, id := range constrained {
		constrainedSet[id] = true
	}
	for partID, amount := range feesToPay {
		if !constrainedSet[partID] {
			total = total.Add(amount)
		}
	}
	total = total.Add(maxLegalSubsetFee(constrained, feesToPay, in.PartGroups))

	if !in.IsMember {
		total = total.Add(in.Event.NonmemberSurcharge)
	}
	return total, nil
}

func applies(f domain.EventFee, ctx condition.EvalContext) (bool, error) {
	if f.Condition == "" {
		return true, nil
	}
	node, err := condition.Parse(f.Condition)
	if err != nil {
		return false, fmt.Errorf("fee %d condition: %w", f.ID, err)
	}
	return node.Evaluate(ctx), nil
}

// constrainedPartIDs returns the payable parts belonging to at least one
// mutually-exclusive-participants group, in deterministic order.
func constrainedPartIDs(groups []domain.PartGroup, feesToPay map[int64]decimal.Decimal) []int64 {
	seen := make(map[int64]bool)
	var out []int64
	for _, group := range groups {
		if group.Constraint != domain.ConstraintMEP {
			continue
		}
		for _, partID := range group.PartIDs {
			if _, payable := feesToPay[partID]; payable && !seen[partID] {
				seen[partID] = true
				out = append(out, partID)
			}
		}
	}
	return out
}

// maxLegalSubsetFee enumerates every subset of the constrained parts and
// returns the highest fee sum among subsets that intersect each
// mutual-exclusion group in at most one part. The worst case is charged
// when the exclusion leaves the billed part ambiguous. With no MEP groups
// the full set is legal and wins.
func maxLegalSubsetFee(constrained []int64, feesToPay map[int64]decimal.Decimal, groups []domain.PartGroup) decimal.Decimal {
	if len(constrained) == 0 {
		return decimal.Zero
	}
	var mepGroups [][]int64
	for _, group := range groups {
		if group.Constraint == domain.ConstraintMEP {
			mepGroups = append(mepGroups, group.PartIDs)
		}
	}
	best := decimal.Zero
	for mask := 0; mask < 1<<len(constrained); mask++ {
		selected := make(map[int64]bool, len(constrained))
		sum := decimal.Zero
		for i, partID := range constrained {
			if mask&(1<<i) != 0 {
				selected[partID] = true
				sum = sum.Add(feesToPay[partID])
			}
		}
		if !legalSelection(selected, mepGroups) {
			continue
		}
		if sum.GreaterThan(best) {
			best = sum
		}
	}
	return best
}

func legalSelection(selected map[int64]bool, mepGroups [][]int64) bool {
	for _, partIDs := range mepGroups {
		count := 0
		for _, partID := range partIDs {
			if selected[partID] {
				count++
			}
		}
		if count > 1 {
			return false
		}
	}
	return true
}
