package refund

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/barswebadmin/leagueops/internal/domain"
)

// ProcessingFeePercent is deducted from refunds back to the original payment method
const ProcessingFeePercent = 5

// tier penalties, indexed by how many boundaries the submission is at or past
var tierPenalties = []int{0, 10, 20, 30, 40, 50, 100}

// TierResult is where a submission falls on the refund ladder
type TierResult struct {
	Known   bool // false when the season start is unknown
	Index   int
	Penalty int
	Timing  string
}

// Tier places submittedAt on the ladder. Boundaries are 2 weeks before week 1,
// then the start of weeks 1 through 5; each off-date before a boundary pushes it back a week.
// A submission exactly on a boundary falls in the later tier.
func Tier(submittedAt time.Time, seasonStart *time.Time, offDates []time.Time) TierResult {
	if seasonStart == nil || seasonStart.IsZero() {
		return TierResult{}
	}
	bounds := Boundaries(*seasonStart, offDates)
	idx := 0
	for _, b := range bounds {
		if submittedAt.Before(b) {
			break
		}
		idx++
	}
	return TierResult{Known: true, Index: idx, Penalty: tierPenalties[idx], Timing: timing(idx)}
}

// Boundaries returns the six tier boundaries for a season
func Boundaries(seasonStart time.Time, offDates []time.Time) []time.Time {
	off := make([]time.Time, 0, len(offDates))
	for _, d := range offDates {
		if !d.Before(seasonStart) {
			off = append(off, d)
		}
	}
	sort.Slice(off, func(i, j int) bool { return off[i].Before(off[j]) })

	bounds := []time.Time{seasonStart.AddDate(0, 0, -14), seasonStart}
	next := 0
	prev := seasonStart
	for len(bounds) < len(tierPenalties)-1 {
		candidate := prev.AddDate(0, 0, 7)
		for next < len(off) && off[next].Before(candidate) {
			candidate = candidate.AddDate(0, 0, 7)
			next++
		}
		bounds = append(bounds, candidate)
		prev = candidate
	}
	return bounds
}

func timing(idx int) string {
	switch idx {
	case 0:
		return "more than 2 weeks before week 1 started"
	case 1:
		return "less than 2 weeks before week 1 started"
	default:
		return fmt.Sprintf("after the start of week %d", idx-1)
	}
}

// Percent is the share of the base amount returned for kind
func (t TierResult) Percent(kind domain.RefundKind) int {
	if !t.Known {
		return 0
	}
	pct := 100 - t.Penalty
	if kind != domain.RefundKindCredit {
		pct -= ProcessingFeePercent
	}
	if pct < 0 {
		return 0
	}
	return pct
}

// AmountDue applies the tier to base and explains how the amount was reached
func AmountDue(base float64, tier TierResult, kind domain.RefundKind) (float64, string) {
	if !tier.Known {
		return 0, "Season start date could not be found for this product. Verify the amount manually and use a custom amount."
	}
	pct := tier.Percent(kind)
	amount := math.Round(base*float64(pct)) / 100

	desc := fmt.Sprintf("This request is calculated to have been submitted %s. %d%% after %d%% penalty", tier.Timing, pct, tier.Penalty)
	if kind != domain.RefundKindCredit {
		desc += fmt.Sprintf(" + %d%% processing fee", ProcessingFeePercent)
	}
	return amount, desc
}

// EstimateFor computes the amount offered for a request against an order summary
func EstimateFor(req domain.RefundRequest, order domain.OrderSummary) domain.Estimate {
	tier := Tier(req.SubmittedAt, order.SeasonStart, order.OffDates)
	amount, desc := AmountDue(order.TotalPaid, tier, req.Kind)
	return domain.Estimate{Amount: amount, Percent: tier.Percent(req.Kind), Description: desc}
}

// SummarizeOrder keeps the parts of a snapshot that the message displays
func SummarizeOrder(snap *domain.OrderSnapshot) domain.OrderSummary {
	return domain.OrderSummary{
		CreatedAt:    snap.CreatedAt,
		TotalPaid:    snap.TotalPaid,
		CustomerID:   snap.Customer.ID,
		ProductID:    snap.Product.ID,
		ProductTitle: snap.Product.Title,
		SeasonStart:  snap.Product.SeasonStart,
		OffDates:     snap.Product.OffDates,
	}
}
