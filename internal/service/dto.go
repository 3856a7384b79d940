package service

import (
	"strings"
	"time"

	"github.com/barswebadmin/leagueops/internal/domain"
	"github.com/barswebadmin/leagueops/internal/refund"
)

// RefundFormSubmission is what the refund request form's script posts
type RefundFormSubmission struct {
	OrderNumber    string `json:"order_number" binding:"required"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email" binding:"required,email"`
	RefundOrCredit string `json:"refund_or_credit" binding:"required"`
	Notes          string `json:"notes"`
	SubmittedAt    string `json:"submitted_at"`
	SheetLink      string `json:"sheet_link"`
}

// form timestamps arrive either as ISO strings or in the sheet's locale format
var submittedAtLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"1/2/2006 15:04:05",
	"01/02/2006 15:04:05",
}

// ToNewRequest converts the submission. Timestamps without an offset are read in league (UTC when nil).
// An unparseable timestamp is left zero so the Engine stamps it on arrival.
func (s RefundFormSubmission) ToNewRequest(league *time.Location) (refund.NewRequest, bool) {
	if league == nil {
		league = time.UTC
	}
	kind, ok := domain.ParseRefundKind(s.RefundOrCredit)
	if !ok {
		return refund.NewRequest{}, false
	}
	req := refund.NewRequest{
		OrderReference: s.OrderNumber,
		Requestor: domain.Requestor{
			FirstName: strings.TrimSpace(s.FirstName),
			LastName:  strings.TrimSpace(s.LastName),
			Email:     strings.TrimSpace(s.Email),
		},
		Kind:          kind,
		Notes:         strings.TrimSpace(s.Notes),
		ReferenceLink: strings.TrimSpace(s.SheetLink),
	}
	for _, layout := range submittedAtLayouts {
		if t, err := time.ParseInLocation(layout, strings.TrimSpace(s.SubmittedAt), league); err == nil {
			req.SubmittedAt = t.UTC()
			break
		}
	}
	return req, true
}
