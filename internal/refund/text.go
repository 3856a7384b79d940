package refund

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/barswebadmin/leagueops/internal/domain"
)

// DefaultReferenceLink is shown when no reference link can be recovered from a message
const DefaultReferenceLink = "https://docs.google.com/spreadsheets/"

// ExtractText flattens header, section (text and fields) and context blocks to newline-joined text.
// Actions, dividers and images are skipped.
func ExtractText(blocks []slack.Block) string {
	var lines []string
	add := func(t *slack.TextBlockObject) {
		if t != nil && strings.TrimSpace(t.Text) != "" {
			lines = append(lines, t.Text)
		}
	}
	for _, block := range blocks {
		switch b := block.(type) {
		case *slack.HeaderBlock:
			add(b.Text)
		case *slack.SectionBlock:
			add(b.Text)
			for _, f := range b.Fields {
				add(f)
			}
		case *slack.ContextBlock:
			for _, el := range b.ContextElements.Elements {
				if t, ok := el.(*slack.TextBlockObject); ok {
					add(t)
				}
			}
		}
	}
	return strings.Join(lines, "\n")
}

var referenceLinkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`🔗\s*<([^|>]+)\|`),
	regexp.MustCompile(`<(https://docs\.google\.com/spreadsheets/[^|>]+)(?:\|[^>]*)?>`),
	regexp.MustCompile(`(https://docs\.google\.com/spreadsheets/\S+)`),
}

// ParseReferenceLink finds the sheet link in a rendered message, falling back to DefaultReferenceLink
func ParseReferenceLink(text string) string {
	for _, re := range referenceLinkPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimRight(m[1], ">)")
		}
	}
	return DefaultReferenceLink
}

var seasonStartPattern = regexp.MustCompile(`Season Start Date:\*?\s*(\d{1,2}/\d{1,2}/\d{2,4})`)

// ParseSeasonStart recovers the season start date from a rendered message
func ParseSeasonStart(text string) (*time.Time, bool) {
	m := seasonStartPattern.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	for _, layout := range []string{seasonDateLayout, "1/2/06", "1/2/2006", "01/02/2006"} {
		if t, err := time.Parse(layout, m[1]); err == nil {
			return &t, true
		}
	}
	return nil, false
}

var (
	orderRefPattern      = regexp.MustCompile(`Order Number:\*?\s*(?:<[^|>]*\|)?(#?\d+)`)
	requestorPattern     = regexp.MustCompile(`Requested by:\*?\s*<([^|>]*)\|([^>]+)>\s*\(([^)]+)\)`)
	notesPattern         = regexp.MustCompile(`Notes provided by requestor:\*?\s*(.+)`)
	totalPaidPattern     = regexp.MustCompile(`Total Amount Paid:\*?\s*\$([\d,]+\.?\d*)`)
	productPattern       = regexp.MustCompile(`Product Title:\*?\s*(?:<[^|>]*\|)?([^>\n]+)`)
	orderOperatorPattern = regexp.MustCompile(`Order (?:Canceled|Not Canceled)\*?, processed by <@(\w+)>`)
	refundedPattern      = regexp.MustCompile(`Refunded \$([\d,]+\.\d{2})\*? by <@(\w+)>`)
	creditPattern        = regexp.MustCompile(`Issued \$([\d,]+\.\d{2}) in store credit\*? by <@(\w+)>`)
	notRefundedPattern   = regexp.MustCompile(`(?:Not Refunded|No Store Credit Issued)\*? by <@(\w+)>`)
	restockedPattern     = regexp.MustCompile(`Inventory restocked to \(([^)]*)\)\*? by <@(\w+)>`)
	notRestockedPattern  = regexp.MustCompile(`Inventory not restocked\*? by <@(\w+)>`)
	deniedPattern        = regexp.MustCompile(`Request Denied\*? by <@(\w+)>`)
)

// ParseLegacyRequest rebuilds what it can of a request from a message posted without metadata.
// Decision operators are recovered from mentions; timestamps and estimates are not.
func ParseLegacyRequest(text string) (domain.RefundRequest, bool) {
	m := orderRefPattern.FindStringSubmatch(text)
	if m == nil {
		return domain.RefundRequest{}, false
	}

	kind := domain.RefundKindRefund
	if strings.Contains(text, "Store Credit Request") || strings.Contains(text, "in store credit") {
		kind = domain.RefundKindCredit
	}
	var requestor domain.Requestor
	if rm := requestorPattern.FindStringSubmatch(text); rm != nil {
		first, last, _ := strings.Cut(strings.TrimSpace(rm[2]), " ")
		requestor = domain.Requestor{FirstName: first, LastName: last, Email: strings.TrimSpace(rm[3])}
	}
	notes := ""
	if nm := notesPattern.FindStringSubmatch(text); nm != nil {
		notes = strings.TrimSpace(nm[1])
	}

	r := domain.NewRefundRequest(m[1], requestor, kind, notes, time.Time{})
	r.ReferenceLink = ParseReferenceLink(text)
	r.Order.SeasonStart, _ = ParseSeasonStart(text)
	if pm := productPattern.FindStringSubmatch(text); pm != nil {
		r.Order.ProductTitle = strings.TrimSpace(pm[1])
	}
	if tm := totalPaidPattern.FindStringSubmatch(text); tm != nil {
		r.Order.TotalPaid = parseMoney(tm[1])
	}

	if om := orderOperatorPattern.FindStringSubmatch(text); om != nil {
		status := domain.OrderCancelled
		if strings.Contains(om[0], "Not Canceled") {
			status = domain.OrderNotCancelled
		}
		r.OrderDecision = domain.OrderDecision{Status: status, Operator: &domain.Operator{ID: om[1]}}
	}
	switch {
	case refundedPattern.MatchString(text):
		rm := refundedPattern.FindStringSubmatch(text)
		r.RefundDecision = domain.RefundDecision{Status: domain.RefundIssued, Amount: parseMoney(rm[1]), Kind: domain.RefundKindRefund, Operator: &domain.Operator{ID: rm[2]}}
	case creditPattern.MatchString(text):
		cm := creditPattern.FindStringSubmatch(text)
		r.RefundDecision = domain.RefundDecision{Status: domain.RefundIssued, Amount: parseMoney(cm[1]), Kind: domain.RefundKindCredit, Operator: &domain.Operator{ID: cm[2]}}
	case notRefundedPattern.MatchString(text):
		nm := notRefundedPattern.FindStringSubmatch(text)
		r.RefundDecision = domain.RefundDecision{Status: domain.RefundDeclined, Kind: kind, Operator: &domain.Operator{ID: nm[1]}}
	}
	switch {
	case restockedPattern.MatchString(text):
		sm := restockedPattern.FindStringSubmatch(text)
		r.Inventory = domain.InventoryDecision{Status: domain.InventoryRestocked, VariantTitle: sm[1], Operator: &domain.Operator{ID: sm[2]}}
	case notRestockedPattern.MatchString(text):
		nm := notRestockedPattern.FindStringSubmatch(text)
		r.Inventory = domain.InventoryDecision{Status: domain.InventoryNotRestocked, Operator: &domain.Operator{ID: nm[1]}}
	}
	if dm := deniedPattern.FindStringSubmatch(text); dm != nil {
		r.Denial = &domain.Denial{Operator: domain.Operator{ID: dm[1]}, NotifiedEmail: requestor.Email}
	}
	return r, true
}

func parseMoney(s string) float64 {
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0
	}
	return f
}
