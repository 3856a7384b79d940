package refund

import (
	"errors"
	"fmt"

	apperrors "github.com/barswebadmin/leagueops/pkg/errors"
)

// publishError means the side effect went through but the message update did not
type publishError struct {
	Done string
	Err  error
}

func (e *publishError) Error() string {
	return fmt.Sprintf("%s succeeded but the message could not be updated: %v", e.Done, e.Err)
}

func (e *publishError) Unwrap() error {
	return e.Err
}

// noticeFor turns an error into the private notice shown to the acting operator
func noticeFor(err error) string {
	var (
		published *publishError
		already   *apperrors.ErrAlreadyResolved
		invalid   *apperrors.ErrInvalidStateTransition
		conflict  *apperrors.ErrConflict
		notFound  *apperrors.ErrNotFound
		gateway   *apperrors.ErrGateway
		invalidIn *apperrors.ErrValidation
		unknown   *apperrors.ErrUnknownAction
	)
	switch {
	case errors.As(err, &published):
		return fmt.Sprintf("⚠️ %s, but the Slack message could not be updated: %v\nDo not retry. Check Shopify and update the request manually.",
			published.Done, published.Err)
	case errors.As(err, &already):
		return fmt.Sprintf("ℹ️ %s. Nothing was changed.", capitalize(already.Error()))
	case errors.As(err, &invalid):
		return fmt.Sprintf("⚠️ That action is not available at this step (request is %s). Use the buttons on the latest version of the message.", invalid.From)
	case errors.As(err, &conflict):
		return "⚠️ " + conflict.Error()
	case errors.As(err, &notFound):
		return fmt.Sprintf("❌ %s. The message was not changed.", capitalize(notFound.Error()))
	case errors.As(err, &gateway) && errors.Is(err, apperrors.ErrOutcomeUnknown):
		return fmt.Sprintf("⚠️ Could not confirm %s: %v\nShopify may have applied it. Check Shopify before acting on this request again.",
			gateway.Operation, gateway.Err)
	case errors.As(err, &gateway):
		return fmt.Sprintf("❌ Failed to %s: %v\nThe message was not changed and the decision is still pending, so you can retry.",
			gateway.Operation, gateway.Err)
	case errors.As(err, &invalidIn):
		return "⚠️ " + invalidIn.Error()
	case errors.As(err, &unknown):
		return "🤷 Sorry, that action isn't recognized. No changes were made."
	default:
		return fmt.Sprintf("❌ Something went wrong: %v\nThe message was not changed.", err)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
