// Package mailer sends requestor notifications over SMTP.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/barswebadmin/leagueops/internal/config"
	"github.com/barswebadmin/leagueops/internal/domain"
	apperrors "github.com/barswebadmin/leagueops/pkg/errors"
)

// Sender delivers a composed message. *mail.Client satisfies it.
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type Mailer struct {
	sender       Sender
	from         string
	contactEmail string
	logger       *zap.Logger
}

// NewSMTPSender builds a go-mail client from config
func NewSMTPSender(cfg config.MailConfig) (*mail.Client, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP_HOST is required to send mail")
	}
	return mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthLogin),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
}

// ErrNotConfigured is returned for every send when SMTP_HOST is unset
var ErrNotConfigured = apperrors.ErrNotificationDisabled

// DisabledSender stands in for SMTP when it is not configured, so denials still
// go through and the operator is told the email could not be sent.
type DisabledSender struct{}

func (DisabledSender) DialAndSendWithContext(context.Context, ...*mail.Msg) error {
	return ErrNotConfigured
}

// New creates a Mailer. contactEmail is used as Reply-To.
func New(sender Sender, cfg config.MailConfig, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{sender: sender, from: cfg.From, contactEmail: cfg.ContactEmail, logger: logger}
}

var denialTemplate = template.Must(template.New("denial").Parse(`Hi {{.FirstName}},

{{if .CustomMessage}}{{.CustomMessage}}{{else}}We've reviewed your {{.Noun}} request for {{.Product}} (order {{.OrderReference}}) and unfortunately we are unable to approve it.

This is based on our refund policy for the timing of the request relative to the start of the season. Your registration remains active.{{end}}
{{if .OperatorEmail}}
If you have any questions, you can reach {{.OperatorName}} directly at {{.OperatorEmail}}.
{{else}}
If you have any questions, please reply to this email.
{{end}}
Thanks,
Big Apple Rec Sports
`))

type denialData struct {
	FirstName      string
	Noun           string
	Product        string
	OrderReference string
	CustomMessage  string
	OperatorName   string
	OperatorEmail  string
}

// RenderDenial returns the subject and plain-text body of a denial email
func RenderDenial(n domain.DenialNotice) (string, string, error) {
	first := n.RequestorName
	if first == "" {
		first = "there"
	}
	product := n.ProductTitle
	if product == "" {
		product = "your registration"
	}
	var buf bytes.Buffer
	err := denialTemplate.Execute(&buf, denialData{
		FirstName:      first,
		Noun:           n.Kind.Noun(),
		Product:        product,
		OrderReference: n.OrderReference,
		CustomMessage:  n.CustomMessage,
		OperatorName:   n.Operator.Name,
		OperatorEmail:  n.OperatorEmail,
	})
	if err != nil {
		return "", "", fmt.Errorf("render denial email: %w", err)
	}
	subject := fmt.Sprintf("Your %s request for order %s", n.Kind.Noun(), n.OrderReference)
	return subject, buf.String(), nil
}

// SendDenial emails the requestor that their request was denied
func (m *Mailer) SendDenial(ctx context.Context, n domain.DenialNotice) error {
	if n.To == "" {
		return &apperrors.ErrValidation{Message: "requestor email is required"}
	}
	subject, body, err := RenderDenial(n)
	if err != nil {
		return err
	}

	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return &apperrors.ErrGateway{Operation: "send denial email", Err: fmt.Errorf("from %q: %w", m.from, err)}
	}
	if err := msg.To(n.To); err != nil {
		return &apperrors.ErrGateway{Operation: "send denial email", Err: fmt.Errorf("to %q: %w", n.To, err)}
	}
	if m.contactEmail != "" {
		if err := msg.ReplyTo(m.contactEmail); err != nil {
			m.logger.Warn("Ignoring invalid reply-to address", zap.String("reply_to", m.contactEmail), zap.Error(err))
		}
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	if err := m.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return &apperrors.ErrGateway{Operation: "send denial email", Err: err}
	}
	m.logger.Info("Denial email sent", zap.String("order", n.OrderReference), zap.String("to", n.To))
	return nil
}
