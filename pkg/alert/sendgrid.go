package alert

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/angelmondragon/fulfillment-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
)

const senderName = "Marketplace"

var errAPIKeyRequired = errors.New("sendgrid api key is required")

// Message is a plain-text email. HTML is derived when empty.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

type sender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// Mailer delivers transactional email through SendGrid.
type Mailer struct {
	client sender
	from   string
	logg   *logger.Logger
}

// NewMailer builds a SendGrid-backed mailer.
func NewMailer(cfg config.SendgridConfig, logg *logger.Logger) (*Mailer, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errAPIKeyRequired
	}
	return newMailer(sendgrid.NewSendClient(key), cfg.DefaultFrom, logg), nil
}

func newMailer(client sender, from string, logg *logger.Logger) *Mailer {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Mailer{client: client, from: from, logg: logg}
}

// Send delivers msg. Any 4xx/5xx from SendGrid is a dependency error.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient address is empty")
	}
	htmlBody := msg.HTML
	if htmlBody == "" {
		htmlBody = fmt.Sprintf("<pre>%s</pre>", html.EscapeString(msg.Text))
	}

	email := mail.NewSingleEmail(
		mail.NewEmail(senderName, m.from),
		msg.Subject,
		mail.NewEmail("", msg.To),
		msg.Text,
		htmlBody,
	)

	resp, err := m.client.SendWithContext(ctx, email)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sendgrid send")
	}
	if resp.StatusCode >= 400 {
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("sendgrid send failed: status=%d body=%s", resp.StatusCode, resp.Body))
	}

	m.logg.Info(m.logg.WithFields(ctx, map[string]any{"to": msg.To, "subject": msg.Subject, "status": resp.StatusCode}), "email sent")
	return nil
}
