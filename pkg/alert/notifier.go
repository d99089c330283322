package alert

import (
	"context"
	"strings"

	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
)

// Notifier raises operator alerts for failures that need a human.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

type mailSender interface {
	Send(ctx context.Context, msg Message) error
}

// EmailNotifier mails alerts to the operator inbox.
type EmailNotifier struct {
	mailer mailSender
	to     string
}

func NewEmailNotifier(mailer mailSender, operatorEmail string) *EmailNotifier {
	return &EmailNotifier{mailer: mailer, to: strings.TrimSpace(operatorEmail)}
}

func (n *EmailNotifier) Notify(ctx context.Context, subject, body string) error {
	return n.mailer.Send(ctx, Message{To: n.to, Subject: "[alert] " + subject, Text: body})
}

// LogNotifier only logs. Used when no mail provider is configured.
type LogNotifier struct {
	logg *logger.Logger
}

func NewLogNotifier(logg *logger.Logger) *LogNotifier {
	if logg == nil {
		logg = logger.Nop()
	}
	return &LogNotifier{logg: logg}
}

func (n *LogNotifier) Notify(ctx context.Context, subject, body string) error {
	n.logg.Warn(n.logg.WithFields(ctx, map[string]any{"alert": subject, "detail": body}), "operator alert")
	return nil
}
