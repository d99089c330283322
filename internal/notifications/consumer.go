package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/fulfillment-backend/pkg/alert"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox/payloads"
)

const (
	orderNotificationConsumer  = "notifications-vendor-order"
	payoutNotificationConsumer = "notifications-payout-result"
)

type store interface {
	Create(ctx context.Context, notification *models.Notification) error
	FindVendor(ctx context.Context, vendorID uuid.UUID) (*models.Vendor, error)
}

type mailer interface {
	Send(ctx context.Context, msg alert.Message) error
}

type processedTracker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer turns vendor-facing domain events into in-app notifications and
// new-order emails.
type Consumer struct {
	repo         store
	mailer       mailer
	subscription *pubsub.Subscriber
	idempotency  processedTracker
	logg         *logger.Logger
}

// NewConsumer builds a vendor notification consumer. mail may be nil, in which
// case only in-app notifications are written.
func NewConsumer(repo store, mail mailer, subscription *pubsub.Subscriber, manager processedTracker, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		mailer:       mail,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	var consumer string
	switch enums.OutboxEventType(eventType) {
	case enums.EventOrderVendorNotification:
		consumer = orderNotificationConsumer
	case enums.EventPayoutResult:
		consumer = payoutNotificationConsumer
	default:
		c.logg.Info(logCtx, "skipping event without vendor notification")
		return processResult{ack: true}
	}

	envelope, eventID, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, consumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if consumer == orderNotificationConsumer {
		err = c.handleOrder(ctx, logCtx, envelope.Data)
	} else {
		err = c.handlePayout(ctx, logCtx, envelope.Data)
	}
	if err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, consumer, eventID)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

func (c *Consumer) handleOrder(ctx, logCtx context.Context, raw json.RawMessage) error {
	var payload payloads.VendorOrderNotificationEvent
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("parse order notification: %w", err)
	}
	if payload.VendorID == uuid.Nil {
		return fmt.Errorf("vendor id missing")
	}
	logCtx = c.logg.WithOrderID(c.logg.WithVendorID(logCtx, payload.VendorID.String()), payload.OrderID.String())

	vendor, err := c.repo.FindVendor(ctx, payload.VendorID)
	if err != nil {
		return err
	}
	if vendor == nil {
		c.logg.Warn(logCtx, "vendor no longer exists; dropping notification")
		return nil
	}

	title := fmt.Sprintf("New order %s", payload.OrderNumber)
	message := fmt.Sprintf("%s ordered %d item(s) totalling %s.",
		buyerName(payload.BuyerName), payload.ItemsCount, payload.TotalAmount.StringFixed(2))
	notification := &models.Notification{
		VendorID: payload.VendorID,
		Type:     enums.NotificationTypeNewOrder,
		Title:    title,
		Message:  message,
		Link:     stringPtr(payload.URL),
		Data:     raw,
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "vendor notified of new order")

	// Email is best effort; the in-app row is the record.
	if c.mailer == nil || vendor.NotifyEmail == nil || strings.TrimSpace(*vendor.NotifyEmail) == "" {
		return nil
	}
	email := alert.Message{
		To:      *vendor.NotifyEmail,
		Subject: title,
		Text:    fmt.Sprintf("Hello %s,\n\n%s\n\nView the order: %s\n", vendor.Name, message, payload.URL),
	}
	if err := c.mailer.Send(ctx, email); err != nil {
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "vendor order email failed")
	}
	return nil
}

func (c *Consumer) handlePayout(ctx, logCtx context.Context, raw json.RawMessage) error {
	var payload payloads.PayoutResultEvent
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("parse payout result: %w", err)
	}
	if payload.VendorID == uuid.Nil {
		return fmt.Errorf("vendor id missing")
	}
	logCtx = c.logg.WithVendorID(logCtx, payload.VendorID.String())

	amount := payload.Amount.StringFixed(2)
	notification := &models.Notification{
		VendorID: payload.VendorID,
		Type:     enums.NotificationTypePayoutResult,
		Data:     raw,
	}
	if payload.Status == enums.PayoutStatusSuccess {
		notification.Title = "Payout sent"
		notification.Message = fmt.Sprintf("A payout of %s for %d order(s) is on its way.", amount, len(payload.OrderIDs))
		if payload.TransactionID != "" {
			notification.Message += fmt.Sprintf(" Reference: %s.", payload.TransactionID)
		}
	} else {
		notification.Title = "Payout failed"
		notification.Message = fmt.Sprintf("A payout of %s for %d order(s) could not be completed.", amount, len(payload.OrderIDs))
		if payload.ErrorMessage != "" {
			notification.Message += " Reason: " + payload.ErrorMessage
		}
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(c.logg.WithField(logCtx, "status", payload.Status), "vendor notified of payout result")
	return nil
}

func buyerName(name string) string {
	if name = strings.TrimSpace(name); name == "" {
		return "A customer"
	}
	return name
}

func stringPtr(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
