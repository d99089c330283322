package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox/payloads"
)

const paymentConsumerName = "orders-payment-verified"

type paymentProcessor interface {
	Process(ctx context.Context, event payloads.PaymentVerifiedEvent) (*models.Order, error)
}

type onceRunner interface {
	Once(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (bool, error)
}

// Consumer feeds payment.verified events from Pub/Sub into the order pipeline.
type Consumer struct {
	pipeline     paymentProcessor
	subscription *pubsub.Subscriber
	idempotency  onceRunner
	logg         *logger.Logger
}

// NewConsumer builds the payment event consumer.
func NewConsumer(pipeline paymentProcessor, subscription *pubsub.Subscriber, manager onceRunner, logg *logger.Logger) (*Consumer, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("order pipeline required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("orders subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		pipeline:     pipeline,
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

	if eventType != string(enums.EventPaymentVerified) {
		c.logg.Info(logCtx, "skipping non-payment event")
		return processResult{ack: true}
	}

	envelope, eventID, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	var payload payloads.PaymentVerifiedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		return processResult{ack: true}
	}
	logCtx = c.logg.WithPaymentReference(logCtx, payload.PaymentReference)

	var pipelineErr error
	skipped, err := c.idempotency.Once(ctx, paymentConsumerName, eventID, func(ctx context.Context) error {
		_, pipelineErr = c.pipeline.Process(ctx, payload)
		if redeliver(pipelineErr) {
			return pipelineErr
		}
		return nil
	})
	switch {
	case err != nil:
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "payment event will be redelivered")
		return processResult{nack: true}
	case skipped:
		c.logg.Info(logCtx, "event already processed")
	case pipelineErr != nil:
		// Already persisted as an order creation failure and alerted.
		c.logg.Error(logCtx, "payment event rejected", pipelineErr)
	}
	return processResult{ack: true}
}

// redeliver reports whether Pub/Sub should hand the event back later: another
// worker holds the payment, or this worker is shutting down.
func redeliver(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	typed := pkgerrors.As(err)
	return typed != nil && typed.Code() == pkgerrors.CodeConflict
}
