package orders

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox/payloads"
)

type stubProcessor struct {
	err   error
	calls []payloads.PaymentVerifiedEvent
}

func (s *stubProcessor) Process(_ context.Context, event payloads.PaymentVerifiedEvent) (*models.Order, error) {
	s.calls = append(s.calls, event)
	if s.err != nil {
		return nil, s.err
	}
	return &models.Order{ID: uuid.New()}, nil
}

type memoryOnce struct {
	done map[uuid.UUID]bool
}

func (m *memoryOnce) Once(ctx context.Context, _ string, eventID uuid.UUID, fn func(context.Context) error) (bool, error) {
	if m.done[eventID] {
		return true, nil
	}
	if err := fn(ctx); err != nil {
		return false, err
	}
	m.done[eventID] = true
	return false, nil
}

func newTestConsumer(processor *stubProcessor) *Consumer {
	return &Consumer{
		pipeline:    processor,
		idempotency: &memoryOnce{done: map[uuid.UUID]bool{}},
		logg:        logger.Nop(),
	}
}

func paymentMessage(t *testing.T, eventID uuid.UUID, event payloads.PaymentVerifiedEvent) *pubsub.Message {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	raw, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID.String(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	require.NoError(t, err)
	return &pubsub.Message{
		ID:         "msg-" + eventID.String(),
		Data:       raw,
		Attributes: map[string]string{"event_type": string(enums.EventPaymentVerified)},
	}
}

func TestConsumerProcessesPaymentOnce(t *testing.T) {
	processor := &stubProcessor{}
	c := newTestConsumer(processor)
	eventID := uuid.New()
	msg := paymentMessage(t, eventID, paymentEvent())

	assert.True(t, c.process(t.Context(), msg).ack)
	assert.True(t, c.process(t.Context(), msg).ack)
	require.Len(t, processor.calls, 1)
	assert.Equal(t, "PAY-ENQUEUE-1", processor.calls[0].PaymentReference)
}

func TestConsumerAcksRejectedPayments(t *testing.T) {
	processor := &stubProcessor{err: pkgerrors.New(pkgerrors.CodeValidation, "payment event invalid")}
	c := newTestConsumer(processor)

	result := c.process(t.Context(), paymentMessage(t, uuid.New(), paymentEvent()))
	assert.True(t, result.ack)
	assert.False(t, result.nack)
}

func TestConsumerNacksInFlightPayments(t *testing.T) {
	processor := &stubProcessor{err: pkgerrors.New(pkgerrors.CodeConflict, "payment already being processed")}
	c := newTestConsumer(processor)
	msg := paymentMessage(t, uuid.New(), paymentEvent())

	assert.True(t, c.process(t.Context(), msg).nack)

	processor.err = nil
	assert.True(t, c.process(t.Context(), msg).ack)
	assert.Len(t, processor.calls, 2)
}

func TestConsumerSkipsForeignAndMalformedMessages(t *testing.T) {
	processor := &stubProcessor{}
	c := newTestConsumer(processor)

	other := paymentMessage(t, uuid.New(), paymentEvent())
	other.Attributes["event_type"] = string(enums.EventPayoutResult)
	assert.True(t, c.process(t.Context(), other).ack)

	garbled := &pubsub.Message{
		Data:       []byte("{not json"),
		Attributes: map[string]string{"event_type": string(enums.EventPaymentVerified)},
	}
	assert.True(t, c.process(t.Context(), garbled).ack)
	assert.Empty(t, processor.calls)
}

func TestRedeliver(t *testing.T) {
	assert.False(t, redeliver(nil))
	assert.True(t, redeliver(context.Canceled))
	assert.True(t, redeliver(pkgerrors.New(pkgerrors.CodeConflict, "busy")))
	assert.False(t, redeliver(pkgerrors.New(pkgerrors.CodeDependency, "down")))
}
