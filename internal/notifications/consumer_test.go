package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fulfillment-backend/pkg/alert"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/dbtest"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox/payloads"
)

type memoryStore struct {
	keys map[string]bool
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	if m.keys[key] {
		return "1", nil
	}
	return "", nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "test:" + scope + ":" + id
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.keys, key)
	}
	return nil
}

type recordingMailer struct {
	sent []alert.Message
	err  error
}

func (r *recordingMailer) Send(_ context.Context, msg alert.Message) error {
	r.sent = append(r.sent, msg)
	return r.err
}

type failingStore struct {
	store
}

func (failingStore) Create(context.Context, *models.Notification) error {
	return errors.New("db down")
}

func newTestConsumer(t *testing.T, repo store, mail mailer) *Consumer {
	t.Helper()
	manager, err := idempotency.NewManager(&memoryStore{keys: map[string]bool{}}, time.Hour)
	require.NoError(t, err)
	c := &Consumer{repo: repo, idempotency: manager, logg: logger.Nop()}
	if mail != nil {
		c.mailer = mail
	}
	return c
}

func message(t *testing.T, eventType enums.OutboxEventType, eventID uuid.UUID, data any) *pubsub.Message {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	body, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID.String(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	require.NoError(t, err)
	return &pubsub.Message{
		ID:         "msg-" + eventID.String(),
		Data:       body,
		Attributes: map[string]string{"event_type": string(eventType)},
	}
}

func listFor(t *testing.T, repo Repository, vendorID uuid.UUID) []models.Notification {
	t.Helper()
	rows, _, err := repo.List(t.Context(), listNotificationsParams{VendorID: vendorID})
	require.NoError(t, err)
	return rows
}

func TestConsumerCreatesOrderNotificationAndEmail(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	vendor := dbtest.Vendor(t, db, "GH", 5.6, -0.19)
	mail := &recordingMailer{}
	c := newTestConsumer(t, repo, mail)

	event := payloads.VendorOrderNotificationEvent{
		OrderID:     uuid.New(),
		OrderNumber: "ORD-260310-AB12CD",
		VendorID:    vendor.ID,
		BuyerName:   "Ama Mensah",
		TotalAmount: decimal.RequireFromString("120"),
		ItemsCount:  3,
		URL:         "https://shop.example/vendor/orders/ORD-260310-AB12CD",
		CreatedAt:   time.Now().UTC(),
	}
	result := c.process(t.Context(), message(t, enums.EventOrderVendorNotification, uuid.New(), event))
	assert.True(t, result.ack)

	rows := listFor(t, repo, vendor.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.NotificationTypeNewOrder, rows[0].Type)
	assert.Equal(t, "New order ORD-260310-AB12CD", rows[0].Title)
	assert.Equal(t, "Ama Mensah ordered 3 item(s) totalling 120.00.", rows[0].Message)
	require.NotNil(t, rows[0].Link)
	assert.Equal(t, event.URL, *rows[0].Link)

	require.Len(t, mail.sent, 1)
	assert.Equal(t, *vendor.NotifyEmail, mail.sent[0].To)
	assert.Equal(t, "New order ORD-260310-AB12CD", mail.sent[0].Subject)
	assert.Contains(t, mail.sent[0].Text, event.URL)
}

func TestConsumerSkipsDuplicateDelivery(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	vendor := dbtest.Vendor(t, db, "GH", 5.6, -0.19)
	mail := &recordingMailer{}
	c := newTestConsumer(t, repo, mail)

	msg := message(t, enums.EventOrderVendorNotification, uuid.New(), payloads.VendorOrderNotificationEvent{
		OrderID:     uuid.New(),
		OrderNumber: "ORD-1",
		VendorID:    vendor.ID,
		ItemsCount:  1,
	})
	assert.True(t, c.process(t.Context(), msg).ack)
	assert.True(t, c.process(t.Context(), msg).ack)

	rows := listFor(t, repo, vendor.ID)
	require.Len(t, rows, 1)
	assert.Contains(t, rows[0].Message, "A customer ordered 1 item(s)")
	assert.Nil(t, rows[0].Link)
	assert.Len(t, mail.sent, 1)
}

func TestConsumerKeepsNotificationWhenEmailFails(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	vendor := dbtest.Vendor(t, db, "GH", 5.6, -0.19)
	c := newTestConsumer(t, repo, &recordingMailer{err: errors.New("smtp down")})

	msg := message(t, enums.EventOrderVendorNotification, uuid.New(), payloads.VendorOrderNotificationEvent{
		OrderID:  uuid.New(),
		VendorID: vendor.ID,
	})
	assert.True(t, c.process(t.Context(), msg).ack)
	assert.Len(t, listFor(t, repo, vendor.ID), 1)
}

func TestConsumerDropsNotificationForMissingVendor(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	mail := &recordingMailer{}
	c := newTestConsumer(t, repo, mail)
	vendorID := uuid.New()

	msg := message(t, enums.EventOrderVendorNotification, uuid.New(), payloads.VendorOrderNotificationEvent{
		OrderID:  uuid.New(),
		VendorID: vendorID,
	})
	assert.True(t, c.process(t.Context(), msg).ack)
	assert.Empty(t, listFor(t, repo, vendorID))
	assert.Empty(t, mail.sent)
}

func TestConsumerCreatesPayoutNotifications(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	vendor := dbtest.Vendor(t, db, "GH", 5.6, -0.19)
	c := newTestConsumer(t, repo, nil)

	success := payloads.PayoutResultEvent{
		PayoutID:      uuid.New(),
		VendorID:      vendor.ID,
		Status:        enums.PayoutStatusSuccess,
		Amount:        decimal.RequireFromString("144"),
		OrderIDs:      []uuid.UUID{uuid.New(), uuid.New()},
		TransactionID: "TRF_123",
	}
	failed := payloads.PayoutResultEvent{
		PayoutID:     uuid.New(),
		VendorID:     vendor.ID,
		Status:       enums.PayoutStatusFailed,
		Amount:       decimal.RequireFromString("20.5"),
		OrderIDs:     []uuid.UUID{uuid.New()},
		ErrorMessage: "account name mismatch",
	}
	assert.True(t, c.process(t.Context(), message(t, enums.EventPayoutResult, uuid.New(), success)).ack)
	assert.True(t, c.process(t.Context(), message(t, enums.EventPayoutResult, uuid.New(), failed)).ack)

	rows := listFor(t, repo, vendor.ID)
	require.Len(t, rows, 2)
	byTitle := map[string]string{}
	for _, row := range rows {
		assert.Equal(t, enums.NotificationTypePayoutResult, row.Type)
		byTitle[row.Title] = row.Message
	}
	assert.Equal(t, "A payout of 144.00 for 2 order(s) is on its way. Reference: TRF_123.", byTitle["Payout sent"])
	assert.Equal(t, "A payout of 20.50 for 1 order(s) could not be completed. Reason: account name mismatch", byTitle["Payout failed"])
}

func TestConsumerNacksAndReleasesOnStorageFailure(t *testing.T) {
	db := dbtest.Open(t)
	vendor := dbtest.Vendor(t, db, "GH", 5.6, -0.19)
	repo := NewRepository(db)
	c := newTestConsumer(t, failingStore{store: repo}, nil)
	msg := message(t, enums.EventPayoutResult, uuid.New(), payloads.PayoutResultEvent{
		VendorID: vendor.ID,
		Status:   enums.PayoutStatusSuccess,
	})

	assert.True(t, c.process(t.Context(), msg).nack)

	c.repo = repo
	assert.True(t, c.process(t.Context(), msg).ack)
	assert.Len(t, listFor(t, repo, vendor.ID), 1)
}

func TestConsumerAcksUnrelatedAndMalformedMessages(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	c := newTestConsumer(t, repo, nil)

	other := message(t, enums.EventPaymentVerified, uuid.New(), map[string]string{"k": "v"})
	assert.True(t, c.process(t.Context(), other).ack)

	broken := &pubsub.Message{
		ID:         "broken",
		Data:       []byte("{"),
		Attributes: map[string]string{"event_type": string(enums.EventPayoutResult)},
	}
	assert.True(t, c.process(t.Context(), broken).ack)
}

func TestNewConsumerRequiresDependencies(t *testing.T) {
	_, err := NewConsumer(nil, nil, nil, nil, logger.Nop())
	require.Error(t, err)
}
