package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/dbtest"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

type fakeRepository struct {
	createFn func(ctx context.Context, event *models.LedgerEvent) error
	events   []models.LedgerEvent
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) Create(ctx context.Context, event *models.LedgerEvent) error {
	if f.createFn != nil {
		return f.createFn(ctx, event)
	}
	return nil
}

func (f *fakeRepository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEvent, error) {
	return f.events, nil
}

func (f *fakeRepository) ExistsForPayout(ctx context.Context, payoutID uuid.UUID, eventType enums.LedgerEventType) (bool, error) {
	return false, nil
}

func ptr(id uuid.UUID) *uuid.UUID { return &id }

func TestService_RecordEvent(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	metadata := json.RawMessage(`{"payment_reference":"ref-1"}`)
	input := RecordLedgerEventInput{
		OrderID:     ptr(uuid.New()),
		Type:        enums.LedgerEventTypePaymentCaptured,
		AmountMinor: 425000,
		Metadata:    metadata,
	}

	var created *models.LedgerEvent
	repo.createFn = func(ctx context.Context, event *models.LedgerEvent) error {
		created = event
		return nil
	}

	got, err := svc.RecordEvent(context.Background(), input)
	if err != nil {
		t.Fatalf("RecordEvent error: %v", err)
	}
	if created == nil {
		t.Fatal("expected ledger event to be created")
	}
	if *created.OrderID != *input.OrderID || created.Type != input.Type || created.AmountMinor != input.AmountMinor {
		t.Fatalf("unexpected ledger event data: %+v", created)
	}
	if string(created.Metadata) != string(metadata) {
		t.Fatalf("metadata mismatch: %s", created.Metadata)
	}
	if got != created {
		t.Fatalf("service should return created event")
	}
}

func TestService_RecordEventValidation(t *testing.T) {
	svc, err := NewService(&fakeRepository{})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	tests := []struct {
		name  string
		input RecordLedgerEventInput
	}{
		{
			name:  "payment without order",
			input: RecordLedgerEventInput{Type: enums.LedgerEventTypePaymentCaptured, AmountMinor: 100},
		},
		{
			name:  "payout without vendor",
			input: RecordLedgerEventInput{Type: enums.LedgerEventTypeVendorPayout, PayoutID: ptr(uuid.New()), AmountMinor: 100},
		},
		{
			name:  "payout without payout id",
			input: RecordLedgerEventInput{Type: enums.LedgerEventTypeVendorPayout, VendorID: ptr(uuid.New()), AmountMinor: 100},
		},
		{
			name:  "negative amount",
			input: RecordLedgerEventInput{Type: enums.LedgerEventTypeRefund, OrderID: ptr(uuid.New()), AmountMinor: -1},
		},
		{
			name:  "invalid type",
			input: RecordLedgerEventInput{OrderID: ptr(uuid.New()), Type: enums.LedgerEventType("not_real")},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.RecordEvent(context.Background(), tc.input); err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
		})
	}
}

func TestService_RecordEventRepoError(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	expectedErr := errors.New("boom")
	repo.createFn = func(ctx context.Context, event *models.LedgerEvent) error {
		return expectedErr
	}

	if _, err := svc.RecordEvent(context.Background(), RecordLedgerEventInput{
		VendorID:    ptr(uuid.New()),
		PayoutID:    ptr(uuid.New()),
		Type:        enums.LedgerEventTypeVendorPayout,
		AmountMinor: 100,
	}); !errors.Is(err, expectedErr) {
		t.Fatalf("expected repo error to bubble up, got %v", err)
	}
}

func TestService_HasEvent(t *testing.T) {
	orderID := uuid.New()
	repo := &fakeRepository{events: []models.LedgerEvent{{OrderID: &orderID, Type: enums.LedgerEventTypePaymentCaptured}}}
	svc, _ := NewService(repo)

	ok, err := svc.HasEvent(context.Background(), orderID, enums.LedgerEventTypePaymentCaptured)
	if err != nil || !ok {
		t.Fatalf("expected payment_captured event, got %v %v", ok, err)
	}
	ok, err = svc.HasEvent(context.Background(), orderID, enums.LedgerEventTypeRefund)
	if err != nil || ok {
		t.Fatalf("unexpected refund event, got %v %v", ok, err)
	}
}

func TestRepository_PersistsEvents(t *testing.T) {
	db := dbtest.Open(t)
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	payoutID := uuid.New()
	err = db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.WithTx(tx).RecordEvent(context.Background(), RecordLedgerEventInput{
			VendorID:    ptr(uuid.New()),
			PayoutID:    &payoutID,
			Type:        enums.LedgerEventTypeVendorPayout,
			AmountMinor: 8000,
		})
		return err
	})
	if err != nil {
		t.Fatalf("record in tx: %v", err)
	}

	exists, err := NewRepository(db).ExistsForPayout(context.Background(), payoutID, enums.LedgerEventTypeVendorPayout)
	if err != nil || !exists {
		t.Fatalf("expected payout ledger event, got %v %v", exists, err)
	}
}
