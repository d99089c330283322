package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// Service defines operations that record ledger events.
type Service interface {
	WithTx(tx *gorm.DB) Service
	RecordEvent(ctx context.Context, input RecordLedgerEventInput) (*models.LedgerEvent, error)
	HasEvent(ctx context.Context, orderID uuid.UUID, eventType enums.LedgerEventType) (bool, error)
}

type service struct {
	repo Repository
}

// RecordLedgerEventInput captures the immutable data a ledger event requires.
type RecordLedgerEventInput struct {
	OrderID     *uuid.UUID            `json:"order_id,omitempty"`
	VendorID    *uuid.UUID            `json:"vendor_id,omitempty"`
	PayoutID    *uuid.UUID            `json:"payout_id,omitempty"`
	Type        enums.LedgerEventType `json:"type"`
	AmountMinor int64                 `json:"amount_minor"`
	Metadata    json.RawMessage       `json:"metadata"`
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{repo: s.repo.WithTx(tx)}
}

func (s *service) RecordEvent(ctx context.Context, input RecordLedgerEventInput) (*models.LedgerEvent, error) {
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("invalid ledger event type %q", input.Type)
	}
	if input.AmountMinor < 0 {
		return nil, fmt.Errorf("ledger amount must not be negative")
	}
	switch input.Type {
	case enums.LedgerEventTypePaymentCaptured, enums.LedgerEventTypeRefund:
		if input.OrderID == nil || *input.OrderID == uuid.Nil {
			return nil, fmt.Errorf("order id is required")
		}
	case enums.LedgerEventTypeVendorPayout:
		if input.VendorID == nil || *input.VendorID == uuid.Nil {
			return nil, fmt.Errorf("vendor id is required")
		}
		if input.PayoutID == nil || *input.PayoutID == uuid.Nil {
			return nil, fmt.Errorf("payout id is required")
		}
	}

	event := &models.LedgerEvent{
		OrderID:     input.OrderID,
		VendorID:    input.VendorID,
		PayoutID:    input.PayoutID,
		Type:        input.Type,
		AmountMinor: input.AmountMinor,
		Metadata:    input.Metadata,
	}

	if err := s.repo.Create(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *service) HasEvent(ctx context.Context, orderID uuid.UUID, eventType enums.LedgerEventType) (bool, error) {
	if orderID == uuid.Nil {
		return false, fmt.Errorf("order id is required")
	}
	if !eventType.IsValid() {
		return false, fmt.Errorf("invalid ledger event type %q", eventType)
	}

	events, err := s.repo.ListByOrderID(ctx, orderID)
	if err != nil {
		return false, err
	}
	for _, event := range events {
		if event.Type == eventType {
			return true, nil
		}
	}
	return false, nil
}
