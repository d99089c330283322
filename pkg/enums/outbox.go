package enums

import "fmt"

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregatePayment     OutboxAggregateType = "payment"
	AggregateOrderVendor OutboxAggregateType = "order_vendor"
	AggregatePayout      OutboxAggregateType = "payout"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregatePayment,
	AggregateOrderVendor,
	AggregatePayout,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names an outbox event.
type OutboxEventType string

const (
	EventPaymentVerified         OutboxEventType = "payment.verified"
	EventOrderVendorNotification OutboxEventType = "order.vendor_notification"
	EventPayoutResult            OutboxEventType = "payout.result"
)

var validOutboxEventTypes = []OutboxEventType{
	EventPaymentVerified,
	EventOrderVendorNotification,
	EventPayoutResult,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
