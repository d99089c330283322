package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox/payloads"
)

func TestDecoderRegistry(t *testing.T) {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventPayoutResult, 1, func(payload json.RawMessage) (any, error) {
		var decoded map[string]string
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return nil, err
		}
		return decoded, nil
	})

	output, err := reg.Decode(enums.EventPayoutResult, 1, json.RawMessage(`{"status":"success"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outMap, ok := output.(map[string]string); !ok || outMap["status"] != "success" {
		t.Fatalf("unexpected output %+v", output)
	}

	if _, err := reg.Decode(enums.EventPayoutResult, 2, nil); err == nil {
		t.Fatal("expected missing version to fail")
	}
}

func TestDecodeMessageTypedPayload(t *testing.T) {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventPaymentVerified, 1, JSONDecoder[payloads.PaymentVerifiedEvent]())

	ownerID := uuid.New()
	data, _ := json.Marshal(payloads.PaymentVerifiedEvent{OwnerID: ownerID, PaymentReference: "PAY-1"})
	eventID := uuid.New()
	raw, _ := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID.String(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})

	decoded, err := reg.DecodeMessage(enums.EventPaymentVerified, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.EventID != eventID {
		t.Fatalf("expected event id %s, got %s", eventID, decoded.EventID)
	}
	payload, ok := decoded.Payload.(*payloads.PaymentVerifiedEvent)
	if !ok || payload.OwnerID != ownerID || payload.PaymentReference != "PAY-1" {
		t.Fatalf("unexpected payload %+v", decoded.Payload)
	}
}

func TestDecodeMessageMalformedIsNonRetryable(t *testing.T) {
	reg := NewDecoderRegistry()
	_, err := reg.DecodeMessage(enums.EventPaymentVerified, []byte(`{not json`))
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error, got %v", err)
	}
}
