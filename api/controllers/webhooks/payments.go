package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/fulfillment-backend/api/responses"
	"github.com/angelmondragon/fulfillment-backend/api/validators"
	"github.com/angelmondragon/fulfillment-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox/payloads"
)

const (
	paymentSignatureHeader = "X-Paystack-Signature"
	chargeSuccessEvent     = "charge.success"
	maxPaymentBodyBytes    = 1 << 20
)

type jobEnqueuer interface {
	Enqueue(ctx context.Context, jobType string, payload any) (uuid.UUID, error)
}

type paymentWebhookEvent struct {
	Event string             `json:"event"`
	Data  paymentWebhookData `json:"data"`
}

type paymentWebhookData struct {
	Reference string                 `json:"reference" validate:"required,max=200"`
	Amount    int64                  `json:"amount" validate:"gte=0"`
	Status    string                 `json:"status"`
	IPAddress string                 `json:"ip_address,omitempty" validate:"omitempty,ip"`
	Metadata  paymentWebhookMetadata `json:"metadata"`
}

type paymentWebhookMetadata struct {
	OwnerID   uuid.UUID              `json:"owner_id" validate:"required"`
	AddressID uuid.UUID              `json:"address_id" validate:"required"`
	Lines     []payloads.PaymentLine `json:"lines" validate:"required,min=1,dive"`
}

// PaymentWebhook verifies a payment gateway callback and enqueues order
// creation. The job id is derived from the payment reference, so redelivered
// callbacks resolve to the same job.
func PaymentWebhook(secret string, enqueuer jobEnqueuer, logg *logger.Logger) http.HandlerFunc {
	if logg == nil {
		logg = logger.Nop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if enqueuer == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "job enqueuer unavailable"))
			return
		}
		if strings.TrimSpace(secret) == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment webhook secret not configured"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPaymentBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "request body too large"))
				return
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get(paymentSignatureHeader)
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "payment signature missing"))
			return
		}
		if !validators.VerifyHMACSHA512(payload, secret, sigHeader) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid payment signature"))
			return
		}

		var event paymentWebhookEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event"))
			return
		}

		if event.Event != chargeSuccessEvent || !strings.EqualFold(event.Data.Status, "success") {
			logg.Info(logg.WithFields(ctx, map[string]any{
				"event":  event.Event,
				"status": event.Data.Status,
			}), "payment webhook ignored")
			responses.WriteSuccess(w, map[string]string{"status": "ignored"})
			return
		}

		if err := validators.ValidateStruct(&event.Data); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		ctx = logg.WithPaymentReference(ctx, event.Data.Reference)
		jobID, err := enqueuer.Enqueue(ctx, orders.JobPaymentVerified, payloads.PaymentVerifiedEvent{
			OwnerID:          event.Data.Metadata.OwnerID,
			PaymentReference: event.Data.Reference,
			AmountMinor:      event.Data.Amount,
			AddressID:        event.Data.Metadata.AddressID,
			IP:               event.Data.IPAddress,
			Lines:            event.Data.Metadata.Lines,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		logg.Info(ctx, "payment webhook enqueued")
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]string{"job_id": jobID.String()})
	}
}
