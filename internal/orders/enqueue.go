package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox/payloads"
)

// JobPaymentVerified is the job type that creates an order from a payment.
const JobPaymentVerified = string(enums.EventPaymentVerified)

// Enqueuer hands jobs to the worker through the outbox.
type Enqueuer struct {
	tx     txRunner
	outbox outboxEmitter
	logg   *logger.Logger
}

// NewEnqueuer builds an outbox-backed job enqueuer.
func NewEnqueuer(tx txRunner, emitter outboxEmitter, logg *logger.Logger) (*Enqueuer, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Enqueuer{tx: tx, outbox: emitter, logg: logg}, nil
}

// PaymentJobID is the stable job id for a payment reference, so repeated
// webhook deliveries enqueue one job.
func PaymentJobID(reference string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("payment:"+reference))
}

// Enqueue records the job in the outbox and returns its id.
func (e *Enqueuer) Enqueue(ctx context.Context, jobType string, payload any) (uuid.UUID, error) {
	if jobType != JobPaymentVerified {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported job type %q", jobType))
	}
	var event payloads.PaymentVerifiedEvent
	switch v := payload.(type) {
	case payloads.PaymentVerifiedEvent:
		event = v
	case *payloads.PaymentVerifiedEvent:
		if v == nil {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "payload required")
		}
		event = *v
	default:
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unexpected payload %T", payload))
	}
	if err := validate.Struct(event); err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment event")
	}

	jobID := PaymentJobID(event.PaymentReference)
	var created bool
	err := e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		created, err = e.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentVerified,
			AggregateType: enums.AggregatePayment,
			AggregateID:   jobID,
			Actor:         &outbox.ActorRef{OwnerID: &event.OwnerID},
			Data:          event,
		})
		return err
	})
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "enqueue payment job")
	}

	ctx = e.logg.WithFields(e.logg.WithPaymentReference(ctx, event.PaymentReference), map[string]any{"job_id": jobID.String(), "duplicate": !created})
	e.logg.Info(ctx, "payment job enqueued")
	return jobID, nil
}
