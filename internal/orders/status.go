package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
)

// StatusService moves orders along pending → processing → shipped → delivered,
// or to canceled from any non-terminal state.
type StatusService interface {
	Transition(ctx context.Context, orderID uuid.UUID, next enums.OrderStatus) (*models.Order, error)
}

type statusService struct {
	repo      Repository
	tx        txRunner
	inventory Inventory
	logg      *logger.Logger
	now       func() time.Time
}

// NewStatusService builds the order status service.
func NewStatusService(repo Repository, tx txRunner, inventory Inventory, logg *logger.Logger) (StatusService, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("inventory required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &statusService{repo: repo, tx: tx, inventory: inventory, logg: logg, now: time.Now}, nil
}

func (s *statusService) Transition(ctx context.Context, orderID uuid.UUID, next enums.OrderStatus) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if !order.Status.CanTransitionTo(next) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status transition not allowed").
				WithDetails(map[string]any{"from": order.Status, "to": next})
		}

		rows, err := repo.UpdateOrderStatus(ctx, orderID, order.Status, next)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "order status changed concurrently")
		}

		stamps := map[string]any{}
		switch next {
		case enums.OrderStatusShipped:
			stamps["shipped_at"] = s.now().UTC()
		case enums.OrderStatusDelivered:
			stamps["delivered_at"] = s.now().UTC()
		case enums.OrderStatusCanceled:
			for _, line := range order.Lines {
				if line.Status == enums.LineStatusFailed {
					continue
				}
				if err := s.inventory.Release(ctx, tx, line.ProductID, line.VariantID, line.Quantity); err != nil {
					return err
				}
			}
		}
		if err := repo.UpdateLineStatuses(ctx, orderID, enums.LineStatusFor(next), stamps); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update line statuses")
		}

		updated, err = repo.FindOrder(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(s.logg.WithOrderID(ctx, orderID.String()), map[string]any{"status": next}), "order status changed")
	return updated, nil
}
