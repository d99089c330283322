package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/fulfillment-backend/api/responses"
	"github.com/angelmondragon/fulfillment-backend/api/validators"
	"github.com/angelmondragon/fulfillment-backend/internal/checkout"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
)

type quoteRequest struct {
	CouponID *uuid.UUID `json:"coupon_id,omitempty"`
}

type deliveryOptionRequest struct {
	ProductID        uuid.UUID `json:"product_id" validate:"required"`
	DeliveryOptionID uuid.UUID `json:"delivery_option_id" validate:"required"`
}

type defaultDeliveryOptionRequest struct {
	DeliveryOptionID uuid.UUID  `json:"delivery_option_id" validate:"required"`
	VariantID        *uuid.UUID `json:"variant_id,omitempty"`
}

// CheckoutQuote prices the caller's cart.
func CheckoutQuote(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		ownerID, err := userIDFromContext(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req quoteRequest
		if err := validators.DecodeOptionalJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		quote, err := svc.Quote(ctx, checkout.QuoteInput{OwnerID: ownerID, CouponID: req.CouponID})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}

// CartDeliveryOption sets the delivery option on the caller's cart lines for a product.
func CartDeliveryOption(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		ownerID, err := userIDFromContext(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req deliveryOptionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.SelectDeliveryOption(ctx, ownerID, req.ProductID, req.DeliveryOptionID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"product_id":         req.ProductID,
			"delivery_option_id": req.DeliveryOptionID,
		})
	}
}

// VendorDefaultDeliveryOption replaces the default option of a vendor's product or variant.
func VendorDefaultDeliveryOption(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		vendorID, err := vendorIDFromContext(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		productID, err := uuidParam(r, "productId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req defaultDeliveryOptionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.SetDefaultDeliveryOption(ctx, vendorID, productID, req.VariantID, req.DeliveryOptionID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"product_id":         productID,
			"variant_id":         req.VariantID,
			"delivery_option_id": req.DeliveryOptionID,
		})
	}
}
