package product

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// OptionSet is every delivery option linked to one product.
type OptionSet []models.ProductDeliveryOption

// Find returns the linked option with optionID.
func (s OptionSet) Find(optionID uuid.UUID) *models.DeliveryOption {
	for i := range s {
		if s[i].DeliveryOptionID == optionID && s[i].DeliveryOption != nil {
			return s[i].DeliveryOption
		}
	}
	return nil
}

// Default returns the default option for the variant, falling back to the
// product-level default. An empty scope matches any scope.
func (s OptionSet) Default(variantID *uuid.UUID, scope enums.DeliveryScope) *models.DeliveryOption {
	var productLevel *models.DeliveryOption
	for i := range s {
		link := s[i]
		if !link.IsDefault || link.DeliveryOption == nil {
			continue
		}
		if scope != "" && link.DeliveryOption.Scope != scope {
			continue
		}
		switch {
		case variantID != nil && link.VariantID != nil && *link.VariantID == *variantID:
			return link.DeliveryOption
		case link.VariantID == nil && productLevel == nil:
			productLevel = link.DeliveryOption
		}
	}
	return productLevel
}

// ByScope lists the distinct options with the given scope.
func (s OptionSet) ByScope(scope enums.DeliveryScope) []models.DeliveryOption {
	seen := map[uuid.UUID]bool{}
	out := []models.DeliveryOption{}
	for _, link := range s {
		if link.DeliveryOption == nil || link.DeliveryOption.Scope != scope || seen[link.DeliveryOptionID] {
			continue
		}
		seen[link.DeliveryOptionID] = true
		out = append(out, *link.DeliveryOption)
	}
	return out
}
