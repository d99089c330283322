package product

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/fulfillment-backend/internal/delivery"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// LineItem builds the pricing input for one cart or order line. A selected
// option that is not linked to the product is ignored in favor of the default.
func LineItem(p *models.Product, variantID *uuid.UUID, quantity int, selected *uuid.UUID, opts OptionSet) delivery.LineItem {
	item := delivery.LineItem{
		ProductID: p.ID,
		VariantID: variantID,
		Title:     p.Title,
		VendorID:  p.VendorID,
		Quantity:  quantity,
		WeightKG:  p.WeightKG,
		VolumeM3:  p.VolumeM3,
	}
	if p.Vendor != nil {
		item.VendorCountry = p.Vendor.ShipFromCountry
		item.VendorCoords = delivery.CoordinatesFrom(p.Vendor.Latitude, p.Vendor.Longitude)
	}
	if selected != nil {
		item.Option = opts.Find(*selected)
	}
	if item.Option == nil {
		item.Option = opts.Default(variantID, "")
	}
	item.DefaultInternational = opts.Default(variantID, enums.DeliveryScopeInternational)
	return item
}
