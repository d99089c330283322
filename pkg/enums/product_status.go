package enums

// ProductStatus tracks catalog visibility of a product.
type ProductStatus string

const (
	ProductStatusDraft     ProductStatus = "draft"
	ProductStatusPublished ProductStatus = "published"
	ProductStatusDisabled  ProductStatus = "disabled"
)

// IsPurchasable reports whether the product can be ordered.
func (s ProductStatus) IsPurchasable() bool {
	return s == ProductStatusPublished
}
