package models

// All lists every persisted model, in dependency order. Used by test fixtures
// that AutoMigrate an in-memory database.
func All() []any {
	return []any{
		&Vendor{},
		&VendorPayoutMethod{},
		&Product{},
		&ProductVariant{},
		&ProductRegion{},
		&DeliveryOption{},
		&ProductDeliveryOption{},
		&Cart{},
		&CartLine{},
		&Address{},
		&Profile{},
		&Coupon{},
		&ClippedCoupon{},
		&Payment{},
		&Order{},
		&OrderVendor{},
		&OrderLine{},
		&OrderCreationFailure{},
		&Payout{},
		&PayoutOrder{},
		&LedgerEvent{},
		&Notification{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
