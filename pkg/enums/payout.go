package enums

import "fmt"

// PayoutStatus is the immutable outcome of one payout attempt.
type PayoutStatus string

const (
	PayoutStatusSuccess PayoutStatus = "success"
	PayoutStatusFailed  PayoutStatus = "failed"
)

// IsValid reports whether the value is a known PayoutStatus.
func (s PayoutStatus) IsValid() bool {
	return s == PayoutStatusSuccess || s == PayoutStatusFailed
}

// PayoutMethodType identifies the destination rail for vendor earnings.
type PayoutMethodType string

const (
	PayoutMethodBank PayoutMethodType = "bank"
	PayoutMethodMomo PayoutMethodType = "momo"
)

// IsValid reports whether the value is a known PayoutMethodType.
func (m PayoutMethodType) IsValid() bool {
	return m == PayoutMethodBank || m == PayoutMethodMomo
}

// ParsePayoutMethodType converts raw input into a PayoutMethodType.
func ParsePayoutMethodType(value string) (PayoutMethodType, error) {
	m := PayoutMethodType(value)
	if !m.IsValid() {
		return "", fmt.Errorf("invalid payout method %q", value)
	}
	return m, nil
}

// PayoutMethodStatus tracks verification of a vendor payout destination.
type PayoutMethodStatus string

const (
	PayoutMethodStatusPending  PayoutMethodStatus = "pending"
	PayoutMethodStatusVerified PayoutMethodStatus = "verified"
	PayoutMethodStatusRejected PayoutMethodStatus = "rejected"
)
