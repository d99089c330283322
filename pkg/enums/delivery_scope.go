package enums

import "fmt"

// DeliveryScope distinguishes domestic from cross-border delivery options.
type DeliveryScope string

const (
	DeliveryScopeLocal         DeliveryScope = "local"
	DeliveryScopeInternational DeliveryScope = "international"
)

// IsValid reports whether the value is a known DeliveryScope.
func (s DeliveryScope) IsValid() bool {
	return s == DeliveryScopeLocal || s == DeliveryScopeInternational
}

// ScopeFor returns the scope required to ship from one country to another.
func ScopeFor(shipFrom, destination string) DeliveryScope {
	if shipFrom != "" && destination != "" && shipFrom != destination {
		return DeliveryScopeInternational
	}
	return DeliveryScopeLocal
}

// ParseDeliveryScope converts raw input into a DeliveryScope.
func ParseDeliveryScope(value string) (DeliveryScope, error) {
	s := DeliveryScope(value)
	if !s.IsValid() {
		return "", fmt.Errorf("invalid delivery scope %q", value)
	}
	return s, nil
}
