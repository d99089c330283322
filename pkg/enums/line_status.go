package enums

import "fmt"

// LineStatus mirrors a subset of OrderStatus for a single order line.
type LineStatus string

const (
	LineStatusPending    LineStatus = "pending"
	LineStatusProcessing LineStatus = "processing"
	LineStatusShipped    LineStatus = "shipped"
	LineStatusDelivered  LineStatus = "delivered"
	LineStatusCanceled   LineStatus = "canceled"
	// LineStatusFailed marks a line whose stock could not be reserved at order time.
	LineStatusFailed LineStatus = "failed"
)

var validLineStatuses = []LineStatus{
	LineStatusPending,
	LineStatusProcessing,
	LineStatusShipped,
	LineStatusDelivered,
	LineStatusCanceled,
	LineStatusFailed,
}

// String implements fmt.Stringer.
func (l LineStatus) String() string {
	return string(l)
}

// IsValid reports whether the value is a known LineStatus.
func (l LineStatus) IsValid() bool {
	for _, candidate := range validLineStatuses {
		if candidate == l {
			return true
		}
	}
	return false
}

// LineStatusFor maps an order status onto the line status it propagates.
func LineStatusFor(status OrderStatus) LineStatus {
	return LineStatus(status)
}

// ParseLineStatus converts raw input into a LineStatus.
func ParseLineStatus(value string) (LineStatus, error) {
	for _, candidate := range validLineStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid line status %q", value)
}
