package enums

import "fmt"

// OutboxDLQErrorReason records why the publisher gave up on an outbox event.
type OutboxDLQErrorReason string

const (
	// OutboxDLQReasonUnroutable: the row names an unknown event type, a
	// mismatched aggregate, or carries a payload that does not decode.
	OutboxDLQReasonUnroutable OutboxDLQErrorReason = "unroutable"
	// OutboxDLQReasonRejected: Pub/Sub refused the message or no publisher
	// exists for its topic.
	OutboxDLQReasonRejected OutboxDLQErrorReason = "rejected"
	// OutboxDLQReasonMaxAttempts: transient publish failures used up the retry budget.
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
)

var validOutboxDLQErrorReasons = []OutboxDLQErrorReason{
	OutboxDLQReasonUnroutable,
	OutboxDLQReasonRejected,
	OutboxDLQReasonMaxAttempts,
}

func (r OutboxDLQErrorReason) String() string {
	return string(r)
}

// IsValid reports whether the value is a known reason.
func (r OutboxDLQErrorReason) IsValid() bool {
	for _, candidate := range validOutboxDLQErrorReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseOutboxDLQErrorReason converts raw input into OutboxDLQErrorReason.
func ParseOutboxDLQErrorReason(value string) (OutboxDLQErrorReason, error) {
	for _, candidate := range validOutboxDLQErrorReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox dlq error reason %q", value)
}
