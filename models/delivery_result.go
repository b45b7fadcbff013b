package models

import (
	"time"

	"github.com/gofrs/uuid"
)

// DeliveryOutcome classifies a single delivery attempt.
type DeliveryOutcome string

const (
	// OutcomeDelivered means the push service acknowledged the message.
	OutcomeDelivered DeliveryOutcome = "delivered"
	// OutcomeFailed means a transport or protocol error that may be transient.
	OutcomeFailed DeliveryOutcome = "failed"
	// OutcomeGone means the push service reported the endpoint as expired or
	// unsubscribed; the subscription self-heals out of the registry.
	OutcomeGone DeliveryOutcome = "gone"
)

// DeliveryResult is the per-subscription outcome of a dispatch.
type DeliveryResult struct {
	Endpoint string          `json:"endpoint"`
	Outcome  DeliveryOutcome `json:"outcome"`
	Reason   string          `json:"reason,omitempty"`
}

// DispatchSummary is published on the event bus after every dispatch, for
// the diagnostics event stream.
type DispatchSummary struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Total     int       `json:"total"`
	Delivered int       `json:"delivered"`
	Failed    int       `json:"failed"`
	Gone      int       `json:"gone"`
	SentAt    time.Time `json:"sentAt"`
}
