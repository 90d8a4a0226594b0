package x402

import "time"

// PaymentEventType represents the type of payment event.
type PaymentEventType string

const (
	// PaymentEventAttempt indicates a payment is being attempted.
	PaymentEventAttempt PaymentEventType = "attempt"

	// PaymentEventSuccess indicates a payment succeeded and was committed.
	PaymentEventSuccess PaymentEventType = "success"

	// PaymentEventFailure indicates a payment failed and was rolled back.
	PaymentEventFailure PaymentEventType = "failure"
)

// PaymentEvent describes one step of a payment's lifecycle. Events exist for
// logging and monitoring; the payment flow does not depend on them.
type PaymentEvent struct {
	// Type is the event type (attempt, success, failure).
	Type PaymentEventType

	// Timestamp is when the event occurred.
	Timestamp time.Time

	// URL is the resource being paid for.
	URL string

	// Amount is the charge in base units.
	Amount string

	// Asset is the token contract address.
	Asset string

	// Network is the network identifier.
	Network string

	// Scheme is the payment scheme.
	Scheme string

	// Recipient is the payment recipient address.
	Recipient string

	// Payer is the paying address.
	Payer string

	// Error contains failure details (failure events only).
	Error error

	// Duration is the time from payment attempt to settlement of the
	// retried call.
	Duration time.Duration
}

// PaymentCallback handles payment events. Callbacks run synchronously inside
// the payment flow and should return quickly.
type PaymentCallback func(PaymentEvent)
