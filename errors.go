package x402

import "errors"

// Sentinel errors for the payment flow.
var (
	// ErrInvalidTerms indicates the 402 body was malformed or incomplete.
	ErrInvalidTerms = errors.New("x402: invalid payment terms")

	// ErrBudgetExceeded indicates the prospective charge would breach the
	// budget ceiling.
	ErrBudgetExceeded = errors.New("x402: budget exceeded")

	// ErrSigningFailed indicates the cryptographic signing adapter failed.
	ErrSigningFailed = errors.New("x402: payment signing failed")

	// ErrPaymentRetryFailed indicates the server rejected the paid retry.
	ErrPaymentRetryFailed = errors.New("x402: paid retry rejected")

	// ErrTransportFailure indicates a connection or timeout error at
	// either phase of the call.
	ErrTransportFailure = errors.New("x402: transport failure")

	// ErrAmountExceeded indicates the charge exceeds the signer's
	// per-call limit.
	ErrAmountExceeded = errors.New("x402: payment amount exceeds per-call limit")

	// ErrInvalidKey indicates an invalid private key.
	ErrInvalidKey = errors.New("x402: invalid private key")

	// ErrUnknownNetwork indicates an unrecognized network selector.
	ErrUnknownNetwork = errors.New("x402: unknown network")

	// ErrMalformedHeader indicates an X-PAYMENT header that does not
	// decode to a payment payload.
	ErrMalformedHeader = errors.New("x402: malformed payment header")
)

// ErrorCode classifies payment failures for programmatic handling.
type ErrorCode string

const (
	// ErrCodeInvalidTerms indicates malformed or incomplete payment terms.
	ErrCodeInvalidTerms ErrorCode = "INVALID_TERMS"

	// ErrCodeBudgetExceeded indicates the charge would breach the ceiling.
	ErrCodeBudgetExceeded ErrorCode = "BUDGET_EXCEEDED"

	// ErrCodeSigningFailed indicates the signing adapter failed.
	ErrCodeSigningFailed ErrorCode = "SIGNING_FAILED"

	// ErrCodePaymentRetryFailed indicates the server rejected the paid retry.
	ErrCodePaymentRetryFailed ErrorCode = "PAYMENT_RETRY_FAILED"

	// ErrCodeTransportFailure indicates a network-level fault.
	ErrCodeTransportFailure ErrorCode = "TRANSPORT_FAILURE"
)

// PaymentError carries structured context about a payment failure: the
// failure category, the terms or amounts involved, and the underlying cause.
type PaymentError struct {
	// Code is the failure category.
	Code ErrorCode

	// Message is the human-readable error message.
	Message string

	// Details contains additional context (amount, status, body, ...).
	Details map[string]interface{}

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *PaymentError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *PaymentError) Unwrap() error {
	return e.Err
}

// NewPaymentError creates a PaymentError with the given code and message.
func NewPaymentError(code ErrorCode, message string, err error) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// WithDetails adds additional context to the error.
func (e *PaymentError) WithDetails(key string, value interface{}) *PaymentError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}
