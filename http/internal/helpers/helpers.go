// Package helpers provides internal HTTP utilities for the x402 payment flow.
package helpers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	x402 "github.com/ismail-169/cronos-mcp"
	"github.com/ismail-169/cronos-mcp/encoding"
)

// ErrNilPayment is returned when payment is nil in BuildPaymentHeader.
var ErrNilPayment = errors.New("payment is nil")

// ParsePaymentTerms extracts and validates the payment terms from a 402
// response body. The body is consumed but not closed.
func ParsePaymentTerms(resp *http.Response) (*x402.PaymentRequirements, error) {
	if resp == nil || resp.Body == nil {
		return nil, x402.NewPaymentError(x402.ErrCodeInvalidTerms, "missing response or body", x402.ErrInvalidTerms)
	}

	var required x402.PaymentRequired
	if err := json.NewDecoder(resp.Body).Decode(&required); err != nil {
		return nil, x402.NewPaymentError(x402.ErrCodeInvalidTerms, "failed to decode 402 body", err)
	}

	terms := required.PaymentRequirements
	if err := terms.Validate(); err != nil {
		return nil, x402.NewPaymentError(x402.ErrCodeInvalidTerms, "invalid payment terms", err)
	}

	return &terms, nil
}

// BuildPaymentHeader creates the X-PAYMENT header value from a payload.
func BuildPaymentHeader(payment *x402.PaymentPayload) (string, error) {
	if payment == nil {
		return "", fmt.Errorf("BuildPaymentHeader: %w", ErrNilPayment)
	}
	encoded, err := encoding.EncodePayment(*payment)
	if err != nil {
		return "", fmt.Errorf("BuildPaymentHeader: encode payment: %w", err)
	}
	return encoded, nil
}

// ParsePaymentHeader decodes an X-PAYMENT header from a request. It exists
// for tests and tooling; servers do their own verification.
func ParsePaymentHeader(r *http.Request) (*x402.PaymentPayload, error) {
	paymentHeader := r.Header.Get("X-PAYMENT")
	if paymentHeader == "" {
		return nil, x402.ErrMalformedHeader
	}

	payment, err := encoding.DecodePayment(paymentHeader)
	if err != nil {
		return nil, err
	}

	if payment.X402Version != x402.X402Version {
		return nil, fmt.Errorf("%w: unsupported x402 version %d", x402.ErrMalformedHeader, payment.X402Version)
	}

	return &payment, nil
}
