// Package x402 implements the buyer side of the x402 pay-per-call protocol
// for Cronos networks.
//
// A server protecting a resource answers an unauthenticated call with
// HTTP 402 and machine-readable payment terms. This package parses those
// terms, builds and signs a single-use EIP-3009 TransferWithAuthorization
// message, frames it as the x402 version 1 wire credential, and retries the
// call once with the credential in the X-PAYMENT header. Spending is bounded
// by a shared Budget ledger.
//
// Import path: github.com/ismail-169/cronos-mcp
package x402

import (
	"fmt"
	"math/big"
	"regexp"
)

// X402Version is the protocol version this package speaks.
const X402Version = 1

// SchemeExact is the only payment scheme supported: the client authorizes
// exactly the amount the server asks for.
const SchemeExact = "exact"

var evmAddressRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// PaymentRequirements are the payment terms carried in a 402 response body.
// They arrive from an untrusted server and must pass Validate before any
// signing happens.
type PaymentRequirements struct {
	// Scheme is the payment scheme identifier. Servers may omit it, in
	// which case it defaults to "exact".
	Scheme string `json:"scheme,omitempty"`

	// Network is the network identifier the payment must settle on
	// (e.g. "cronos-testnet").
	Network string `json:"network"`

	// Asset is the token contract address the payment is denominated in.
	Asset string `json:"asset"`

	// PayTo is the recipient address.
	PayTo string `json:"payTo"`

	// MaxAmountRequired is the charge in base units, as a decimal string.
	MaxAmountRequired string `json:"maxAmountRequired"`

	// Resource optionally names the protected resource.
	Resource string `json:"resource,omitempty"`

	// Description is an optional human-readable description.
	Description string `json:"description,omitempty"`

	// Extra carries scheme-specific extension fields unmodified.
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// Validate checks that the terms carry every field the payment path needs
// and that each parses as its expected type. All failures wrap
// ErrInvalidTerms.
func (r *PaymentRequirements) Validate() error {
	if r.Network == "" {
		return fmt.Errorf("%w: missing network", ErrInvalidTerms)
	}
	if r.Asset == "" {
		return fmt.Errorf("%w: missing asset", ErrInvalidTerms)
	}
	if !evmAddressRegex.MatchString(r.Asset) {
		return fmt.Errorf("%w: malformed asset address %q", ErrInvalidTerms, r.Asset)
	}
	if r.PayTo == "" {
		return fmt.Errorf("%w: missing payTo", ErrInvalidTerms)
	}
	if !evmAddressRegex.MatchString(r.PayTo) {
		return fmt.Errorf("%w: malformed payTo address %q", ErrInvalidTerms, r.PayTo)
	}
	if r.MaxAmountRequired == "" {
		return fmt.Errorf("%w: missing maxAmountRequired", ErrInvalidTerms)
	}
	if _, err := r.Amount(); err != nil {
		return err
	}
	if r.Scheme != "" && r.Scheme != SchemeExact {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidTerms, r.Scheme)
	}
	return nil
}

// Amount parses MaxAmountRequired as a non-negative integer in base units.
func (r *PaymentRequirements) Amount() (*big.Int, error) {
	amount, ok := new(big.Int).SetString(r.MaxAmountRequired, 10)
	if !ok {
		return nil, fmt.Errorf("%w: maxAmountRequired %q is not an integer", ErrInvalidTerms, r.MaxAmountRequired)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("%w: maxAmountRequired %q is negative", ErrInvalidTerms, r.MaxAmountRequired)
	}
	return amount, nil
}

// SchemeOrDefault returns the declared scheme, or "exact" when the server
// left it out.
func (r *PaymentRequirements) SchemeOrDefault() string {
	if r.Scheme == "" {
		return SchemeExact
	}
	return r.Scheme
}

// PaymentRequired is the JSON body of a 402 response.
type PaymentRequired struct {
	// Error is an optional human-readable message from the server.
	Error string `json:"error,omitempty"`

	// PaymentRequirements are the terms the client must satisfy.
	PaymentRequirements PaymentRequirements `json:"paymentRequirements"`
}

// ExactEVMPayload is the signed authorization as it appears on the wire.
// Field shapes are fixed by the protocol: value is a decimal string, the
// validity bounds are JSON numbers in whole seconds, nonce is 0x + 64 hex
// chars and signature 0x + 130 hex chars.
type ExactEVMPayload struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  int64  `json:"validAfter"`
	ValidBefore int64  `json:"validBefore"`
	Nonce       string `json:"nonce"`
	Signature   string `json:"signature"`
	Asset       string `json:"asset"`
}

// PaymentPayload is the complete wire credential. Base64-encoding its JSON
// form yields the X-PAYMENT header value.
type PaymentPayload struct {
	X402Version int             `json:"x402Version"`
	Scheme      string          `json:"scheme"`
	Network     string          `json:"network"`
	Payload     ExactEVMPayload `json:"payload"`
}

// FormatBaseUnits renders an amount of base units as a decimal string with
// the given number of decimals, e.g. 1500000 with 6 decimals -> "1.500000".
func FormatBaseUnits(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	rat := new(big.Rat).SetInt(value)
	scale := new(big.Rat).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	rat.Quo(rat, scale)
	return rat.FloatString(int(decimals))
}
