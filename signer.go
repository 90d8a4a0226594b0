package x402

import "math/big"

// Signer creates signed payment payloads for one network. The concrete
// implementation lives in signers/evm; this interface is the capability the
// HTTP transport depends on. Implementations must be safe for concurrent use
// or document that calls are to be serialized.
type Signer interface {
	// Address returns the payer address as a 0x-prefixed hex string.
	Address() string

	// Scheme returns the payment scheme identifier (e.g. "exact").
	Scheme() string

	// CanSign reports whether this signer can satisfy the given terms.
	CanSign(requirements *PaymentRequirements) bool

	// Sign creates a signed PaymentPayload for the given terms. It fails
	// if the terms are invalid, the amount exceeds the signer's per-call
	// limit, or the cryptographic primitive errors.
	Sign(requirements *PaymentRequirements) (*PaymentPayload, error)

	// MaxAmount returns the per-call spending limit, or nil if unset.
	MaxAmount() *big.Int
}
