// Package evm implements the x402 Signer capability over an ECDSA
// secp256k1 key for EIP-3009 capable tokens.
package evm

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	x402 "github.com/ismail-169/cronos-mcp"
	"github.com/ismail-169/cronos-mcp/internal/eip3009"
)

// Signer holds a private key and the network profile it signs for.
// It has no mutable state after construction and is safe for concurrent use.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	profile    x402.NetworkProfile
	maxAmount  *big.Int
}

// Option configures a Signer.
type Option func(*Signer) error

// NewSigner creates a signer for profile from a hex-encoded private key.
// The 0x prefix is optional. Key material is used only for signing.
func NewSigner(profile x402.NetworkProfile, privateKeyHex string, opts ...Option) (*Signer, error) {
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")
	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, x402.ErrInvalidKey
	}
	return NewSignerFromKey(profile, privateKey, opts...)
}

// NewSignerFromKey creates a signer for profile from an existing key.
func NewSignerFromKey(profile x402.NetworkProfile, key *ecdsa.PrivateKey, opts ...Option) (*Signer, error) {
	if key == nil {
		return nil, x402.ErrInvalidKey
	}

	s := &Signer{
		privateKey: key,
		address:    crypto.PubkeyToAddress(key.PublicKey),
		profile:    profile,
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// WithMaxAmount caps the amount this signer will authorize per call, in base
// units. This is a per-call limit, distinct from the cumulative Budget.
func WithMaxAmount(amount *big.Int) Option {
	return func(s *Signer) error {
		s.maxAmount = new(big.Int).Set(amount)
		return nil
	}
}

// Address returns the payer address as a 0x-prefixed hex string.
func (s *Signer) Address() string {
	return s.address.Hex()
}

// Scheme returns the payment scheme this signer implements.
func (s *Signer) Scheme() string {
	return x402.SchemeExact
}

// Profile returns the network profile this signer signs for.
func (s *Signer) Profile() x402.NetworkProfile {
	return s.profile
}

// MaxAmount returns the per-call limit, or nil if unset.
func (s *Signer) MaxAmount() *big.Int {
	if s.maxAmount == nil {
		return nil
	}
	return new(big.Int).Set(s.maxAmount)
}

// CanSign reports whether the terms name this signer's scheme and network.
func (s *Signer) CanSign(requirements *x402.PaymentRequirements) bool {
	if requirements == nil {
		return false
	}
	if requirements.SchemeOrDefault() != x402.SchemeExact {
		return false
	}
	return requirements.Network == s.profile.Network
}

// Sign validates the terms, builds a fresh authorization for the required
// amount, signs it under the profile's EIP-712 domain with the terms' asset
// as the verifying contract, and assembles the wire credential.
func (s *Signer) Sign(requirements *x402.PaymentRequirements) (*x402.PaymentPayload, error) {
	if err := requirements.Validate(); err != nil {
		return nil, err
	}
	if !s.CanSign(requirements) {
		return nil, fmt.Errorf("%w: signer is configured for %s", x402.ErrInvalidTerms, s.profile.Network)
	}

	amount, err := requirements.Amount()
	if err != nil {
		return nil, err
	}
	if s.maxAmount != nil && amount.Cmp(s.maxAmount) > 0 {
		return nil, fmt.Errorf("%w: %s > %s", x402.ErrAmountExceeded, amount, s.maxAmount)
	}

	auth, err := eip3009.CreateAuthorization(s.address, common.HexToAddress(requirements.PayTo), amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", x402.ErrSigningFailed, err)
	}

	domain := eip3009.Domain{
		Name:              s.profile.DomainName,
		Version:           s.profile.DomainVersion,
		ChainID:           big.NewInt(s.profile.ChainID),
		VerifyingContract: common.HexToAddress(requirements.Asset),
	}

	signature, err := eip3009.SignAuthorization(s.privateKey, domain, auth)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", x402.ErrSigningFailed, err)
	}

	return &x402.PaymentPayload{
		X402Version: x402.X402Version,
		Scheme:      requirements.SchemeOrDefault(),
		Network:     requirements.Network,
		Payload: x402.ExactEVMPayload{
			From:        s.address.Hex(),
			To:          common.HexToAddress(requirements.PayTo).Hex(),
			Value:       amount.String(),
			ValidAfter:  auth.ValidAfter.Int64(),
			ValidBefore: auth.ValidBefore.Int64(),
			Nonce:       eip3009.NonceHex(auth.Nonce),
			Signature:   signature,
			Asset:       requirements.Asset,
		},
	}, nil
}
