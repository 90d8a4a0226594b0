// Package eip3009 builds and signs EIP-3009 TransferWithAuthorization
// messages: off-chain, time-bounded, nonce-scoped transfer authorizations
// verified by the token contract or a facilitator.
package eip3009

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// AuthorizationWindow is how long an authorization stays valid after it is
// built. Fixed policy; retries never extend it.
const AuthorizationWindow = 300 * time.Second

// Authorization is an unsigned TransferWithAuthorization message.
// Timestamps are whole seconds since epoch; the verifying contract rejects
// millisecond values as far-future or not-yet-valid.
type Authorization struct {
	From        common.Address
	To          common.Address
	Value       *big.Int
	ValidAfter  *big.Int
	ValidBefore *big.Int
	Nonce       [32]byte
}

// Domain is the EIP-712 signing domain. Every field must exactly match what
// the verifying contract expects; a mismatch yields a well-formed signature
// that verification rejects, with no way to detect it locally.
type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// CreateAuthorization builds a fresh authorization for a transfer of value
// base units from from to to. The authorization is valid immediately
// (validAfter is 0) and expires AuthorizationWindow from now. The nonce is
// 32 bytes of cryptographically secure randomness, never reused; nonce
// freshness is the anti-replay guarantee the verifier relies on.
func CreateAuthorization(from, to common.Address, value *big.Int) (*Authorization, error) {
	nonce, err := GenerateNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	validBefore := time.Now().Add(AuthorizationWindow).Unix()

	return &Authorization{
		From:        from,
		To:          to,
		Value:       new(big.Int).Set(value),
		ValidAfter:  big.NewInt(0),
		ValidBefore: big.NewInt(validBefore),
		Nonce:       nonce,
	}, nil
}

// GenerateNonce returns 32 bytes from the cryptographically secure source.
func GenerateNonce() ([32]byte, error) {
	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nonce, err
	}
	return nonce, nil
}

// NonceHex renders a nonce as 0x + 64 hex chars, the wire form.
func NonceHex(nonce [32]byte) string {
	return "0x" + hex.EncodeToString(nonce[:])
}

// DigestAuthorization computes the EIP-712 digest of auth under domain:
// keccak256(0x19 0x01 || domainSeparator || structHash) over the fixed
// TransferWithAuthorization type schema.
func DigestAuthorization(domain Domain, auth *Authorization) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"TransferWithAuthorization": []apitypes.Type{
				{Name: "from", Type: "address"},
				{Name: "to", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "validAfter", Type: "uint256"},
				{Name: "validBefore", Type: "uint256"},
				{Name: "nonce", Type: "bytes32"},
			},
		},
		PrimaryType: "TransferWithAuthorization",
		Domain: apitypes.TypedDataDomain{
			Name:              domain.Name,
			Version:           domain.Version,
			ChainId:           (*math.HexOrDecimal256)(domain.ChainID),
			VerifyingContract: domain.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"from":        auth.From.Hex(),
			"to":          auth.To.Hex(),
			"value":       (*math.HexOrDecimal256)(auth.Value),
			"validAfter":  (*math.HexOrDecimal256)(auth.ValidAfter),
			"validBefore": (*math.HexOrDecimal256)(auth.ValidBefore),
			"nonce":       common.BytesToHash(auth.Nonce[:]).Hex(),
		},
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}

	messageHash, err := typedData.HashStruct("TransferWithAuthorization", typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash message: %w", err)
	}

	rawData := append([]byte{0x19, 0x01}, append(domainSeparator, messageHash...)...)
	return crypto.Keccak256(rawData), nil
}

// SignAuthorization signs the EIP-712 digest of auth under domain with priv.
// The returned signature is 0x + 130 hex chars with v normalized to 27/28.
// Signing is deterministic for a fixed message and key.
func SignAuthorization(priv *ecdsa.PrivateKey, domain Domain, auth *Authorization) (string, error) {
	digest, err := DigestAuthorization(domain, auth)
	if err != nil {
		return "", err
	}

	signature, err := crypto.Sign(digest, priv)
	if err != nil {
		return "", fmt.Errorf("failed to sign authorization: %w", err)
	}

	signature[64] += 27

	return "0x" + hex.EncodeToString(signature), nil
}
