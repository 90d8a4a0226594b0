package http

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	x402 "github.com/ismail-169/cronos-mcp"
	"github.com/ismail-169/cronos-mcp/http/internal/helpers"
	"github.com/ismail-169/cronos-mcp/internal/eip3009"
	"github.com/ismail-169/cronos-mcp/signers/evm"
)

// anvilKey is the Foundry/Anvil first default account private key.
const anvilKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestNewClient(t *testing.T) {
	client, err := NewClient()
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	if client == nil || client.Client == nil {
		t.Fatal("Expected non-nil client with underlying http.Client")
	}
}

func TestClient_Options(t *testing.T) {
	t.Run("WithSigner and WithBudget share one transport", func(t *testing.T) {
		signer := &mockSigner{}
		budget := x402.NewBudget(big.NewInt(1000))

		client, err := NewClient(WithSigner(signer), WithBudget(budget))
		if err != nil {
			t.Fatalf("Failed to create client: %v", err)
		}

		transport, ok := client.Transport.(*PaymentTransport)
		if !ok {
			t.Fatal("Expected PaymentTransport")
		}
		if transport.Signer != x402.Signer(signer) {
			t.Error("Expected signer to be set")
		}
		if transport.Budget != budget {
			t.Error("Expected budget to be set")
		}
	})

	t.Run("WithTimeout", func(t *testing.T) {
		client, err := NewClient(WithTimeout(30 * time.Second))
		if err != nil {
			t.Fatalf("Failed to create client: %v", err)
		}
		if client.Timeout != 30*time.Second {
			t.Errorf("Expected 30s timeout, got %v", client.Timeout)
		}

		if _, err := NewClient(WithTimeout(0)); err == nil {
			t.Error("Expected error for non-positive timeout")
		}
	})

	t.Run("WithPaymentCallbacks", func(t *testing.T) {
		cb := func(x402.PaymentEvent) {}
		client, err := NewClient(WithPaymentCallbacks(cb, nil, cb))
		if err != nil {
			t.Fatalf("Failed to create client: %v", err)
		}
		transport := client.Transport.(*PaymentTransport)
		if transport.OnPaymentAttempt == nil || transport.OnPaymentFailure == nil {
			t.Error("Expected attempt and failure callbacks to be set")
		}
		if transport.OnPaymentSuccess != nil {
			t.Error("Expected success callback to stay unset")
		}
	})

	t.Run("WithHTTPClient keeps the custom client", func(t *testing.T) {
		custom := &http.Client{Timeout: 5 * time.Second}
		client, err := NewClient(WithHTTPClient(custom), WithSigner(&mockSigner{}))
		if err != nil {
			t.Fatalf("Failed to create client: %v", err)
		}
		if client.Client != custom {
			t.Error("Expected custom http.Client to be used")
		}
		if _, ok := client.Transport.(*PaymentTransport); !ok {
			t.Error("Expected custom client's transport to be wrapped")
		}
	})
}

func TestClient_CallTool(t *testing.T) {
	t.Run("returns the result field", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/tools/get_price" {
				t.Errorf("Unexpected path %s", r.URL.Path)
			}
			if ct := r.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("Unexpected content type %s", ct)
			}
			var params map[string]string
			json.NewDecoder(r.Body).Decode(&params)
			if params["symbol"] != "CRO" {
				t.Errorf("Unexpected params %v", params)
			}
			fmt.Fprint(w, `{"result":{"price":"0.08"}}`)
		}))
		defer server.Close()

		client, err := NewClient()
		if err != nil {
			t.Fatalf("Failed to create client: %v", err)
		}

		result, err := client.CallTool(context.Background(), server.URL, "get_price", map[string]string{"symbol": "CRO"})
		if err != nil {
			t.Fatalf("CallTool failed: %v", err)
		}

		var out map[string]string
		if err := json.Unmarshal(result, &out); err != nil {
			t.Fatalf("Failed to decode result: %v", err)
		}
		if out["price"] != "0.08" {
			t.Errorf("Unexpected result %s", result)
		}
	})

	t.Run("returns whole body without result envelope", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"price":"0.08"}`)
		}))
		defer server.Close()

		client, _ := NewClient()
		result, err := client.CallTool(context.Background(), server.URL, "get_price", nil)
		if err != nil {
			t.Fatalf("CallTool failed: %v", err)
		}
		if !strings.Contains(string(result), `"price"`) {
			t.Errorf("Unexpected result %s", result)
		}
	})

	t.Run("surfaces non-2xx as transport failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusForbidden)
		}))
		defer server.Close()

		client, _ := NewClient()
		_, err := client.CallTool(context.Background(), server.URL, "get_price", nil)
		if err == nil {
			t.Fatal("Expected error for 403")
		}
		var perr *x402.PaymentError
		if !errors.As(err, &perr) {
			t.Fatalf("Expected *PaymentError, got %T", err)
		}
		if perr.Code != x402.ErrCodeTransportFailure {
			t.Errorf("Expected code %s, got %s", x402.ErrCodeTransportFailure, perr.Code)
		}
		if perr.Details["status"] != http.StatusForbidden {
			t.Errorf("Expected status detail 403, got %v", perr.Details["status"])
		}
	})

	t.Run("unwraps payment errors from the transport", func(t *testing.T) {
		terms := x402.PaymentRequirements{
			Network:           x402.NetworkCronosTestnet,
			Asset:             x402.CronosTestnet.AssetAddress,
			PayTo:             "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
			MaxAmountRequired: "1000",
		}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			write402(w, terms)
		}))
		defer server.Close()

		client, err := NewClient(
			WithSigner(&mockSigner{}),
			WithBudget(x402.NewBudget(big.NewInt(500))),
		)
		if err != nil {
			t.Fatalf("Failed to create client: %v", err)
		}

		_, err = client.CallTool(context.Background(), server.URL, "get_ohlcv", nil)
		var perr *x402.PaymentError
		if !errors.As(err, &perr) {
			t.Fatalf("Expected *PaymentError, got %T: %v", err, err)
		}
		if perr.Code != x402.ErrCodeBudgetExceeded {
			t.Errorf("Expected code %s, got %s", x402.ErrCodeBudgetExceeded, perr.Code)
		}
	})
}

// TestClient_EndToEnd pays a challenge with the real EVM signer; the server
// verifies the credential the way a facilitator would, by recovering the
// signer address from the EIP-712 digest.
func TestClient_EndToEnd(t *testing.T) {
	profile := x402.CronosTestnet
	payTo := "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	terms := x402.PaymentRequirements{
		Scheme:            "exact",
		Network:           profile.Network,
		Asset:             profile.AssetAddress,
		PayTo:             payTo,
		MaxAmountRequired: "1000",
	}

	signer, err := evm.NewSigner(profile, anvilKey)
	if err != nil {
		t.Fatalf("Failed to create signer: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-PAYMENT") == "" {
			write402(w, terms)
			return
		}

		payment, err := helpers.ParsePaymentHeader(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		p := payment.Payload
		value, ok := new(big.Int).SetString(p.Value, 10)
		if !ok {
			http.Error(w, "bad value", http.StatusBadRequest)
			return
		}

		var nonce [32]byte
		nonceBytes, err := hex.DecodeString(strings.TrimPrefix(p.Nonce, "0x"))
		if err != nil || len(nonceBytes) != 32 {
			http.Error(w, "bad nonce", http.StatusBadRequest)
			return
		}
		copy(nonce[:], nonceBytes)

		auth := &eip3009.Authorization{
			From:        common.HexToAddress(p.From),
			To:          common.HexToAddress(p.To),
			Value:       value,
			ValidAfter:  big.NewInt(p.ValidAfter),
			ValidBefore: big.NewInt(p.ValidBefore),
			Nonce:       nonce,
		}
		domain := eip3009.Domain{
			Name:              profile.DomainName,
			Version:           profile.DomainVersion,
			ChainID:           big.NewInt(profile.ChainID),
			VerifyingContract: common.HexToAddress(p.Asset),
		}

		digest, err := eip3009.DigestAuthorization(domain, auth)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		sigBytes, err := hex.DecodeString(strings.TrimPrefix(p.Signature, "0x"))
		if err != nil || len(sigBytes) != 65 {
			http.Error(w, "bad signature", http.StatusBadRequest)
			return
		}
		sigBytes[64] -= 27

		pub, err := crypto.SigToPub(digest, sigBytes)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if crypto.PubkeyToAddress(*pub) != common.HexToAddress(p.From) {
			http.Error(w, "signature does not recover to payer", http.StatusUnauthorized)
			return
		}

		fmt.Fprint(w, `{"result":{"ok":true}}`)
	}))
	defer server.Close()

	budget := x402.NewBudget(big.NewInt(1000000))
	client, err := NewClient(WithSigner(signer), WithBudget(budget))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	result, err := client.CallTool(context.Background(), server.URL, "get_ohlcv", map[string]string{"symbol": "BTC"})
	if err != nil {
		t.Fatalf("Paid call failed: %v", err)
	}
	if !strings.Contains(string(result), "true") {
		t.Errorf("Unexpected result %s", result)
	}
	if budget.Spent().Cmp(big.NewInt(1000)) != 0 {
		t.Errorf("Expected spent 1000, got %s", budget.Spent())
	}
}
