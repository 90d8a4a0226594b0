// Package http provides an HTTP client that pays for 402-protected
// resources automatically.
package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	x402 "github.com/ismail-169/cronos-mcp"
	"github.com/ismail-169/cronos-mcp/http/internal/helpers"
)

// maxErrorBodyBytes caps how much of a failed retry's body is captured into
// the surfaced error.
const maxErrorBodyBytes = 4 << 10

// PaymentTransport is an http.RoundTripper that drives the two-phase x402
// protocol: it sends the request, and when the server answers 402 with
// parseable terms it reserves budget, signs a payment authorization, and
// resends the identical request once with the credential in X-PAYMENT.
//
// At most one retry ever happens per request. Invalid terms and an exhausted
// budget abort before any second network call. The reservation is committed
// only when the paid retry returns 2xx and rolled back on every other
// outcome, including a canceled or timed-out retry.
type PaymentTransport struct {
	// Base is the underlying RoundTripper (http.DefaultTransport if nil).
	Base http.RoundTripper

	// Signer produces signed payment payloads.
	Signer x402.Signer

	// Budget bounds cumulative spend. A nil Budget means no ceiling.
	Budget *x402.Budget

	// OnPaymentAttempt is called when a payment attempt is made.
	OnPaymentAttempt x402.PaymentCallback

	// OnPaymentSuccess is called when a paid retry succeeds.
	OnPaymentSuccess x402.PaymentCallback

	// OnPaymentFailure is called when a payment fails.
	OnPaymentFailure x402.PaymentCallback
}

// RoundTrip implements http.RoundTripper.
func (t *PaymentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	// Snapshot the body so the identical payload can be resent on retry.
	bodyBytes, err := snapshotBody(req)
	if err != nil {
		return nil, err
	}

	resp, err := base.RoundTrip(cloneWithBody(req, bodyBytes))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusPaymentRequired {
		return resp, nil
	}

	if t.Signer == nil {
		// No payment capability configured; hand the 402 back untouched.
		return resp, nil
	}

	terms, err := helpers.ParsePaymentTerms(resp)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}

	amount, err := terms.Amount()
	if err != nil {
		return nil, x402.NewPaymentError(x402.ErrCodeInvalidTerms, "invalid payment terms", err)
	}

	var reservation *x402.Reservation
	if t.Budget != nil {
		reservation, err = t.Budget.Reserve(amount)
		if err != nil {
			perr := x402.NewPaymentError(x402.ErrCodeBudgetExceeded, "charge would exceed budget", err).
				WithDetails("amount", amount.String()).
				WithDetails("spent", t.Budget.Spent().String()).
				WithDetails("ceiling", t.Budget.Ceiling().String())
			t.emitFailure(req, terms, perr, 0)
			return nil, perr
		}
	}

	startTime := time.Now()
	t.emit(t.OnPaymentAttempt, x402.PaymentEvent{
		Type:      x402.PaymentEventAttempt,
		Timestamp: startTime,
		URL:       req.URL.String(),
		Amount:    terms.MaxAmountRequired,
		Asset:     terms.Asset,
		Network:   terms.Network,
		Scheme:    terms.SchemeOrDefault(),
		Recipient: terms.PayTo,
		Payer:     t.Signer.Address(),
	})

	payment, err := t.Signer.Sign(terms)
	if err != nil {
		rollback(reservation)
		code := x402.ErrCodeSigningFailed
		if errors.Is(err, x402.ErrInvalidTerms) {
			code = x402.ErrCodeInvalidTerms
		}
		perr := x402.NewPaymentError(code, "failed to sign payment", err).
			WithDetails("amount", amount.String())
		t.emitFailure(req, terms, perr, time.Since(startTime))
		return nil, perr
	}

	paymentHeader, err := helpers.BuildPaymentHeader(payment)
	if err != nil {
		rollback(reservation)
		perr := x402.NewPaymentError(x402.ErrCodeSigningFailed, "failed to build payment header", err)
		t.emitFailure(req, terms, perr, time.Since(startTime))
		return nil, perr
	}

	reqRetry := cloneWithBody(req, bodyBytes)
	reqRetry.Header.Set("X-PAYMENT", paymentHeader)

	respRetry, err := base.RoundTrip(reqRetry)
	duration := time.Since(startTime)
	if err != nil {
		rollback(reservation)
		perr := x402.NewPaymentError(x402.ErrCodeTransportFailure, "paid retry did not complete", err).
			WithDetails("amount", amount.String())
		t.emitFailure(req, terms, perr, duration)
		return nil, perr
	}

	if respRetry.StatusCode >= 200 && respRetry.StatusCode < 300 {
		commit(reservation)
		t.emit(t.OnPaymentSuccess, x402.PaymentEvent{
			Type:      x402.PaymentEventSuccess,
			Timestamp: time.Now(),
			URL:       req.URL.String(),
			Amount:    terms.MaxAmountRequired,
			Asset:     terms.Asset,
			Network:   terms.Network,
			Scheme:    terms.SchemeOrDefault(),
			Recipient: terms.PayTo,
			Payer:     payment.Payload.From,
			Duration:  duration,
		})
		return respRetry, nil
	}

	body, _ := io.ReadAll(io.LimitReader(respRetry.Body, maxErrorBodyBytes))
	respRetry.Body.Close()
	rollback(reservation)

	perr := x402.NewPaymentError(x402.ErrCodePaymentRetryFailed,
		fmt.Sprintf("server rejected paid retry with status %d", respRetry.StatusCode),
		x402.ErrPaymentRetryFailed).
		WithDetails("status", respRetry.StatusCode).
		WithDetails("body", string(body)).
		WithDetails("amount", amount.String())
	t.emitFailure(req, terms, perr, duration)
	return nil, perr
}

func (t *PaymentTransport) emit(cb x402.PaymentCallback, event x402.PaymentEvent) {
	if cb != nil {
		cb(event)
	}
}

func (t *PaymentTransport) emitFailure(req *http.Request, terms *x402.PaymentRequirements, err error, duration time.Duration) {
	t.emit(t.OnPaymentFailure, x402.PaymentEvent{
		Type:      x402.PaymentEventFailure,
		Timestamp: time.Now(),
		URL:       req.URL.String(),
		Amount:    terms.MaxAmountRequired,
		Asset:     terms.Asset,
		Network:   terms.Network,
		Scheme:    terms.SchemeOrDefault(),
		Recipient: terms.PayTo,
		Error:     err,
		Duration:  duration,
	})
}

func rollback(r *x402.Reservation) {
	if r != nil {
		r.Rollback()
	}
}

func commit(r *x402.Reservation) {
	if r != nil {
		r.Commit()
	}
}

// snapshotBody reads the request body into memory so both attempts send the
// same bytes. Requests with GetBody set are left alone; nil bodies cost
// nothing.
func snapshotBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if req.GetBody != nil {
		return nil, nil
	}
	defer req.Body.Close()
	bodyBytes, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("x402: reading request body: %w", err)
	}
	return bodyBytes, nil
}

// cloneWithBody clones req for one attempt, restoring the body from the
// snapshot or from GetBody.
func cloneWithBody(req *http.Request, bodyBytes []byte) *http.Request {
	clone := req.Clone(req.Context())
	switch {
	case bodyBytes != nil:
		clone.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		clone.ContentLength = int64(len(bodyBytes))
	case req.GetBody != nil:
		if body, err := req.GetBody(); err == nil {
			clone.Body = body
		}
	}
	return clone
}
