package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	x402 "github.com/ismail-169/cronos-mcp"
)

// Client is an HTTP client that settles 402 challenges automatically. It
// embeds a standard http.Client whose transport is a PaymentTransport, so it
// can be used anywhere an *http.Client works.
type Client struct {
	*http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client) error

// NewClient creates a payment-enabled HTTP client.
func NewClient(opts ...ClientOption) (*Client, error) {
	client := &Client{
		Client: &http.Client{},
	}

	if client.Transport == nil {
		client.Transport = http.DefaultTransport
	}

	for _, opt := range opts {
		if err := opt(client); err != nil {
			return nil, err
		}
	}

	return client, nil
}

// WithHTTPClient sets a custom underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) error {
		c.Client = httpClient
		if c.Transport == nil {
			c.Transport = http.DefaultTransport
		}
		return nil
	}
}

// WithSigner sets the payment signer.
func WithSigner(signer x402.Signer) ClientOption {
	return func(c *Client) error {
		getOrCreateTransport(c).Signer = signer
		return nil
	}
}

// WithBudget sets the budget ledger shared by all calls through this client.
func WithBudget(budget *x402.Budget) ClientOption {
	return func(c *Client) error {
		getOrCreateTransport(c).Budget = budget
		return nil
	}
}

// WithTimeout sets the overall per-request timeout. The timeout spans both
// phases of a paid call; it is the only cancellation point the flow has.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %v", d)
		}
		c.Timeout = d
		return nil
	}
}

// WithPaymentCallbacks sets the payment lifecycle callbacks. Pass nil for
// any callback you don't want to set.
func WithPaymentCallbacks(onAttempt, onSuccess, onFailure x402.PaymentCallback) ClientOption {
	return func(c *Client) error {
		transport := getOrCreateTransport(c)
		if onAttempt != nil {
			transport.OnPaymentAttempt = onAttempt
		}
		if onSuccess != nil {
			transport.OnPaymentSuccess = onSuccess
		}
		if onFailure != nil {
			transport.OnPaymentFailure = onFailure
		}
		return nil
	}
}

// getOrCreateTransport returns the client's PaymentTransport, wrapping the
// existing transport if needed.
func getOrCreateTransport(c *Client) *PaymentTransport {
	transport, ok := c.Transport.(*PaymentTransport)
	if !ok {
		transport = &PaymentTransport{Base: c.Transport}
		c.Transport = transport
	}
	return transport
}

// toolResult is the response envelope tool servers wrap results in.
type toolResult struct {
	Result json.RawMessage `json:"result"`
}

// CallTool invokes a tool on a resource server: POST {serverURL}/tools/{tool}
// with params as the JSON body. Payment, when demanded, is handled by the
// transport. The returned message is the response's "result" field when
// present, otherwise the whole body.
func (c *Client) CallTool(ctx context.Context, serverURL, tool string, params interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("x402: encoding tool params: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+"/tools/"+tool, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		// http.Client wraps RoundTripper errors in *url.Error; surface
		// the structured payment error directly when there is one.
		var perr *x402.PaymentError
		if errors.As(err, &perr) {
			return nil, perr
		}
		return nil, x402.NewPaymentError(x402.ErrCodeTransportFailure, "tool call did not complete", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, x402.NewPaymentError(x402.ErrCodeTransportFailure, "reading tool response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, x402.NewPaymentError(x402.ErrCodeTransportFailure,
			fmt.Sprintf("tool call failed with status %d", resp.StatusCode), x402.ErrTransportFailure).
			WithDetails("status", resp.StatusCode).
			WithDetails("body", string(raw))
	}

	var envelope toolResult
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Result != nil {
		return envelope.Result, nil
	}
	return raw, nil
}
