package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tablebooking/internal/config"
)

// Intent statuses reported by the gateway.
const (
	StatusSucceeded  = "succeeded"
	StatusCanceled   = "canceled"
	StatusProcessing = "processing"
)

// APIError is a non-2xx response from the gateway.
type APIError struct {
	StatusCode int
	Type       string `json:"type"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway: status %d: %s %s", e.StatusCode, e.Code, e.Message)
}

// Temporary reports whether the request may succeed when retried.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type CreateIntentParams struct {
	Amount         int64
	Currency       string
	Metadata       map[string]string
	IdempotencyKey string
}

type CreateRefundParams struct {
	PaymentIntentID string
	// Amount is nil for a full refund.
	Amount         *int64
	Reason         string
	IdempotencyKey string
}

type Refund struct {
	ID            string            `json:"id"`
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	Status        string            `json:"status"`
	PaymentIntent string            `json:"payment_intent"`
	Metadata      map[string]string `json:"metadata"`
}

// Client talks to the payment gateway REST API.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

func NewClient(cfg config.GatewayConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		secretKey:  cfg.SecretKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) CreateIntent(ctx context.Context, p CreateIntentParams) (*Intent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(p.Amount, 10))
	form.Set("currency", p.Currency)
	form.Set("automatic_payment_methods[enabled]", "true")
	for k, v := range p.Metadata {
		form.Set("metadata["+k+"]", v)
	}

	var intent Intent
	if err := c.doForm(ctx, "/v1/payment_intents", form, p.IdempotencyKey, &intent); err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	return &intent, nil
}

func (c *Client) GetIntent(ctx context.Context, id string) (*Intent, error) {
	endpoint := fmt.Sprintf("%s/v1/payment_intents/%s", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	var intent Intent
	if err := c.do(req, &intent); err != nil {
		return nil, fmt.Errorf("get payment intent: %w", err)
	}
	return &intent, nil
}

func (c *Client) CreateRefund(ctx context.Context, p CreateRefundParams) (*Refund, error) {
	form := url.Values{}
	form.Set("payment_intent", p.PaymentIntentID)
	if p.Amount != nil {
		form.Set("amount", strconv.FormatInt(*p.Amount, 10))
	}
	if p.Reason != "" {
		form.Set("metadata[reason]", p.Reason)
	}

	var refund Refund
	if err := c.doForm(ctx, "/v1/refunds", form, p.IdempotencyKey, &refund); err != nil {
		return nil, fmt.Errorf("create refund: %w", err)
	}
	return &refund, nil
}

func (c *Client) doForm(ctx context.Context, path string, form url.Values, idempotencyKey string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var wrap struct {
			Error *APIError `json:"error"`
		}
		if json.Unmarshal(body, &wrap) == nil && wrap.Error != nil {
			apiErr.Type = wrap.Error.Type
			apiErr.Code = wrap.Error.Code
			apiErr.Message = wrap.Error.Message
		}
		return apiErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// IsTemporary reports whether err is a gateway failure worth retrying.
func IsTemporary(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return errors.Is(err, context.DeadlineExceeded)
}
