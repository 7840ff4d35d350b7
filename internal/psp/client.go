package psp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Niiaks/ticketcore/internal/config"
	"github.com/Niiaks/ticketcore/internal/metrics"
	"github.com/Niiaks/ticketcore/pkg/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Provider is the hosted-checkout payment provider.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req *types.CreateCheckoutSessionRequest, idempotencyKey string) (*types.StripeCheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*types.StripeCheckoutSession, error)
	ExpireCheckoutSession(ctx context.Context, sessionID string) error
}

// StatusError is a non-2xx provider reply.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("stripe error: status=%d message=%s", e.StatusCode, e.Message)
}

func (e *StatusError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

type StripeClient struct {
	httpClient *http.Client
	secretKey  string
	baseURL    string
	maxRetries int
	backoff    time.Duration
}

func NewStripeClient(cfg config.StripeConfig) *StripeClient {
	return &StripeClient{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 50,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		secretKey:  cfg.SecretKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		maxRetries: cfg.MaxRetries,
		backoff:    200 * time.Millisecond,
	}
}

func (c *StripeClient) CreateCheckoutSession(ctx context.Context, req *types.CreateCheckoutSessionRequest, idempotencyKey string) (*types.StripeCheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", req.SuccessURL)
	form.Set("cancel_url", req.CancelURL)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", req.Currency)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(req.Amount, 10))
	form.Set("line_items[0][price_data][product_data][name]", req.ProductName)
	if req.ExpiresAt > 0 {
		form.Set("expires_at", strconv.FormatInt(req.ExpiresAt, 10))
	}
	if req.CustomerRef != "" {
		form.Set("client_reference_id", req.CustomerRef)
	}
	for k, v := range req.Metadata {
		form.Set("metadata["+k+"]", v)
	}

	var session types.StripeCheckoutSession
	if err := c.do(ctx, "create_session", http.MethodPost, "/v1/checkout/sessions", form, idempotencyKey, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *StripeClient) GetCheckoutSession(ctx context.Context, sessionID string) (*types.StripeCheckoutSession, error) {
	var session types.StripeCheckoutSession
	if err := c.do(ctx, "get_session", http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(sessionID), nil, "", &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *StripeClient) ExpireCheckoutSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, "expire_session", http.MethodPost, "/v1/checkout/sessions/"+url.PathEscape(sessionID)+"/expire", url.Values{}, "expire-"+sessionID, nil)
}

// do retries transport failures, 429 and 5xx with exponential backoff. POSTs
// are only retried when they carry an idempotency key.
func (c *StripeClient) do(ctx context.Context, op, method, path string, form url.Values, idempotencyKey string, out any) error {
	retries := c.maxRetries
	if method != http.MethodGet && idempotencyKey == "" {
		retries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			wait := c.backoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), "stripe request cancelled")
			case <-time.After(wait):
			}
		}

		body, err := c.doRequest(ctx, op, method, path, form, idempotencyKey)
		if err == nil {
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(body, out); err != nil {
				return errors.Wrap(err, "failed to parse stripe response")
			}
			return nil
		}

		lastErr = err
		var se *StatusError
		if errors.As(err, &se) && !se.retryable() {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return lastErr
}

func (c *StripeClient) doRequest(ctx context.Context, op, method, path string, form url.Values, idempotencyKey string) ([]byte, error) {
	endpoint := c.baseURL + path

	var reqBody io.Reader
	if form != nil {
		reqBody = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	req.SetBasicAuth(c.secretKey, "")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		metrics.ProviderLatency.WithLabelValues(op, "error").Observe(duration.Seconds())
		log.Error().Err(err).
			Str("method", method).
			Str("path", path).
			Int64("duration_ms", duration.Milliseconds()).
			Msg("Stripe request failed")
		return nil, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	metrics.ProviderLatency.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Observe(duration.Seconds())

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode >= 400 {
		var se types.StripeError
		_ = json.Unmarshal(respBody, &se)
		log.Error().
			Int("status", resp.StatusCode).
			Str("method", method).
			Str("path", path).
			Str("stripe_code", se.Error.Code).
			Int64("duration_ms", duration.Milliseconds()).
			Msg("Stripe API error response")
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: se.Error.Message}
	}

	log.Debug().
		Int("status", resp.StatusCode).
		Str("method", method).
		Str("path", path).
		Int64("duration_ms", duration.Milliseconds()).
		Msg("Stripe API request successful")

	return respBody, nil
}
