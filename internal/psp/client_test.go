package psp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Niiaks/ticketcore/internal/config"
	"github.com/Niiaks/ticketcore/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *StripeClient {
	c := NewStripeClient(config.StripeConfig{
		SecretKey:  "sk_test_123",
		BaseURL:    url,
		Timeout:    2 * time.Second,
		MaxRetries: 2,
	})
	c.backoff = time.Millisecond
	return c
}

func TestCreateCheckoutSession_FormEncoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		user, _, _ := r.BasicAuth()

		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "sk_test_123", user)
		assert.Equal(t, "idem-1", r.Header.Get("Idempotency-Key"))
		assert.Equal(t, "16500", r.PostForm.Get("line_items[0][price_data][unit_amount]"))
		assert.Equal(t, "eur", r.PostForm.Get("line_items[0][price_data][currency]"))
		assert.Equal(t, "t-1", r.PostForm.Get("metadata[ticket_id]"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","url":"https://pay.example/cs_test_1","status":"open","payment_status":"unpaid","amount_total":16500,"currency":"eur"}`))
	}))
	defer srv.Close()

	s, err := newTestClient(srv.URL).CreateCheckoutSession(context.Background(), &types.CreateCheckoutSessionRequest{
		Amount:      16500,
		Currency:    "eur",
		ProductName: "Ticket",
		SuccessURL:  "https://app.example/order/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:   "https://app.example/event/e-1",
		Metadata:    map[string]string{"ticket_id": "t-1"},
	}, "idem-1")

	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", s.ID)
	assert.Equal(t, int64(16500), s.AmountTotal)
	assert.False(t, s.Paid())
}

func TestGetCheckoutSession_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"id":"cs_1","status":"complete","payment_status":"paid","amount_total":16500}`))
	}))
	defer srv.Close()

	s, err := newTestClient(srv.URL).GetCheckoutSession(context.Background(), "cs_1")

	require.NoError(t, err)
	assert.True(t, s.Paid())
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetCheckoutSession_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such checkout.session"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetCheckoutSession(context.Background(), "cs_missing")

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Equal(t, "No such checkout.session", se.Message)
	assert.Equal(t, int32(1), calls.Load())
}
