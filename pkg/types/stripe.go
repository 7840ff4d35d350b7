package types

// CreateCheckoutSessionRequest is what the checkout service asks the payment
// provider for. Amounts are in minor units.
type CreateCheckoutSessionRequest struct {
	Amount      int64
	Currency    string
	ProductName string
	SuccessURL  string
	CancelURL   string
	ExpiresAt   int64
	CustomerRef string
	Metadata    map[string]string
}

// StripeCheckoutSession is the subset of a Stripe Checkout Session we read.
type StripeCheckoutSession struct {
	ID                string            `json:"id"`
	Object            string            `json:"object"`
	URL               string            `json:"url"`
	Status            string            `json:"status"`
	PaymentStatus     string            `json:"payment_status"`
	AmountTotal       int64             `json:"amount_total"`
	Currency          string            `json:"currency"`
	ExpiresAt         int64             `json:"expires_at"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

// Paid reports whether the provider captured the payment.
func (s *StripeCheckoutSession) Paid() bool {
	return s.PaymentStatus == "paid" || s.PaymentStatus == "no_payment_required"
}

type StripeError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// StripeEvent is a webhook delivery.
type StripeEvent struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object StripeCheckoutSession `json:"object"`
	} `json:"data"`
}

const (
	StripeEventCheckoutCompleted             = "checkout.session.completed"
	StripeEventCheckoutAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	StripeEventCheckoutExpired               = "checkout.session.expired"
)
