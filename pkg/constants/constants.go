package constants

const (
	HeaderIdempotencyKey  = "Idempotency-Key"
	HeaderStripeSignature = "Stripe-Signature"
)

// QRPrefix opens every ticket QR payload: TIX|<order_id>|<ticket_id>|<mac>.
const QRPrefix = "TIX"

// CheckoutSessionPlaceholder is substituted by the provider with the session id.
const CheckoutSessionPlaceholder = "{CHECKOUT_SESSION_ID}"

// Webhook record states in psp_webhooks.
const (
	WebhookReceived     = "received"
	WebhookProcessed    = "processed"
	WebhookFailed       = "failed"
	WebhookUnreconciled = "unreconciled"
)
