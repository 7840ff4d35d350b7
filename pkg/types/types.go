package types

import (
	"time"

	"github.com/Niiaks/ticketcore/internal/model"
)

type CreateTicketRequest struct {
	EventID       string         `json:"event_id" validate:"required"`
	Category      model.Category `json:"category" validate:"required"`
	Section       string         `json:"section,omitempty" validate:"max=64"`
	Row           string         `json:"row,omitempty" validate:"max=16"`
	Seat          string         `json:"seat,omitempty" validate:"max=16"`
	Price         model.Money    `json:"price"`
	OriginalPrice model.Money    `json:"original_price"`
}

type CreateTicketResponse struct {
	TicketID string `json:"ticket_id"`
}

type CreateCheckoutRequest struct {
	TicketID  string `json:"ticket_id" validate:"required,uuid"`
	OriginURL string `json:"origin_url" validate:"required,url"`
}

type CreateCheckoutResponse struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id"`
}

type CheckoutStatusResponse struct {
	Status        model.CheckoutStatus `json:"status"`
	PaymentStatus string               `json:"payment_status"`
	Order         *model.Order         `json:"order,omitempty"`
}

type OpenDisputeRequest struct {
	Reason      string `json:"reason" validate:"required,max=100"`
	Description string `json:"description" validate:"max=2000"`
}

type ResolveDisputeRequest struct {
	Status     model.DisputeStatus `json:"status" validate:"required,oneof=resolved closed"`
	Resolution string              `json:"resolution" validate:"max=2000"`
}

type CreatePayoutRequest struct {
	SellerID string      `json:"seller_id" validate:"required"`
	Amount   model.Money `json:"amount"`
	Notes    string      `json:"notes" validate:"max=500"`
}

type CreatePayoutResponse struct {
	PayoutID string `json:"payout_id"`
}

type CreateAlertRequest struct {
	EventID     string      `json:"event_id" validate:"required"`
	TargetPrice model.Money `json:"target_price"`
}

// Outbox payloads. Consumers decode these from Kafka record values.

type OrderCompletedEvent struct {
	OrderID     string      `json:"order_id"`
	TicketID    string      `json:"ticket_id"`
	EventID     string      `json:"event_id"`
	BuyerID     string      `json:"buyer_id"`
	SellerID    string      `json:"seller_id"`
	TicketPrice model.Money `json:"ticket_price"`
	Commission  model.Money `json:"commission"`
	TotalAmount model.Money `json:"total_amount"`
	Currency    string      `json:"currency"`
	QRPayload   string      `json:"qr_payload"`
	CompletedAt time.Time   `json:"completed_at"`
}

type PayoutEvent struct {
	PayoutID string             `json:"payout_id"`
	SellerID string             `json:"seller_id"`
	Amount   model.Money        `json:"amount"`
	Status   model.PayoutStatus `json:"status"`
}

type DisputeEvent struct {
	DisputeID  string              `json:"dispute_id"`
	OrderID    string              `json:"order_id"`
	BuyerID    string              `json:"buyer_id"`
	SellerID   string              `json:"seller_id"`
	Amount     model.Money         `json:"amount"`
	Status     model.DisputeStatus `json:"status"`
	Resolution string              `json:"resolution,omitempty"`
}

type AlertTriggeredEvent struct {
	AlertID       string      `json:"alert_id"`
	UserID        string      `json:"user_id"`
	EventID       string      `json:"event_id"`
	TargetPrice   model.Money `json:"target_price"`
	CurrentLowest model.Money `json:"current_lowest"`
}
