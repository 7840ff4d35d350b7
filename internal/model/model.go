package model

import (
	"encoding/json"
	"time"
)

type Model struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
)

type KYCStatus string

const (
	KYCNone     KYCStatus = "none"
	KYCPending  KYCStatus = "pending"
	KYCVerified KYCStatus = "verified"
	KYCRejected KYCStatus = "rejected"
)

type User struct {
	ID        string    `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	KYCStatus KYCStatus `json:"kyc_status"`
	CreatedAt time.Time `json:"created_at"`
}

type TicketStatus string

const (
	TicketAvailable TicketStatus = "available"
	TicketReserved  TicketStatus = "reserved"
	TicketSold      TicketStatus = "sold"
	TicketRemoved   TicketStatus = "removed"
)

type Ticket struct {
	ID            string       `json:"ticket_id"`
	EventID       string       `json:"event_id"`
	Category      Category     `json:"category"`
	Section       string       `json:"section,omitempty"`
	Row           string       `json:"row,omitempty"`
	Seat          string       `json:"seat,omitempty"`
	Price         Money        `json:"price"`
	OriginalPrice Money        `json:"original_price"`
	Currency      string       `json:"currency"`
	SellerID      string       `json:"seller_id"`
	Status        TicketStatus `json:"status"`
	ReservedBy    *string      `json:"-"`
	ReservedUntil *time.Time   `json:"-"`
	Version       int64        `json:"-"`
	Model
}

// CategoryRollup is the availability of one category of an event, computed
// from the current ticket rows.
type CategoryRollup struct {
	EventID     string   `json:"event_id"`
	Category    Category `json:"category"`
	Name        string   `json:"name"`
	Color       string   `json:"color"`
	Count       int      `json:"count"`
	LowestPrice Money    `json:"lowest_price"`
}

// Availability aggregates the rollups of one event across categories.
type Availability struct {
	Count       int    `json:"available_tickets"`
	LowestPrice *Money `json:"lowest_price"`
}

type CheckoutStatus string

const (
	CheckoutOpen    CheckoutStatus = "open"
	CheckoutPaid    CheckoutStatus = "paid"
	CheckoutExpired CheckoutStatus = "expired"
	CheckoutFailed  CheckoutStatus = "failed"
)

func (s CheckoutStatus) Terminal() bool {
	return s != CheckoutOpen
}

type CheckoutSession struct {
	ID          string         `json:"session_id"`
	TicketID    string         `json:"ticket_id"`
	EventID     string         `json:"event_id"`
	SellerID    string         `json:"seller_id"`
	BuyerID     string         `json:"buyer_id"`
	TicketPrice Money          `json:"ticket_price"`
	Commission  Money          `json:"commission"`
	Amount      Money          `json:"amount"`
	Currency    string         `json:"currency"`
	Status      CheckoutStatus `json:"status"`
	RedirectURL string         `json:"url"`
	CreatedAt   time.Time      `json:"created_at"`
	ExpiresAt   time.Time      `json:"expires_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderDisputed  OrderStatus = "disputed"
	OrderRefunded  OrderStatus = "refunded"
	OrderCancelled OrderStatus = "cancelled"
)

type Order struct {
	ID          string      `json:"order_id"`
	SessionID   string      `json:"session_id"`
	TicketID    string      `json:"ticket_id"`
	EventID     string      `json:"event_id"`
	BuyerID     string      `json:"buyer_id"`
	SellerID    string      `json:"seller_id"`
	TicketPrice Money       `json:"ticket_price"`
	Commission  Money       `json:"commission"`
	TotalAmount Money       `json:"total_amount"`
	Currency    string      `json:"currency"`
	Status      OrderStatus `json:"status"`
	QRPayload   string      `json:"qr_payload"`
	BuyerEmail  string      `json:"buyer_email,omitempty"`
	Model
}

type OrderFilter struct {
	Status   OrderStatus
	SellerID string
	BuyerID  string
	Limit    int
}

// SellerBalance is derived from completed orders and payouts, never stored.
// PendingBalance + InFlight + TotalPaid == Earned holds for every seller.
type SellerBalance struct {
	SellerID       string `json:"user_id"`
	Name           string `json:"name,omitempty"`
	Email          string `json:"email,omitempty"`
	KYCStatus      string `json:"kyc_status,omitempty"`
	Earned         Money  `json:"earned"`
	PendingBalance Money  `json:"pending_balance"`
	InFlight       Money  `json:"in_flight"`
	TotalPaid      Money  `json:"total_paid"`
	Refunded       Money  `json:"refunded"`
	OrdersCount    int    `json:"orders_count"`
}

type LedgerKind string

const (
	LedgerSale           LedgerKind = "sale"
	LedgerPayout         LedgerKind = "payout"
	LedgerDisputeHold    LedgerKind = "dispute_hold"
	LedgerDisputeRelease LedgerKind = "dispute_release"
	LedgerRefund         LedgerKind = "refund"
)

// LedgerEntry is an append-only record of a movement on a seller's balance.
// Amount is signed: credits are positive, debits negative.
type LedgerEntry struct {
	ID        int64      `json:"id"`
	SellerID  string     `json:"seller_id"`
	OrderID   string     `json:"order_id,omitempty"`
	PayoutID  string     `json:"payout_id,omitempty"`
	Kind      LedgerKind `json:"kind"`
	Amount    Money      `json:"amount"`
	CreatedAt time.Time  `json:"created_at"`
}

type Discrepancy struct {
	SellerID       string `json:"seller_id"`
	ExpectedAmount Money  `json:"expected_amount"`
	ActualAmount   Money  `json:"actual_amount"`
	Matched        bool   `json:"matched"`
}

type PayoutStatus string

const (
	PayoutPending   PayoutStatus = "pending"
	PayoutCompleted PayoutStatus = "completed"
)

type Payout struct {
	ID          string       `json:"payout_id"`
	SellerID    string       `json:"seller_id"`
	SellerName  string       `json:"seller_name,omitempty"`
	SellerEmail string       `json:"seller_email,omitempty"`
	Amount      Money        `json:"amount"`
	Status      PayoutStatus `json:"status"`
	Notes       string       `json:"notes,omitempty"`
	CreatedBy   string       `json:"created_by"`
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

type DisputeStatus string

const (
	DisputeOpen     DisputeStatus = "open"
	DisputeResolved DisputeStatus = "resolved"
	DisputeClosed   DisputeStatus = "closed"
)

type Dispute struct {
	ID          string        `json:"dispute_id"`
	OrderID     string        `json:"order_id"`
	BuyerID     string        `json:"buyer_id"`
	SellerID    string        `json:"seller_id"`
	Reason      string        `json:"reason"`
	Description string        `json:"description"`
	Status      DisputeStatus `json:"status"`
	Resolution  string        `json:"resolution,omitempty"`
	ResolvedBy  string        `json:"resolved_by,omitempty"`
	Amount      Money         `json:"amount"`
	CreatedAt   time.Time     `json:"created_at"`
	ResolvedAt  *time.Time    `json:"resolved_at,omitempty"`
}

type AlertStatus string

const (
	AlertActive    AlertStatus = "active"
	AlertTriggered AlertStatus = "triggered"
)

type PriceAlert struct {
	ID            string      `json:"alert_id"`
	UserID        string      `json:"user_id"`
	EventID       string      `json:"event_id"`
	TargetPrice   Money       `json:"target_price"`
	Status        AlertStatus `json:"status"`
	CurrentLowest *Money      `json:"current_lowest"`
	TriggeredAt   *time.Time  `json:"triggered_at,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

type OwnerDashboard struct {
	Revenue struct {
		Total      Money `json:"total"`
		Commission Money `json:"commission"`
	} `json:"revenue"`
	Orders struct {
		Pending   int `json:"pending"`
		Completed int `json:"completed"`
		Cancelled int `json:"cancelled"`
		Disputed  int `json:"disputed"`
		Refunded  int `json:"refunded"`
	} `json:"orders"`
	Payouts struct {
		PendingAmount Money `json:"pending_amount"`
		PendingCount  int   `json:"pending_count"`
		TotalPaid     Money `json:"total_paid"`
	} `json:"payouts"`
	RecentOrders []Order `json:"recent_orders"`
}

type AdminStats struct {
	TotalUsers      int   `json:"total_users"`
	VerifiedSellers int   `json:"verified_sellers"`
	TotalEvents     int   `json:"total_events"`
	SoldTickets     int   `json:"sold_tickets"`
	TotalRevenue    Money `json:"total_revenue"`
	TotalCommission Money `json:"total_commission"`
	OpenDisputes    int   `json:"open_disputes"`
}

type TransactionOutbox struct {
	ID            int64           `json:"id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PartitionKey  string          `json:"partition_key"`
	Status        string          `json:"status"`
	CorrelationID string          `json:"correlation_id"`
	RetryCount    int             `json:"retry_count"`
	LastError     string          `json:"last_error,omitempty"`
	Model
}

type PspWebhook struct {
	ID        int64           `json:"id"`
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	Status    string          `json:"status"`
	Model
}
