// Package memstore is an in-memory implementation of every repository in the
// service. It honours the same guards as the SQL repositories under a single
// mutex and backs the flow and concurrency tests.
package memstore

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/middleware"
	"github.com/Niiaks/ticketcore/internal/model"
)

type Store struct {
	mu  sync.Mutex
	now func() time.Time

	tickets  map[string]*model.Ticket
	sessions map[string]*model.CheckoutSession
	orders   map[string]*model.Order
	payouts  map[string]*model.Payout
	disputes map[string]*model.Dispute
	alerts   map[string]*model.PriceAlert
	users    map[string]model.User
	events   map[string]model.Event
	webhooks map[string]string

	ticketIDs  []string
	orderIDs   []string
	payoutIDs  []string
	disputeIDs []string
	alertIDs   []string
	eventIDs   []string

	ledger []model.LedgerEntry
	outbox []model.TransactionOutbox
}

func New() *Store {
	return &Store{
		now:      time.Now,
		tickets:  map[string]*model.Ticket{},
		sessions: map[string]*model.CheckoutSession{},
		orders:   map[string]*model.Order{},
		payouts:  map[string]*model.Payout{},
		disputes: map[string]*model.Dispute{},
		alerts:   map[string]*model.PriceAlert{},
		users:    map[string]model.User{},
		events:   map[string]model.Event{},
		webhooks: map[string]string{},
	}
}

// SetClock replaces the clock used for created_at and similar columns.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) enqueue(ctx context.Context, eventType, key string, payload any) {
	body, _ := json.Marshal(payload)
	now := s.now()
	s.outbox = append(s.outbox, model.TransactionOutbox{
		ID:            int64(len(s.outbox) + 1),
		EventType:     eventType,
		Payload:       body,
		PartitionKey:  key,
		Status:        "pending",
		CorrelationID: middleware.GetRequestIDFromContext(ctx),
		Model:         model.Model{CreatedAt: now, UpdatedAt: now},
	})
}

func (s *Store) appendLedger(sellerID, orderID, payoutID string, kind model.LedgerKind, amount model.Money) {
	s.ledger = append(s.ledger, model.LedgerEntry{
		ID:        int64(len(s.ledger) + 1),
		SellerID:  sellerID,
		OrderID:   orderID,
		PayoutID:  payoutID,
		Kind:      kind,
		Amount:    amount,
		CreatedAt: s.now(),
	})
}

// Outbox returns the events enqueued so far, optionally filtered by type.
func (s *Store) Outbox(eventType string) []model.TransactionOutbox {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.TransactionOutbox
	for _, e := range s.outbox {
		if eventType == "" || e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// Ledger returns the ledger entries of a seller.
func (s *Store) Ledger(sellerID string) []model.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.LedgerEntry
	for _, e := range s.ledger {
		if e.SellerID == sellerID {
			out = append(out, e)
		}
	}
	return out
}

func (s *Store) AddUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	s.users[u.ID] = u
}

// Touch upserts the identity, keeping the stored KYC status.
func (s *Store) Touch(_ context.Context, u model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.users[u.ID]; ok {
		u.KYCStatus = existing.KYCStatus
		u.CreatedAt = existing.CreatedAt
		if u.Email == "" {
			u.Email = existing.Email
		}
		if u.Name == "" {
			u.Name = existing.Name
		}
	} else {
		u.KYCStatus = model.KYCNone
		u.CreatedAt = s.now()
	}
	s.users[u.ID] = u
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, apperr.NotFound("user %s not found", id)
	}
	return &u, nil
}

func (s *Store) AddEvent(e model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[e.ID]; !ok {
		s.eventIDs = append(s.eventIDs, e.ID)
	}
	s.events[e.ID] = e
}

func (s *Store) GetEvent(_ context.Context, id string) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, apperr.NotFound("event %s not found", id)
	}
	return &e, nil
}

func (s *Store) ListEvents(_ context.Context, f model.EventFilter) ([]model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Event{}
	search := strings.ToLower(f.Search)
	for _, id := range s.eventIDs {
		e := s.events[id]
		switch {
		case f.Type != "" && e.Type != f.Type:
			continue
		case f.City != "" && !strings.EqualFold(e.City, f.City):
			continue
		case f.Featured && !e.Featured:
			continue
		case search != "" && !strings.Contains(strings.ToLower(e.Title+" "+e.Venue+" "+e.City), search):
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (s *Store) CountEvents(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events), nil
}

// RecordWebhook stores a provider delivery. It reports false when the
// delivery was already processed.
func (s *Store) RecordWebhook(_ context.Context, eventID, _ string, _ []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.webhooks[eventID] == "processed" {
		return false, nil
	}
	s.webhooks[eventID] = "received"
	return true, nil
}

func (s *Store) MarkWebhook(_ context.Context, eventID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.webhooks[eventID] = status
	return nil
}

// WebhookStatus exposes the recorded state of a delivery.
func (s *Store) WebhookStatus(eventID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.webhooks[eventID]
}

// Now reads the store clock.
func (s *Store) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now()
}
