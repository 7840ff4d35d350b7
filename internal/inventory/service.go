package inventory

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/authz"
	"github.com/Niiaks/ticketcore/internal/catalog"
	"github.com/Niiaks/ticketcore/internal/middleware"
	"github.com/Niiaks/ticketcore/internal/model"
	"github.com/Niiaks/ticketcore/pkg/types"
	"github.com/google/uuid"
)

// ListingObserver is told when new stock appears on an event.
type ListingObserver interface {
	TicketListed(ctx context.Context, eventID string)
}

type InventoryService struct {
	repo      Repository
	catalog   catalog.Catalog
	currency  string
	observers []ListingObserver
}

func NewInventoryService(repo Repository, cat catalog.Catalog, currency string) *InventoryService {
	return &InventoryService{
		repo:     repo,
		catalog:  cat,
		currency: strings.ToLower(currency),
	}
}

// Observe registers o for listing notifications.
// MaxAvailableListing caps one public ticket listing.
const MaxAvailableListing = 500

func (s *InventoryService) Observe(o ListingObserver) {
	s.observers = append(s.observers, o)
}

func (s *InventoryService) ListTicket(ctx context.Context, actor authz.Actor, req *types.CreateTicketRequest) (*model.Ticket, error) {
	logger := middleware.GetLogger(ctx)

	if err := authz.Authorize(actor, authz.ActionListTicket, authz.Resource{}); err != nil {
		return nil, err
	}
	if req.Price <= 0 || req.Price > model.MaxAmount {
		return nil, apperr.Validation("price must be between 0.01 and %s", model.MaxAmount)
	}
	if req.OriginalPrice < 0 || req.OriginalPrice > model.MaxAmount {
		return nil, apperr.Validation("original price must be between 0 and %s", model.MaxAmount)
	}
	if !req.Category.Valid() {
		return nil, apperr.Validation("unknown category %q", req.Category)
	}
	if _, err := s.catalog.GetEvent(ctx, req.EventID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Validation("unknown event %q", req.EventID)
		}
		return nil, err
	}

	t := &model.Ticket{
		ID:            uuid.NewString(),
		EventID:       req.EventID,
		Category:      req.Category,
		Section:       req.Section,
		Row:           req.Row,
		Seat:          req.Seat,
		Price:         req.Price,
		OriginalPrice: req.OriginalPrice,
		Currency:      s.currency,
		SellerID:      actor.ID,
	}
	if err := s.repo.CreateTicket(ctx, t); err != nil {
		return nil, err
	}

	logger.Info().Str("ticket_id", t.ID).Str("event_id", t.EventID).Str("category", string(t.Category)).Stringer("price", t.Price).Msg("ticket listed")

	for _, o := range s.observers {
		o.TicketListed(ctx, t.EventID)
	}
	return t, nil
}

func (s *InventoryService) RemoveTicket(ctx context.Context, actor authz.Actor, ticketID string) error {
	t, err := s.repo.GetTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	if err := authz.Authorize(actor, authz.ActionRemoveTicket, authz.Owned(t.SellerID)); err != nil {
		return err
	}

	removed, err := s.repo.RemoveTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	if !removed {
		return apperr.InvalidState("ticket is no longer available")
	}

	middleware.GetLogger(ctx).Info().Str("ticket_id", ticketID).Msg("ticket removed")
	return nil
}

// GetCategoryRollups returns per-category availability in display order,
// enriched with category metadata.
func (s *InventoryService) GetCategoryRollups(ctx context.Context, eventID string) ([]model.CategoryRollup, error) {
	rollups, err := s.repo.Rollups(ctx, eventID)
	if err != nil {
		return nil, err
	}
	for i := range rollups {
		info := rollups[i].Category.Info()
		rollups[i].Name = info.Name
		rollups[i].Color = info.Color
	}
	sort.Slice(rollups, func(i, j int) bool {
		return rollups[i].Category.Info().Rank < rollups[j].Category.Info().Rank
	})
	return rollups, nil
}

// LowestPrice is the cheapest available ticket of an event, or nil when sold out.
func LowestPrice(rollups []model.CategoryRollup) *model.Money {
	var lowest *model.Money
	for _, r := range rollups {
		if r.Count == 0 {
			continue
		}
		if lowest == nil || r.LowestPrice < *lowest {
			p := r.LowestPrice
			lowest = &p
		}
	}
	return lowest
}

// ListAvailable lists tickets on sale, cheapest first. An empty eventID
// lists across all events.
func (s *InventoryService) ListAvailable(ctx context.Context, eventID string) ([]model.Ticket, error) {
	return s.repo.ListAvailable(ctx, eventID, MaxAvailableListing)
}

func (s *InventoryService) ListSellerTickets(ctx context.Context, actor authz.Actor) ([]model.Ticket, error) {
	if err := authz.Authorize(actor, authz.ActionListTicket, authz.Resource{}); err != nil {
		return nil, err
	}
	return s.repo.ListBySeller(ctx, actor.ID)
}

// GetEvent returns the catalog event with its availability and open stock.
func (s *InventoryService) GetEvent(ctx context.Context, eventID string) (*model.Event, error) {
	e, err := s.catalog.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	rollups, err := s.repo.Rollups(ctx, eventID)
	if err != nil {
		return nil, err
	}
	for _, r := range rollups {
		e.Availability.Count += r.Count
	}
	e.Availability.LowestPrice = LowestPrice(rollups)

	if e.Tickets, err = s.repo.ListAvailable(ctx, eventID, MaxAvailableListing); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *InventoryService) ListEvents(ctx context.Context, f model.EventFilter) ([]model.Event, error) {
	events, err := s.catalog.ListEvents(ctx, f)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	avail, err := s.repo.Availability(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range events {
		events[i].Availability = avail[events[i].ID]
	}
	return events, nil
}
