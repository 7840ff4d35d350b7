// Package alert lets buyers watch an event and get told once its cheapest
// listing drops to their target price.
package alert

import (
	"context"
	"errors"
	"time"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/authz"
	"github.com/Niiaks/ticketcore/internal/catalog"
	"github.com/Niiaks/ticketcore/internal/inventory"
	"github.com/Niiaks/ticketcore/internal/metrics"
	"github.com/Niiaks/ticketcore/internal/middleware"
	"github.com/Niiaks/ticketcore/internal/model"
	"github.com/Niiaks/ticketcore/pkg/types"
	"github.com/google/uuid"
)

// PriceSource supplies the per-category rollups an alert is measured against.
type PriceSource interface {
	GetCategoryRollups(ctx context.Context, eventID string) ([]model.CategoryRollup, error)
}

type AlertService struct {
	repo    Repository
	prices  PriceSource
	catalog catalog.Catalog
	now     func() time.Time
}

func NewAlertService(repo Repository, prices PriceSource, cat catalog.Catalog) *AlertService {
	return &AlertService{repo: repo, prices: prices, catalog: cat, now: time.Now}
}

func (s *AlertService) CreateAlert(ctx context.Context, actor authz.Actor, req *types.CreateAlertRequest) (*model.PriceAlert, error) {
	if err := authz.Authorize(actor, authz.ActionManageAlert, authz.Resource{}); err != nil {
		return nil, err
	}
	if req.TargetPrice <= 0 || req.TargetPrice > model.MaxAmount {
		return nil, apperr.Validation("target price must be between 0.01 and %s", model.MaxAmount)
	}
	if _, err := s.catalog.GetEvent(ctx, req.EventID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Validation("unknown event %q", req.EventID)
		}
		return nil, err
	}

	rollups, err := s.prices.GetCategoryRollups(ctx, req.EventID)
	if err != nil {
		return nil, err
	}

	a := &model.PriceAlert{
		ID:            uuid.NewString(),
		UserID:        actor.ID,
		EventID:       req.EventID,
		TargetPrice:   req.TargetPrice,
		CurrentLowest: inventory.LowestPrice(rollups),
	}
	if err := s.repo.CreateAlert(ctx, a); err != nil {
		return nil, err
	}

	middleware.GetLogger(ctx).Info().Str("alert_id", a.ID).Str("event_id", a.EventID).Stringer("target", a.TargetPrice).Msg("price alert created")

	if a.CurrentLowest != nil && *a.CurrentLowest <= a.TargetPrice {
		if _, err := s.EvaluateEvent(ctx, a.EventID); err != nil {
			return nil, err
		}
		if fresh, err := s.repo.GetAlert(ctx, a.ID); err == nil {
			a = fresh
		}
	}
	return a, nil
}

func (s *AlertService) ListAlerts(ctx context.Context, actor authz.Actor) ([]model.PriceAlert, error) {
	if actor.ID == "" {
		return nil, apperr.ErrUnauthorized
	}
	return s.repo.ListAlerts(ctx, actor.ID)
}

func (s *AlertService) DeleteAlert(ctx context.Context, actor authz.Actor, alertID string) error {
	a, err := s.repo.GetAlert(ctx, alertID)
	if err != nil {
		return err
	}
	if err := authz.Authorize(actor, authz.ActionManageAlert, authz.Owned(a.UserID)); err != nil {
		return err
	}
	return s.repo.DeleteAlert(ctx, alertID)
}

// Evaluate checks every active alert and returns how many it triggered.
func (s *AlertService) Evaluate(ctx context.Context) (int, error) {
	alerts, err := s.repo.ActiveAlerts(ctx, "")
	if err != nil {
		return 0, err
	}
	byEvent := map[string][]model.PriceAlert{}
	var order []string
	for _, a := range alerts {
		if _, ok := byEvent[a.EventID]; !ok {
			order = append(order, a.EventID)
		}
		byEvent[a.EventID] = append(byEvent[a.EventID], a)
	}

	total := 0
	for _, eventID := range order {
		n, err := s.evaluate(ctx, eventID, byEvent[eventID])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (s *AlertService) EvaluateEvent(ctx context.Context, eventID string) (int, error) {
	alerts, err := s.repo.ActiveAlerts(ctx, eventID)
	if err != nil {
		return 0, err
	}
	return s.evaluate(ctx, eventID, alerts)
}

func (s *AlertService) evaluate(ctx context.Context, eventID string, alerts []model.PriceAlert) (int, error) {
	if len(alerts) == 0 {
		return 0, nil
	}
	logger := middleware.GetLogger(ctx)

	rollups, err := s.prices.GetCategoryRollups(ctx, eventID)
	if err != nil {
		return 0, err
	}
	lowest := inventory.LowestPrice(rollups)

	triggered := 0
	for _, a := range alerts {
		if lowest == nil || *lowest > a.TargetPrice {
			if !samePrice(a.CurrentLowest, lowest) {
				if err := s.repo.UpdateLowest(ctx, a.ID, lowest); err != nil {
					return triggered, err
				}
			}
			continue
		}

		ok, err := s.repo.TriggerAlert(ctx, a.ID, *lowest, s.now().UTC())
		if err != nil {
			return triggered, err
		}
		if !ok {
			continue
		}
		triggered++
		metrics.AlertsTriggered.Inc()
		logger.Info().Str("alert_id", a.ID).Str("event_id", eventID).Stringer("lowest", *lowest).Stringer("target", a.TargetPrice).Msg("price alert triggered")
	}
	return triggered, nil
}

// TicketListed re-evaluates the event's alerts right after new stock appears.
func (s *AlertService) TicketListed(ctx context.Context, eventID string) {
	if _, err := s.EvaluateEvent(ctx, eventID); err != nil {
		middleware.GetLogger(ctx).Error().Err(err).Str("event_id", eventID).Msg("failed to evaluate price alerts")
	}
}

func samePrice(a, b *model.Money) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
