package memstore

import (
	"context"
	"time"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/kafka"
	"github.com/Niiaks/ticketcore/internal/model"
	"github.com/Niiaks/ticketcore/pkg/types"
)

func (s *Store) CreateAlert(_ context.Context, a *model.PriceAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.Status = model.AlertActive
	a.CreatedAt = s.now()
	cp := *a
	s.alerts[a.ID] = &cp
	s.alertIDs = append(s.alertIDs, a.ID)
	return nil
}

func (s *Store) GetAlert(_ context.Context, id string) (*model.PriceAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, apperr.NotFound("price alert %s not found", id)
	}
	cp := *a
	return &cp, nil
}

func (s *Store) ListAlerts(_ context.Context, userID string) ([]model.PriceAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.PriceAlert{}
	for i := len(s.alertIDs) - 1; i >= 0; i-- {
		if a, ok := s.alerts[s.alertIDs[i]]; ok && a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *Store) DeleteAlert(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[id]; !ok {
		return apperr.NotFound("price alert %s not found", id)
	}
	delete(s.alerts, id)
	return nil
}

func (s *Store) ActiveAlerts(_ context.Context, eventID string) ([]model.PriceAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.PriceAlert{}
	for _, id := range s.alertIDs {
		a, ok := s.alerts[id]
		if !ok || a.Status != model.AlertActive || (eventID != "" && a.EventID != eventID) {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (s *Store) UpdateLowest(_ context.Context, id string, lowest *model.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.alerts[id]; ok {
		a.CurrentLowest = lowest
	}
	return nil
}

// TriggerAlert flips an active alert. It reports false when another
// evaluation got there first.
func (s *Store) TriggerAlert(ctx context.Context, id string, lowest model.Money, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok || a.Status != model.AlertActive {
		return false, nil
	}
	a.Status = model.AlertTriggered
	a.CurrentLowest = &lowest
	a.TriggeredAt = &at
	s.enqueue(ctx, kafka.EventAlertTriggered, a.UserID, types.AlertTriggeredEvent{
		AlertID:       a.ID,
		UserID:        a.UserID,
		EventID:       a.EventID,
		TargetPrice:   a.TargetPrice,
		CurrentLowest: lowest,
	})
	return true, nil
}
