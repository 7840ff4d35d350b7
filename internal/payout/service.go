// Package payout pays sellers out of their derived pending balance.
package payout

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/authz"
	"github.com/Niiaks/ticketcore/internal/metrics"
	"github.com/Niiaks/ticketcore/internal/middleware"
	"github.com/Niiaks/ticketcore/internal/model"
	"github.com/Niiaks/ticketcore/internal/redis"
	"github.com/Niiaks/ticketcore/pkg/types"
	"github.com/google/uuid"
)

type IdempotencyStore interface {
	CheckAndSetIdempotency(ctx context.Context, key string, ttl time.Duration) ([]byte, error)
	MarkIdempotencyComplete(ctx context.Context, key string, response []byte, ttl time.Duration) error
	MarkIdempotencyFailed(ctx context.Context, key string) error
}

type PayoutService struct {
	repo           Repository
	idempotency    IdempotencyStore
	idempotencyTTL time.Duration
}

func NewPayoutService(repo Repository, idempotency IdempotencyStore, idempotencyTTL time.Duration) *PayoutService {
	return &PayoutService{repo: repo, idempotency: idempotency, idempotencyTTL: idempotencyTTL}
}

func (s *PayoutService) CreatePayout(ctx context.Context, actor authz.Actor, req *types.CreatePayoutRequest, idempotencyKey string) (*model.Payout, error) {
	logger := middleware.GetLogger(ctx)

	if err := authz.Authorize(actor, authz.ActionManagePayouts, authz.Resource{}); err != nil {
		return nil, err
	}
	if req.Amount <= 0 || req.Amount > model.MaxAmount {
		return nil, apperr.Validation("amount must be between 0.01 and %s", model.MaxAmount)
	}

	key := ""
	if idempotencyKey != "" && s.idempotency != nil {
		key = "payout:" + idempotencyKey
		cached, err := s.idempotency.CheckAndSetIdempotency(ctx, key, s.idempotencyTTL)
		switch {
		case cached != nil:
			var p model.Payout
			if err := json.Unmarshal(cached, &p); err != nil {
				return nil, err
			}
			logger.Info().Str("payout_id", p.ID).Msg("Returning cached payout due to idempotency key")
			return &p, nil
		case errors.Is(err, redis.ErrKeyExists):
			return nil, apperr.Conflict("a request with this idempotency key is in progress")
		case err != nil:
			logger.Warn().Err(err).Msg("idempotency store unavailable, continuing without it")
			key = ""
		}
	}

	p := &model.Payout{
		ID:        uuid.NewString(),
		SellerID:  req.SellerID,
		Amount:    req.Amount,
		Notes:     req.Notes,
		CreatedBy: actor.ID,
	}
	if err := s.repo.CreatePayout(ctx, p); err != nil {
		if key != "" {
			if mErr := s.idempotency.MarkIdempotencyFailed(ctx, key); mErr != nil {
				logger.Warn().Err(mErr).Msg("failed to clear idempotency key")
			}
		}
		if errors.Is(err, apperr.ErrInsufficientBalance) {
			metrics.Payouts.WithLabelValues("insufficient_balance").Inc()
			logger.Warn().Str("seller_id", req.SellerID).Stringer("amount", req.Amount).Msg("payout rejected")
		}
		return nil, err
	}

	if key != "" {
		body, _ := json.Marshal(p)
		if err := s.idempotency.MarkIdempotencyComplete(ctx, key, body, s.idempotencyTTL); err != nil {
			logger.Warn().Err(err).Msg("failed to cache payout response")
		}
	}

	metrics.Payouts.WithLabelValues("created").Inc()
	logger.Info().Str("payout_id", p.ID).Str("seller_id", p.SellerID).Stringer("amount", p.Amount).Msg("payout created")
	return p, nil
}

func (s *PayoutService) CompletePayout(ctx context.Context, actor authz.Actor, payoutID string) (*model.Payout, error) {
	if err := authz.Authorize(actor, authz.ActionManagePayouts, authz.Resource{}); err != nil {
		return nil, err
	}
	p, err := s.repo.CompletePayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	metrics.Payouts.WithLabelValues("completed").Inc()
	middleware.GetLogger(ctx).Info().Str("payout_id", p.ID).Str("seller_id", p.SellerID).Msg("payout completed")
	return p, nil
}

func (s *PayoutService) ListPayouts(ctx context.Context, actor authz.Actor) ([]model.Payout, error) {
	if err := authz.Authorize(actor, authz.ActionManagePayouts, authz.Resource{}); err != nil {
		return nil, err
	}
	return s.repo.ListPayouts(ctx)
}
