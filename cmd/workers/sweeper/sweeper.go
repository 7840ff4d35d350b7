package main

import (
	"context"
	"errors"
	"time"

	"github.com/Niiaks/ticketcore/internal/metrics"
	"github.com/Niiaks/ticketcore/internal/redis"
	"github.com/rs/zerolog"
)

// lockFunc elects the replica that runs a tick. It returns redis.ErrLockHeld
// when another replica already owns the key.
type lockFunc func(ctx context.Context, key string, ttl time.Duration) (release func(), err error)

// sweepFunc performs one pass and reports how many rows it touched.
type sweepFunc func(ctx context.Context, now time.Time) (int, error)

type sweeper struct {
	lock    lockFunc
	lockTTL time.Duration
	now     func() time.Time
	log     *zerolog.Logger
}

// every runs fn on interval until ctx is cancelled.
func (s *sweeper) every(ctx context.Context, name string, interval time.Duration, fn sweepFunc) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.tick(ctx, name, fn)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.tick(ctx, name, fn)
		}
	}
}

// tick runs fn once if this replica wins the election. It reports whether
// fn ran.
func (s *sweeper) tick(ctx context.Context, name string, fn sweepFunc) bool {
	release, err := s.lock(ctx, "sweep:"+name, s.lockTTL)
	if errors.Is(err, redis.ErrLockHeld) {
		s.log.Debug().Str("sweep", name).Msg("another replica owns this tick")
		return false
	}
	if err != nil {
		s.log.Warn().Err(err).Str("sweep", name).Msg("failed to take sweep lock")
		return false
	}
	defer release()

	start := time.Now()
	n, err := fn(ctx, s.now())
	metrics.SweepDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		s.log.Error().Err(err).Str("sweep", name).Int("affected", n).Msg("sweep failed")
		return true
	}
	if n > 0 {
		s.log.Info().Str("sweep", name).Int("affected", n).Dur("duration", time.Since(start)).Msg("sweep completed")
	}
	return true
}
