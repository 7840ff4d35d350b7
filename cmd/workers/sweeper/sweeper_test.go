package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Niiaks/ticketcore/internal/redis"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func newSweeper(lock lockFunc) *sweeper {
	log := zerolog.Nop()
	return &sweeper{
		lock:    lock,
		lockTTL: time.Second,
		now:     func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
		log:     &log,
	}
}

func TestTick_RunsWhenElected(t *testing.T) {
	released := false
	s := newSweeper(func(_ context.Context, key string, _ time.Duration) (func(), error) {
		assert.Equal(t, "sweep:reservations", key)
		return func() { released = true }, nil
	})

	var seen time.Time
	ran := s.tick(context.Background(), "reservations", func(_ context.Context, now time.Time) (int, error) {
		seen = now
		return 3, nil
	})

	assert.True(t, ran)
	assert.True(t, released)
	assert.Equal(t, s.now(), seen)
}

func TestTick_SkipsWhenAnotherReplicaHoldsTheLock(t *testing.T) {
	s := newSweeper(func(context.Context, string, time.Duration) (func(), error) {
		return nil, redis.ErrLockHeld
	})

	ran := s.tick(context.Background(), "alerts", func(context.Context, time.Time) (int, error) {
		t.Fatal("sweep must not run")
		return 0, nil
	})
	assert.False(t, ran)
}

func TestTick_ReleasesAfterFailure(t *testing.T) {
	released := false
	s := newSweeper(func(context.Context, string, time.Duration) (func(), error) {
		return func() { released = true }, nil
	})

	ran := s.tick(context.Background(), "alerts", func(context.Context, time.Time) (int, error) {
		return 0, errors.New("db down")
	})
	assert.True(t, ran)
	assert.True(t, released)
}

func TestEvery_StopsOnCancel(t *testing.T) {
	s := newSweeper(func(context.Context, string, time.Duration) (func(), error) {
		return func() {}, nil
	})
	ctx, cancel := context.WithCancel(context.Background())

	runs := 0
	done := make(chan error, 1)
	go func() {
		done <- s.every(ctx, "alerts", time.Hour, func(context.Context, time.Time) (int, error) {
			runs++
			cancel()
			return 0, nil
		})
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
		assert.Equal(t, 1, runs)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
