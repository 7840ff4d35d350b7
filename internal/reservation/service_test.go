package reservation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/memstore"
	"github.com/Niiaks/ticketcore/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedTicket(t *testing.T, store *memstore.Store) *model.Ticket {
	t.Helper()
	tk := &model.Ticket{ID: "t-1", EventID: "evt-1", Category: model.CategoryCat1, Price: 15000, Currency: "eur", SellerID: "seller-1"}
	require.NoError(t, store.CreateTicket(context.Background(), tk))
	return tk
}

func newService(store *memstore.Store, now time.Time) *ReservationService {
	svc := NewReservationService(store, 30*time.Minute, 2*time.Minute)
	svc.now = func() time.Time { return now }
	return svc
}

func TestReserve(t *testing.T) {
	store := memstore.New()
	seedTicket(t, store)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := newService(store, now)

	tok, err := svc.Reserve(context.Background(), "t-1", "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, model.Money(15000), tok.Price)
	assert.Equal(t, "seller-1", tok.SellerID)
	assert.Equal(t, now.Add(30*time.Minute), tok.ExpiresAt)

	got, err := store.GetTicket(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, model.TicketReserved, got.Status)
	require.NotNil(t, got.ReservedBy)
	assert.Equal(t, "buyer-1", *got.ReservedBy)
}

func TestReserve_ConcurrentBuyersExactlyOneWins(t *testing.T) {
	store := memstore.New()
	seedTicket(t, store)
	svc := NewReservationService(store, 30*time.Minute, 0)

	const buyers = 50
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Reserve(context.Background(), "t-1", fmt.Sprintf("buyer-%d", i))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, apperr.ErrConflict):
				conflicts++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, buyers-1, conflicts)
}

func TestReserve_OwnTicket(t *testing.T) {
	store := memstore.New()
	seedTicket(t, store)
	svc := NewReservationService(store, 30*time.Minute, 0)

	_, err := svc.Reserve(context.Background(), "t-1", "seller-1")
	assert.True(t, errors.Is(err, apperr.ErrValidation), "got %v", err)
}

func TestReserve_UnknownTicket(t *testing.T) {
	svc := NewReservationService(memstore.New(), 30*time.Minute, 0)
	_, err := svc.Reserve(context.Background(), "t-404", "buyer-1")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestRelease(t *testing.T) {
	store := memstore.New()
	seedTicket(t, store)
	svc := NewReservationService(store, 30*time.Minute, 0)
	ctx := context.Background()

	tok, err := svc.Reserve(ctx, "t-1", "buyer-1")
	require.NoError(t, err)
	require.NoError(t, svc.Release(ctx, tok))

	got, _ := store.GetTicket(ctx, "t-1")
	assert.Equal(t, model.TicketAvailable, got.Status)
	assert.Nil(t, got.ReservedBy)

	// a stale token must not release somebody else's hold
	next, err := svc.Reserve(ctx, "t-1", "buyer-2")
	require.NoError(t, err)
	require.NoError(t, svc.Release(ctx, tok))
	got, _ = store.GetTicket(ctx, "t-1")
	assert.Equal(t, model.TicketReserved, got.Status)
	assert.Equal(t, "buyer-2", *got.ReservedBy)
	assert.Greater(t, next.Version, tok.Version)
}

func TestExpireDue_HonoursGrace(t *testing.T) {
	store := memstore.New()
	seedTicket(t, store)
	start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := newService(store, start)
	ctx := context.Background()

	_, err := svc.Reserve(ctx, "t-1", "buyer-1")
	require.NoError(t, err)

	n, err := svc.ExpireDue(ctx, start.Add(31*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n, "still inside the grace period")

	n, err = svc.ExpireDue(ctx, start.Add(33*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _ := store.GetTicket(ctx, "t-1")
	assert.Equal(t, model.TicketAvailable, got.Status)

	_, err = svc.Reserve(ctx, "t-1", "buyer-2")
	assert.NoError(t, err)
}
