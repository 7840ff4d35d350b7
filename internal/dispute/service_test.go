package dispute

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/authz"
	"github.com/Niiaks/ticketcore/internal/kafka"
	"github.com/Niiaks/ticketcore/internal/memstore"
	"github.com/Niiaks/ticketcore/internal/model"
	"github.com/Niiaks/ticketcore/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	buyer    = authz.Actor{ID: "buyer-1", Role: model.RoleBuyer}
	stranger = authz.Actor{ID: "buyer-2", Role: model.RoleBuyer}
	admin    = authz.Actor{ID: "admin-1", Role: model.RoleAdmin}
)

type fixture struct {
	svc   *DisputeService
	store *memstore.Store
	order *model.Order
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	o, err := store.SeedPaidOrder(context.Background(), "seller-1", "buyer-1", 15000)
	require.NoError(t, err)
	return &fixture{svc: NewDisputeService(store, 48*time.Hour), store: store, order: o}
}

func (f *fixture) open(t *testing.T) *model.Dispute {
	t.Helper()
	d, err := f.svc.OpenDispute(context.Background(), buyer, f.order.ID, &types.OpenDisputeRequest{Reason: "ticket invalid"})
	require.NoError(t, err)
	return d
}

func assertBalance(t *testing.T, store *memstore.Store, pending model.Money) {
	t.Helper()
	ctx := context.Background()
	b, err := store.SellerBalance(ctx, "seller-1")
	require.NoError(t, err)
	assert.Equal(t, b.Earned, b.PendingBalance+b.InFlight+b.TotalPaid)
	assert.Equal(t, pending, b.PendingBalance)
	total, err := store.LedgerTotal(ctx, "seller-1")
	require.NoError(t, err)
	assert.Equal(t, b.PendingBalance, total)
}

func TestOpenDispute_HoldsOrderOutOfBalance(t *testing.T) {
	f := newFixture(t)
	d := f.open(t)

	assert.Equal(t, model.DisputeOpen, d.Status)
	assert.Equal(t, model.Money(15000), d.Amount)
	assert.Equal(t, "seller-1", d.SellerID)

	o, err := f.store.GetOrder(context.Background(), f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderDisputed, o.Status)
	assertBalance(t, f.store, 0)
	assert.Len(t, f.store.Outbox(kafka.EventDisputeOpened), 1)
}

func TestOpenDispute_Rules(t *testing.T) {
	t.Run("only the buyer or staff", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.OpenDispute(context.Background(), stranger, f.order.ID, &types.OpenDisputeRequest{Reason: "x"})
		assert.True(t, errors.Is(err, apperr.ErrForbidden))
	})

	t.Run("one open dispute per order", func(t *testing.T) {
		f := newFixture(t)
		f.open(t)
		_, err := f.svc.OpenDispute(context.Background(), buyer, f.order.ID, &types.OpenDisputeRequest{Reason: "again"})
		assert.True(t, errors.Is(err, apperr.ErrInvalidState))
	})

	t.Run("window closes after 48h", func(t *testing.T) {
		f := newFixture(t)
		f.svc.now = func() time.Time { return f.order.CreatedAt.Add(49 * time.Hour) }
		_, err := f.svc.OpenDispute(context.Background(), buyer, f.order.ID, &types.OpenDisputeRequest{Reason: "late"})
		assert.True(t, errors.Is(err, apperr.ErrInvalidState))
	})

	t.Run("unknown order", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.OpenDispute(context.Background(), buyer, "missing", &types.OpenDisputeRequest{Reason: "x"})
		assert.True(t, errors.Is(err, apperr.ErrNotFound))
	})
}

func TestResolve_RefundsOnce(t *testing.T) {
	f := newFixture(t)
	d := f.open(t)
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		resolved int
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Resolve(ctx, admin, d.ID, &types.ResolveDisputeRequest{Status: model.DisputeResolved, Resolution: "refund"})
			if err == nil {
				mu.Lock()
				resolved++
				mu.Unlock()
				return
			}
			assert.True(t, errors.Is(err, apperr.ErrInvalidState), "got %v", err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, resolved)
	o, err := f.store.GetOrder(ctx, f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderRefunded, o.Status)

	refunds := 0
	for _, e := range f.store.Ledger("seller-1") {
		if e.Kind == model.LedgerRefund {
			refunds++
		}
	}
	assert.Equal(t, 1, refunds)
	assertBalance(t, f.store, 0)
	assert.Len(t, f.store.Outbox(kafka.EventDisputeRefunded), 1)
}

func TestResolve_CloseRestoresBalance(t *testing.T) {
	f := newFixture(t)
	d := f.open(t)

	got, err := f.svc.Resolve(context.Background(), admin, d.ID, &types.ResolveDisputeRequest{Status: model.DisputeClosed, Resolution: "ticket was valid"})
	require.NoError(t, err)
	assert.Equal(t, model.DisputeClosed, got.Status)
	assert.Equal(t, "admin-1", got.ResolvedBy)
	require.NotNil(t, got.ResolvedAt)

	o, err := f.store.GetOrder(context.Background(), f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderCompleted, o.Status)
	assertBalance(t, f.store, 15000)
	assert.Len(t, f.store.Outbox(kafka.EventDisputeClosed), 1)
}

func TestResolve_Rules(t *testing.T) {
	f := newFixture(t)
	d := f.open(t)
	ctx := context.Background()

	_, err := f.svc.Resolve(ctx, buyer, d.ID, &types.ResolveDisputeRequest{Status: model.DisputeResolved})
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	_, err = f.svc.Resolve(ctx, admin, d.ID, &types.ResolveDisputeRequest{Status: model.DisputeOpen})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = f.svc.Resolve(ctx, admin, "missing", &types.ResolveDisputeRequest{Status: model.DisputeClosed})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestListDisputes(t *testing.T) {
	f := newFixture(t)
	d := f.open(t)
	ctx := context.Background()

	open, err := f.svc.ListDisputes(ctx, admin, model.DisputeOpen)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, d.ID, open[0].ID)

	closed, err := f.svc.ListDisputes(ctx, admin, model.DisputeClosed)
	require.NoError(t, err)
	assert.Empty(t, closed)

	_, err = f.svc.ListDisputes(ctx, buyer, "")
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	mine, err := f.svc.ListForUser(ctx, buyer)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	sellers, err := f.svc.ListForUser(ctx, authz.Actor{ID: "seller-1", Role: model.RoleSeller})
	require.NoError(t, err)
	assert.Len(t, sellers, 1)

	others, err := f.svc.ListForUser(ctx, stranger)
	require.NoError(t, err)
	assert.Empty(t, others)
}
