package order

import (
	"context"
	"errors"
	"testing"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/authz"
	"github.com/Niiaks/ticketcore/internal/memstore"
	"github.com/Niiaks/ticketcore/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	buyer  = authz.Actor{ID: "buyer-1", Role: model.RoleBuyer}
	seller = authz.Actor{ID: "seller-1", Role: model.RoleSeller}
	admin  = authz.Actor{ID: "admin-1", Role: model.RoleAdmin}
	owner  = authz.Actor{ID: "owner-1", Role: model.RoleOwner}
)

func newService(t *testing.T) (*OrderService, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	store.AddUser(model.User{ID: "seller-1", Name: "Sam Seller", Email: "sam@example.com", Role: model.RoleSeller, KYCStatus: model.KYCVerified})
	store.AddUser(model.User{ID: "buyer-1", Email: "bea@example.com", Role: model.RoleBuyer})
	return NewOrderService(store, store), store
}

func TestGetOrder_Ownership(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	o, err := store.SeedPaidOrder(ctx, "seller-1", "buyer-1", 15000)
	require.NoError(t, err)

	for _, actor := range []authz.Actor{buyer, seller, admin} {
		got, err := svc.GetOrder(ctx, actor, o.ID)
		require.NoError(t, err, actor.ID)
		assert.Equal(t, o.ID, got.ID)
	}

	_, err = svc.GetOrder(ctx, authz.Actor{ID: "stranger", Role: model.RoleBuyer}, o.ID)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	_, err = svc.GetOrder(ctx, admin, "missing")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestSellerBalance_AfterSale(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	o, err := store.SeedPaidOrder(ctx, "seller-1", "buyer-1", 15000)
	require.NoError(t, err)
	assert.Equal(t, model.Money(1500), o.Commission)
	assert.Equal(t, model.Money(16500), o.TotalAmount)

	b, err := svc.ComputeSellerBalance(ctx, "seller-1")
	require.NoError(t, err)
	assert.Equal(t, model.Money(15000), b.Earned)
	assert.Equal(t, model.Money(15000), b.PendingBalance)
	assert.Equal(t, 1, b.OrdersCount)
	assert.Equal(t, b.Earned, b.PendingBalance+b.InFlight+b.TotalPaid)
}

func TestReconcile(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	_, err := store.SeedPaidOrder(ctx, "seller-1", "buyer-1", 15000)
	require.NoError(t, err)

	d, err := svc.Reconcile(ctx, admin, "seller-1")
	require.NoError(t, err)
	assert.True(t, d.Matched)
	assert.Equal(t, model.Money(15000), d.ActualAmount)

	_, err = svc.Reconcile(ctx, seller, "seller-1")
	assert.True(t, errors.Is(err, apperr.ErrForbidden))
}

func TestListOrders(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	_, err := store.SeedPaidOrder(ctx, "seller-1", "buyer-1", 15000)
	require.NoError(t, err)
	_, err = store.SeedPaidOrder(ctx, "seller-2", "buyer-2", 9000)
	require.NoError(t, err)

	mine, err := svc.ListOrdersForUser(ctx, buyer)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "bea@example.com", mine[0].BuyerEmail)

	all, err := svc.ListOrdersForAdmin(ctx, admin, model.OrderFilter{SellerID: "seller-2"})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, model.Money(9000), all[0].TicketPrice)

	_, err = svc.ListOrdersForAdmin(ctx, buyer, model.OrderFilter{})
	assert.True(t, errors.Is(err, apperr.ErrForbidden))
}

func TestOwnerViews(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	_, err := store.SeedPaidOrder(ctx, "seller-1", "buyer-1", 15000)
	require.NoError(t, err)
	store.AddEvent(model.Event{ID: "evt-1"})

	d, err := svc.OwnerDashboard(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, model.Money(16500), d.Revenue.Total)
	assert.Equal(t, model.Money(1500), d.Revenue.Commission)
	assert.Equal(t, 1, d.Orders.Completed)
	assert.Len(t, d.RecentOrders, 1)

	sellers, err := svc.ListSellerBalances(ctx, owner)
	require.NoError(t, err)
	require.Len(t, sellers, 1)
	assert.Equal(t, "Sam Seller", sellers[0].Name)
	assert.Equal(t, model.Money(15000), sellers[0].PendingBalance)

	_, err = svc.OwnerDashboard(ctx, admin)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	st, err := svc.AdminStats(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, 1, st.SoldTickets)
	assert.Equal(t, 1, st.VerifiedSellers)
	assert.Equal(t, 1, st.TotalEvents)
	assert.Equal(t, model.Money(1500), st.TotalCommission)
}
