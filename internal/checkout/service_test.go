package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/authz"
	"github.com/Niiaks/ticketcore/internal/config"
	"github.com/Niiaks/ticketcore/internal/kafka"
	"github.com/Niiaks/ticketcore/internal/memstore"
	"github.com/Niiaks/ticketcore/internal/model"
	"github.com/Niiaks/ticketcore/internal/psp"
	"github.com/Niiaks/ticketcore/internal/redis"
	"github.com/Niiaks/ticketcore/internal/reservation"
	"github.com/Niiaks/ticketcore/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	buyer  = authz.Actor{ID: "buyer-1", Role: model.RoleBuyer}
	other  = authz.Actor{ID: "buyer-2", Role: model.RoleBuyer}
	admin  = authz.Actor{ID: "admin-1", Role: model.RoleAdmin}
	origin = "https://tickets.example.com"
)

type fakeProvider struct {
	mu        sync.Mutex
	created   []*types.CreateCheckoutSessionRequest
	sessions  map[string]*types.StripeCheckoutSession
	expired   []string
	createErr error
	getErr    error
	// payOnExpire simulates a buyer paying just before the expire call lands.
	payOnExpire bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{sessions: map[string]*types.StripeCheckoutSession{}}
}

func (p *fakeProvider) CreateCheckoutSession(_ context.Context, req *types.CreateCheckoutSessionRequest, _ string) (*types.StripeCheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return nil, p.createErr
	}
	p.created = append(p.created, req)
	id := "cs_test_" + req.Metadata["ticket_id"]
	ps := &types.StripeCheckoutSession{
		ID: id, URL: "https://checkout.stripe.test/" + id, Status: "open", PaymentStatus: "unpaid",
		AmountTotal: req.Amount, Currency: req.Currency, ExpiresAt: req.ExpiresAt,
	}
	p.sessions[id] = ps
	return ps, nil
}

func (p *fakeProvider) GetCheckoutSession(_ context.Context, id string) (*types.StripeCheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.getErr != nil {
		return nil, p.getErr
	}
	ps, ok := p.sessions[id]
	if !ok {
		return nil, errors.New("no such session")
	}
	cp := *ps
	return &cp, nil
}

func (p *fakeProvider) ExpireCheckoutSession(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ps, ok := p.sessions[id]
	if !ok {
		return &psp.StatusError{StatusCode: 404, Message: "no such session"}
	}
	if p.payOnExpire {
		ps.Status, ps.PaymentStatus = "complete", "paid"
	}
	if ps.Status != "open" {
		return &psp.StatusError{StatusCode: 400, Message: "only open sessions can be expired"}
	}
	p.expired = append(p.expired, id)
	ps.Status = "expired"
	return nil
}

func (p *fakeProvider) pay(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[id].Status = "complete"
	p.sessions[id].PaymentStatus = "paid"
}

type memIdempotency struct {
	mu   sync.Mutex
	keys map[string][]byte
}

func (m *memIdempotency) CheckAndSetIdempotency(_ context.Context, key string, _ time.Duration) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.keys[key]
	if !ok {
		m.keys[key] = nil
		return nil, nil
	}
	if v == nil {
		return nil, redis.ErrKeyExists
	}
	return v, nil
}

func (m *memIdempotency) MarkIdempotencyComplete(_ context.Context, key string, response []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = response
	return nil
}

func (m *memIdempotency) MarkIdempotencyFailed(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

type fixture struct {
	store    *memstore.Store
	provider *fakeProvider
	svc      *CheckoutService
	now      time.Time
}

func testConfig() config.CheckoutConfig {
	return config.CheckoutConfig{
		ReservationTTL: 30 * time.Minute,
		ExpiryGrace:    2 * time.Minute,
		CommissionRate: decimal.RequireFromString("0.10"),
		IdempotencyTTL: time.Hour,
		QRSecret:       "qr-secret",
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	require.NoError(t, store.CreateTicket(context.Background(), &model.Ticket{
		ID: "t-1", EventID: "evt-1", Category: model.CategoryCat1, Price: 15000, Currency: "eur", SellerID: "seller-1",
	}))

	cfg := testConfig()
	provider := newFakeProvider()
	reservations := reservation.NewReservationService(store, cfg.ReservationTTL, cfg.ExpiryGrace)
	svc := NewCheckoutService(store, reservations, provider, &memIdempotency{keys: map[string][]byte{}}, cfg, "EUR")

	f := &fixture{store: store, provider: provider, svc: svc, now: time.Now()}
	svc.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) create(t *testing.T) *types.CreateCheckoutResponse {
	t.Helper()
	res, err := f.svc.CreateSession(context.Background(), buyer, &types.CreateCheckoutRequest{TicketID: "t-1", OriginURL: origin}, "")
	require.NoError(t, err)
	return res
}

func TestCreateSession_PricesWithCommission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.create(t)
	assert.Equal(t, "cs_test_t-1", res.SessionID)
	assert.Equal(t, "https://checkout.stripe.test/cs_test_t-1", res.URL)

	cs, err := f.store.GetSession(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.CheckoutOpen, cs.Status)
	assert.Equal(t, model.Money(15000), cs.TicketPrice)
	assert.Equal(t, model.Money(1500), cs.Commission)
	assert.Equal(t, model.Money(16500), cs.Amount)

	require.Len(t, f.provider.created, 1)
	req := f.provider.created[0]
	assert.Equal(t, int64(16500), req.Amount)
	assert.Equal(t, "eur", req.Currency)
	assert.Equal(t, origin+"/order/success?session_id={CHECKOUT_SESSION_ID}", req.SuccessURL)
	assert.Equal(t, cs.ExpiresAt.Add(2*time.Minute).Unix(), req.ExpiresAt)

	tk, _ := f.store.GetTicket(ctx, "t-1")
	assert.Equal(t, model.TicketReserved, tk.Status)
}

func TestCreateSession_TicketTaken(t *testing.T) {
	f := newFixture(t)
	f.create(t)

	_, err := f.svc.CreateSession(context.Background(), other, &types.CreateCheckoutRequest{TicketID: "t-1", OriginURL: origin}, "")
	assert.True(t, errors.Is(err, apperr.ErrConflict))
	assert.Equal(t, "ticket no longer available", apperr.PublicMessage(err))
	assert.Len(t, f.provider.created, 1)
}

func TestCreateSession_ProviderFailureReleasesTicket(t *testing.T) {
	f := newFixture(t)
	f.provider.createErr = errors.New("stripe down")

	_, err := f.svc.CreateSession(context.Background(), buyer, &types.CreateCheckoutRequest{TicketID: "t-1", OriginURL: origin}, "")
	assert.True(t, errors.Is(err, apperr.ErrProvider))

	tk, _ := f.store.GetTicket(context.Background(), "t-1")
	assert.Equal(t, model.TicketAvailable, tk.Status)
}

func TestCreateSession_IdempotencyKeyReplays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := &types.CreateCheckoutRequest{TicketID: "t-1", OriginURL: origin}

	first, err := f.svc.CreateSession(ctx, buyer, req, "key-1")
	require.NoError(t, err)
	second, err := f.svc.CreateSession(ctx, buyer, req, "key-1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, f.provider.created, 1)
}

func TestGetStatus_FinalizesOnceAcrossPolls(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.create(t)

	st, err := f.svc.GetStatus(ctx, buyer, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.CheckoutOpen, st.Status)
	assert.Nil(t, st.Order)

	f.provider.pay(res.SessionID)

	first, err := f.svc.GetStatus(ctx, buyer, res.SessionID)
	require.NoError(t, err)
	require.NotNil(t, first.Order)
	assert.Equal(t, model.CheckoutPaid, first.Status)
	assert.Equal(t, model.Money(16500), first.Order.TotalAmount)
	assert.Equal(t, model.Money(1500), first.Order.Commission)

	for i := 0; i < 3; i++ {
		again, err := f.svc.GetStatus(ctx, buyer, res.SessionID)
		require.NoError(t, err)
		assert.Equal(t, first.Order.ID, again.Order.ID)
	}

	assert.Len(t, f.store.Outbox(kafka.EventOrderCompleted), 1)
	assert.Len(t, f.store.Ledger("seller-1"), 1)

	tk, _ := f.store.GetTicket(ctx, "t-1")
	assert.Equal(t, model.TicketSold, tk.Status)

	orderID, ticketID, ok := VerifyQR("qr-secret", first.Order.QRPayload)
	require.True(t, ok)
	assert.Equal(t, first.Order.ID, orderID)
	assert.Equal(t, "t-1", ticketID)
}

func TestFinalize_ConcurrentPollAndWebhook(t *testing.T) {
	f := newFixture(t)
	res := f.create(t)
	f.provider.pay(res.SessionID)

	var (
		wg  sync.WaitGroup
		ids sync.Map
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			source := SourcePoll
			if i%2 == 0 {
				source = SourceWebhook
			}
			o, err := f.svc.Finalize(context.Background(), res.SessionID, 16500, source)
			if assert.NoError(t, err) {
				ids.Store(o.ID, true)
			}
		}(i)
	}
	wg.Wait()

	count := 0
	ids.Range(func(_, _ any) bool { count++; return true })
	assert.Equal(t, 1, count)
	assert.Len(t, f.store.Outbox(kafka.EventOrderCompleted), 1)
}

func TestGetStatus_ExpiresAfterDeadline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.create(t)

	f.now = f.now.Add(33 * time.Minute)

	st, err := f.svc.GetStatus(ctx, buyer, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.CheckoutExpired, st.Status)

	tk, _ := f.store.GetTicket(ctx, "t-1")
	assert.Equal(t, model.TicketAvailable, tk.Status)

	st, err = f.svc.GetStatus(ctx, buyer, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.CheckoutExpired, st.Status)
}

func TestGetStatus_ProviderErrorKeepsOpen(t *testing.T) {
	f := newFixture(t)
	res := f.create(t)
	f.provider.getErr = errors.New("timeout")
	f.now = f.now.Add(time.Hour)

	st, err := f.svc.GetStatus(context.Background(), buyer, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.CheckoutOpen, st.Status)
}

func TestGetStatus_OnlyBuyerOrAdmin(t *testing.T) {
	f := newFixture(t)
	res := f.create(t)

	_, err := f.svc.GetStatus(context.Background(), other, res.SessionID)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	_, err = f.svc.GetStatus(context.Background(), admin, res.SessionID)
	assert.NoError(t, err)
}

func TestFinalize_AmountMismatchFailsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.create(t)

	_, err := f.svc.Finalize(ctx, res.SessionID, 100, SourceWebhook)
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))

	cs, _ := f.store.GetSession(ctx, res.SessionID)
	assert.Equal(t, model.CheckoutFailed, cs.Status)
	tk, _ := f.store.GetTicket(ctx, "t-1")
	assert.Equal(t, model.TicketAvailable, tk.Status)
}

func TestFinalize_AfterExpiryNeedsReconciliation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.create(t)

	_, err := f.svc.Expire(ctx, res.SessionID)
	require.NoError(t, err)

	_, err = f.svc.Finalize(ctx, res.SessionID, 16500, SourceWebhook)
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))
	assert.Empty(t, f.store.Outbox(kafka.EventOrderCompleted))
}

func TestSweepExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.create(t)

	n, err := f.svc.SweepExpired(ctx, f.now.Add(31*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = f.svc.SweepExpired(ctx, f.now.Add(33*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{res.SessionID}, f.provider.expired)

	tk, _ := f.store.GetTicket(ctx, "t-1")
	assert.Equal(t, model.TicketAvailable, tk.Status)
}

func TestSweepExpired_FinalizesPaidSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.create(t)
	f.provider.pay(res.SessionID)

	n, err := f.svc.SweepExpired(ctx, f.now.Add(33*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, f.provider.expired)

	cs, _ := f.store.GetSession(ctx, res.SessionID)
	assert.Equal(t, model.CheckoutPaid, cs.Status)
	tk, _ := f.store.GetTicket(ctx, "t-1")
	assert.Equal(t, model.TicketSold, tk.Status)

	st, err := f.svc.GetStatus(ctx, buyer, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.CheckoutPaid, st.Status)
	require.NotNil(t, st.Order)

	late, err := f.svc.Finalize(ctx, res.SessionID, 16500, SourceWebhook)
	require.NoError(t, err)
	assert.Equal(t, st.Order.ID, late.ID)
	assert.Len(t, f.store.Outbox(kafka.EventOrderCompleted), 1)
}

func TestSweepExpired_PaymentLandsDuringExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.create(t)
	f.provider.payOnExpire = true

	n, err := f.svc.SweepExpired(ctx, f.now.Add(33*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n)

	cs, _ := f.store.GetSession(ctx, res.SessionID)
	assert.Equal(t, model.CheckoutPaid, cs.Status)
	assert.Len(t, f.store.Outbox(kafka.EventOrderCompleted), 1)
}

func TestSweepExpired_ProviderDownKeepsTicketHeld(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.create(t)
	f.provider.getErr = errors.New("timeout")

	later := f.now.Add(33 * time.Minute)
	n, err := f.svc.SweepExpired(ctx, later)
	require.NoError(t, err)
	assert.Zero(t, n)

	released, err := f.store.ExpireReservations(ctx, later.Add(-2*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, released)

	cs, _ := f.store.GetSession(ctx, res.SessionID)
	assert.Equal(t, model.CheckoutOpen, cs.Status)
	tk, _ := f.store.GetTicket(ctx, "t-1")
	assert.Equal(t, model.TicketReserved, tk.Status)
}

func TestGetStatus_PaidAtDeadlineIsNotExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.create(t)
	f.provider.payOnExpire = true
	f.now = f.now.Add(33 * time.Minute)

	st, err := f.svc.GetStatus(ctx, buyer, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.CheckoutPaid, st.Status)
	assert.Equal(t, "paid", st.PaymentStatus)
	require.NotNil(t, st.Order)
}

func TestVerifyQR_RejectsTampering(t *testing.T) {
	payload := SignQR("s3cret", "order-1", "t-1")
	_, _, ok := VerifyQR("s3cret", payload)
	assert.True(t, ok)

	_, _, ok = VerifyQR("s3cret", "TIX|order-2|t-1|"+payload[len(payload)-16:])
	assert.False(t, ok)
	_, _, ok = VerifyQR("other", payload)
	assert.False(t, ok)
	_, _, ok = VerifyQR("s3cret", "garbage")
	assert.False(t, ok)
}
