package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/memstore"
	"github.com/Niiaks/ticketcore/internal/model"
	"github.com/Niiaks/ticketcore/pkg/constants"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "whsec_test"

type fakeCheckout struct {
	finalized []string
	expired   []string
	err       error
}

func (f *fakeCheckout) Finalize(_ context.Context, sessionID string, _ model.Money, _ string) (*model.Order, error) {
	f.finalized = append(f.finalized, sessionID)
	if f.err != nil {
		return nil, f.err
	}
	return &model.Order{ID: "order-1", SessionID: sessionID}, nil
}

func (f *fakeCheckout) Expire(_ context.Context, sessionID string) (bool, error) {
	f.expired = append(f.expired, sessionID)
	return true, nil
}

func sign(body string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), body)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func event(id, typ, paymentStatus string) string {
	return fmt.Sprintf(`{"id":%q,"type":%q,"data":{"object":{"id":"cs_1","payment_status":%q,"amount_total":16500}}}`, id, typ, paymentStatus)
}

func deliver(h *WebhookHandler, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/stripe", strings.NewReader(body))
	req.Header.Set(constants.HeaderStripeSignature, signature)
	rec := httptest.NewRecorder()
	h.HandleStripe(rec, req)
	return rec
}

func TestHandleStripe_FinalizesOnce(t *testing.T) {
	store := memstore.New()
	co := &fakeCheckout{}
	h := NewWebhookHandler(secret, store, co)

	body := event("evt_1", "checkout.session.completed", "paid")
	sig := sign(body, time.Now())

	rec := deliver(h, body, sig)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = deliver(h, body, sig)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []string{"cs_1"}, co.finalized)
	assert.Equal(t, constants.WebhookProcessed, store.WebhookStatus("evt_1"))
}

func TestHandleStripe_RejectsBadSignature(t *testing.T) {
	co := &fakeCheckout{}
	h := NewWebhookHandler(secret, memstore.New(), co)
	body := event("evt_1", "checkout.session.completed", "paid")

	assert.Equal(t, http.StatusUnauthorized, deliver(h, body, "t=1,v1=deadbeef").Code)
	assert.Equal(t, http.StatusUnauthorized, deliver(h, body, sign(body, time.Now().Add(-10*time.Minute))).Code)
	assert.Equal(t, http.StatusBadRequest, deliver(h, body, "").Code)
	assert.Empty(t, co.finalized)
}

func TestHandleStripe_ExpiredEvent(t *testing.T) {
	co := &fakeCheckout{}
	h := NewWebhookHandler(secret, memstore.New(), co)
	body := event("evt_2", "checkout.session.expired", "unpaid")

	rec := deliver(h, body, sign(body, time.Now()))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"cs_1"}, co.expired)
}

func TestHandleStripe_Unreconciled(t *testing.T) {
	store := memstore.New()
	co := &fakeCheckout{err: apperr.InvalidState("checkout session cs_1 is expired")}
	h := NewWebhookHandler(secret, store, co)
	body := event("evt_3", "checkout.session.completed", "paid")

	rec := deliver(h, body, sign(body, time.Now()))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, constants.WebhookUnreconciled, store.WebhookStatus("evt_3"))
}

func TestHandleStripe_TransientFailureIsRedelivered(t *testing.T) {
	store := memstore.New()
	co := &fakeCheckout{err: fmt.Errorf("db down")}
	h := NewWebhookHandler(secret, store, co)
	body := event("evt_4", "checkout.session.completed", "paid")

	rec := deliver(h, body, sign(body, time.Now()))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, constants.WebhookFailed, store.WebhookStatus("evt_4"))

	co.err = nil
	rec = deliver(h, body, sign(body, time.Now()))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, co.finalized, 2)
}

func TestHandleStripe_AsyncPaymentPending(t *testing.T) {
	co := &fakeCheckout{}
	h := NewWebhookHandler(secret, memstore.New(), co)
	body := event("evt_5", "checkout.session.completed", "unpaid")

	assert.Equal(t, http.StatusOK, deliver(h, body, sign(body, time.Now())).Code)
	assert.Empty(t, co.finalized)
}

func TestWebhookRepo_DuplicateProcessed(t *testing.T) {
	db, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer db.Close()

	db.ExpectQuery("INSERT INTO psp_webhooks").
		WithArgs("evt_1", "checkout.session.completed", []byte(`{}`)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	fresh, err := NewWebhookRepository(db).RecordWebhook(context.Background(), "evt_1", "checkout.session.completed", []byte(`{}`))
	require.NoError(t, err)
	assert.False(t, fresh)
	assert.NoError(t, db.ExpectationsWereMet())
}
