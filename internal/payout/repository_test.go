package payout

import (
	"context"
	"errors"
	"testing"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/model"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayoutRepo_CreateChecksBalanceUnderLock(t *testing.T) {
	db, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer db.Close()

	db.ExpectBegin()
	db.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs("seller-1").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	db.ExpectQuery("SELECT").WithArgs("seller-1").
		WillReturnRows(pgxmock.NewRows([]string{"earned", "in_flight", "paid", "refunded", "orders"}).
			AddRow(model.Money(15000), model.Money(15000), model.Money(0), model.Money(0), 1))
	db.ExpectRollback()

	err = NewPayoutRepository(db).CreatePayout(context.Background(), &model.Payout{ID: "p-1", SellerID: "seller-1", Amount: 100})
	assert.True(t, errors.Is(err, apperr.ErrInsufficientBalance))
	assert.NoError(t, db.ExpectationsWereMet())
}
