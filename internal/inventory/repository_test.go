package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInventoryRepo_Rollups(t *testing.T) {
	db, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer db.Close()

	db.ExpectQuery("SELECT category, COUNT\\(\\*\\), MIN\\(price\\)").
		WithArgs("evt-1").
		WillReturnRows(pgxmock.NewRows([]string{"category", "count", "min"}).
			AddRow(model.CategoryCat1, 3, model.Money(9000)).
			AddRow(model.CategoryVIP, 1, model.Money(40000)))

	rollups, err := NewInventoryRepository(db).Rollups(context.Background(), "evt-1")
	require.NoError(t, err)
	require.Len(t, rollups, 2)
	assert.Equal(t, model.CategoryRollup{EventID: "evt-1", Category: model.CategoryCat1, Count: 3, LowestPrice: 9000}, rollups[0])
	assert.NoError(t, db.ExpectationsWereMet())
}

func TestInventoryRepo_RemoveTicketGuard(t *testing.T) {
	db, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer db.Close()

	db.ExpectExec("UPDATE tickets SET status = 'removed'").
		WithArgs("t-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	removed, err := NewInventoryRepository(db).RemoveTicket(context.Background(), "t-1")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.NoError(t, db.ExpectationsWereMet())
}

func TestInventoryRepo_GetTicketNotFound(t *testing.T) {
	db, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer db.Close()

	db.ExpectQuery("SELECT id, event_id").WithArgs("t-404").WillReturnError(pgx.ErrNoRows)

	_, err = NewInventoryRepository(db).GetTicket(context.Background(), "t-404")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}
