package reservation

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReservationRepo_ReserveGuardMiss(t *testing.T) {
	db, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer db.Close()

	until := time.Date(2026, 5, 1, 12, 30, 0, 0, time.UTC)
	db.ExpectQuery("UPDATE tickets\\s+SET status = 'reserved'").
		WithArgs("t-1", "buyer-1", until).
		WillReturnError(pgx.ErrNoRows)

	tk, err := NewReservationRepository(db).ReserveTicket(context.Background(), "t-1", "buyer-1", until)
	require.NoError(t, err)
	assert.Nil(t, tk)
	assert.NoError(t, db.ExpectationsWereMet())
}

func TestReservationRepo_ExpireReservations(t *testing.T) {
	db, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer db.Close()

	cutoff := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	db.ExpectQuery("UPDATE tickets\\s+SET status = 'available'(.|\\s)+NOT EXISTS").
		WithArgs(cutoff).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("t-1").AddRow("t-2"))

	released, err := NewReservationRepository(db).ExpireReservations(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, []string{"t-1", "t-2"}, released)
	assert.NoError(t, db.ExpectationsWereMet())
}
