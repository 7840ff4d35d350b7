package user

import (
	"context"
	"errors"
	"testing"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/authz"
	"github.com/Niiaks/ticketcore/internal/memstore"
	"github.com/Niiaks/ticketcore/internal/model"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMe(t *testing.T) {
	store := memstore.New()
	store.AddUser(model.User{ID: "u-1", Email: "ana@example.com", Name: "Ana", Role: model.RoleBuyer, KYCStatus: model.KYCVerified})
	svc := NewUserService(store)
	ctx := context.Background()

	u, err := svc.Me(ctx, authz.Actor{ID: "u-1", Role: model.RoleSeller})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", u.Email)
	assert.Equal(t, model.RoleSeller, u.Role)
	assert.Equal(t, model.KYCVerified, u.KYCStatus)

	fresh, err := svc.Me(ctx, authz.Actor{ID: "u-2", Role: model.RoleBuyer})
	require.NoError(t, err)
	assert.Equal(t, "u-2", fresh.ID)
	assert.Equal(t, model.KYCNone, fresh.KYCStatus)

	_, err = svc.Me(ctx, authz.Actor{})
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))
}

func TestTouchKeepsKYC(t *testing.T) {
	store := memstore.New()
	store.AddUser(model.User{ID: "u-1", Email: "ana@example.com", Role: model.RoleSeller, KYCStatus: model.KYCVerified})

	require.NoError(t, store.Touch(context.Background(), model.User{ID: "u-1", Name: "Ana", Role: model.RoleSeller}))

	u, err := NewUserService(store).GetUser(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, model.KYCVerified, u.KYCStatus)
	assert.Equal(t, "Ana", u.Name)
}

func TestUserRepo_GetUserNotFound(t *testing.T) {
	db, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer db.Close()

	db.ExpectQuery("SELECT id, email, name, role, kyc_status").WithArgs("u-9").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "name", "role", "kyc_status", "created_at"}))

	_, err = NewUserRepository(db).GetUser(context.Background(), "u-9")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.NoError(t, db.ExpectationsWereMet())
}

func TestUserRepo_Touch(t *testing.T) {
	db, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer db.Close()

	db.ExpectExec("INSERT INTO users").WithArgs("u-1", "ana@example.com", "Ana", model.RoleBuyer).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = NewUserRepository(db).Touch(context.Background(), model.User{ID: "u-1", Email: "ana@example.com", Name: "Ana", Role: model.RoleBuyer})
	require.NoError(t, err)
	assert.NoError(t, db.ExpectationsWereMet())
}
