package user

import (
	"context"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/database"
	"github.com/Niiaks/ticketcore/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

type UserRepository interface {
	Touch(ctx context.Context, u model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
}

type UserRepo struct {
	db database.Querier
}

func NewUserRepository(db database.Querier) *UserRepo {
	return &UserRepo{db: db}
}

// Touch upserts the identity carried by a session token. Empty email or name
// never overwrite stored values and kyc_status is left alone.
func (r *UserRepo) Touch(ctx context.Context, u model.User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (id, email, name, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			email = COALESCE(NULLIF(EXCLUDED.email, ''), users.email),
			name = COALESCE(NULLIF(EXCLUDED.name, ''), users.name),
			role = EXCLUDED.role,
			updated_at = NOW()
		WHERE users.role <> EXCLUDED.role
			OR (EXCLUDED.email <> '' AND users.email <> EXCLUDED.email)
			OR (EXCLUDED.name <> '' AND users.name <> EXCLUDED.name)`,
		u.ID, u.Email, u.Name, u.Role)
	return errors.Wrap(err, "upsert user")
}

func (r *UserRepo) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := r.db.QueryRow(ctx, `
		SELECT id, email, name, role, kyc_status, created_at
		FROM users WHERE id = $1`, id).Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.KYCStatus, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("user %s not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	return &u, nil
}
