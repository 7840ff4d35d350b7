package user

import (
	"context"
	"errors"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/authz"
	"github.com/Niiaks/ticketcore/internal/model"
)

type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{
		repo: repo,
	}
}

// Me returns the caller's stored profile, falling back to what the token
// says when the identity has not been cached yet.
func (us *UserService) Me(ctx context.Context, actor authz.Actor) (*model.User, error) {
	if actor.ID == "" {
		return nil, apperr.ErrUnauthorized
	}
	u, err := us.repo.GetUser(ctx, actor.ID)
	if errors.Is(err, apperr.ErrNotFound) {
		return &model.User{ID: actor.ID, Role: actor.Role, KYCStatus: model.KYCNone}, nil
	}
	if err != nil {
		return nil, err
	}
	u.Role = actor.Role
	return u, nil
}

func (us *UserService) GetUser(ctx context.Context, id string) (*model.User, error) {
	return us.repo.GetUser(ctx, id)
}
