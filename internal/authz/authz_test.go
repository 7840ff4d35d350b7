package authz

import (
	"errors"
	"testing"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestAuthorize(t *testing.T) {
	buyer := Actor{ID: "u-buyer", Role: model.RoleBuyer}
	seller := Actor{ID: "u-seller", Role: model.RoleSeller}
	admin := Actor{ID: "u-admin", Role: model.RoleAdmin}
	owner := Actor{ID: "u-owner", Role: model.RoleOwner}

	cases := []struct {
		name   string
		actor  Actor
		action Action
		res    Resource
		ok     bool
	}{
		{"seller lists", seller, ActionListTicket, Resource{}, true},
		{"buyer cannot list", buyer, ActionListTicket, Resource{}, false},
		{"seller removes own ticket", seller, ActionRemoveTicket, Owned("u-seller"), true},
		{"seller cannot remove others", seller, ActionRemoveTicket, Owned("u-other"), false},
		{"admin removes any ticket", admin, ActionRemoveTicket, Owned("u-other"), true},
		{"buyer reads own checkout", buyer, ActionReadCheckout, Owned("u-buyer"), true},
		{"buyer cannot read foreign checkout", buyer, ActionReadCheckout, Owned("u-other"), false},
		{"seller reads order they sold", seller, ActionReadOrder, Owned("u-buyer", "u-seller"), true},
		{"buyer opens dispute on own order", buyer, ActionOpenDispute, Owned("u-buyer"), true},
		{"buyer cannot resolve", buyer, ActionResolveDispute, Resource{}, false},
		{"admin resolves", admin, ActionResolveDispute, Resource{}, true},
		{"admin cannot manage payouts", admin, ActionManagePayouts, Resource{}, false},
		{"owner manages payouts", owner, ActionManagePayouts, Resource{}, true},
		{"owner has admin view", owner, ActionAdminView, Resource{}, true},
		{"user deletes own alert", buyer, ActionManageAlert, Owned("u-buyer"), true},
		{"user cannot delete foreign alert", buyer, ActionManageAlert, Owned("u-other"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Authorize(tc.actor, tc.action, tc.res)
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, apperr.ErrForbidden), "got %v", err)
		})
	}
}

func TestAuthorize_Anonymous(t *testing.T) {
	err := Authorize(Actor{}, ActionCheckout, Resource{})
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))
}
