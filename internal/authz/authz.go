// Package authz holds every role and ownership rule of the marketplace.
// Services call Authorize at their boundary instead of comparing roles inline.
package authz

import (
	"slices"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/model"
)

type Actor struct {
	ID   string
	Role model.Role
}

func (a Actor) IsStaff() bool {
	return a.Role == model.RoleAdmin || a.Role == model.RoleOwner
}

type Action string

const (
	ActionListTicket     Action = "ticket.list"
	ActionRemoveTicket   Action = "ticket.remove"
	ActionCheckout       Action = "checkout.create"
	ActionReadCheckout   Action = "checkout.read"
	ActionReadOrder      Action = "order.read"
	ActionOpenDispute    Action = "dispute.open"
	ActionResolveDispute Action = "dispute.resolve"
	ActionAdminView      Action = "admin.view"
	ActionOwnerView      Action = "owner.view"
	ActionManagePayouts  Action = "payout.manage"
	ActionManageAlert    Action = "alert.manage"
)

// Resource names the users that own the object an action targets.
type Resource struct {
	Owners []string
}

func Owned(ids ...string) Resource {
	return Resource{Owners: ids}
}

func (r Resource) ownedBy(id string) bool {
	return id != "" && slices.Contains(r.Owners, id)
}

// Authorize returns nil when actor may perform action on res.
func Authorize(actor Actor, action Action, res Resource) error {
	if actor.ID == "" {
		return apperr.ErrUnauthorized
	}

	allowed := false
	switch action {
	case ActionListTicket:
		allowed = actor.Role == model.RoleSeller || actor.IsStaff()
	case ActionRemoveTicket, ActionReadCheckout, ActionReadOrder, ActionOpenDispute:
		allowed = res.ownedBy(actor.ID) || actor.IsStaff()
	case ActionCheckout:
		allowed = true
	case ActionResolveDispute, ActionAdminView:
		allowed = actor.IsStaff()
	case ActionOwnerView, ActionManagePayouts:
		allowed = actor.Role == model.RoleOwner
	case ActionManageAlert:
		allowed = len(res.Owners) == 0 || res.ownedBy(actor.ID)
	}

	if !allowed {
		return apperr.Forbidden("not allowed to %s", action)
	}
	return nil
}
