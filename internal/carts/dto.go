package carts

import (
	"github.com/google/uuid"

	pkgerrors "github.com/minhtran-dev/savora-backend/pkg/errors"
)

// Owner identifies who holds a cart: a signed-in account or an anonymous
// browsing session, never both.
type Owner struct {
	AccountID *uuid.UUID
	SessionID *string
}

// Validate enforces the exactly-one-owner rule.
func (o Owner) Validate() error {
	hasAccount := o.AccountID != nil && *o.AccountID != uuid.Nil
	hasSession := o.SessionID != nil && *o.SessionID != ""
	if hasAccount == hasSession {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart owner is exactly one of account or session")
	}
	return nil
}

// Matches reports whether the owner holds the given cart.
func (o Owner) Matches(accountID *uuid.UUID, sessionID *string) bool {
	if o.AccountID != nil {
		return accountID != nil && *accountID == *o.AccountID
	}
	return sessionID != nil && o.SessionID != nil && *sessionID == *o.SessionID
}

// CartItemInput is one requested cart line: exactly one of DishID or ComboID.
type CartItemInput struct {
	DishID   *uuid.UUID
	ComboID  *uuid.UUID
	Quantity int
}

// AddItemInput captures the payload for putting an item into a cart. A
// missing active cart for the owner is created on the fly.
type AddItemInput struct {
	BranchID uuid.UUID
	Owner    Owner
	Item     CartItemInput
}

// UpdateItemInput carries a quantity change for a cart line.
type UpdateItemInput struct {
	Quantity int
}

// ConvertInput captures the payload for turning a cart into an order.
type ConvertInput struct {
	Owner Owner
	Note  *string
}
