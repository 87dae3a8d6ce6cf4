package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/minhtran-dev/savora-backend/pkg/enums"
	"github.com/minhtran-dev/savora-backend/pkg/outbox"
)

type contextKey string

const (
	ctxAccountID contextKey = "account_id"
	ctxRole      contextKey = "actor_role"
	ctxBranchID  contextKey = "branch_id"
)

// WithAccount seeds the request context with the authenticated account.
func WithAccount(ctx context.Context, accountID uuid.UUID, role enums.ActorRole, branchID *uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxAccountID, accountID)
	ctx = context.WithValue(ctx, ctxRole, role)
	if branchID != nil {
		ctx = context.WithValue(ctx, ctxBranchID, *branchID)
	}
	return ctx
}

func AccountIDFromContext(ctx context.Context) uuid.UUID {
	if ctx == nil {
		return uuid.Nil
	}
	if v, ok := ctx.Value(ctxAccountID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

func RoleFromContext(ctx context.Context) enums.ActorRole {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(enums.ActorRole); ok {
		return v
	}
	return ""
}

// BranchIDFromContext returns the actor's home branch, nil for admins.
func BranchIDFromContext(ctx context.Context) *uuid.UUID {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxBranchID).(uuid.UUID); ok {
		return &v
	}
	return nil
}

// ActorFromContext builds the event attribution reference for the request.
func ActorFromContext(ctx context.Context) *outbox.ActorRef {
	accountID := AccountIDFromContext(ctx)
	if accountID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{
		AccountID: accountID,
		BranchID:  BranchIDFromContext(ctx),
		Role:      RoleFromContext(ctx).String(),
	}
}
