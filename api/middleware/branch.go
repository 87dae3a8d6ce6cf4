package middleware

import (
	"context"

	"github.com/google/uuid"

	pkgerrors "github.com/minhtran-dev/savora-backend/pkg/errors"
)

// EffectiveBranchID resolves which branch a request operates on. Branch-scoped
// roles are pinned to their token's branch; admins must name one explicitly.
func EffectiveBranchID(ctx context.Context, requested uuid.UUID) (uuid.UUID, error) {
	role := RoleFromContext(ctx)
	home := BranchIDFromContext(ctx)

	if role.BranchScoped() {
		if home == nil {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "token carries no branch")
		}
		if requested != uuid.Nil && requested != *home {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "branch outside actor scope")
		}
		return *home, nil
	}

	if requested == uuid.Nil {
		if home != nil {
			return *home, nil
		}
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "branch_id is required")
	}
	return requested, nil
}

// EnsureBranchAccess checks an already known branch against the actor scope.
func EnsureBranchAccess(ctx context.Context, branchID uuid.UUID) error {
	role := RoleFromContext(ctx)
	if !role.BranchScoped() {
		return nil
	}
	home := BranchIDFromContext(ctx)
	if home == nil || *home != branchID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "branch outside actor scope")
	}
	return nil
}
