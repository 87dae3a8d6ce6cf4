package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/minhtran-dev/savora-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	AccountID uuid.UUID
	BranchID  *uuid.UUID
	Role      enums.ActorRole
	JTI       string
}

// AccessTokenClaims represents the typed JWT issued to clients. Staff and
// branch managers carry the branch they operate; admins carry none.
type AccessTokenClaims struct {
	AccountID uuid.UUID       `json:"account_id"`
	BranchID  *uuid.UUID      `json:"branch_id,omitempty"`
	Role      enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}
