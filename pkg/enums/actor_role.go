package enums

import "fmt"

// ActorRole is the pre-validated role the authorization collaborator supplies.
type ActorRole string

const (
	ActorRoleAdmin         ActorRole = "admin"
	ActorRoleBranchManager ActorRole = "branch_manager"
	ActorRoleStaff         ActorRole = "staff"
	ActorRoleCustomer      ActorRole = "customer"
)

var validActorRoles = []ActorRole{
	ActorRoleAdmin,
	ActorRoleBranchManager,
	ActorRoleStaff,
	ActorRoleCustomer,
}

// String implements fmt.Stringer.
func (a ActorRole) String() string {
	return string(a)
}

// IsValid reports whether the value is a known ActorRole.
func (a ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == a {
			return true
		}
	}
	return false
}

// BranchScoped reports whether actions by this role are limited to one branch.
func (a ActorRole) BranchScoped() bool {
	return a == ActorRoleBranchManager || a == ActorRoleStaff
}

// ParseActorRole converts raw input into an ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}
