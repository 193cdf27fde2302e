package domain

import "strings"

// Role is the role claim carried by a session token.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleOwner      Role = "owner"
	RoleAgent      Role = "agent"
	RoleUnknown    Role = ""
)

// ParseRole maps a claim value onto a known role. Anything unrecognized
// becomes RoleUnknown, which holds no capabilities.
func ParseRole(raw string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleSuperAdmin:
		return RoleSuperAdmin
	case RoleOwner:
		return RoleOwner
	case RoleAgent:
		return RoleAgent
	default:
		return RoleUnknown
	}
}

// Capability names something a role may be allowed to do.
type Capability string

const (
	// CapOperatorAdmin covers /admin on the operator domain.
	CapOperatorAdmin Capability = "operator_admin"
	// CapTenantAdmin covers /admin on a tenant subdomain.
	CapTenantAdmin Capability = "tenant_admin"
)
