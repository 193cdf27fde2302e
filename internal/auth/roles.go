package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/flexicms/tenant-gateway/internal/domain"
)

// grants lists the roles holding each capability.
var grants = map[domain.Capability]map[domain.Role]struct{}{
	domain.CapOperatorAdmin: roleSet(domain.RoleSuperAdmin),
	domain.CapTenantAdmin:   roleSet(domain.RoleOwner, domain.RoleSuperAdmin),
}

func roleSet(roles ...domain.Role) map[domain.Role]struct{} {
	set := make(map[domain.Role]struct{}, len(roles))
	for _, role := range roles {
		set[role] = struct{}{}
	}
	return set
}

// IsAuthorized reports whether role holds capability. Every role check in
// the gateway goes through here.
func IsAuthorized(role domain.Role, capability domain.Capability) bool {
	allowed, ok := grants[capability]
	if !ok {
		return false
	}
	_, ok = allowed[role]
	return ok
}

// RequireSession rejects requests without a valid session.
func RequireSession(loader *SessionLoader) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if loader.Load(c) == nil {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		return c.Next()
	}
}

// RequireCapability ensures the session holds capability.
func RequireCapability(loader *SessionLoader, capability domain.Capability) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session := loader.Load(c)
		if session == nil {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		if !IsAuthorized(session.Role, capability) {
			return fiber.NewError(http.StatusForbidden, "insufficient role")
		}
		return c.Next()
	}
}
