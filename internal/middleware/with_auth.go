package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/steward-api/internal/utils"
)

// Auth role constants used by WithAuth helper.
const (
	AuthRoleAny    = "any"
	AuthRoleMember = "member"
	AuthRoleAdmin  = "admin"
)

// AuthOptions configures the WithAuth helper.
type AuthOptions struct {
	Role        string
	RequireUser bool
}

// WithAuth wraps a handler with basic authentication/authorization guards.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	role := strings.ToLower(strings.TrimSpace(opts.Role))
	if role == "" {
		role = AuthRoleAny
	}

	requireUser := opts.RequireUser
	if !requireUser && role != AuthRoleAny {
		requireUser = true
	}

	return func(c *fiber.Ctx) error {
		userID, _ := c.Locals(LocalUserID).(string)
		if requireUser && userID == "" {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}

		switch role {
		case AuthRoleAny:
			return handler(c)
		case AuthRoleMember, AuthRoleAdmin:
			if orgID, _ := c.Locals(LocalOrgID).(string); orgID == "" {
				return utils.Fail(c, fiber.StatusBadRequest, "missing org id in token", nil)
			}
			if role == AuthRoleAdmin {
				if isAdmin, _ := c.Locals(LocalIsAdmin).(bool); !isAdmin {
					return utils.Fail(c, fiber.StatusForbidden, "admin privileges required for this action", nil)
				}
			}
		default:
			if normalizeRoleValue(c.Locals(LocalOrgRole)) != normalizeRole(role) {
				return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", nil)
			}
		}

		return handler(c)
	}
}

func normalizeRoleValue(value interface{}) string {
	role, ok := value.(string)
	if !ok {
		return ""
	}
	return normalizeRole(strings.TrimSpace(role))
}
