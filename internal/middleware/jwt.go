package middleware

import (
	"crypto/rsa"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/steward-api/internal/utils"
)

// Locals keys populated by JWTProtected.
const (
	LocalUserID  = "user_id"
	LocalOrgID   = "org_id"
	LocalOrgRole = "org_role"
	LocalIsAdmin = "is_admin"
)

// JWTConfig selects how bearer tokens are verified. A configured public key
// enables RS256; otherwise tokens must be HS256-signed with Secret.
type JWTConfig struct {
	Secret       string
	PublicKeyPEM string
}

// JWTProtected returns a middleware that validates JWT bearer tokens and binds
// the caller's user, organization and organization role to the request.
func JWTProtected(cfg JWTConfig) fiber.Handler {
	var publicKey *rsa.PublicKey
	var keyErr error
	if pem := strings.TrimSpace(cfg.PublicKeyPEM); pem != "" {
		publicKey, keyErr = jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
	}

	keyFunc := func(t *jwt.Token) (interface{}, error) {
		switch t.Method.(type) {
		case *jwt.SigningMethodRSA:
			if publicKey == nil {
				return nil, fmt.Errorf("rs256 tokens are not accepted")
			}
			return publicKey, nil
		case *jwt.SigningMethodHMAC:
			if cfg.Secret == "" {
				return nil, fmt.Errorf("hs256 tokens are not accepted")
			}
			return []byte(cfg.Secret), nil
		default:
			return nil, fmt.Errorf("unexpected signing method")
		}
	}

	return func(c *fiber.Ctx) error {
		if keyErr != nil {
			return utils.SendError(c, fiber.StatusInternalServerError, "token verification misconfigured")
		}

		authorization := c.Get("Authorization")
		if authorization == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		const bearer = "Bearer "
		if !strings.HasPrefix(strings.ToLower(authorization), strings.ToLower(bearer)) {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid authorization header")
		}

		tokenString := strings.TrimSpace(authorization[len(bearer):])
		if tokenString == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		token, err := jwt.Parse(tokenString, keyFunc, jwt.WithLeeway(10*time.Second))
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token claims")
		}

		userID := claimString(claims, "sub")
		if userID == "" {
			return utils.SendError(c, fiber.StatusBadRequest, "missing user id in token")
		}

		orgID := extractOrgIDFromClaims(claims)
		if orgID == "" {
			return utils.SendError(c, fiber.StatusBadRequest, "missing org id in token")
		}

		role := extractOrgRoleFromClaims(claims)

		c.Locals(LocalUserID, userID)
		c.Locals(LocalOrgID, orgID)
		c.Locals(LocalOrgRole, role)
		c.Locals(LocalIsAdmin, IsAdminRole(role))

		return c.Next()
	}
}

// IsAdminRole reports whether an organization role grants admin rights.
func IsAdminRole(role string) bool {
	switch normalizeRole(role) {
	case "org:admin", "admin":
		return true
	default:
		return false
	}
}

func extractOrgIDFromClaims(claims jwt.MapClaims) string {
	for _, key := range []string{"org", "o"} {
		if nested, ok := claims[key].(map[string]interface{}); ok {
			if id := claimString(nested, "id"); id != "" {
				return id
			}
		}
	}
	return claimString(claims, "org_id")
}

func extractOrgRoleFromClaims(claims jwt.MapClaims) string {
	if role := claimString(claims, "org_role"); role != "" {
		return normalizeRole(role)
	}
	if nested, ok := claims["o"].(map[string]interface{}); ok {
		for _, key := range []string{"rol", "r"} {
			if role := claimString(nested, key); role != "" {
				return normalizeRole(role)
			}
		}
	}
	return ""
}

func claimString(claims map[string]interface{}, key string) string {
	if value, ok := claims[key].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

// normalizeRole lower-cases the role and adds the org: prefix used by short-form claims.
func normalizeRole(role string) string {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" || role == "admin" || strings.HasPrefix(role, "org:") {
		return role
	}
	return "org:" + role
}
