package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/foodloop/foodloop-api/internal/models"
	"github.com/foodloop/foodloop-api/internal/utils"
)

// RequireRole ensures the authenticated user holds one of the allowed role
// categories. Both sides are folded through NormalizeRole, so asking for
// "driver" admits legacy volunteer tokens too.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, role := range roles {
		if normalized := models.NormalizeRole(role); normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		role := models.NormalizeRole(roleValue(c.Locals(LocalUserRole)))
		if _, ok := allowed[role]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}

func roleValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		if value == nil {
			return ""
		}
		return strings.TrimSpace(fmt.Sprintf("%v", value))
	}
}
