package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/isp-support/internal/domain"
	apperrors "github.com/spec-kit/isp-support/pkg/util/errorutil"
)

// RequireKinds ensures the principal is one of the allowed actor kinds.
func RequireKinds(allowed ...domain.ActorKind) fiber.Handler {
	allowedSet := make(map[domain.ActorKind]struct{}, len(allowed))
	for _, kind := range allowed {
		allowedSet[kind] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if _, exists := allowedSet[principal.Ref.Kind]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// RequireStaff ensures a Team or Admin actor is authenticated.
func RequireStaff() fiber.Handler {
	return RequireKinds(domain.ActorTeam, domain.ActorAdmin)
}

// RequireAdmin ensures an Admin actor is authenticated.
func RequireAdmin() fiber.Handler {
	return RequireKinds(domain.ActorAdmin)
}
