package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/nftix/ticket-lifecycle/pkg/util/errorutil"
)

const subjectKey = "auth_subject"

// RelayMiddleware guards the blockchain webhook with relay bearer tokens.
type RelayMiddleware struct {
	tokens *TokenManager
}

// NewRelayMiddleware constructs middleware. A nil manager disables the check.
func NewRelayMiddleware(tokens *TokenManager) *RelayMiddleware {
	return &RelayMiddleware{tokens: tokens}
}

// Handle enforces relay authentication.
func (m *RelayMiddleware) Handle(c *fiber.Ctx) error {
	if m == nil || m.tokens == nil {
		return c.Next()
	}

	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}
	if claims.Subject != RelaySubject {
		return apperrors.NewUnauthorized("unknown subject")
	}

	c.Locals(subjectKey, claims.Subject)
	return c.Next()
}

// SubjectFromContext returns the authenticated relay subject, if any.
func SubjectFromContext(c *fiber.Ctx) (string, bool) {
	subject, ok := c.Locals(subjectKey).(string)
	return subject, ok
}
