package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/JoeShih716/go-bank-ledger/internal/app/identity"
	"github.com/JoeShih716/go-bank-ledger/internal/app/ledger/domain"
)

// Locals keys set by the middleware for the handlers.
const (
	localCallerAccount  = "caller_account"
	localIdempotencyKey = "idempotency_key"
)

// Headers set by the identity proxy in front of this service. Token
// verification happened there; this layer only maps the authenticated
// subject to an account and rejects revoked tokens.
const (
	headerCallerSubject  = "X-Caller-Subject"
	headerCallerToken    = "X-Caller-Token"
	headerIdempotencyKey = "Idempotency-Key"
)

// CallerIdentity resolves the authenticated caller to an account number
// and stores it in locals. Requests without a subject are rejected.
func CallerIdentity(resolver *identity.Resolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		subject := c.Get(headerCallerSubject)
		if subject == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Caller identity missing"})
		}

		number, err := resolver.Resolve(c.Context(), subject, c.Get(headerCallerToken))
		if err != nil {
			switch {
			case errors.Is(err, identity.ErrTokenRevoked):
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Invalid token"})
			case errors.Is(err, domain.ErrAccountNotFound):
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "No account for caller"})
			default:
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"message": "Unable to resolve caller"})
			}
		}

		c.Locals(localCallerAccount, number)
		return c.Next()
	}
}

// IdempotencyKey lifts the optional Idempotency-Key header into locals so
// the transfer handler can pass it to the coordinator.
func IdempotencyKey() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if key := c.Get(headerIdempotencyKey); key != "" {
			c.Locals(localIdempotencyKey, key)
		}
		return c.Next()
	}
}
