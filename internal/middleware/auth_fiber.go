package middleware

import (
	"errors"

	"github.com/fathima-sithara/media-service/internal/auth"
	utils "github.com/fathima-sithara/media-service/internal/utis"

	"github.com/gofiber/fiber/v2"
)

const LocalUserID = "user_id"

type TokenVerifier interface {
	VerifyToken(token string) (string, error)
}

// JWTAuth resolves the caller from the bearer token and stores the user id
// in Locals under LocalUserID.
func JWTAuth(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
		var uid string
		if err == nil {
			uid, err = verifier.VerifyToken(token)
		}
		if err != nil {
			c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
			return utils.NewUnauthorizedError(authMessage(err), err)
		}
		c.Locals(LocalUserID, uid)
		return c.Next()
	}
}

func authMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		return "Not authenticated"
	case errors.Is(err, auth.ErrTokenExpired):
		return "Token has expired"
	default:
		return "Could not validate credentials"
	}
}

// UserID returns the authenticated caller, or "" outside JWTAuth.
func UserID(c *fiber.Ctx) string {
	uid, _ := c.Locals(LocalUserID).(string)
	return uid
}
