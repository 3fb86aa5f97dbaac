package middleware

import (
	"commerce_settlement/constants"
	"commerce_settlement/helper"
	"commerce_settlement/utils"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Protected accepts the access_token cookie, a Bearer header, or a token
// query parameter (browsers cannot set headers on websocket upgrades).
func Protected() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies("access_token")

		if token == "" {
			auth := c.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				token = strings.TrimPrefix(auth, "Bearer ")
			}
		}
		if token == "" {
			token = c.Query("token")
		}

		if token == "" {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, constants.ERROR_UNAUTHORIZED, errors.New("no token"))
		}

		jwtToken, err := helper.ParseToken(token)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, constants.ERROR_UNAUTHORIZED, err)
		}
		if _, ok := helper.ClaimFromToken(jwtToken); !ok {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, constants.ERROR_UNAUTHORIZED, errors.New("token has no user"))
		}

		c.Locals("user", jwtToken)
		return c.Next()
	}
}

// RequireRole must run after Protected.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claim, ok := helper.GetUserFromToken(c)
		if !ok {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, constants.ERROR_UNAUTHORIZED, errors.New("no user"))
		}
		for _, role := range roles {
			if claim.Role == role {
				return c.Next()
			}
		}
		return utils.ErrorResponse(c, fiber.StatusForbidden, constants.ERROR_FORBIDDEN, errors.New("role "+claim.Role+" not allowed"))
	}
}
