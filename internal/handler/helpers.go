package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-interview-api/internal/middleware"
)

var errInvalidIdentifier = errors.New("invalid identifier")

func userIDFromContext(c *fiber.Ctx) uint {
	switch id := c.Locals(middleware.UserIDLocal).(type) {
	case uint:
		return id
	case int:
		if id < 0 {
			return 0
		}
		return uint(id)
	default:
		return 0
	}
}

func parseSessionID(c *fiber.Ctx) (uint, error) {
	parsed, err := strconv.ParseUint(strings.TrimSpace(c.Params("id")), 10, 64)
	if err != nil || parsed == 0 {
		return 0, errInvalidIdentifier
	}
	return uint(parsed), nil
}
