package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/insectica-ai/insectica-backend/internal/storage"
	"github.com/insectica-ai/insectica-backend/internal/upstream"
)

// upstreamStatus maps a classified error to the HTTP status the boundary
// reports: timeouts become gateway timeouts, other upstream failures a bad
// gateway, store misses a 404.
func upstreamStatus(err error) int {
	var timeoutErr *upstream.TimeoutError
	if errors.As(err, &timeoutErr) {
		return fiber.StatusGatewayTimeout
	}

	var httpErr *upstream.HTTPError
	var transportErr *upstream.TransportError
	if errors.As(err, &httpErr) || errors.As(err, &transportErr) {
		return fiber.StatusBadGateway
	}

	if errors.Is(err, storage.ErrNotFound) {
		return fiber.StatusNotFound
	}
	if errors.Is(err, storage.ErrDuplicate) {
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}

func errorJSON(c *fiber.Ctx, err error) error {
	return c.Status(upstreamStatus(err)).JSON(fiber.Map{
		"error": err.Error(),
	})
}
