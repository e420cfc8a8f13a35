package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"backend-booking/internal/booking"
	"backend-booking/internal/lock"
	"backend-booking/internal/logger"
)

type errorMapping struct {
	status  int
	code    string
	message string
}

var errorTable = []struct {
	target error
	errorMapping
}{
	{booking.ErrNoAdvisorsConfigured, errorMapping{fiber.StatusServiceUnavailable, "no_advisors_configured", "No service advisors are configured"}},
	{booking.ErrNotFound, errorMapping{fiber.StatusNotFound, "not_found", "Booking not found"}},
	{booking.ErrForbidden, errorMapping{fiber.StatusForbidden, "forbidden", "You do not have access to this booking"}},
	{booking.ErrDeadlineExceeded, errorMapping{fiber.StatusConflict, "deadline_exceeded", "The modification deadline for this booking has passed"}},
	{booking.ErrInvalidStateTransition, errorMapping{fiber.StatusConflict, "invalid_state_transition", "The booking cannot move to the requested state"}},
	{booking.ErrAdvisorCommitted, errorMapping{fiber.StatusConflict, "advisor_committed", "The advisor already holds a seat in this slot"}},
	{booking.ErrCapacityConflict, errorMapping{fiber.StatusConflict, "capacity_conflict", "The slot changed while booking, please retry"}},
	{lock.ErrLockTimeout, errorMapping{fiber.StatusServiceUnavailable, "slot_busy", "The slot is busy, please retry"}},
	{context.DeadlineExceeded, errorMapping{fiber.StatusServiceUnavailable, "timeout", "The request timed out"}},
}

// writeError renders err in the standard envelope. Unknown errors are logged
// and reported as 500 without leaking details.
func writeError(c *fiber.Ctx, log logger.Logger, err error) error {
	var verr *booking.ValidationError
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   verr.Error(),
			"code":    "validation_error",
			"field":   verr.Field,
		})
	}

	for _, e := range errorTable {
		if errors.Is(err, e.target) {
			return c.Status(e.status).JSON(fiber.Map{
				"success": false,
				"error":   e.message,
				"code":    e.code,
			})
		}
	}

	log.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"error":   "Internal server error",
		"code":    "internal_error",
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"error":   message,
		"code":    "bad_request",
	})
}
