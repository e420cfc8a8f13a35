package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"backend-booking/internal/booking"
	"backend-booking/internal/models"
)

func requester(c *fiber.Ctx) booking.Requester {
	id, _ := c.Locals("user_id").(string)
	role, _ := c.Locals("role").(string)
	return booking.Requester{ID: id, Role: role}
}

// CreateBooking books the caller into a slot. Managers may book on behalf
// of a customer by passing customer_id.
func (h *BookingHandler) CreateBooking(c *fiber.Ctx) error {
	var req models.CreateBookingRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	by := requester(c)
	customerID := by.ID
	if req.CustomerID != "" && req.CustomerID != by.ID {
		if !by.IsManager() {
			return writeError(c, h.log, booking.ErrForbidden)
		}
		customerID = req.CustomerID
	}

	res, err := h.ctl.Create(c.UserContext(), booking.CreateInput{
		CustomerID:  customerID,
		ServiceType: strings.TrimSpace(req.ServiceType),
		Vehicle:     req.Vehicle,
		Date:        strings.TrimSpace(req.Date),
		TimeWindow:  strings.TrimSpace(req.TimeWindow),
		Notes:       req.Notes,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}

	message := "Booking confirmed"
	if res.Queued() {
		message = "Slot is full, booking added to the waiting queue"
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": message,
		"data": fiber.Map{
			"booking": res.Booking,
			"advisor": res.Advisor,
			"queued":  res.Queued(),
		},
	})
}

// ListMyBookings returns the caller's bookings, newest first.
func (h *BookingHandler) ListMyBookings(c *fiber.Ctx) error {
	bookings, err := h.ctl.ListCustomerBookings(c.UserContext(), requester(c).ID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    bookings,
	})
}

func (h *BookingHandler) GetBooking(c *fiber.Ctx) error {
	b, err := h.ctl.GetBooking(c.UserContext(), c.Params("id"), requester(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    b,
	})
}

func (h *BookingHandler) CancelBooking(c *fiber.Ctx) error {
	b, err := h.ctl.Cancel(c.UserContext(), c.Params("id"), requester(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Booking cancelled",
		"data":    b,
	})
}

func (h *BookingHandler) StartBooking(c *fiber.Ctx) error {
	b, err := h.ctl.Start(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Service started",
		"data":    b,
	})
}

func (h *BookingHandler) CompleteBooking(c *fiber.Ctx) error {
	b, err := h.ctl.Complete(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Service completed",
		"data":    b,
	})
}

// AssignAdvisor is the manager override. It bypasses specialization and
// availability checks but never double-books an advisor in a slot.
func (h *BookingHandler) AssignAdvisor(c *fiber.Ctx) error {
	var req models.AssignAdvisorRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	b, err := h.ctl.AssignAdvisorOverride(c.UserContext(), c.Params("id"), strings.TrimSpace(req.AdvisorID))
	if err != nil {
		return writeError(c, h.log, err)
	}

	h.log.Info("manager override applied",
		"booking_id", b.ID,
		"advisor_id", b.AdvisorID,
		"manager_id", requester(c).ID,
	)
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Advisor assigned",
		"data":    b,
	})
}

func (h *BookingHandler) DrainQueue(c *fiber.Ctx) error {
	var req models.DrainQueueRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	promoted, err := h.ctl.DrainQueue(c.UserContext(), strings.TrimSpace(req.Date), strings.TrimSpace(req.TimeWindow))
	if err != nil {
		return writeError(c, h.log, err)
	}
	if promoted == nil {
		promoted = []models.Booking{}
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"promoted": promoted,
			"count":    len(promoted),
		},
	})
}

func (h *BookingHandler) GetMyLoyalty(c *fiber.Ctx) error {
	ledger, err := h.ctl.GetLoyalty(c.UserContext(), requester(c).ID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"customer_id":   ledger.CustomerID,
			"booking_count": ledger.BookingCount,
			"is_eligible":   ledger.IsEligible,
			"threshold":     booking.LoyaltyThreshold,
		},
	})
}
