package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"backend-booking/internal/booking"
	"backend-booking/internal/helper"
	"backend-booking/internal/logger"
	"backend-booking/internal/models"
)

// BookingHandler exposes the booking controller over HTTP.
type BookingHandler struct {
	ctl *booking.Controller
	log logger.Logger
}

func NewBookingHandler(ctl *booking.Controller, log logger.Logger) *BookingHandler {
	return &BookingHandler{ctl: ctl, log: log.With("component", "http")}
}

// GetConfig returns the business day the engine schedules against.
func (h *BookingHandler) GetConfig(c *fiber.Ctx) error {
	s := h.ctl.Schedule()

	types := make([]string, 0, len(models.ServiceCatalog))
	for _, st := range models.ServiceCatalog {
		types = append(types, string(st))
	}

	cfg := models.Config{
		Timezone:        s.Location().String(),
		OpeningTime:     s.OpeningTime(),
		ClosingTime:     s.ClosingTime(),
		TimeWindows:     s.Windows(),
		ServiceMinutes:  int(s.ServiceDuration().Minutes()),
		ModifyCutoffMin: int(s.ModifyCutoff().Minutes()),
		ServiceTypes:    types,
		IsOpen:          helper.IsOpen(time.Now(), s.OpeningTime(), s.ClosingTime(), s.Location()),
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    cfg,
	})
}
