package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"backend-booking/internal/helper"
	"backend-booking/internal/http/handler"
	"backend-booking/internal/http/middleware"
	"backend-booking/internal/realtime"
)

type Deps struct {
	Bookings    *handler.BookingHandler
	Hub         *realtime.SlotsHub
	JWTSecret   string
	Gatherer    prometheus.Gatherer
	MetricsUser string
	MetricsPass string
}

func Setup(app *fiber.App, d Deps) {
	h := d.Bookings

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Booking API running",
		})
	})

	if d.Gatherer != nil {
		app.Get("/metrics",
			middleware.BasicAuth(d.MetricsUser, d.MetricsPass),
			adaptor.HTTPHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})),
		)
	}

	app.Get("/api/config", h.GetConfig)
	app.Get("/api/slots", h.GetAvailableSlots)
	app.Get("/api/queue", h.GetQueueInfo)

	if d.Hub != nil {
		app.Use("/ws", handler.SlotsWSUpgrade)
		app.Get("/ws/slots", websocket.New(h.SlotsWS(d.Hub)))
	}

	// Everything below requires a bearer token.
	api := app.Group("/api", middleware.JWTAuth(d.JWTSecret))

	api.Post("/bookings", h.CreateBooking)
	api.Get("/bookings", h.ListMyBookings)
	api.Get("/bookings/:id", h.GetBooking)
	api.Post("/bookings/:id/cancel", h.CancelBooking)
	api.Get("/loyalty/me", h.GetMyLoyalty)

	// ===== ADVISOR / MANAGER =====
	api.Post("/bookings/:id/start", middleware.RoleAuth(helper.RoleAdvisor, helper.RoleManager), h.StartBooking)
	api.Post("/bookings/:id/complete", middleware.RoleAuth(helper.RoleAdvisor, helper.RoleManager), h.CompleteBooking)

	// ===== MANAGER =====
	api.Put("/bookings/:id/advisor", middleware.RoleAuth(helper.RoleManager), h.AssignAdvisor)
	api.Post("/queue/drain", middleware.RoleAuth(helper.RoleManager), h.DrainQueue)
}
