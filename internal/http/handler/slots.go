package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"backend-booking/internal/realtime"
)

func (h *BookingHandler) GetAvailableSlots(c *fiber.Ctx) error {
	date := c.Query("date")
	if date == "" {
		date = time.Now().In(h.ctl.Schedule().Location()).Format("2006-01-02")
	}

	slots, err := h.ctl.GetAvailableSlots(c.UserContext(), date)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"date":  date,
			"slots": slots,
		},
	})
}

func (h *BookingHandler) GetQueueInfo(c *fiber.Ctx) error {
	info, err := h.ctl.GetQueueInfo(c.UserContext(), c.Query("date"), c.Query("time_window"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    info,
	})
}

// SlotsWSUpgrade rejects plain HTTP requests on the websocket route.
func SlotsWSUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// SlotsWS streams booking events to a slot board. The board receives today's
// availability on connect and every booking event afterwards.
func (h *BookingHandler) SlotsWS(hub *realtime.SlotsHub) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		clientID := hub.Register(c)
		defer hub.Unregister(c)

		lastPong := time.Now()
		c.SetReadDeadline(time.Now().Add(60 * time.Second))
		c.SetPongHandler(func(string) error {
			lastPong = time.Now()
			return c.SetReadDeadline(time.Now().Add(60 * time.Second))
		})

		h.sendSnapshot(hub, c, clientID)

		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(20 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if err := hub.Ping(c); err != nil {
						h.log.Debug("slots board ping failed", "client_id", clientID, "error", err)
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseGoingAway,
					websocket.CloseAbnormalClosure,
					websocket.CloseNormalClosure,
				) {
					h.log.Warn("slots board unexpected close", "client_id", clientID, "error", err, "since_pong", time.Since(lastPong).String())
				}
				return
			}
		}
	}
}

func (h *BookingHandler) sendSnapshot(hub *realtime.SlotsHub, c *websocket.Conn, clientID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	date := time.Now().In(h.ctl.Schedule().Location()).Format("2006-01-02")
	slots, err := h.ctl.GetAvailableSlots(ctx, date)
	if err != nil {
		h.log.Warn("slots board snapshot failed", "client_id", clientID, "error", err)
		return
	}

	msg, err := json.Marshal(fiber.Map{
		"type":      "slots_snapshot",
		"date":      date,
		"data":      slots,
		"timestamp": time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	if err := hub.Send(c, msg); err != nil {
		h.log.Debug("slots board snapshot write failed", "client_id", clientID, "error", err)
	}
}
