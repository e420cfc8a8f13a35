package booking

import (
	"context"
	"strings"

	"backend-booking/internal/helper"
	"backend-booking/internal/models"
)

// GetAvailableSlots reports seat usage for every configured window on date.
func (c *Controller) GetAvailableSlots(ctx context.Context, date string) ([]models.SlotAvailability, error) {
	date = strings.TrimSpace(date)
	if _, err := helper.ParseDate(date, c.schedule.Location()); err != nil {
		return nil, invalid("date", "must be formatted as %s", helper.DateLayout)
	}

	total, err := c.roster.CountAdvisors(ctx)
	if err != nil {
		return nil, err
	}

	windows := c.schedule.Windows()
	out := make([]models.SlotAvailability, 0, len(windows))
	for _, w := range windows {
		slot := models.SlotKey{Date: date, Window: w}
		capacity, err := c.capacity.Capacity(ctx, slot)
		if err != nil {
			return nil, err
		}
		committed, err := c.capacity.Committed(ctx, slot)
		if err != nil {
			return nil, err
		}
		queued, err := c.queue.Length(ctx, slot)
		if err != nil {
			return nil, err
		}
		out = append(out, models.SlotAvailability{
			TimeWindow:        w,
			IsAvailable:       committed < capacity,
			AdvisorsAssigned:  committed,
			AdvisorsAvailable: max(capacity-committed, 0),
			TotalAdvisors:     total,
			QueueLength:       queued,
		})
	}
	return out, nil
}

// GetQueueInfo describes a slot's queue. The wait estimate is zero while a
// seat is free, otherwise one service duration per booking ahead plus one.
func (c *Controller) GetQueueInfo(ctx context.Context, date, window string) (models.QueueInfo, error) {
	slot, err := c.slotKey(date, window)
	if err != nil {
		return models.QueueInfo{}, err
	}

	entries, err := c.queue.ListEntries(ctx, slot)
	if err != nil {
		return models.QueueInfo{}, err
	}
	capacity, err := c.capacity.Capacity(ctx, slot)
	if err != nil {
		return models.QueueInfo{}, err
	}
	committed, err := c.capacity.Committed(ctx, slot)
	if err != nil {
		return models.QueueInfo{}, err
	}

	free := max(capacity-committed, 0)
	wait := 0
	if free == 0 {
		wait = (len(entries) + 1) * minutes(c.schedule.ServiceDuration())
	}
	if entries == nil {
		entries = []models.Booking{}
	}
	return models.QueueInfo{
		Slot:                 slot,
		QueueLength:          len(entries),
		AdvisorsAvailable:    free,
		QueuedEntries:        entries,
		EstimatedWaitMinutes: wait,
	}, nil
}

// GetBooking returns a booking visible to the requester: its customer, its
// advisor or any manager.
func (c *Controller) GetBooking(ctx context.Context, id string, by Requester) (models.Booking, error) {
	b, err := c.store.GetBooking(ctx, id)
	if err != nil {
		return models.Booking{}, err
	}
	if b.CustomerID != by.ID && b.AdvisorID != by.ID && !by.IsManager() {
		return models.Booking{}, ErrForbidden
	}
	return b, nil
}

func (c *Controller) ListCustomerBookings(ctx context.Context, customerID string) ([]models.Booking, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, invalid("customer_id", "is required")
	}
	out, err := c.store.ListCustomerBookings(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Booking{}
	}
	return out, nil
}

// GetLoyalty returns a zero ledger for customers that never booked.
func (c *Controller) GetLoyalty(ctx context.Context, customerID string) (models.LoyaltyLedger, error) {
	if strings.TrimSpace(customerID) == "" {
		return models.LoyaltyLedger{}, invalid("customer_id", "is required")
	}
	return c.store.GetLoyalty(ctx, customerID)
}
