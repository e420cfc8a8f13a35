package booking

import (
	"context"

	"backend-booking/internal/clock"
	"backend-booking/internal/logger"
	"backend-booking/internal/models"
)

// LoyaltyThreshold is the net booking count a customer must exceed to be eligible.
const LoyaltyThreshold = 5

// LoyaltyCounter tracks net bookings per customer.
type LoyaltyCounter struct {
	store     Store
	clock     clock.Clock
	log       logger.Logger
	threshold int
}

func NewLoyaltyCounter(store Store, clk clock.Clock, log logger.Logger) *LoyaltyCounter {
	return &LoyaltyCounter{store: store, clock: clk, log: log, threshold: LoyaltyThreshold}
}

func (c *LoyaltyCounter) Increment(ctx context.Context, customerID string) (models.LoyaltyLedger, error) {
	return c.apply(ctx, customerID, 1)
}

// Decrement never takes the count below zero.
func (c *LoyaltyCounter) Decrement(ctx context.Context, customerID string) (models.LoyaltyLedger, error) {
	return c.apply(ctx, customerID, -1)
}

func (c *LoyaltyCounter) apply(ctx context.Context, customerID string, delta int) (models.LoyaltyLedger, error) {
	current, err := c.store.LoyaltyForUpdate(ctx, customerID)
	if err != nil {
		return models.LoyaltyLedger{}, err
	}
	current.CustomerID = customerID

	next := current.Apply(delta, c.threshold)
	next.UpdatedAt = c.clock.Now()
	if err := c.store.SaveLoyalty(ctx, next); err != nil {
		return models.LoyaltyLedger{}, err
	}

	if next.IsEligible != current.IsEligible {
		c.log.Info("loyalty eligibility changed",
			"customer_id", customerID,
			"booking_count", next.BookingCount,
			"eligible", next.IsEligible,
		)
	}
	return next, nil
}
