package models

import "time"

type LoyaltyLedger struct {
	CustomerID   string    `json:"customer_id"`
	BookingCount int       `json:"booking_count"`
	IsEligible   bool      `json:"is_eligible"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Apply adds delta to the count, clamps at zero and recomputes eligibility.
func (l LoyaltyLedger) Apply(delta, threshold int) LoyaltyLedger {
	l.BookingCount += delta
	if l.BookingCount < 0 {
		l.BookingCount = 0
	}
	l.IsEligible = l.BookingCount > threshold
	return l
}
