package booking

import (
	"context"
	"time"

	"backend-booking/internal/models"
)

// Store is the durable booking store. Implementations must make every call
// made with the context passed to WithTx's callback part of one transaction.
// GetBooking inside a transaction locks the row.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	GetBooking(ctx context.Context, id string) (models.Booking, error)
	// InsertBooking and UpdateBooking return ErrCapacityConflict when the
	// write would give one advisor two seat-holding bookings in a slot.
	InsertBooking(ctx context.Context, b models.Booking) error
	UpdateBooking(ctx context.Context, b models.Booking) error
	ListCustomerBookings(ctx context.Context, customerID string) ([]models.Booking, error)

	CountSeatHolders(ctx context.Context, slot models.SlotKey) (int, error)
	SeatHolderAdvisorIDs(ctx context.Context, slot models.SlotKey) ([]string, error)

	// ListQueued returns the slot's queued bookings ordered by position.
	ListQueued(ctx context.Context, slot models.SlotKey) ([]models.Booking, error)
	CountQueued(ctx context.Context, slot models.SlotKey) (int, error)
	// ShiftQueue decrements the position of every queued booking in the slot
	// whose position is greater than afterPosition, as one batch.
	ShiftQueue(ctx context.Context, slot models.SlotKey, afterPosition int) error
	SetQueueEstimates(ctx context.Context, estimates map[string]time.Time) error

	LoyaltyForUpdate(ctx context.Context, customerID string) (models.LoyaltyLedger, error)
	SaveLoyalty(ctx context.Context, ledger models.LoyaltyLedger) error
	GetLoyalty(ctx context.Context, customerID string) (models.LoyaltyLedger, error)
}

// Roster is the read port onto the external advisor directory. It is
// consulted on every call and never cached.
type Roster interface {
	// ListAvailableAdvisors returns available advisors in roster insertion
	// order; an empty serviceType disables the specialization filter.
	ListAvailableAdvisors(ctx context.Context, serviceType models.ServiceType) ([]models.Advisor, error)
	// CountAdvisors counts every advisor on the roster, available or not.
	CountAdvisors(ctx context.Context) (int, error)
	GetAdvisor(ctx context.Context, id string) (models.Advisor, error)
}

// Publisher receives domain events after they are committed. Publish must
// not block and must not fail the caller.
type Publisher interface {
	Publish(ev models.BookingEvent)
}

// SlotLocker serializes work on one slot key.
type SlotLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type nopPublisher struct{}

func (nopPublisher) Publish(models.BookingEvent) {}
