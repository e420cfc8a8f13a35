package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"backend-booking/internal/booking"
	"backend-booking/internal/models"
)

// Store keeps bookings and loyalty ledgers in process memory. A transaction
// holds the store-wide mutex until it finishes and rolls back to a snapshot
// on error.
type Store struct {
	mu       sync.Mutex
	bookings map[string]models.Booking
	loyalty  map[string]models.LoyaltyLedger
}

func NewStore() *Store {
	return &Store{
		bookings: make(map[string]models.Booking),
		loyalty:  make(map[string]models.LoyaltyLedger),
	}
}

type txKey struct{}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// guard locks the store unless ctx already carries this store's transaction.
func (s *Store) guard(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bookings := make(map[string]models.Booking, len(s.bookings))
	for k, v := range s.bookings {
		bookings[k] = v
	}
	loyalty := make(map[string]models.LoyaltyLedger, len(s.loyalty))
	for k, v := range s.loyalty {
		loyalty[k] = v
	}

	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.bookings = bookings
		s.loyalty = loyalty
		return err
	}
	return nil
}

func (s *Store) GetBooking(ctx context.Context, id string) (models.Booking, error) {
	defer s.guard(ctx)()
	b, ok := s.bookings[id]
	if !ok {
		return models.Booking{}, fmt.Errorf("booking %s: %w", id, booking.ErrNotFound)
	}
	return b, nil
}

func (s *Store) InsertBooking(ctx context.Context, b models.Booking) error {
	defer s.guard(ctx)()
	if _, exists := s.bookings[b.ID]; exists {
		return fmt.Errorf("insert booking %s: duplicate id", b.ID)
	}
	if err := s.checkAdvisorUnique(b); err != nil {
		return err
	}
	s.bookings[b.ID] = b
	return nil
}

func (s *Store) UpdateBooking(ctx context.Context, b models.Booking) error {
	defer s.guard(ctx)()
	if _, exists := s.bookings[b.ID]; !exists {
		return fmt.Errorf("booking %s: %w", b.ID, booking.ErrNotFound)
	}
	if err := s.checkAdvisorUnique(b); err != nil {
		return err
	}
	s.bookings[b.ID] = b
	return nil
}

// checkAdvisorUnique mirrors the unique key on (slot, active advisor).
func (s *Store) checkAdvisorUnique(b models.Booking) error {
	if b.AdvisorID == "" || !b.State.HoldsSeat() {
		return nil
	}
	for _, other := range s.bookings {
		if other.ID == b.ID || other.Slot != b.Slot || !other.State.HoldsSeat() {
			continue
		}
		if other.AdvisorID == b.AdvisorID {
			return booking.ErrCapacityConflict
		}
	}
	return nil
}

func (s *Store) ListCustomerBookings(ctx context.Context, customerID string) ([]models.Booking, error) {
	defer s.guard(ctx)()
	var out []models.Booking
	for _, b := range s.bookings {
		if b.CustomerID == customerID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) CountSeatHolders(ctx context.Context, slot models.SlotKey) (int, error) {
	defer s.guard(ctx)()
	n := 0
	for _, b := range s.bookings {
		if b.Slot == slot && b.State.HoldsSeat() {
			n++
		}
	}
	return n, nil
}

func (s *Store) SeatHolderAdvisorIDs(ctx context.Context, slot models.SlotKey) ([]string, error) {
	defer s.guard(ctx)()
	var ids []string
	for _, b := range s.bookings {
		if b.Slot == slot && b.State.HoldsSeat() && b.AdvisorID != "" {
			ids = append(ids, b.AdvisorID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) ListQueued(ctx context.Context, slot models.SlotKey) ([]models.Booking, error) {
	defer s.guard(ctx)()
	return s.queued(slot), nil
}

func (s *Store) queued(slot models.SlotKey) []models.Booking {
	var out []models.Booking
	for _, b := range s.bookings {
		if b.Slot == slot && b.State == models.StateQueued {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].QueuePosition < out[j].QueuePosition
	})
	return out
}

func (s *Store) CountQueued(ctx context.Context, slot models.SlotKey) (int, error) {
	defer s.guard(ctx)()
	return len(s.queued(slot)), nil
}

func (s *Store) ShiftQueue(ctx context.Context, slot models.SlotKey, afterPosition int) error {
	defer s.guard(ctx)()
	for _, b := range s.queued(slot) {
		if b.QueuePosition > afterPosition {
			b.QueuePosition--
			s.bookings[b.ID] = b
		}
	}
	return nil
}

func (s *Store) SetQueueEstimates(ctx context.Context, estimates map[string]time.Time) error {
	defer s.guard(ctx)()
	for id, eta := range estimates {
		b, ok := s.bookings[id]
		if !ok {
			return fmt.Errorf("booking %s: %w", id, booking.ErrNotFound)
		}
		eta := eta
		b.EstimatedServiceTime = &eta
		s.bookings[id] = b
	}
	return nil
}

func (s *Store) LoyaltyForUpdate(ctx context.Context, customerID string) (models.LoyaltyLedger, error) {
	return s.GetLoyalty(ctx, customerID)
}

func (s *Store) SaveLoyalty(ctx context.Context, ledger models.LoyaltyLedger) error {
	defer s.guard(ctx)()
	s.loyalty[ledger.CustomerID] = ledger
	return nil
}

func (s *Store) GetLoyalty(ctx context.Context, customerID string) (models.LoyaltyLedger, error) {
	defer s.guard(ctx)()
	l, ok := s.loyalty[customerID]
	if !ok {
		return models.LoyaltyLedger{CustomerID: customerID}, nil
	}
	return l, nil
}

// Seed stores bookings and ledgers as-is, bypassing every check. Tests use it
// to start from a known state.
func (s *Store) Seed(bookings []models.Booking, ledgers ...models.LoyaltyLedger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range bookings {
		s.bookings[b.ID] = b
	}
	for _, l := range ledgers {
		s.loyalty[l.CustomerID] = l
	}
}
