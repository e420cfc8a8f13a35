package booking

import (
	"context"

	"backend-booking/internal/models"
)

// SlotCapacityTracker answers how many seats a slot has and how many are taken.
// Capacity is read from the roster on every call.
type SlotCapacityTracker struct {
	store  Store
	roster Roster
}

func NewSlotCapacityTracker(store Store, roster Roster) *SlotCapacityTracker {
	return &SlotCapacityTracker{store: store, roster: roster}
}

// Capacity is the number of available advisors, regardless of specialization.
// Every slot shares the same roster, so the slot does not change the result.
func (t *SlotCapacityTracker) Capacity(ctx context.Context, _ models.SlotKey) (int, error) {
	advisors, err := t.roster.ListAvailableAdvisors(ctx, "")
	if err != nil {
		return 0, err
	}
	return len(advisors), nil
}

func (t *SlotCapacityTracker) Committed(ctx context.Context, slot models.SlotKey) (int, error) {
	return t.store.CountSeatHolders(ctx, slot)
}

func (t *SlotCapacityTracker) HasFreeSeat(ctx context.Context, slot models.SlotKey) (bool, error) {
	capacity, err := t.Capacity(ctx, slot)
	if err != nil {
		return false, err
	}
	committed, err := t.Committed(ctx, slot)
	if err != nil {
		return false, err
	}
	return committed < capacity, nil
}
