package booking

import (
	"context"
	"fmt"
	"time"

	"backend-booking/internal/clock"
	"backend-booking/internal/models"
)

// QueueManager keeps the per-slot FIFO of bookings waiting for a seat.
// Callers must hold the slot lock and an open transaction.
type QueueManager struct {
	store    Store
	capacity *SlotCapacityTracker
	matcher  *AdvisorMatcher
	schedule *Schedule
	clock    clock.Clock
}

func NewQueueManager(store Store, capacity *SlotCapacityTracker, matcher *AdvisorMatcher, schedule *Schedule, clk clock.Clock) *QueueManager {
	return &QueueManager{
		store:    store,
		capacity: capacity,
		matcher:  matcher,
		schedule: schedule,
		clock:    clk,
	}
}

// Enqueue appends a new booking to the tail of its slot's queue and stores it.
func (q *QueueManager) Enqueue(ctx context.Context, b *models.Booking) error {
	n, err := q.store.CountQueued(ctx, b.Slot)
	if err != nil {
		return fmt.Errorf("count queue: %w", err)
	}
	position := n + 1
	eta, err := q.schedule.EstimateServiceTime(b.Slot, position)
	if err != nil {
		return err
	}
	now := q.clock.Now()

	b.State = models.StateQueued
	b.AdvisorID = ""
	b.Assignment = models.AssignmentNone
	b.QueuePosition = position
	b.EstimatedServiceTime = &eta
	b.EnqueuedAt = &now

	return q.store.InsertBooking(ctx, *b)
}

// Promote moves the head of the queue onto a seat. It returns nil when the
// queue is empty, the slot is full or no advisor is free; the head then keeps
// position 1.
func (q *QueueManager) Promote(ctx context.Context, slot models.SlotKey) (*models.Booking, error) {
	entries, err := q.store.ListQueued(ctx, slot)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	free, err := q.capacity.HasFreeSeat(ctx, slot)
	if err != nil || !free {
		return nil, err
	}

	head := entries[0]
	advisor, err := q.matcher.SelectAdvisor(ctx, head.ServiceType, slot)
	if err != nil || advisor == nil {
		return nil, err
	}

	vacated := head.QueuePosition
	head.State = models.StateConfirmed
	head.AdvisorID = advisor.ID
	head.Assignment = models.AssignmentMatched
	head.QueuePosition = 0
	head.EstimatedServiceTime = nil
	head.UpdatedAt = q.clock.Now()

	if err := q.store.UpdateBooking(ctx, head); err != nil {
		return nil, err
	}
	if err := q.Remove(ctx, slot, vacated); err != nil {
		return nil, err
	}
	return &head, nil
}

// Remove closes the gap left at position: every entry behind it moves up one
// place and gets a fresh estimate, all in the caller's transaction.
func (q *QueueManager) Remove(ctx context.Context, slot models.SlotKey, position int) error {
	if err := q.store.ShiftQueue(ctx, slot, position); err != nil {
		return fmt.Errorf("shift queue: %w", err)
	}

	entries, err := q.store.ListQueued(ctx, slot)
	if err != nil {
		return fmt.Errorf("list queue: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	estimates := make(map[string]time.Time, len(entries))
	for _, e := range entries {
		eta, err := q.schedule.EstimateServiceTime(slot, e.QueuePosition)
		if err != nil {
			return err
		}
		estimates[e.ID] = eta
	}
	return q.store.SetQueueEstimates(ctx, estimates)
}

func (q *QueueManager) Length(ctx context.Context, slot models.SlotKey) (int, error) {
	return q.store.CountQueued(ctx, slot)
}

func (q *QueueManager) ListEntries(ctx context.Context, slot models.SlotKey) ([]models.Booking, error) {
	return q.store.ListQueued(ctx, slot)
}
