package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"backend-booking/internal/clock"
	"backend-booking/internal/helper"
	"backend-booking/internal/logger"
	"backend-booking/internal/metrics"
	"backend-booking/internal/models"
)

const maxAdmissionAttempts = 2

// Controller drives the booking state machine. Every write that touches a
// slot's seats or queue runs under that slot's lock and inside one store
// transaction; events are published after commit.
type Controller struct {
	store    Store
	roster   Roster
	schedule *Schedule
	locker   SlotLocker
	events   Publisher
	clock    clock.Clock
	log      logger.Logger
	metrics  *metrics.Metrics
	newID    func() string

	capacity *SlotCapacityTracker
	matcher  *AdvisorMatcher
	queue    *QueueManager
	loyalty  *LoyaltyCounter
}

type Option func(*Controller)

func WithClock(c clock.Clock) Option { return func(ctl *Controller) { ctl.clock = c } }

func WithSlotLocker(l SlotLocker) Option { return func(ctl *Controller) { ctl.locker = l } }

func WithPublisher(p Publisher) Option { return func(ctl *Controller) { ctl.events = p } }

func WithLogger(l logger.Logger) Option { return func(ctl *Controller) { ctl.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(ctl *Controller) { ctl.metrics = m } }

func WithIDGenerator(fn func() string) Option { return func(ctl *Controller) { ctl.newID = fn } }

func NewController(store Store, roster Roster, schedule *Schedule, opts ...Option) *Controller {
	c := &Controller{
		store:    store,
		roster:   roster,
		schedule: schedule,
		locker:   NewLocalSlotLocker(),
		events:   nopPublisher{},
		clock:    clock.NewSystem(),
		log:      logger.NewNop(),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = metrics.NewMetrics("booking", prometheus.NewRegistry())
	}

	c.capacity = NewSlotCapacityTracker(store, roster)
	c.matcher = NewAdvisorMatcher(store, roster)
	c.queue = NewQueueManager(store, c.capacity, c.matcher, schedule, c.clock)
	c.loyalty = NewLoyaltyCounter(store, c.clock, c.log)
	return c
}

func (c *Controller) Schedule() *Schedule { return c.schedule }

// Requester identifies who is acting on a booking.
type Requester struct {
	ID   string
	Role string
}

func (r Requester) IsManager() bool { return helper.IsManager(r.Role) }

type CreateInput struct {
	CustomerID  string
	ServiceType string
	Vehicle     models.Vehicle
	Date        string
	TimeWindow  string
	Notes       string
}

type CreateResult struct {
	Booking models.Booking
	Advisor *models.Advisor
}

func (r CreateResult) Queued() bool { return r.Booking.State == models.StateQueued }

// Create admits a booking onto a free seat or queues it. A capacity conflict
// at commit retries admission once, then falls back to the queue.
func (c *Controller) Create(ctx context.Context, in CreateInput) (CreateResult, error) {
	st, slot, err := c.validateCreate(in)
	if err != nil {
		return CreateResult{}, err
	}

	total, err := c.roster.CountAdvisors(ctx)
	if err != nil {
		return CreateResult{}, fmt.Errorf("count advisors: %w", err)
	}
	if total == 0 {
		return CreateResult{}, ErrNoAdvisorsConfigured
	}

	modifiableUntil, err := c.schedule.ModifiableUntil(slot)
	if err != nil {
		return CreateResult{}, err
	}

	unlock, err := c.locker.Lock(ctx, slot.String())
	if err != nil {
		return CreateResult{}, fmt.Errorf("lock slot %s: %w", slot, err)
	}
	defer unlock()
	timer := prometheus.NewTimer(c.metrics.AdmissionDuration)
	defer timer.ObserveDuration()

	now := c.clock.Now()
	draft := models.Booking{
		ID:              c.newID(),
		CustomerID:      in.CustomerID,
		ServiceType:     st,
		Vehicle:         in.Vehicle,
		Notes:           strings.TrimSpace(in.Notes),
		Slot:            slot,
		ModifiableUntil: modifiableUntil,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var result CreateResult
	for attempt := 1; ; attempt++ {
		admit := attempt <= maxAdmissionAttempts
		result, err = c.commitCreate(ctx, draft, admit)
		if !errors.Is(err, ErrCapacityConflict) || !admit {
			break
		}
		c.metrics.AdmissionRetries.Inc()
		c.log.Warn("capacity conflict on admission",
			"slot", slot.String(),
			"attempt", attempt,
		)
	}
	if err != nil {
		return CreateResult{}, err
	}

	kind := models.EventAssigned
	outcome := "confirmed"
	if result.Queued() {
		kind = models.EventQueued
		outcome = "queued"
	}
	c.metrics.BookingsCreated.WithLabelValues(outcome).Inc()
	c.log.Info("booking created",
		"booking_id", result.Booking.ID,
		"customer_id", result.Booking.CustomerID,
		"slot", slot.String(),
		"state", result.Booking.State,
		"advisor_id", result.Booking.AdvisorID,
		"queue_position", result.Booking.QueuePosition,
	)
	c.publish(models.NewBookingEvent(kind, result.Booking, now))
	return result, nil
}

func (c *Controller) commitCreate(ctx context.Context, draft models.Booking, admit bool) (CreateResult, error) {
	var result CreateResult
	err := c.store.WithTx(ctx, func(ctx context.Context) error {
		b := draft

		var advisor *models.Advisor
		if admit {
			free, err := c.capacity.HasFreeSeat(ctx, b.Slot)
			if err != nil {
				return err
			}
			if free {
				if advisor, err = c.matcher.SelectAdvisor(ctx, b.ServiceType, b.Slot); err != nil {
					return err
				}
			}
		}

		if advisor != nil {
			b.State = models.StateConfirmed
			b.AdvisorID = advisor.ID
			b.Assignment = models.AssignmentMatched
			if err := c.store.InsertBooking(ctx, b); err != nil {
				return err
			}
		} else if err := c.queue.Enqueue(ctx, &b); err != nil {
			return err
		}

		if _, err := c.loyalty.Increment(ctx, b.CustomerID); err != nil {
			return err
		}
		result = CreateResult{Booking: b, Advisor: advisor}
		return nil
	})
	return result, err
}

func (c *Controller) validateCreate(in CreateInput) (models.ServiceType, models.SlotKey, error) {
	if strings.TrimSpace(in.CustomerID) == "" {
		return "", models.SlotKey{}, invalid("customer_id", "is required")
	}
	st, ok := models.ParseServiceType(in.ServiceType)
	if !ok {
		return "", models.SlotKey{}, invalid("service_type", "unknown service type %q", in.ServiceType)
	}
	if strings.TrimSpace(in.Vehicle.Make) == "" {
		return "", models.SlotKey{}, invalid("vehicle.make", "is required")
	}
	if strings.TrimSpace(in.Vehicle.Model) == "" {
		return "", models.SlotKey{}, invalid("vehicle.model", "is required")
	}
	if strings.TrimSpace(in.Vehicle.PlateNumber) == "" {
		return "", models.SlotKey{}, invalid("vehicle.plate_number", "is required")
	}
	if len(in.Notes) > 500 {
		return "", models.SlotKey{}, invalid("notes", "must be at most 500 characters")
	}

	slot, err := c.slotKey(in.Date, in.TimeWindow)
	if err != nil {
		return "", models.SlotKey{}, err
	}
	_, end, err := c.schedule.Bounds(slot)
	if err != nil {
		return "", models.SlotKey{}, invalid("time_window", "%v", err)
	}
	if !c.clock.Now().Before(end) {
		return "", models.SlotKey{}, invalid("time_window", "slot %s has already ended", slot)
	}
	return st, slot, nil
}

func (c *Controller) slotKey(date, window string) (models.SlotKey, error) {
	date = strings.TrimSpace(date)
	window = strings.TrimSpace(window)
	if _, err := helper.ParseDate(date, c.schedule.Location()); err != nil {
		return models.SlotKey{}, invalid("date", "must be formatted as %s", helper.DateLayout)
	}
	if !c.schedule.HasWindow(window) {
		return models.SlotKey{}, invalid("time_window", "unknown time window %q", window)
	}
	return models.SlotKey{Date: date, Window: window}, nil
}

// Cancel cancels a booking on behalf of its owner or a manager. Queued
// bookings may be cancelled at any time; seat holders only until their
// modification deadline, and their seat goes to the head of the queue.
func (c *Controller) Cancel(ctx context.Context, bookingID string, by Requester) (models.Booking, error) {
	var (
		cancelled models.Booking
		promoted  *models.Booking
		from      models.BookingState
	)
	err := c.underSlotLock(ctx, bookingID, func(ctx context.Context, b models.Booking) error {
		if b.CustomerID != by.ID && !by.IsManager() {
			return ErrForbidden
		}
		if b.State.IsTerminal() {
			return fmt.Errorf("cancel %s booking: %w", b.State, ErrInvalidStateTransition)
		}
		now := c.clock.Now()
		if b.State != models.StateQueued && now.After(b.ModifiableUntil) {
			return ErrDeadlineExceeded
		}

		from = b.State
		position := b.QueuePosition
		b.State = models.StateCancelled
		b.QueuePosition = 0
		b.EstimatedServiceTime = nil
		b.UpdatedAt = now
		if err := c.store.UpdateBooking(ctx, b); err != nil {
			return err
		}
		if _, err := c.loyalty.Decrement(ctx, b.CustomerID); err != nil {
			return err
		}
		cancelled = b

		if from == models.StateQueued {
			return c.queue.Remove(ctx, b.Slot, position)
		}
		var err error
		promoted, err = c.queue.Promote(ctx, b.Slot)
		return err
	})
	if err != nil {
		return models.Booking{}, err
	}

	c.metrics.Cancellations.WithLabelValues(string(from)).Inc()
	c.log.Info("booking cancelled",
		"booking_id", cancelled.ID,
		"requester_id", by.ID,
		"from_state", from,
	)
	c.publish(models.NewBookingEvent(models.EventCancelled, cancelled, cancelled.UpdatedAt))
	c.publishPromotion(promoted)
	return cancelled, nil
}

// Start marks a seated booking as being worked on.
func (c *Controller) Start(ctx context.Context, bookingID string) (models.Booking, error) {
	var started models.Booking
	err := c.underSlotLock(ctx, bookingID, func(ctx context.Context, b models.Booking) error {
		if b.State != models.StateConfirmed && b.State != models.StatePending {
			return fmt.Errorf("start %s booking: %w", b.State, ErrInvalidStateTransition)
		}
		b.State = models.StateInProgress
		b.UpdatedAt = c.clock.Now()
		if err := c.store.UpdateBooking(ctx, b); err != nil {
			return err
		}
		started = b
		return nil
	})
	if err != nil {
		return models.Booking{}, err
	}

	c.log.Info("booking started", "booking_id", started.ID, "advisor_id", started.AdvisorID)
	c.publish(models.NewBookingEvent(models.EventStarted, started, started.UpdatedAt))
	return started, nil
}

// Complete finishes a seated booking and hands its seat to the queue head.
func (c *Controller) Complete(ctx context.Context, bookingID string) (models.Booking, error) {
	var (
		completed models.Booking
		promoted  *models.Booking
	)
	err := c.underSlotLock(ctx, bookingID, func(ctx context.Context, b models.Booking) error {
		if !b.State.HoldsSeat() {
			return fmt.Errorf("complete %s booking: %w", b.State, ErrInvalidStateTransition)
		}
		b.State = models.StateCompleted
		b.UpdatedAt = c.clock.Now()
		if err := c.store.UpdateBooking(ctx, b); err != nil {
			return err
		}
		completed = b

		var err error
		promoted, err = c.queue.Promote(ctx, b.Slot)
		return err
	})
	if err != nil {
		return models.Booking{}, err
	}

	c.metrics.Completions.Inc()
	c.log.Info("booking completed", "booking_id", completed.ID, "advisor_id", completed.AdvisorID)
	c.publish(models.NewBookingEvent(models.EventCompleted, completed, completed.UpdatedAt))
	c.publishPromotion(promoted)
	return completed, nil
}

// AssignAdvisorOverride lets a manager put a specific advisor on a booking
// without consulting slot capacity. The booking is tagged so overrides can be
// told apart from engine admissions. The advisor must not already hold a
// seat in the slot.
func (c *Controller) AssignAdvisorOverride(ctx context.Context, bookingID, advisorID string) (models.Booking, error) {
	advisorID = strings.TrimSpace(advisorID)
	if advisorID == "" {
		return models.Booking{}, invalid("advisor_id", "is required")
	}

	var assigned models.Booking
	err := c.underSlotLock(ctx, bookingID, func(ctx context.Context, b models.Booking) error {
		if b.State.IsTerminal() {
			return fmt.Errorf("override %s booking: %w", b.State, ErrInvalidStateTransition)
		}
		advisor, err := c.roster.GetAdvisor(ctx, advisorID)
		if err != nil {
			return err
		}

		if b.AdvisorID != advisor.ID {
			holders, err := c.store.SeatHolderAdvisorIDs(ctx, b.Slot)
			if err != nil {
				return err
			}
			for _, id := range holders {
				if id == advisor.ID {
					return ErrAdvisorCommitted
				}
			}
		}

		position := b.QueuePosition
		wasQueued := b.State == models.StateQueued
		b.AdvisorID = advisor.ID
		b.Assignment = models.AssignmentManagerOverride
		if b.State != models.StateInProgress {
			b.State = models.StateConfirmed
		}
		b.QueuePosition = 0
		b.EstimatedServiceTime = nil
		b.UpdatedAt = c.clock.Now()
		if err := c.store.UpdateBooking(ctx, b); err != nil {
			if errors.Is(err, ErrCapacityConflict) {
				return ErrAdvisorCommitted
			}
			return err
		}
		assigned = b

		if wasQueued {
			return c.queue.Remove(ctx, b.Slot, position)
		}
		return nil
	})
	if err != nil {
		return models.Booking{}, err
	}

	c.metrics.Overrides.Inc()
	c.log.Warn("manager override assignment",
		"booking_id", assigned.ID,
		"advisor_id", assigned.AdvisorID,
		"slot", assigned.Slot.String(),
	)
	c.publish(models.NewBookingEvent(models.EventOverrideAssigned, assigned, assigned.UpdatedAt))
	return assigned, nil
}

// DrainQueue promotes queued bookings until the slot runs out of seats or
// free advisors. The engine does not watch the roster, so this is how a
// returning advisor picks up waiting customers.
func (c *Controller) DrainQueue(ctx context.Context, date, window string) ([]models.Booking, error) {
	slot, err := c.slotKey(date, window)
	if err != nil {
		return nil, err
	}

	unlock, err := c.locker.Lock(ctx, slot.String())
	if err != nil {
		return nil, fmt.Errorf("lock slot %s: %w", slot, err)
	}
	defer unlock()

	var promoted []models.Booking
	err = c.store.WithTx(ctx, func(ctx context.Context) error {
		promoted = promoted[:0]
		for {
			p, err := c.queue.Promote(ctx, slot)
			if err != nil {
				return err
			}
			if p == nil {
				return nil
			}
			promoted = append(promoted, *p)
		}
	})
	if err != nil {
		return nil, err
	}

	for i := range promoted {
		c.publishPromotion(&promoted[i])
	}
	c.log.Info("queue drained", "slot", slot.String(), "promoted", len(promoted))
	return promoted, nil
}

// underSlotLock resolves the booking's slot, takes the slot lock and runs fn
// in a transaction with the booking re-read under the lock.
func (c *Controller) underSlotLock(ctx context.Context, bookingID string, fn func(ctx context.Context, b models.Booking) error) error {
	b, err := c.store.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}

	unlock, err := c.locker.Lock(ctx, b.Slot.String())
	if err != nil {
		return fmt.Errorf("lock slot %s: %w", b.Slot, err)
	}
	defer unlock()

	return c.store.WithTx(ctx, func(ctx context.Context) error {
		current, err := c.store.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		return fn(ctx, current)
	})
}

func (c *Controller) publishPromotion(b *models.Booking) {
	if b == nil {
		return
	}
	c.metrics.Promotions.Inc()
	c.log.Info("queued booking promoted",
		"booking_id", b.ID,
		"advisor_id", b.AdvisorID,
		"slot", b.Slot.String(),
	)
	c.publish(models.NewBookingEvent(models.EventPromoted, *b, b.UpdatedAt))
}

func (c *Controller) publish(ev models.BookingEvent) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = c.clock.Now()
	}
	c.events.Publish(ev)
}

func minutes(d time.Duration) int {
	return int(d / time.Minute)
}
