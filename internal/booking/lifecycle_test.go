package booking_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"backend-booking/internal/booking"
	"backend-booking/internal/clock"
	"backend-booking/internal/logger"
	"backend-booking/internal/models"
	"backend-booking/internal/roster"
	"backend-booking/internal/storage/memory"
)

const (
	slotDate    = "2025-01-10"
	nineToTen   = "09:00-10:00"
	tenToEleven = "10:00-11:00"
)

var (
	startOfTest = time.Date(2025, 1, 9, 8, 0, 0, 0, time.UTC)
	testVehicle = models.Vehicle{Make: "Toyota", Model: "Avanza", PlateNumber: "B 1234 XYZ", Year: 2021}
	nineSlot    = models.SlotKey{Date: slotDate, Window: nineToTen}
)

type eventLog struct {
	mu     sync.Mutex
	events []models.BookingEvent
}

func (l *eventLog) Publish(ev models.BookingEvent) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) kinds() []models.EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.EventKind, 0, len(l.events))
	for _, ev := range l.events {
		out = append(out, ev.Kind)
	}
	return out
}

type harness struct {
	store  booking.Store
	roster *roster.Static
	clock  *clock.Manual
	events *eventLog
	ctl    *booking.Controller
}

func testSchedule(t *testing.T) *booking.Schedule {
	t.Helper()
	s, err := booking.NewSchedule(booking.ScheduleConfig{
		Location:        time.UTC,
		OpeningTime:     "08:00",
		ClosingTime:     "17:00",
		Windows:         []string{"08:00-09:00", nineToTen, tenToEleven, "16:00-17:00"},
		ServiceDuration: time.Hour,
		ModifyCutoff:    2 * time.Hour,
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	return s
}

func newHarness(t *testing.T, advisors ...models.Advisor) *harness {
	t.Helper()
	return newHarnessWithStore(t, memory.NewStore(), advisors...)
}

func newHarnessWithStore(t *testing.T, store booking.Store, advisors ...models.Advisor) *harness {
	t.Helper()
	var seq atomic.Int64
	h := &harness{
		store:  store,
		roster: roster.NewStatic(advisors...),
		clock:  clock.NewManual(startOfTest),
		events: &eventLog{},
	}
	h.ctl = booking.NewController(h.store, h.roster, testSchedule(t),
		booking.WithClock(h.clock),
		booking.WithPublisher(h.events),
		booking.WithIDGenerator(func() string { return fmt.Sprintf("bk-%d", seq.Add(1)) }),
	)
	return h
}

func (h *harness) create(t *testing.T, customer string, st models.ServiceType, window string) models.Booking {
	t.Helper()
	res, err := h.ctl.Create(context.Background(), booking.CreateInput{
		CustomerID:  customer,
		ServiceType: string(st),
		Vehicle:     testVehicle,
		Date:        slotDate,
		TimeWindow:  window,
	})
	if err != nil {
		t.Fatalf("create for %s: %v", customer, err)
	}
	return res.Booking
}

func (h *harness) get(t *testing.T, id string) models.Booking {
	t.Helper()
	b, err := h.store.GetBooking(context.Background(), id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	return b
}

func (h *harness) queuePositions(t *testing.T, slot models.SlotKey) map[string]int {
	t.Helper()
	entries, err := h.store.ListQueued(context.Background(), slot)
	if err != nil {
		t.Fatalf("list queue: %v", err)
	}
	out := make(map[string]int, len(entries))
	for _, e := range entries {
		out[e.ID] = e.QueuePosition
	}
	return out
}

func advisor(id string, available bool, specs ...models.ServiceType) models.Advisor {
	return models.Advisor{ID: id, Name: id, IsAvailable: available, Specializations: specs}
}

func customer(id string) booking.Requester {
	return booking.Requester{ID: id, Role: "customer"}
}

var manager = booking.Requester{ID: "mgr-1", Role: "manager"}

func TestController_SingleAdvisorScenario(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, advisor("adv-a", true))

	x := h.create(t, "cust-x", models.ServiceOilChange, nineToTen)
	if x.State != models.StateConfirmed || x.AdvisorID != "adv-a" {
		t.Fatalf("expected X confirmed with adv-a, got %s/%s", x.State, x.AdvisorID)
	}
	if x.Assignment != models.AssignmentMatched {
		t.Fatalf("expected matched assignment, got %q", x.Assignment)
	}

	y := h.create(t, "cust-y", models.ServiceOilChange, nineToTen)
	if y.State != models.StateQueued || y.QueuePosition != 1 {
		t.Fatalf("expected Y queued at 1, got %s at %d", y.State, y.QueuePosition)
	}
	wantETA := time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC)
	if y.EstimatedServiceTime == nil || !y.EstimatedServiceTime.Equal(wantETA) {
		t.Fatalf("expected estimate %v, got %v", wantETA, y.EstimatedServiceTime)
	}

	if _, err := h.ctl.Cancel(ctx, x.ID, customer("cust-x")); err != nil {
		t.Fatalf("cancel X: %v", err)
	}

	y = h.get(t, y.ID)
	if y.State != models.StateConfirmed || y.AdvisorID != "adv-a" {
		t.Fatalf("expected Y promoted to adv-a, got %s/%s", y.State, y.AdvisorID)
	}
	if y.QueuePosition != 0 || y.EstimatedServiceTime != nil {
		t.Fatalf("expected queue fields cleared, got position %d estimate %v", y.QueuePosition, y.EstimatedServiceTime)
	}

	info, err := h.ctl.GetQueueInfo(ctx, slotDate, nineToTen)
	if err != nil {
		t.Fatalf("queue info: %v", err)
	}
	if info.QueueLength != 0 {
		t.Fatalf("expected empty queue, got %d", info.QueueLength)
	}

	want := []models.EventKind{models.EventAssigned, models.EventQueued, models.EventCancelled, models.EventPromoted}
	got := h.events.kinds()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
}

func TestController_NoAdvisorsConfigured(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.ctl.Create(ctx, booking.CreateInput{
		CustomerID:  "cust-z",
		ServiceType: string(models.ServiceOilChange),
		Vehicle:     testVehicle,
		Date:        slotDate,
		TimeWindow:  nineToTen,
	})
	if !errors.Is(err, booking.ErrNoAdvisorsConfigured) {
		t.Fatalf("expected ErrNoAdvisorsConfigured, got %v", err)
	}

	bookings, _ := h.ctl.ListCustomerBookings(ctx, "cust-z")
	if len(bookings) != 0 {
		t.Fatalf("expected nothing stored, got %d bookings", len(bookings))
	}
	ledger, _ := h.ctl.GetLoyalty(ctx, "cust-z")
	if ledger.BookingCount != 0 {
		t.Fatalf("expected loyalty untouched, got %d", ledger.BookingCount)
	}
}

func TestController_UnavailableRosterStillQueues(t *testing.T) {
	h := newHarness(t, advisor("adv-a", false))

	b := h.create(t, "cust-1", models.ServiceOilChange, nineToTen)
	if b.State != models.StateQueued {
		t.Fatalf("expected queued while the only advisor is away, got %s", b.State)
	}
}

func TestController_LoyaltyThresholdCrossing(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.Seed(nil, models.LoyaltyLedger{CustomerID: "cust-l", BookingCount: 5})
	h := newHarnessWithStore(t, store, advisor("adv-a", true))

	b := h.create(t, "cust-l", models.ServiceOilChange, nineToTen)
	ledger, _ := h.ctl.GetLoyalty(ctx, "cust-l")
	if ledger.BookingCount != 6 || !ledger.IsEligible {
		t.Fatalf("expected 6/eligible, got %d/%v", ledger.BookingCount, ledger.IsEligible)
	}

	if _, err := h.ctl.Cancel(ctx, b.ID, customer("cust-l")); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	ledger, _ = h.ctl.GetLoyalty(ctx, "cust-l")
	if ledger.BookingCount != 5 || ledger.IsEligible {
		t.Fatalf("expected 5/not eligible, got %d/%v", ledger.BookingCount, ledger.IsEligible)
	}
}

func TestController_LoyaltyCountsQueuedBookings(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, advisor("adv-a", true))

	var ids []string
	for i := 0; i < 7; i++ {
		ids = append(ids, h.create(t, "cust-1", models.ServiceOilChange, nineToTen).ID)
	}
	for _, id := range ids[:3] {
		if _, err := h.ctl.Cancel(ctx, id, customer("cust-1")); err != nil {
			t.Fatalf("cancel %s: %v", id, err)
		}
	}

	ledger, _ := h.ctl.GetLoyalty(ctx, "cust-1")
	if ledger.BookingCount != 4 || ledger.IsEligible {
		t.Fatalf("expected 4/not eligible, got %d/%v", ledger.BookingCount, ledger.IsEligible)
	}
}

func TestLoyaltyCounter_ClampsAtZero(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	counter := booking.NewLoyaltyCounter(store, clock.NewManual(startOfTest), logger.NewNop())

	for i := 0; i < 3; i++ {
		if _, err := counter.Decrement(ctx, "cust-1"); err != nil {
			t.Fatalf("decrement: %v", err)
		}
	}
	ledger, err := counter.Increment(ctx, "cust-1")
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if ledger.BookingCount != 1 || ledger.IsEligible {
		t.Fatalf("expected 1/not eligible, got %d/%v", ledger.BookingCount, ledger.IsEligible)
	}
}

func TestController_ConcurrentCreatesForLastSeat(t *testing.T) {
	h := newHarness(t, advisor("adv-a", true))

	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		results = make([]models.Booking, 2)
		errs    = make([]error, 2)
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			res, err := h.ctl.Create(context.Background(), booking.CreateInput{
				CustomerID:  fmt.Sprintf("cust-%d", i),
				ServiceType: string(models.ServiceOilChange),
				Vehicle:     testVehicle,
				Date:        slotDate,
				TimeWindow:  nineToTen,
			})
			results[i], errs[i] = res.Booking, err
		}(i)
	}
	close(start)
	wg.Wait()

	var confirmed, queued int
	for i := range results {
		if errs[i] != nil {
			t.Fatalf("create %d: %v", i, errs[i])
		}
		switch results[i].State {
		case models.StateConfirmed:
			confirmed++
		case models.StateQueued:
			queued++
			if results[i].QueuePosition != 1 {
				t.Fatalf("expected queue position 1, got %d", results[i].QueuePosition)
			}
		}
	}
	if confirmed != 1 || queued != 1 {
		t.Fatalf("expected one confirmed and one queued, got %d/%d", confirmed, queued)
	}
}

func TestController_ConcurrentCreatesKeepInvariants(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, advisor("adv-a", true), advisor("adv-b", true), advisor("adv-c", true))

	const n = 20
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := h.ctl.Create(ctx, booking.CreateInput{
				CustomerID:  fmt.Sprintf("cust-%d", i),
				ServiceType: string(models.ServiceTire),
				Vehicle:     testVehicle,
				Date:        slotDate,
				TimeWindow:  nineToTen,
			})
			if err != nil {
				t.Errorf("create %d: %v", i, err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	committed, _ := h.store.CountSeatHolders(ctx, nineSlot)
	if committed != 3 {
		t.Fatalf("expected 3 seat holders, got %d", committed)
	}
	ids, _ := h.store.SeatHolderAdvisorIDs(ctx, nineSlot)
	if fmt.Sprint(ids) != "[adv-a adv-b adv-c]" {
		t.Fatalf("expected each advisor once, got %v", ids)
	}

	positions := h.queuePositions(t, nineSlot)
	got := make([]int, 0, len(positions))
	for _, p := range positions {
		got = append(got, p)
	}
	sort.Ints(got)
	for i, p := range got {
		if p != i+1 {
			t.Fatalf("expected contiguous positions 1..%d, got %v", n-3, got)
		}
	}
	if len(got) != n-3 {
		t.Fatalf("expected %d queued, got %d", n-3, len(got))
	}
}

func TestController_QueueFIFOAndContiguity(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, advisor("adv-a", true))

	seated := h.create(t, "cust-0", models.ServiceOilChange, nineToTen)
	q1 := h.create(t, "cust-1", models.ServiceOilChange, nineToTen)
	h.clock.Advance(time.Minute)
	q2 := h.create(t, "cust-2", models.ServiceOilChange, nineToTen)
	h.clock.Advance(time.Minute)
	q3 := h.create(t, "cust-3", models.ServiceOilChange, nineToTen)

	if q1.QueuePosition != 1 || q2.QueuePosition != 2 || q3.QueuePosition != 3 {
		t.Fatalf("expected positions 1,2,3, got %d,%d,%d", q1.QueuePosition, q2.QueuePosition, q3.QueuePosition)
	}

	if _, err := h.ctl.Cancel(ctx, q2.ID, customer("cust-2")); err != nil {
		t.Fatalf("cancel q2: %v", err)
	}
	positions := h.queuePositions(t, nineSlot)
	if positions[q1.ID] != 1 || positions[q3.ID] != 2 || len(positions) != 2 {
		t.Fatalf("expected gap closed, got %v", positions)
	}
	q3 = h.get(t, q3.ID)
	wantETA := time.Date(2025, 1, 10, 11, 0, 0, 0, time.UTC)
	if q3.EstimatedServiceTime == nil || !q3.EstimatedServiceTime.Equal(wantETA) {
		t.Fatalf("expected q3 estimate %v, got %v", wantETA, q3.EstimatedServiceTime)
	}

	if _, err := h.ctl.Complete(ctx, seated.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got := h.get(t, q1.ID); got.State != models.StateConfirmed {
		t.Fatalf("expected q1 promoted first, got %s", got.State)
	}
	positions = h.queuePositions(t, nineSlot)
	if positions[q3.ID] != 1 || len(positions) != 1 {
		t.Fatalf("expected q3 at head, got %v", positions)
	}
}

func TestController_AdvisorMatching(t *testing.T) {
	h := newHarness(t,
		advisor("adv-general", true),
		advisor("adv-brakes", true, models.ServiceBrake),
	)

	first := h.create(t, "cust-1", models.ServiceBrake, nineToTen)
	if first.AdvisorID != "adv-brakes" {
		t.Fatalf("expected the specialist, got %s", first.AdvisorID)
	}
	second := h.create(t, "cust-2", models.ServiceBrake, nineToTen)
	if second.AdvisorID != "adv-general" {
		t.Fatalf("expected fallback to any free advisor, got %s", second.AdvisorID)
	}
	third := h.create(t, "cust-3", models.ServiceOilChange, nineToTen)
	if third.State != models.StateQueued {
		t.Fatalf("expected queued once every advisor is seated, got %s", third.State)
	}

	other := h.create(t, "cust-4", models.ServiceOilChange, tenToEleven)
	if other.AdvisorID != "adv-general" {
		t.Fatalf("expected roster order for unspecialized work, got %s", other.AdvisorID)
	}
}

func TestController_CancelRules(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, advisor("adv-a", true))

	seated := h.create(t, "cust-1", models.ServiceOilChange, nineToTen)
	queued := h.create(t, "cust-2", models.ServiceOilChange, nineToTen)

	if _, err := h.ctl.Cancel(ctx, seated.ID, customer("cust-2")); !errors.Is(err, booking.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for another customer, got %v", err)
	}
	if _, err := h.ctl.Cancel(ctx, "missing", customer("cust-1")); !errors.Is(err, booking.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// 07:30 on the day is past the 07:00 deadline of the 09:00 window.
	h.clock.Set(time.Date(2025, 1, 10, 7, 30, 0, 0, time.UTC))

	if _, err := h.ctl.Cancel(ctx, seated.ID, customer("cust-1")); !errors.Is(err, booking.ErrDeadlineExceeded) {
		t.Fatalf("expected ErrDeadlineExceeded, got %v", err)
	}
	if _, err := h.ctl.Cancel(ctx, queued.ID, customer("cust-2")); err != nil {
		t.Fatalf("queued bookings cancel any time: %v", err)
	}
	if _, err := h.ctl.Cancel(ctx, queued.ID, customer("cust-2")); !errors.Is(err, booking.ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition on second cancel, got %v", err)
	}

	if got := h.get(t, seated.ID); got.State != models.StateConfirmed {
		t.Fatalf("expected seated booking untouched, got %s", got.State)
	}
}

func TestController_ManagerMayCancel(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, advisor("adv-a", true))

	b := h.create(t, "cust-1", models.ServiceOilChange, nineToTen)
	got, err := h.ctl.Cancel(ctx, b.ID, manager)
	if err != nil {
		t.Fatalf("manager cancel: %v", err)
	}
	if got.State != models.StateCancelled {
		t.Fatalf("expected cancelled, got %s", got.State)
	}
}

func TestController_TransitionsOutOfTerminalStates(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, advisor("adv-a", true))

	done := h.create(t, "cust-1", models.ServiceOilChange, nineToTen)
	if _, err := h.ctl.Complete(ctx, done.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	h.create(t, "cust-2", models.ServiceOilChange, tenToEleven)
	queued := h.create(t, "cust-3", models.ServiceOilChange, tenToEleven)

	tests := []struct {
		name string
		act  func() error
		want error
	}{
		{"complete completed", func() error { _, err := h.ctl.Complete(ctx, done.ID); return err }, booking.ErrInvalidStateTransition},
		{"cancel completed", func() error { _, err := h.ctl.Cancel(ctx, done.ID, customer("cust-1")); return err }, booking.ErrInvalidStateTransition},
		{"start completed", func() error { _, err := h.ctl.Start(ctx, done.ID); return err }, booking.ErrInvalidStateTransition},
		{"override completed", func() error { _, err := h.ctl.AssignAdvisorOverride(ctx, done.ID, "adv-a"); return err }, booking.ErrInvalidStateTransition},
		{"complete queued", func() error { _, err := h.ctl.Complete(ctx, queued.ID); return err }, booking.ErrInvalidStateTransition},
		{"complete unknown", func() error { _, err := h.ctl.Complete(ctx, "missing"); return err }, booking.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.act(); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestController_StartAndCompleteInProgress(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, advisor("adv-a", true))

	b := h.create(t, "cust-1", models.ServiceOilChange, nineToTen)
	waiting := h.create(t, "cust-2", models.ServiceOilChange, nineToTen)

	started, err := h.ctl.Start(ctx, b.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.State != models.StateInProgress {
		t.Fatalf("expected in_progress, got %s", started.State)
	}
	if _, err := h.ctl.Start(ctx, b.ID); !errors.Is(err, booking.ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}

	committed, _ := h.store.CountSeatHolders(ctx, nineSlot)
	if committed != 1 {
		t.Fatalf("in-progress booking must keep its seat, got %d committed", committed)
	}

	if _, err := h.ctl.Complete(ctx, b.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got := h.get(t, waiting.ID); got.State != models.StateConfirmed || got.AdvisorID != "adv-a" {
		t.Fatalf("expected waiting booking promoted, got %s/%s", got.State, got.AdvisorID)
	}
}

func TestController_PromoteWaitsForCapacity(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, advisor("adv-a", true))

	seated := h.create(t, "cust-1", models.ServiceOilChange, nineToTen)
	waiting := h.create(t, "cust-2", models.ServiceOilChange, nineToTen)

	if err := h.roster.SetAvailability("adv-a", false); err != nil {
		t.Fatalf("set availability: %v", err)
	}
	if _, err := h.ctl.Complete(ctx, seated.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got := h.get(t, waiting.ID); got.State != models.StateQueued || got.QueuePosition != 1 {
		t.Fatalf("expected head to stay queued at 1, got %s at %d", got.State, got.QueuePosition)
	}

	if err := h.roster.SetAvailability("adv-a", true); err != nil {
		t.Fatalf("set availability: %v", err)
	}
	promoted, err := h.ctl.DrainQueue(ctx, slotDate, nineToTen)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(promoted) != 1 || promoted[0].ID != waiting.ID {
		t.Fatalf("expected waiting booking promoted, got %+v", promoted)
	}
}

func TestController_DrainQueueStopsAtCapacity(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, advisor("adv-a", true), advisor("adv-b", true))

	h.create(t, "cust-1", models.ServiceOilChange, nineToTen)
	h.create(t, "cust-2", models.ServiceOilChange, nineToTen)
	z := h.create(t, "cust-3", models.ServiceOilChange, nineToTen)
	w := h.create(t, "cust-4", models.ServiceOilChange, nineToTen)

	h.roster.Add(advisor("adv-c", true))
	promoted, err := h.ctl.DrainQueue(ctx, slotDate, nineToTen)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(promoted) != 1 || promoted[0].ID != z.ID || promoted[0].AdvisorID != "adv-c" {
		t.Fatalf("expected only the head promoted to adv-c, got %+v", promoted)
	}
	if got := h.get(t, w.ID); got.QueuePosition != 1 {
		t.Fatalf("expected remaining booking at head, got %d", got.QueuePosition)
	}

	if _, err := h.ctl.DrainQueue(ctx, slotDate, "11:00-12:00"); !errors.Is(err, booking.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown window, got %v", err)
	}
}

func TestController_AssignAdvisorOverride(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, advisor("adv-a", true), advisor("adv-b", false))

	h.create(t, "cust-1", models.ServiceOilChange, nineToTen)
	y := h.create(t, "cust-2", models.ServiceOilChange, nineToTen)
	if y.State != models.StateQueued {
		t.Fatalf("expected queued, got %s", y.State)
	}

	got, err := h.ctl.AssignAdvisorOverride(ctx, y.ID, "adv-b")
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if got.State != models.StateConfirmed || got.AdvisorID != "adv-b" || got.Assignment != models.AssignmentManagerOverride {
		t.Fatalf("unexpected override result: %+v", got)
	}
	if len(h.queuePositions(t, nineSlot)) != 0 {
		t.Fatalf("expected overridden booking removed from queue")
	}

	// The override seats a second booking on a one-advisor slot.
	committed, _ := h.store.CountSeatHolders(ctx, nineSlot)
	if committed != 2 {
		t.Fatalf("expected 2 seat holders after override, got %d", committed)
	}

	z := h.create(t, "cust-3", models.ServiceOilChange, nineToTen)
	if _, err := h.ctl.AssignAdvisorOverride(ctx, z.ID, "adv-a"); !errors.Is(err, booking.ErrAdvisorCommitted) {
		t.Fatalf("expected ErrAdvisorCommitted, got %v", err)
	}
	if _, err := h.ctl.AssignAdvisorOverride(ctx, z.ID, "adv-zzz"); !errors.Is(err, booking.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown advisor, got %v", err)
	}
	if _, err := h.ctl.AssignAdvisorOverride(ctx, z.ID, " "); !errors.Is(err, booking.ErrValidation) {
		t.Fatalf("expected ErrValidation for blank advisor, got %v", err)
	}

	kinds := h.events.kinds()
	if kinds[len(kinds)-2] != models.EventOverrideAssigned {
		t.Fatalf("expected override event, got %v", kinds)
	}
}

type conflictingStore struct {
	*memory.Store
	conflicts int
}

func (s *conflictingStore) InsertBooking(ctx context.Context, b models.Booking) error {
	if b.State == models.StateConfirmed && s.conflicts > 0 {
		s.conflicts--
		return booking.ErrCapacityConflict
	}
	return s.Store.InsertBooking(ctx, b)
}

func TestController_CapacityConflictRetry(t *testing.T) {
	tests := []struct {
		name      string
		conflicts int
		wantState models.BookingState
	}{
		{"first conflict is retried", 1, models.StateConfirmed},
		{"second conflict falls back to the queue", 2, models.StateQueued},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := &conflictingStore{Store: memory.NewStore(), conflicts: tt.conflicts}
			h := newHarnessWithStore(t, store, advisor("adv-a", true))

			b := h.create(t, "cust-1", models.ServiceOilChange, nineToTen)
			if b.State != tt.wantState {
				t.Fatalf("expected %s, got %s", tt.wantState, b.State)
			}
			ledger, _ := h.ctl.GetLoyalty(ctx, "cust-1")
			if ledger.BookingCount != 1 {
				t.Fatalf("expected exactly one loyalty increment, got %d", ledger.BookingCount)
			}
		})
	}
}

func TestController_CreateValidation(t *testing.T) {
	h := newHarness(t, advisor("adv-a", true))

	valid := booking.CreateInput{
		CustomerID:  "cust-1",
		ServiceType: string(models.ServiceOilChange),
		Vehicle:     testVehicle,
		Date:        slotDate,
		TimeWindow:  nineToTen,
	}

	tests := []struct {
		name   string
		mutate func(*booking.CreateInput)
		field  string
	}{
		{"missing customer", func(in *booking.CreateInput) { in.CustomerID = "" }, "customer_id"},
		{"unknown service type", func(in *booking.CreateInput) { in.ServiceType = "paint_job" }, "service_type"},
		{"missing plate", func(in *booking.CreateInput) { in.Vehicle.PlateNumber = "" }, "vehicle.plate_number"},
		{"bad date", func(in *booking.CreateInput) { in.Date = "10-01-2025" }, "date"},
		{"unknown window", func(in *booking.CreateInput) { in.TimeWindow = "09:30-10:30" }, "time_window"},
		{"slot already over", func(in *booking.CreateInput) { in.Date = "2025-01-08" }, "time_window"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := h.ctl.Create(context.Background(), in)
			if !errors.Is(err, booking.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			var verr *booking.ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Fatalf("expected field %s, got %v", tt.field, err)
			}
		})
	}
}

func TestController_Queries(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, advisor("adv-a", true), advisor("adv-b", false))

	x := h.create(t, "cust-1", models.ServiceOilChange, nineToTen)
	h.create(t, "cust-2", models.ServiceOilChange, nineToTen)

	slots, err := h.ctl.GetAvailableSlots(ctx, slotDate)
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	if len(slots) != 4 {
		t.Fatalf("expected 4 windows, got %d", len(slots))
	}
	byWindow := make(map[string]models.SlotAvailability)
	for _, s := range slots {
		byWindow[s.TimeWindow] = s
	}
	nine := byWindow[nineToTen]
	if nine.IsAvailable || nine.AdvisorsAssigned != 1 || nine.AdvisorsAvailable != 0 || nine.TotalAdvisors != 2 || nine.QueueLength != 1 {
		t.Fatalf("unexpected 09:00 availability: %+v", nine)
	}
	if eight := byWindow["08:00-09:00"]; !eight.IsAvailable || eight.AdvisorsAvailable != 1 {
		t.Fatalf("unexpected 08:00 availability: %+v", eight)
	}

	info, err := h.ctl.GetQueueInfo(ctx, slotDate, nineToTen)
	if err != nil {
		t.Fatalf("queue info: %v", err)
	}
	if info.QueueLength != 1 || info.AdvisorsAvailable != 0 || info.EstimatedWaitMinutes != 120 {
		t.Fatalf("unexpected queue info: %+v", info)
	}

	empty, err := h.ctl.GetQueueInfo(ctx, slotDate, tenToEleven)
	if err != nil {
		t.Fatalf("queue info: %v", err)
	}
	if empty.EstimatedWaitMinutes != 0 || empty.QueuedEntries == nil {
		t.Fatalf("unexpected empty queue info: %+v", empty)
	}

	if _, err := h.ctl.GetAvailableSlots(ctx, "tomorrow"); !errors.Is(err, booking.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	if _, err := h.ctl.GetBooking(ctx, x.ID, customer("cust-2")); !errors.Is(err, booking.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := h.ctl.GetBooking(ctx, x.ID, booking.Requester{ID: "adv-a", Role: "service_advisor"}); err != nil {
		t.Fatalf("assigned advisor should see the booking: %v", err)
	}
	if _, err := h.ctl.GetBooking(ctx, x.ID, manager); err != nil {
		t.Fatalf("manager should see the booking: %v", err)
	}
}
