package booking

import (
	"fmt"
	"sort"
	"time"

	"backend-booking/internal/helper"
	"backend-booking/internal/models"
)

const (
	DefaultServiceDuration = 60 * time.Minute
	DefaultModifyCutoff    = 2 * time.Hour
)

// Schedule describes the service center's business day.
type Schedule struct {
	loc             *time.Location
	opening         time.Duration
	closing         time.Duration
	windows         []string
	firstStart      time.Duration
	serviceDuration time.Duration
	modifyCutoff    time.Duration
}

type ScheduleConfig struct {
	Location        *time.Location
	OpeningTime     string
	ClosingTime     string
	Windows         []string
	ServiceDuration time.Duration
	ModifyCutoff    time.Duration
}

func NewSchedule(cfg ScheduleConfig) (*Schedule, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.ServiceDuration <= 0 {
		cfg.ServiceDuration = DefaultServiceDuration
	}
	if cfg.ModifyCutoff < 0 {
		return nil, fmt.Errorf("modify cutoff must not be negative")
	}
	if len(cfg.Windows) == 0 {
		return nil, fmt.Errorf("at least one time window is required")
	}

	opening, err := helper.ParseClock(cfg.OpeningTime)
	if err != nil {
		return nil, fmt.Errorf("opening time: %w", err)
	}
	closing, err := helper.ParseClock(cfg.ClosingTime)
	if err != nil {
		return nil, fmt.Errorf("closing time: %w", err)
	}
	if closing <= opening {
		return nil, fmt.Errorf("closing time %s must be after opening time %s", cfg.ClosingTime, cfg.OpeningTime)
	}

	starts := make([]time.Duration, 0, len(cfg.Windows))
	seen := make(map[string]bool, len(cfg.Windows))
	for _, w := range cfg.Windows {
		if seen[w] {
			return nil, fmt.Errorf("duplicate time window %q", w)
		}
		seen[w] = true

		start, end, err := helper.ParseTimeWindow(w)
		if err != nil {
			return nil, fmt.Errorf("time window %q: %w", w, err)
		}
		if start < opening || end > closing {
			return nil, fmt.Errorf("time window %q is outside business hours", w)
		}
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	return &Schedule{
		loc:             cfg.Location,
		opening:         opening,
		closing:         closing,
		windows:         append([]string(nil), cfg.Windows...),
		firstStart:      starts[0],
		serviceDuration: cfg.ServiceDuration,
		modifyCutoff:    cfg.ModifyCutoff,
	}, nil
}

func (s *Schedule) Location() *time.Location        { return s.loc }
func (s *Schedule) ServiceDuration() time.Duration { return s.serviceDuration }
func (s *Schedule) ModifyCutoff() time.Duration    { return s.modifyCutoff }

// Windows returns the configured windows in configuration order.
func (s *Schedule) Windows() []string {
	return append([]string(nil), s.windows...)
}

func (s *Schedule) HasWindow(w string) bool {
	for _, cw := range s.windows {
		if cw == w {
			return true
		}
	}
	return false
}

func (s *Schedule) OpeningTime() string { return formatClock(s.opening) }
func (s *Schedule) ClosingTime() string { return formatClock(s.closing) }

// Bounds returns the absolute start and end of a slot.
func (s *Schedule) Bounds(slot models.SlotKey) (start, end time.Time, err error) {
	day, err := helper.ParseDate(slot.Date, s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	from, to, err := helper.ParseTimeWindow(slot.Window)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return day.Add(from), day.Add(to), nil
}

// EstimateServiceTime projects when the booking at position will be served:
// one service duration per position counted from the window start. Anything
// past closing time rolls over to the first window of the next day.
func (s *Schedule) EstimateServiceTime(slot models.SlotKey, position int) (time.Time, error) {
	start, _, err := s.Bounds(slot)
	if err != nil {
		return time.Time{}, err
	}
	projected := start.Add(time.Duration(position) * s.serviceDuration)

	day, _ := helper.ParseDate(slot.Date, s.loc)
	if projected.After(day.Add(s.closing)) {
		next := day.AddDate(0, 0, 1)
		return next.Add(s.firstStart), nil
	}
	return projected, nil
}

// ModifiableUntil is the last instant a seat-holding booking in slot may be cancelled.
func (s *Schedule) ModifiableUntil(slot models.SlotKey) (time.Time, error) {
	start, _, err := s.Bounds(slot)
	if err != nil {
		return time.Time{}, err
	}
	return start.Add(-s.modifyCutoff), nil
}

func formatClock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d/time.Hour), int(d%time.Hour/time.Minute))
}
