package roster

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"backend-booking/internal/booking"
	"backend-booking/internal/models"
)

// Static is a roster held in memory, for single-box deployments and tests.
type Static struct {
	mu       sync.RWMutex
	advisors []models.Advisor
}

func NewStatic(advisors ...models.Advisor) *Static {
	return &Static{advisors: append([]models.Advisor(nil), advisors...)}
}

// Add appends an advisor at the end of the roster.
func (s *Static) Add(a models.Advisor) {
	s.mu.Lock()
	s.advisors = append(s.advisors, a)
	s.mu.Unlock()
}

func (s *Static) SetAvailability(id string, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.advisors {
		if s.advisors[i].ID == id {
			s.advisors[i].IsAvailable = available
			return nil
		}
	}
	return fmt.Errorf("advisor %s: %w", id, booking.ErrNotFound)
}

func (s *Static) ListAvailableAdvisors(_ context.Context, st models.ServiceType) ([]models.Advisor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Advisor
	for _, a := range s.advisors {
		if !a.IsAvailable {
			continue
		}
		if st != "" && !a.Specializes(st) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Static) CountAdvisors(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.advisors), nil
}

func (s *Static) GetAdvisor(_ context.Context, id string) (models.Advisor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.advisors {
		if a.ID == id {
			return a, nil
		}
	}
	return models.Advisor{}, fmt.Errorf("advisor %s: %w", id, booking.ErrNotFound)
}

// ParseStatic reads advisors from a comma separated list of
// id:name:spec1|spec2 entries. Every parsed advisor starts available.
// Example: "adv-1:Budi:oil_change|brake_service,adv-2:Sari:"
func ParseStatic(raw string) ([]models.Advisor, error) {
	var out []models.Advisor
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		id := strings.TrimSpace(parts[0])
		if id == "" {
			return nil, fmt.Errorf("advisor entry %q: missing id", entry)
		}
		a := models.Advisor{ID: id, Name: id, IsAvailable: true}
		if len(parts) > 1 && strings.TrimSpace(parts[1]) != "" {
			a.Name = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			for _, raw := range strings.Split(parts[2], "|") {
				raw = strings.TrimSpace(raw)
				if raw == "" {
					continue
				}
				st, ok := models.ParseServiceType(raw)
				if !ok {
					return nil, fmt.Errorf("advisor %s: unknown service type %q", id, raw)
				}
				a.Specializations = append(a.Specializations, st)
			}
		}
		out = append(out, a)
	}
	return out, nil
}
