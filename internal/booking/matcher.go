package booking

import (
	"context"

	"backend-booking/internal/models"
)

// AdvisorMatcher picks the advisor for a booking. Specialists are preferred;
// any free advisor is the fallback. Ties go to roster order.
type AdvisorMatcher struct {
	store  Store
	roster Roster
}

func NewAdvisorMatcher(store Store, roster Roster) *AdvisorMatcher {
	return &AdvisorMatcher{store: store, roster: roster}
}

// SelectAdvisor returns nil without error when every eligible advisor already
// holds a seat in the slot.
func (m *AdvisorMatcher) SelectAdvisor(ctx context.Context, st models.ServiceType, slot models.SlotKey) (*models.Advisor, error) {
	ids, err := m.store.SeatHolderAdvisorIDs(ctx, slot)
	if err != nil {
		return nil, err
	}
	committed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		committed[id] = struct{}{}
	}

	filters := []models.ServiceType{st}
	if st != "" {
		filters = append(filters, "")
	}

	for _, filter := range filters {
		candidates, err := m.roster.ListAvailableAdvisors(ctx, filter)
		if err != nil {
			return nil, err
		}
		for _, a := range candidates {
			if !a.IsAvailable || (filter != "" && !a.Specializes(filter)) {
				continue
			}
			if _, taken := committed[a.ID]; taken {
				continue
			}
			advisor := a
			return &advisor, nil
		}
	}
	return nil, nil
}
