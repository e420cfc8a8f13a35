package roster

import (
	"context"
	"errors"
	"testing"

	"backend-booking/internal/booking"
	"backend-booking/internal/models"
)

func TestParseStatic(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []models.Advisor
		wantErr bool
	}{
		{
			name: "empty",
			raw:  "",
			want: nil,
		},
		{
			name: "id only",
			raw:  "adv-1",
			want: []models.Advisor{{ID: "adv-1", Name: "adv-1", IsAvailable: true}},
		},
		{
			name: "names and specializations",
			raw:  "adv-1:Budi:oil_change|brake_service, adv-2:Sari:",
			want: []models.Advisor{
				{ID: "adv-1", Name: "Budi", IsAvailable: true, Specializations: []models.ServiceType{models.ServiceOilChange, models.ServiceBrake}},
				{ID: "adv-2", Name: "Sari", IsAvailable: true},
			},
		},
		{
			name:    "unknown specialization",
			raw:     "adv-1:Budi:teleportation",
			wantErr: true,
		},
		{
			name:    "missing id",
			raw:     ":Budi:oil_change",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStatic(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d advisors, got %d", len(tt.want), len(got))
			}
			for i := range got {
				if got[i].ID != tt.want[i].ID || got[i].Name != tt.want[i].Name || got[i].IsAvailable != tt.want[i].IsAvailable {
					t.Fatalf("advisor %d: expected %+v, got %+v", i, tt.want[i], got[i])
				}
				if len(got[i].Specializations) != len(tt.want[i].Specializations) {
					t.Fatalf("advisor %d: expected specializations %v, got %v", i, tt.want[i].Specializations, got[i].Specializations)
				}
			}
		})
	}
}

func TestStatic(t *testing.T) {
	ctx := context.Background()
	r := NewStatic(
		models.Advisor{ID: "a", IsAvailable: true, Specializations: []models.ServiceType{models.ServiceBrake}},
		models.Advisor{ID: "b", IsAvailable: false, Specializations: []models.ServiceType{models.ServiceBrake}},
		models.Advisor{ID: "c", IsAvailable: true},
	)

	t.Run("filters by availability and keeps roster order", func(t *testing.T) {
		got, _ := r.ListAvailableAdvisors(ctx, "")
		if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
			t.Fatalf("unexpected advisors: %+v", got)
		}
	})

	t.Run("filters by specialization", func(t *testing.T) {
		got, _ := r.ListAvailableAdvisors(ctx, models.ServiceBrake)
		if len(got) != 1 || got[0].ID != "a" {
			t.Fatalf("unexpected advisors: %+v", got)
		}
	})

	t.Run("counts unavailable advisors too", func(t *testing.T) {
		n, _ := r.CountAdvisors(ctx)
		if n != 3 {
			t.Fatalf("expected 3, got %d", n)
		}
	})

	t.Run("availability flips are visible immediately", func(t *testing.T) {
		if err := r.SetAvailability("b", true); err != nil {
			t.Fatalf("set availability: %v", err)
		}
		got, _ := r.ListAvailableAdvisors(ctx, models.ServiceBrake)
		if len(got) != 2 {
			t.Fatalf("expected 2 brake advisors, got %+v", got)
		}
	})

	t.Run("unknown advisor", func(t *testing.T) {
		if _, err := r.GetAdvisor(ctx, "zzz"); !errors.Is(err, booking.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if err := r.SetAvailability("zzz", true); !errors.Is(err, booking.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}
