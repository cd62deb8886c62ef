package api

import (
	"fmt"

	"vintrail/internal/model"
)

func validateDraftInput(in *model.DraftInput) error {
	if len(in.Vineyards) == 0 {
		return fmt.Errorf("at least one vineyard is required")
	}
	if len(in.Vineyards) > model.MaxVineyards {
		return fmt.Errorf("at most %d vineyards allowed", model.MaxVineyards)
	}
	seen := map[string]struct{}{}
	for i, vs := range in.Vineyards {
		if vs.VineyardID == "" {
			return fmt.Errorf("vineyards[%d]: missing vineyardId", i)
		}
		if _, dup := seen[vs.VineyardID]; dup {
			return fmt.Errorf("vineyards[%d]: duplicate vineyard %s", i, vs.VineyardID)
		}
		seen[vs.VineyardID] = struct{}{}
		if err := validateStopTime(vs.Time); err != nil {
			return fmt.Errorf("vineyards[%d]: %w", i, err)
		}
	}
	if in.Restaurant != nil {
		if in.Restaurant.RestaurantID == "" {
			return fmt.Errorf("restaurant: missing restaurantId")
		}
		if err := validateStopTime(in.Restaurant.Time); err != nil {
			return fmt.Errorf("restaurant: %w", err)
		}
	}
	return nil
}

// validateStopTime accepts "" (unscheduled) or 24h "HH:MM".
func validateStopTime(t string) error {
	if t == "" {
		return nil
	}
	if len(t) != 5 || t[2] != ':' {
		return fmt.Errorf("time must be HH:MM, got %q", t)
	}
	var h, m int
	if _, err := fmt.Sscanf(t, "%02d:%02d", &h, &m); err != nil {
		return fmt.Errorf("time must be HH:MM, got %q", t)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return fmt.Errorf("time out of range: %q", t)
	}
	return nil
}

func validateOrderEntries(entries []model.OrderEntry) error {
	if len(entries) == 0 {
		return fmt.Errorf("order must not be empty")
	}
	seen := map[string]struct{}{}
	for i, e := range entries {
		if e.ID == "" {
			return fmt.Errorf("order[%d]: missing id", i)
		}
		if _, dup := seen[e.ID]; dup {
			return fmt.Errorf("order[%d]: duplicate id %s", i, e.ID)
		}
		seen[e.ID] = struct{}{}
		if e.Type != "" && e.Type != model.StopTypeVineyard && e.Type != model.StopTypeRestaurant {
			return fmt.Errorf("order[%d]: unknown type %s", i, e.Type)
		}
	}
	return nil
}
