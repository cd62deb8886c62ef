package store

import (
	"strconv"
	"strings"

	"vintrail/internal/model"
)

// parseStopID splits a synthetic stop id ("vineyard-1", "restaurant-0") into
// its type and index. ok is false for anything else.
func parseStopID(stopID string) (stopType string, index int, ok bool) {
	typ, idx, found := strings.Cut(stopID, "-")
	if !found {
		return "", 0, false
	}
	n, err := strconv.Atoi(idx)
	if err != nil || n < 0 {
		return "", 0, false
	}
	if typ != model.StopTypeVineyard && typ != model.StopTypeRestaurant {
		return "", 0, false
	}
	return typ, n, true
}

// applyStopTime sets the scheduled time on the addressed stop, in place.
// Returns false when the id does not resolve to a stop in the plan.
func applyStopTime(p *model.Plan, stopID, at string) bool {
	typ, idx, ok := parseStopID(stopID)
	if !ok {
		return false
	}
	switch typ {
	case model.StopTypeVineyard:
		if idx >= len(p.Vineyards) {
			return false
		}
		p.Vineyards[idx].Time = at
	case model.StopTypeRestaurant:
		if idx >= len(p.Restaurants) {
			return false
		}
		p.Restaurants[idx].Time = at
	}
	return true
}

func clonePlan(p model.Plan) model.Plan {
	out := p
	out.Vineyards = append([]model.VineyardStop(nil), p.Vineyards...)
	if p.Restaurants != nil {
		out.Restaurants = append([]model.RestaurantStop(nil), p.Restaurants...)
	}
	if p.CustomOrder != nil {
		out.CustomOrder = append([]model.OrderEntry(nil), p.CustomOrder...)
	}
	return out
}
