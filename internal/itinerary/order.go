// Package itinerary turns a plan's stop set into the definitive display and
// routing order for the map view.
package itinerary

import (
	"sort"
	"strings"

	"vintrail/internal/model"
)

// Stop is the flattened, map-ready view of one plan entry. It is derived,
// never persisted; only the custom order and per-stop times round-trip back
// into the plan.
type Stop struct {
	ID    string       `json:"id"`
	Type  string       `json:"type"`
	Name  string       `json:"name"`
	Time  string       `json:"time,omitempty"`
	Lat   float64      `json:"lat"`
	Lng   float64      `json:"lng"`
	Offer *model.Offer `json:"offer,omitempty"`
}

// BuildStops flattens a plan into addressable stops. Entries without
// coordinates are skipped: they can neither be placed on the map nor routed.
// Synthetic ids are index-based ("vineyard-0".."vineyard-2", "restaurant-0").
func BuildStops(p model.Plan) []Stop {
	out := make([]Stop, 0, len(p.Vineyards)+len(p.Restaurants))
	for i, vs := range p.Vineyards {
		loc := vs.Vineyard.Location
		if loc == nil {
			continue
		}
		out = append(out, Stop{
			ID:    model.StopID(model.StopTypeVineyard, i),
			Type:  model.StopTypeVineyard,
			Name:  vs.Vineyard.Name,
			Time:  vs.Time,
			Lat:   loc.Lat,
			Lng:   loc.Lng,
			Offer: vs.Offer,
		})
	}
	for i, rs := range p.Restaurants {
		loc := rs.Restaurant.Location
		if loc == nil {
			continue
		}
		out = append(out, Stop{
			ID:   model.StopID(model.StopTypeRestaurant, i),
			Type: model.StopTypeRestaurant,
			Name: rs.Restaurant.Name,
			Time: rs.Time,
			Lat:  loc.Lat,
			Lng:  loc.Lng,
		})
	}
	return out
}

// Order produces the display order: a saved custom order wins; otherwise
// stops sort by scheduled time.
func Order(stops []Stop, custom []model.OrderEntry) []Stop {
	if len(custom) > 0 {
		return applyCustomOrder(stops, custom)
	}
	return sortByTime(stops)
}

func applyCustomOrder(stops []Stop, custom []model.OrderEntry) []Stop {
	entries := append([]model.OrderEntry(nil), custom...)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Order < entries[j].Order })

	index := make(map[string]int, len(stops))
	for i, s := range stops {
		index[s.ID] = i
	}
	used := make([]bool, len(stops))
	out := make([]Stop, 0, len(stops))
	for _, e := range entries {
		if i, ok := index[e.ID]; ok && !used[i] {
			out = append(out, stops[i])
			used[i] = true
		}
	}
	// Stops the saved order does not know about (added after it was last
	// written) keep their original relative order at the end.
	for i, s := range stops {
		if !used[i] {
			out = append(out, s)
		}
	}
	return out
}

// sortByTime sorts stops by scheduled time. A comparison where either side
// has no time reports no preference, so untimed stops keep their incoming
// position under the stable sort rather than sinking to either end.
func sortByTime(stops []Stop) []Stop {
	out := append([]Stop(nil), stops...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Time, out[j].Time
		if a == "" || b == "" {
			return false
		}
		return timeKey(a) < timeKey(b)
	})
	return out
}

// timeKey strips the colon so "09:00" and "13:30" compare as "0900" < "1330".
func timeKey(t string) string { return strings.ReplaceAll(t, ":", "") }

// Move takes the stop at from and reinserts it at to, as a drag-reorder does.
// Out-of-range indices return the input unchanged.
func Move(stops []Stop, from, to int) []Stop {
	n := len(stops)
	if from < 0 || from >= n || to < 0 || to >= n {
		return stops
	}
	out := append([]Stop(nil), stops...)
	s := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]Stop{s}, out[to:]...)...)
	return out
}

// OrderEntries converts an ordered stop list into the persistable shape for
// UpdateCustomOrder.
func OrderEntries(stops []Stop) []model.OrderEntry {
	out := make([]model.OrderEntry, len(stops))
	for i, s := range stops {
		out[i] = model.OrderEntry{ID: s.ID, Order: i, Type: s.Type}
	}
	return out
}
