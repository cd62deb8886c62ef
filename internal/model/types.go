package model

import (
	"fmt"
	"strings"
	"time"
)

// Core domain types for the day-trip planner.

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Vineyard is the full snapshot embedded in a plan stop. Plans keep snapshots
// rather than references so a confirmed itinerary stays stable even if the
// catalog entry changes afterwards.
type Vineyard struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Region   string    `json:"region,omitempty"`
	Address  string    `json:"address,omitempty"`
	Location *GeoPoint `json:"location,omitempty"`
}

type Restaurant struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Cuisine  string    `json:"cuisine,omitempty"`
	Address  string    `json:"address,omitempty"`
	Location *GeoPoint `json:"location,omitempty"`
}

// Offer is a tasting or visit offer attached to a vineyard stop.
type Offer struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	PriceCents int    `json:"priceCents,omitempty"`
}

// VineyardStop is one vineyard entry within a plan, with an optional offer
// and an optional scheduled time ("HH:MM", empty when unscheduled).
type VineyardStop struct {
	VineyardID string   `json:"vineyardId"`
	Vineyard   Vineyard `json:"vineyard"`
	Offer      *Offer   `json:"offer,omitempty"`
	Time       string   `json:"time,omitempty"`
}

type RestaurantStop struct {
	RestaurantID string     `json:"restaurantId"`
	Restaurant   Restaurant `json:"restaurant"`
	Time         string     `json:"time,omitempty"`
}

const (
	StopTypeVineyard   = "vineyard"
	StopTypeRestaurant = "restaurant"
)

// MaxVineyards caps the number of vineyard stops per plan.
const MaxVineyards = 3

// OrderEntry is one element of a user-authored stop ordering. IDs are the
// synthetic stop ids ("vineyard-0", "restaurant-0"); Order is the position.
type OrderEntry struct {
	ID    string `json:"id"`
	Order int    `json:"order"`
	Type  string `json:"type"`
}

// Plan is the persisted unit of a user's itinerary.
//
// Lifecycle: draft (no ExpiresAt) -> confirmed (ConfirmedAt and ExpiresAt set)
// -> expired (ExpiresAt in the past). There is no transition back from
// expired; the user starts a new draft.
type Plan struct {
	ID          string           `json:"id"`
	UserID      string           `json:"userId"`
	Title       string           `json:"title,omitempty"`
	Vineyards   []VineyardStop   `json:"vineyards"`
	Restaurants []RestaurantStop `json:"restaurants,omitempty"`
	CustomOrder []OrderEntry     `json:"customOrder,omitempty"`
	IsActive    bool             `json:"isActive"`
	ConfirmedAt *time.Time       `json:"confirmedAt,omitempty"`
	ExpiresAt   *time.Time       `json:"expiresAt,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// Draft reports whether the plan has not been confirmed yet.
func (p Plan) Draft() bool { return p.ConfirmedAt == nil }

// Expired reports whether the plan's confirmation window has passed.
// Draft plans carry no expiry and never expire.
func (p Plan) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && now.After(*p.ExpiresAt)
}

// PrimaryRestaurant returns the single active restaurant stop. The storage
// shape is a list, but product rules cap usage at one.
func (p Plan) PrimaryRestaurant() *RestaurantStop {
	if len(p.Restaurants) == 0 {
		return nil
	}
	return &p.Restaurants[0]
}

// StopID builds the synthetic id used to address a stop within a plan.
func StopID(stopType string, index int) string {
	return fmt.Sprintf("%s-%d", stopType, index)
}

// DraftInput is the create-or-replace payload for the active draft. The
// replacement is wholesale: the submitted stops become the draft's stops.
type DraftInput struct {
	Title      string          `json:"title,omitempty"`
	Vineyards  []VineyardStop  `json:"vineyards"`
	Restaurant *RestaurantStop `json:"restaurant,omitempty"`
}

// DeriveTitle builds a display title from the first two vineyard names.
func DeriveTitle(vineyards []VineyardStop) string {
	names := make([]string, 0, 2)
	for _, vs := range vineyards {
		if vs.Vineyard.Name == "" {
			continue
		}
		names = append(names, vs.Vineyard.Name)
		if len(names) == 2 {
			break
		}
	}
	return strings.Join(names, " & ")
}

// Webhook subscription types for plan lifecycle notifications.

type SubscriptionRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret"`
}

type Subscription struct {
	ID     string   `json:"id"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret,omitempty"`
}
