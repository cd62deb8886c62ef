// Package tripsync keeps an optimistic local mirror of the user's active
// draft. Mutations apply instantly and synchronously; the server sees them
// only on an explicit Save. Until that save, local edits always win over
// anything arriving from the server.
package tripsync

import (
	"context"
	"errors"
	"sync"

	"vintrail/internal/model"
)

var (
	// ErrTripFull is returned when a fourth vineyard is added.
	ErrTripFull = errors.New("tripsync: trip already has three vineyards")
	// ErrDuplicateStop is returned when the vineyard is already in the trip.
	ErrDuplicateStop = errors.New("tripsync: vineyard already in trip")
	// ErrUnsavedChanges is returned by Load when local edits would be lost.
	ErrUnsavedChanges = errors.New("tripsync: unsaved local changes")
)

// Trip is the local projection of a draft: the same shape the server stores,
// minus lifecycle fields.
type Trip struct {
	Title      string
	Vineyards  []model.VineyardStop
	Restaurant *model.RestaurantStop
}

// Planner is the slice of the plan API the engine pushes to and pulls from.
type Planner interface {
	ActiveDraft(ctx context.Context) (model.Plan, bool, error)
	SaveDraft(ctx context.Context, in model.DraftInput) (model.Plan, error)
}

// Engine owns the local draft and the last snapshot the server acknowledged.
// The two are diffed to derive the unsaved-changes flag; the snapshot only
// moves forward on a successful Save or a clean Load.
type Engine struct {
	mu      sync.Mutex
	planner Planner

	local    Trip
	saved    Trip
	hydrated bool
}

func New(p Planner) *Engine {
	return &Engine{planner: p}
}

// Load pulls the active draft and overwrites local state. It refuses to
// clobber unsaved edits: a load that races a local mutation returns
// ErrUnsavedChanges and leaves the mirror untouched.
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	dirty := !equalTrips(e.local, e.saved)
	e.mu.Unlock()
	if dirty {
		return ErrUnsavedChanges
	}

	plan, found, err := e.planner.ActiveDraft(ctx)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		return err
	}
	// Re-check: a mutation may have landed while the fetch was in flight.
	if !equalTrips(e.local, e.saved) {
		return ErrUnsavedChanges
	}
	if found {
		t := tripFromPlan(plan)
		e.local = cloneTrip(t)
		e.saved = cloneTrip(t)
	} else {
		e.local = Trip{}
		e.saved = Trip{}
	}
	e.hydrated = true
	return nil
}

// AddVineyard appends a vineyard locally. The result is reported
// synchronously so the UI can show a capacity error without a round trip.
func (e *Engine) AddVineyard(v model.Vineyard, offer *model.Offer) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.local.Vineyards) >= model.MaxVineyards {
		return ErrTripFull
	}
	for _, vs := range e.local.Vineyards {
		if vs.VineyardID == v.ID {
			return ErrDuplicateStop
		}
	}
	e.local.Vineyards = append(e.local.Vineyards, model.VineyardStop{VineyardID: v.ID, Vineyard: v, Offer: offer})
	return nil
}

func (e *Engine) RemoveVineyard(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.local.Vineyards[:0]
	for _, vs := range e.local.Vineyards {
		if vs.VineyardID != id {
			out = append(out, vs)
		}
	}
	e.local.Vineyards = out
}

func (e *Engine) SetRestaurant(r model.Restaurant) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.local.Restaurant = &model.RestaurantStop{RestaurantID: r.ID, Restaurant: r}
}

func (e *Engine) RemoveRestaurant() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.local.Restaurant = nil
}

// SetVineyardTime updates the scheduled time for a vineyard already in the
// trip; it reports whether the vineyard was found.
func (e *Engine) SetVineyardTime(id, at string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.local.Vineyards {
		if e.local.Vineyards[i].VineyardID == id {
			e.local.Vineyards[i].Time = at
			return true
		}
	}
	return false
}

func (e *Engine) SetRestaurantTime(at string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.local.Restaurant == nil {
		return false
	}
	e.local.Restaurant.Time = at
	return true
}

func (e *Engine) SetTitle(title string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.local.Title = title
}

// Unsaved reports whether local state has drifted from the last acknowledged
// server snapshot.
func (e *Engine) Unsaved() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !equalTrips(e.local, e.saved)
}

// Synced gates navigation into the map step: true only once the mirror is
// hydrated and matches the server snapshot exactly.
func (e *Engine) Synced() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hydrated && equalTrips(e.local, e.saved)
}

// Trip returns a copy of the local draft.
func (e *Engine) Trip() Trip {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneTrip(e.local)
}

// Save pushes the full local draft. On success both the local draft and the
// snapshot adopt the server response, picking up server-derived fields such
// as an auto-generated title.
func (e *Engine) Save(ctx context.Context) (model.Plan, error) {
	e.mu.Lock()
	in := model.DraftInput{
		Title:      e.local.Title,
		Vineyards:  append([]model.VineyardStop(nil), e.local.Vineyards...),
		Restaurant: cloneRestaurant(e.local.Restaurant),
	}
	e.mu.Unlock()

	plan, err := e.planner.SaveDraft(ctx, in)
	if err != nil {
		return model.Plan{}, err
	}
	t := tripFromPlan(plan)
	e.mu.Lock()
	e.local = cloneTrip(t)
	e.saved = cloneTrip(t)
	e.hydrated = true
	e.mu.Unlock()
	return plan, nil
}

// Reset clears all local state, for logout or user switch.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.local = Trip{}
	e.saved = Trip{}
	e.hydrated = false
}

func tripFromPlan(p model.Plan) Trip {
	t := Trip{Title: p.Title, Vineyards: p.Vineyards}
	if r := p.PrimaryRestaurant(); r != nil {
		rc := *r
		t.Restaurant = &rc
	}
	return t
}

func cloneTrip(t Trip) Trip {
	return Trip{
		Title:      t.Title,
		Vineyards:  append([]model.VineyardStop(nil), t.Vineyards...),
		Restaurant: cloneRestaurant(t.Restaurant),
	}
}

func cloneRestaurant(r *model.RestaurantStop) *model.RestaurantStop {
	if r == nil {
		return nil
	}
	rc := *r
	return &rc
}

// equalTrips is the pure diff behind the unsaved-changes flag. Snapshot
// metadata (offer pointers) compares by id, everything else by value.
func equalTrips(a, b Trip) bool {
	if a.Title != b.Title {
		return false
	}
	if len(a.Vineyards) != len(b.Vineyards) {
		return false
	}
	for i := range a.Vineyards {
		av, bv := a.Vineyards[i], b.Vineyards[i]
		if av.VineyardID != bv.VineyardID || av.Time != bv.Time {
			return false
		}
		if offerID(av.Offer) != offerID(bv.Offer) {
			return false
		}
	}
	if (a.Restaurant == nil) != (b.Restaurant == nil) {
		return false
	}
	if a.Restaurant != nil {
		if a.Restaurant.RestaurantID != b.Restaurant.RestaurantID || a.Restaurant.Time != b.Restaurant.Time {
			return false
		}
	}
	return true
}

func offerID(o *model.Offer) string {
	if o == nil {
		return ""
	}
	return o.ID
}
