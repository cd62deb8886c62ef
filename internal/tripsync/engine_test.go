package tripsync

import (
	"context"
	"errors"
	"testing"

	"vintrail/internal/model"
	"vintrail/internal/store"
)

func vineyard(id, name string) model.Vineyard {
	return model.Vineyard{ID: id, Name: name, Location: &model.GeoPoint{Lat: 38.5, Lng: -122.8}}
}

func newEngine(t *testing.T) (*Engine, *store.Memory) {
	t.Helper()
	m := store.NewMemory()
	return New(StorePlanner{Store: m, UserID: "u1"}), m
}

func TestAddVineyardCapAndDedupe(t *testing.T) {
	e, _ := newEngine(t)
	for i, id := range []string{"v1", "v2", "v3"} {
		if err := e.AddVineyard(vineyard(id, id), nil); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	if err := e.AddVineyard(vineyard("v4", "v4"), nil); !errors.Is(err, ErrTripFull) {
		t.Fatalf("fourth add: got %v, want ErrTripFull", err)
	}
	if err := e.AddVineyard(vineyard("v2", "v2"), nil); !errors.Is(err, ErrDuplicateStop) {
		t.Fatalf("duplicate add: got %v, want ErrDuplicateStop", err)
	}
	// capacity error after removal clears
	e.RemoveVineyard("v3")
	if err := e.AddVineyard(vineyard("v4", "v4"), nil); err != nil {
		t.Fatalf("add after remove: %v", err)
	}
}

func TestUnsavedFlagLifecycle(t *testing.T) {
	e, _ := newEngine(t)
	if err := e.Load(context.Background()); err != nil {
		t.Fatalf("initial load: %v", err)
	}
	if e.Unsaved() {
		t.Fatalf("fresh engine reports unsaved changes")
	}
	if !e.Synced() {
		t.Fatalf("hydrated empty engine should be synced")
	}

	if err := e.AddVineyard(vineyard("v1", "Stony Hill"), nil); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !e.Unsaved() || e.Synced() {
		t.Fatalf("local edit not reflected in flags")
	}

	if _, err := e.Save(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if e.Unsaved() || !e.Synced() {
		t.Fatalf("save did not settle flags")
	}

	// an edit that restores the saved shape reads as no change
	e.SetTitle("renamed")
	if !e.Unsaved() {
		t.Fatalf("title drift not detected")
	}
	e.SetTitle("Stony Hill")
	if e.Unsaved() {
		t.Fatalf("restored title should read as synced")
	}
}

func TestLoadRefusesToClobberDirtyState(t *testing.T) {
	e, m := newEngine(t)
	// server already has a draft from another session
	if _, err := m.UpsertDraft(context.Background(), "u1", model.DraftInput{Vineyards: []model.VineyardStop{{VineyardID: "v9", Vineyard: vineyard("v9", "Server Side")}}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// local edit lands before the first load completes
	if err := e.AddVineyard(vineyard("v1", "Local First"), nil); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := e.Load(context.Background()); !errors.Is(err, ErrUnsavedChanges) {
		t.Fatalf("load over dirty state: got %v, want ErrUnsavedChanges", err)
	}
	trip := e.Trip()
	if len(trip.Vineyards) != 1 || trip.Vineyards[0].VineyardID != "v1" {
		t.Fatalf("local edits were clobbered: %+v", trip.Vineyards)
	}

	// after saving, a load adopts the server state cleanly
	if _, err := e.Save(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := e.Load(context.Background()); err != nil {
		t.Fatalf("load after save: %v", err)
	}
	trip = e.Trip()
	if len(trip.Vineyards) != 1 || trip.Vineyards[0].VineyardID != "v1" {
		t.Fatalf("saved state lost on reload: %+v", trip.Vineyards)
	}
}

func TestSaveAdoptsServerDerivedTitle(t *testing.T) {
	e, _ := newEngine(t)
	_ = e.AddVineyard(vineyard("v1", "Stony Hill"), nil)
	_ = e.AddVineyard(vineyard("v2", "Ridge"), nil)

	plan, err := e.Save(context.Background())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if plan.Title != "Stony Hill & Ridge" {
		t.Fatalf("server title: %q", plan.Title)
	}
	if e.Trip().Title != "Stony Hill & Ridge" {
		t.Fatalf("local mirror did not adopt server title")
	}
	if e.Unsaved() {
		t.Fatalf("adopted response should read as synced")
	}
}

func TestRestaurantAndTimes(t *testing.T) {
	e, _ := newEngine(t)
	_ = e.AddVineyard(vineyard("v1", "Stony Hill"), nil)
	e.SetRestaurant(model.Restaurant{ID: "r1", Name: "Bistro", Location: &model.GeoPoint{Lat: 38.3, Lng: -122.3}})

	if !e.SetVineyardTime("v1", "10:30") {
		t.Fatalf("vineyard time rejected")
	}
	if e.SetVineyardTime("v2", "10:30") {
		t.Fatalf("unknown vineyard accepted")
	}
	if !e.SetRestaurantTime("13:00") {
		t.Fatalf("restaurant time rejected")
	}

	plan, err := e.Save(context.Background())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if plan.Vineyards[0].Time != "10:30" {
		t.Fatalf("vineyard time lost: %+v", plan.Vineyards)
	}
	if r := plan.PrimaryRestaurant(); r == nil || r.Time != "13:00" {
		t.Fatalf("restaurant time lost: %+v", r)
	}

	e.RemoveRestaurant()
	if e.SetRestaurantTime("14:00") {
		t.Fatalf("time on removed restaurant accepted")
	}
	if !e.Unsaved() {
		t.Fatalf("restaurant removal not detected as drift")
	}
}

func TestResetClearsEverything(t *testing.T) {
	e, _ := newEngine(t)
	_ = e.AddVineyard(vineyard("v1", "Stony Hill"), nil)
	if _, err := e.Save(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}
	e.Reset()
	if e.Synced() {
		t.Fatalf("reset engine should not report synced")
	}
	if len(e.Trip().Vineyards) != 0 {
		t.Fatalf("reset left local state behind")
	}
}
