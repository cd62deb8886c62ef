package routing

import (
	"context"
	"errors"
	"math"
	"testing"

	"vintrail/internal/model"
)

var (
	napa      = model.GeoPoint{Lat: 38.2975, Lng: -122.2869}
	stHelena  = model.GeoPoint{Lat: 38.5052, Lng: -122.4703}
	calistoga = model.GeoPoint{Lat: 38.5788, Lng: -122.5797}
	sonoma    = model.GeoPoint{Lat: 38.2920, Lng: -122.4580}
)

func TestDirectionsTwoPoints(t *testing.T) {
	r, err := Estimator{}.Directions(context.Background(), []model.GeoPoint{napa, stHelena})
	if err != nil {
		t.Fatalf("directions: %v", err)
	}
	if len(r.Legs) != 1 {
		t.Fatalf("want 1 leg, got %d", len(r.Legs))
	}
	// Napa to St Helena is roughly 28km great-circle
	if r.Legs[0].DistM < 25000 || r.Legs[0].DistM > 32000 {
		t.Fatalf("implausible distance: %d m", r.Legs[0].DistM)
	}
	if r.Legs[0].DriveSec <= 0 {
		t.Fatalf("drive time missing")
	}
	if r.TotalDistM != r.Legs[0].DistM || r.TotalDriveSec != r.Legs[0].DriveSec {
		t.Fatalf("totals diverge from single leg")
	}
}

func TestDirectionsWaypointsKeepOrder(t *testing.T) {
	points := []model.GeoPoint{napa, stHelena, calistoga, sonoma}
	r, err := Estimator{SpeedKmh: 60}.Directions(context.Background(), points)
	if err != nil {
		t.Fatalf("directions: %v", err)
	}
	if len(r.Legs) != 3 {
		t.Fatalf("want 3 legs, got %d", len(r.Legs))
	}
	for i, leg := range r.Legs {
		if leg.From != points[i] || leg.To != points[i+1] {
			t.Fatalf("leg %d reordered: %+v", i, leg)
		}
	}
	sumD, sumT := 0, 0
	for _, leg := range r.Legs {
		sumD += leg.DistM
		sumT += leg.DriveSec
	}
	if r.TotalDistM != sumD || r.TotalDriveSec != sumT {
		t.Fatalf("totals: got (%d,%d), want (%d,%d)", r.TotalDistM, r.TotalDriveSec, sumD, sumT)
	}
}

func TestDirectionsTooFewPoints(t *testing.T) {
	for _, pts := range [][]model.GeoPoint{nil, {napa}} {
		if _, err := (Estimator{}).Directions(context.Background(), pts); !errors.Is(err, ErrTooFewPoints) {
			t.Fatalf("points=%v: got %v, want ErrTooFewPoints", pts, err)
		}
	}
}

func TestEstimatorSpeedScaling(t *testing.T) {
	pts := []model.GeoPoint{napa, calistoga}
	slow, _ := Estimator{SpeedKmh: 30}.Directions(context.Background(), pts)
	fast, _ := Estimator{SpeedKmh: 90}.Directions(context.Background(), pts)
	if slow.TotalDistM != fast.TotalDistM {
		t.Fatalf("distance should not depend on speed")
	}
	ratio := float64(slow.TotalDriveSec) / float64(fast.TotalDriveSec)
	if math.Abs(ratio-3) > 0.05 {
		t.Fatalf("drive time ratio = %.2f, want ~3", ratio)
	}
}

func TestHaversineZeroDistance(t *testing.T) {
	if d := haversineMeters(napa.Lat, napa.Lng, napa.Lat, napa.Lng); d != 0 {
		t.Fatalf("same point distance = %f", d)
	}
}
