// Package routing computes multi-leg driving routes for an ordered stop list.
// The actual directions provider sits behind the Provider interface; the
// bundled Estimator keeps the map view working without one.
package routing

import (
	"context"
	"errors"
	"math"

	"vintrail/internal/model"
)

// ErrTooFewPoints is returned when fewer than two coordinates are given.
var ErrTooFewPoints = errors.New("routing: at least two points required")

type Leg struct {
	From     model.GeoPoint `json:"from"`
	To       model.GeoPoint `json:"to"`
	DistM    int            `json:"distM"`
	DriveSec int            `json:"driveSec"`
}

type Route struct {
	Legs          []Leg `json:"legs"`
	TotalDistM    int   `json:"totalDistM"`
	TotalDriveSec int   `json:"totalDriveSec"`
}

// Provider computes a driving route through the given points in order. With
// exactly two points the route is direct; with more, the first and last are
// origin and destination and everything between is a waypoint. Waypoint order
// is never reshuffled: it must match the user's itinerary order.
type Provider interface {
	Directions(ctx context.Context, points []model.GeoPoint) (Route, error)
}

// Estimator is a Provider backed by great-circle distance and a flat average
// speed. It stands in when no external directions service is configured.
type Estimator struct {
	SpeedKmh float64
}

func (e Estimator) Directions(_ context.Context, points []model.GeoPoint) (Route, error) {
	if len(points) < 2 {
		return Route{}, ErrTooFewPoints
	}
	speed := e.SpeedKmh
	if speed <= 0 {
		speed = 50
	}
	mps := speed / 3.6
	r := Route{Legs: make([]Leg, 0, len(points)-1)}
	for i := 0; i+1 < len(points); i++ {
		d := haversineMeters(points[i].Lat, points[i].Lng, points[i+1].Lat, points[i+1].Lng)
		leg := Leg{
			From:     points[i],
			To:       points[i+1],
			DistM:    int(math.Round(d)),
			DriveSec: int(math.Round(d / mps)),
		}
		r.Legs = append(r.Legs, leg)
		r.TotalDistM += leg.DistM
		r.TotalDriveSec += leg.DriveSec
	}
	return r, nil
}

func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
