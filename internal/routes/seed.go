package routes

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"

	"routesim/server/internal/geo"
)

// SeedRoutes are inserted into an empty store so a fresh install has
// something to play back. Their ids are stable.
var SeedRoutes = []Route{
	{
		ID:   "downtown-loop",
		Name: "Downtown Loop",
		Coordinates: geo.Polyline{
			{Lon: -73.968285, Lat: 40.785091},
			{Lon: -73.973285, Lat: 40.782091},
			{Lon: -73.969285, Lat: 40.778091},
			{Lon: -73.965285, Lat: 40.780091},
			{Lon: -73.968285, Lat: 40.785091},
		},
		Distance: 5.2,
	},
	{
		ID:   "riverside-trail",
		Name: "Riverside Trail",
		Coordinates: geo.Polyline{
			{Lon: -74.010406, Lat: 40.704586},
			{Lon: -74.009276, Lat: 40.711614},
			{Lon: -74.008632, Lat: 40.718153},
			{Lon: -74.007559, Lat: 40.723940},
			{Lon: -74.006872, Lat: 40.728675},
		},
		Distance: 3.8,
	},
}

// Seed writes SeedRoutes when the repository holds no route yet. It reports
// how many routes were inserted.
func (r *BadgerRepository) Seed(ctx context.Context) (int, error) {
	existing, err := r.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}
	now := r.now()
	seeded := lo.Map(SeedRoutes, func(route Route, i int) Route {
		route.Coordinates = route.Coordinates.Clone()
		route.CreatedAt = now.Add(-time.Duration(i) * time.Second)
		route.UpdatedAt = route.CreatedAt
		return route
	})
	err = r.db.Update(func(txn *badger.Txn) error {
		for _, route := range seeded {
			if err := putRoute(txn, route); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, route := range seeded {
		r.reindex(route)
	}
	return len(seeded), nil
}
