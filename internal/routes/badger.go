package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"routesim/server/internal/geo"
)

const routePrefix = "route:"

// BadgerRepository stores routes as JSON values under "route:<id>" keys and
// keeps an optional name index in step with every write.
type BadgerRepository struct {
	db    *badger.DB
	index *Index
	log   *slog.Logger
	now   func() time.Time
}

func NewBadgerRepository(db *badger.DB, index *Index, log *slog.Logger) *BadgerRepository {
	if log == nil {
		log = slog.Default()
	}
	return &BadgerRepository{db: db, index: index, log: log, now: func() time.Time { return time.Now().UTC() }}
}

func routeKey(id string) []byte {
	return []byte(routePrefix + id)
}

// List returns every route, newest first.
func (r *BadgerRepository) List(ctx context.Context) ([]Route, error) {
	var out []Route
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(routePrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var route Route
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &route)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, route)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Search returns routes whose name matches query. An empty query lists everything.
func (r *BadgerRepository) Search(ctx context.Context, query string) ([]Route, error) {
	if query == "" || r.index == nil {
		return r.List(ctx)
	}
	ids, err := r.index.Search(ctx, query, 100)
	if err != nil {
		return nil, err
	}
	out := make([]Route, 0, len(ids))
	for _, id := range ids {
		route, err := r.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, route)
	}
	return out, nil
}

func (r *BadgerRepository) Get(_ context.Context, id string) (Route, error) {
	var route Route
	err := r.db.View(func(txn *badger.Txn) error {
		return getRoute(txn, id, &route)
	})
	return route, err
}

func getRoute(txn *badger.Txn, id string, dst *Route) error {
	item, err := txn.Get(routeKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, dst)
	})
}

func putRoute(txn *badger.Txn, route Route) error {
	data, err := json.Marshal(route)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return txn.Set(routeKey(route.ID), data)
}

// Create validates req and persists a new route. A missing distance is
// derived from the polyline length.
func (r *BadgerRepository) Create(ctx context.Context, req CreateRequest) (Route, error) {
	coords, err := req.Validate()
	if err != nil {
		return Route{}, err
	}
	now := r.now()
	route := Route{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Coordinates: coords,
		Distance:    kilometers(coords.Length()),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.Distance != nil {
		route.Distance = *req.Distance
	}
	if err := r.insert(ctx, route); err != nil {
		return Route{}, err
	}
	return route, nil
}

func (r *BadgerRepository) insert(_ context.Context, route Route) error {
	if err := r.db.Update(func(txn *badger.Txn) error {
		return putRoute(txn, route)
	}); err != nil {
		return err
	}
	r.reindex(route)
	return nil
}

// Update applies the non-nil fields of req. A new geometry without an explicit
// distance recomputes the distance.
func (r *BadgerRepository) Update(_ context.Context, id string, req UpdateRequest) (Route, error) {
	coords, err := req.Validate()
	if err != nil {
		return Route{}, err
	}
	var route Route
	err = r.db.Update(func(txn *badger.Txn) error {
		if err := getRoute(txn, id, &route); err != nil {
			return err
		}
		if req.Name != nil {
			route.Name = *req.Name
		}
		if coords != nil {
			route.Coordinates = coords
			route.Distance = kilometers(coords.Length())
		}
		if req.Distance != nil {
			route.Distance = *req.Distance
		}
		route.UpdatedAt = r.now()
		return putRoute(txn, route)
	})
	if err != nil {
		return Route{}, err
	}
	r.reindex(route)
	return route, nil
}

func (r *BadgerRepository) Delete(_ context.Context, id string) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(routeKey(id)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return txn.Delete(routeKey(id))
	})
	if err != nil {
		return err
	}
	if r.index != nil {
		if err := r.index.Delete(id); err != nil {
			r.log.Warn("route index delete failed", "id", id, "error", err)
		}
	}
	return nil
}

func (r *BadgerRepository) LoadPolyline(ctx context.Context, id string) (geo.Polyline, error) {
	route, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return route.Coordinates, nil
}

// Reindex rebuilds the name index from the store, typically once at startup.
func (r *BadgerRepository) Reindex(ctx context.Context) error {
	if r.index == nil {
		return nil
	}
	all, err := r.List(ctx)
	if err != nil {
		return err
	}
	for _, route := range all {
		if err := r.index.Put(route); err != nil {
			return err
		}
	}
	return nil
}

func (r *BadgerRepository) reindex(route Route) {
	if r.index == nil {
		return
	}
	if err := r.index.Put(route); err != nil {
		r.log.Warn("route index update failed", "id", route.ID, "error", err)
	}
}

func kilometers(meters float64) float64 {
	return meters / 1000
}
