//go:generate go run go.uber.org/mock/mockgen -source=route.go -destination=../../mocks/mock_route_repository.go -package=mocks
package routes

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"routesim/server/internal/geo"
)

var (
	ErrNotFound = errors.New("route not found")
	ErrInvalid  = errors.New("invalid route")
)

const lineString = "LineString"

// Route is a named polyline. Distance is expressed in kilometers. On the wire
// and on disk the polyline is a GeoJSON LineString under "geometry".
type Route struct {
	ID          string
	Name        string
	Coordinates geo.Polyline
	Distance    float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type routeJSON struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Geometry  Geometry  `json:"geometry"`
	Distance  float64   `json:"distance"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (r Route) MarshalJSON() ([]byte, error) {
	return json.Marshal(routeJSON{
		ID:        r.ID,
		Name:      r.Name,
		Geometry:  Geometry{Type: lineString, Coordinates: r.Coordinates.Pairs()},
		Distance:  r.Distance,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	})
}

func (r *Route) UnmarshalJSON(data []byte) error {
	var wire routeJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	coords, err := geo.FromPairs(wire.Geometry.Coordinates)
	if err != nil {
		return err
	}
	*r = Route{
		ID:          wire.ID,
		Name:        wire.Name,
		Coordinates: coords,
		Distance:    wire.Distance,
		CreatedAt:   wire.CreatedAt,
		UpdatedAt:   wire.UpdatedAt,
	}
	return nil
}

// Geometry is the GeoJSON LineString accepted on writes.
type Geometry struct {
	Type        string      `json:"type" validate:"required,eq=LineString"`
	Coordinates [][]float64 `json:"coordinates" validate:"required,min=2,dive,len=2"`
}

type CreateRequest struct {
	Name     string   `json:"name" validate:"required,min=1,max=200"`
	Geometry Geometry `json:"geometry" validate:"required"`
	Distance *float64 `json:"distance,omitempty" validate:"omitempty,gt=0"`
}

// UpdateRequest is the partial form of CreateRequest; nil fields are kept.
type UpdateRequest struct {
	Name     *string   `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Geometry *Geometry `json:"geometry,omitempty"`
	Distance *float64  `json:"distance,omitempty" validate:"omitempty,gt=0"`
}

// PolylineLoader is the only storage operation the playback engine needs.
type PolylineLoader interface {
	LoadPolyline(ctx context.Context, id string) (geo.Polyline, error)
}

// LoaderFunc adapts a plain function to PolylineLoader.
type LoaderFunc func(ctx context.Context, id string) (geo.Polyline, error)

func (f LoaderFunc) LoadPolyline(ctx context.Context, id string) (geo.Polyline, error) {
	return f(ctx, id)
}

type Repository interface {
	PolylineLoader
	List(ctx context.Context) ([]Route, error)
	Search(ctx context.Context, query string) ([]Route, error)
	Get(ctx context.Context, id string) (Route, error)
	Create(ctx context.Context, req CreateRequest) (Route, error)
	Update(ctx context.Context, id string, req UpdateRequest) (Route, error)
	Delete(ctx context.Context, id string) error
}
